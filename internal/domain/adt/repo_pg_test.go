package adt

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "discharges_admission_id_key"}
	if !isUniqueViolation(unique) {
		t.Error("expected 23505 to be detected as a unique violation")
	}
	if !isUniqueViolation(fmt.Errorf("insert discharge: %w", unique)) {
		t.Error("expected wrapped 23505 to be detected")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("foreign key violation is not a unique violation")
	}
	if isUniqueViolation(fmt.Errorf("connection reset")) {
		t.Error("plain error is not a unique violation")
	}
}
