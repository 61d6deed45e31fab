package adterr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatus_Validation(t *testing.T) {
	err := Validationf("patient_id is required")
	if got := Status(err); got != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", got)
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("expected errors.Is(err, ErrValidation)")
	}
}

func TestStatus_NotFound(t *testing.T) {
	err := NotFoundf("admission %s", "abc")
	if got := Status(err); got != http.StatusNotFound {
		t.Errorf("expected 404, got %d", got)
	}
}

func TestStatus_Conflict(t *testing.T) {
	err := Conflictf("bed %s is occupied", "B-001")
	if got := Status(err); got != http.StatusConflict {
		t.Errorf("expected 409, got %d", got)
	}
}

func TestStatus_WrappedTwice(t *testing.T) {
	err := fmt.Errorf("admit: %w", Conflictf("bed occupied"))
	if got := Status(err); got != http.StatusConflict {
		t.Errorf("expected 409 through wrapping, got %d", got)
	}
}

func TestStatus_Unknown(t *testing.T) {
	if got := Status(errors.New("boom")); got != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", got)
	}
}

func TestMessage_InternalNeverLeaks(t *testing.T) {
	err := errors.New("pq: connection refused at 10.0.0.5")
	if got := Message(err); got != "internal server error" {
		t.Errorf("internal detail leaked to client: %q", got)
	}
}

func TestMessage_TypedErrorsKeepDetail(t *testing.T) {
	err := Conflictf("bed B-001 is occupied")
	if got := Message(err); got != "conflict: bed B-001 is occupied" {
		t.Errorf("unexpected message: %q", got)
	}
}
