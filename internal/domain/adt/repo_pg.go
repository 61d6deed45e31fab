package adt

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/adt/internal/platform/adterr"
	"github.com/hms/adt/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const admissionCols = `a.id, a.patient_id, a.ward_id, a.bed_id, a.admission_date, a.reason, a.created_at, a.updated_at`

// admissionViewQuery joins the names the board and list endpoints render.
// An admission is active while no discharge row references it.
const admissionViewQuery = `
	SELECT ` + admissionCols + `,
	       p.first_name || ' ' || p.last_name,
	       w.name,
	       b.number,
	       NOT EXISTS (SELECT 1 FROM discharges d WHERE d.admission_id = a.id)
	FROM admissions a
	JOIN patients p ON p.id = a.patient_id
	JOIN wards w ON w.id = a.ward_id
	LEFT JOIN beds b ON b.id = a.bed_id`

func (r *repoPG) CreateAdmission(ctx context.Context, a *Admission) error {
	a.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO admissions (id, patient_id, ward_id, bed_id, admission_date, reason)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.WardID, a.BedID, a.AdmissionDate, a.Reason,
	)
	return row.Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetAdmission(ctx context.Context, id uuid.UUID) (*Admission, error) {
	var a Admission
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+admissionCols+` FROM admissions a WHERE a.id = $1`, id,
	).Scan(&a.ID, &a.PatientID, &a.WardID, &a.BedID, &a.AdmissionDate, &a.Reason, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, adterr.NotFoundf("admission %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) GetAdmissionView(ctx context.Context, id uuid.UUID) (*AdmissionView, error) {
	v, err := scanAdmissionView(r.conn(ctx).QueryRow(ctx, admissionViewQuery+` WHERE a.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, adterr.NotFoundf("admission %s", id)
	}
	return v, err
}

func (r *repoPG) UpdateAdmission(ctx context.Context, a *Admission) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE admissions SET admission_date=$2, reason=$3, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.AdmissionDate, a.Reason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return adterr.NotFoundf("admission %s", a.ID)
	}
	return nil
}

func (r *repoPG) MoveAdmission(ctx context.Context, id uuid.UUID, wardID uuid.UUID, bedID *uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE admissions SET ward_id=$2, bed_id=$3, updated_at=NOW()
		WHERE id = $1`,
		id, wardID, bedID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return adterr.NotFoundf("admission %s", id)
	}
	return nil
}

func (r *repoPG) ListAdmissions(ctx context.Context, f AdmissionFilter) ([]*AdmissionView, error) {
	query := admissionViewQuery
	var clauses []string
	var args []interface{}

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.WardID != uuid.Nil {
		add("a.ward_id = $%d", f.WardID)
	}
	if f.PatientID != uuid.Nil {
		add("a.patient_id = $%d", f.PatientID)
	}
	if f.DateFrom != nil {
		add("a.admission_date >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("a.admission_date <= $%d", *f.DateTo)
	}
	if f.ActiveOnly {
		clauses = append(clauses, "NOT EXISTS (SELECT 1 FROM discharges d WHERE d.admission_id = a.id)")
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY a.admission_date DESC"

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []*AdmissionView
	for rows.Next() {
		v, err := scanAdmissionView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func (r *repoPG) CreateDischarge(ctx context.Context, d *Discharge) error {
	d.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO discharges (id, admission_id, discharge_date, notes)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at`,
		d.ID, d.AdmissionID, d.DischargeDate, d.Notes,
	)
	if err := row.Scan(&d.CreatedAt); err != nil {
		// Racing discharges can both pass the service's check; the loser
		// hits UNIQUE (admission_id) here and must surface as a conflict.
		if isUniqueViolation(err) {
			return adterr.Conflictf("admission %s is already discharged", d.AdmissionID)
		}
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *repoPG) HasDischarge(ctx context.Context, admissionID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM discharges WHERE admission_id = $1)`, admissionID,
	).Scan(&exists)
	return exists, err
}

func (r *repoPG) ListDischarges(ctx context.Context) ([]*DischargeView, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT d.id, d.admission_id, d.discharge_date, d.notes, d.created_at,
		       a.patient_id, p.first_name || ' ' || p.last_name
		FROM discharges d
		JOIN admissions a ON a.id = d.admission_id
		JOIN patients p ON p.id = a.patient_id
		ORDER BY d.discharge_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []*DischargeView
	for rows.Next() {
		var v DischargeView
		if err := rows.Scan(&v.ID, &v.AdmissionID, &v.DischargeDate, &v.Notes, &v.CreatedAt,
			&v.PatientID, &v.PatientName); err != nil {
			return nil, err
		}
		views = append(views, &v)
	}
	return views, rows.Err()
}

func (r *repoPG) CreateTransfer(ctx context.Context, t *Transfer) error {
	t.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO transfers (id, admission_id, from_ward_id, to_ward_id, from_bed_id, to_bed_id, transfer_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		t.ID, t.AdmissionID, t.FromWardID, t.ToWardID, t.FromBedID, t.ToBedID, t.TransferDate,
	)
	return row.Scan(&t.CreatedAt)
}

func (r *repoPG) ListTransfers(ctx context.Context) ([]*TransferView, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT t.id, t.admission_id, t.from_ward_id, t.to_ward_id, t.from_bed_id, t.to_bed_id,
		       t.transfer_date, t.created_at,
		       p.first_name || ' ' || p.last_name,
		       wf.name, wt.name
		FROM transfers t
		JOIN admissions a ON a.id = t.admission_id
		JOIN patients p ON p.id = a.patient_id
		JOIN wards wf ON wf.id = t.from_ward_id
		JOIN wards wt ON wt.id = t.to_ward_id
		ORDER BY t.transfer_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []*TransferView
	for rows.Next() {
		var v TransferView
		if err := rows.Scan(&v.ID, &v.AdmissionID, &v.FromWardID, &v.ToWardID, &v.FromBedID, &v.ToBedID,
			&v.TransferDate, &v.CreatedAt, &v.PatientName, &v.FromWardName, &v.ToWardName); err != nil {
			return nil, err
		}
		views = append(views, &v)
	}
	return views, rows.Err()
}

func (r *repoPG) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *repoPG) WardExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM wards WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *repoPG) GetBedForUpdate(ctx context.Context, id uuid.UUID) (*BedState, error) {
	var b BedState
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, ward_id, number, is_occupied FROM beds WHERE id = $1 FOR UPDATE`, id,
	).Scan(&b.ID, &b.WardID, &b.Number, &b.IsOccupied)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, adterr.NotFoundf("bed %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repoPG) SetBedOccupied(ctx context.Context, id uuid.UUID, occupied bool) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE beds SET is_occupied=$2, updated_at=NOW() WHERE id = $1`,
		id, occupied,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return adterr.NotFoundf("bed %s", id)
	}
	return nil
}

func scanAdmissionView(row pgx.Row) (*AdmissionView, error) {
	var v AdmissionView
	err := row.Scan(&v.ID, &v.PatientID, &v.WardID, &v.BedID, &v.AdmissionDate, &v.Reason,
		&v.CreatedAt, &v.UpdatedAt, &v.PatientName, &v.WardName, &v.BedNumber, &v.Active)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
