package ward

import (
	"context"
	"errors"

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

func (r *repoPG) CreateWard(ctx context.Context, w *Ward) error {
	w.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO wards (id, name, department) VALUES ($1,$2,$3)
		RETURNING created_at, updated_at`,
		w.ID, w.Name, w.Department,
	)
	return row.Scan(&w.CreatedAt, &w.UpdatedAt)
}

func (r *repoPG) GetWard(ctx context.Context, id uuid.UUID) (*Ward, error) {
	var w Ward
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, department, created_at, updated_at FROM wards WHERE id = $1`, id).
		Scan(&w.ID, &w.Name, &w.Department, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, adterr.NotFoundf("ward %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *repoPG) UpdateWard(ctx context.Context, w *Ward) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE wards SET name=$2, department=$3, updated_at=NOW() WHERE id = $1`,
		w.ID, w.Name, w.Department,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return adterr.NotFoundf("ward %s", w.ID)
	}
	return nil
}

func (r *repoPG) DeleteWard(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM wards WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return adterr.NotFoundf("ward %s", id)
	}
	return nil
}

func (r *repoPG) ListWards(ctx context.Context, limit, offset int) ([]*Ward, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM wards`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, name, department, created_at, updated_at FROM wards ORDER BY name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var wards []*Ward
	for rows.Next() {
		var w Ward
		if err := rows.Scan(&w.ID, &w.Name, &w.Department, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, 0, err
		}
		wards = append(wards, &w)
	}
	return wards, total, rows.Err()
}

func (r *repoPG) CreateBed(ctx context.Context, b *Bed) error {
	b.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO beds (id, ward_id, number, is_occupied) VALUES ($1,$2,$3,$4)
		RETURNING created_at, updated_at`,
		b.ID, b.WardID, b.Number, b.IsOccupied,
	)
	return row.Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (r *repoPG) GetBed(ctx context.Context, id uuid.UUID) (*Bed, error) {
	var b Bed
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, ward_id, number, is_occupied, created_at, updated_at FROM beds WHERE id = $1`, id).
		Scan(&b.ID, &b.WardID, &b.Number, &b.IsOccupied, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, adterr.NotFoundf("bed %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repoPG) SetBedOccupied(ctx context.Context, id uuid.UUID, occupied bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE beds SET is_occupied=$2, updated_at=NOW() WHERE id = $1`,
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

func (r *repoPG) BedBoard(ctx context.Context, wardID uuid.UUID) ([]*BoardEntry, error) {
	query := `
		SELECT b.id, b.ward_id, b.number, b.is_occupied, b.created_at, b.updated_at,
		       w.name,
		       CASE WHEN b.is_occupied THEN p.first_name || ' ' || p.last_name END
		FROM beds b
		JOIN wards w ON w.id = b.ward_id
		LEFT JOIN admissions a
		       ON a.bed_id = b.id
		      AND NOT EXISTS (SELECT 1 FROM discharges d WHERE d.admission_id = a.id)
		LEFT JOIN patients p ON p.id = a.patient_id`
	args := []interface{}{}
	if wardID != uuid.Nil {
		query += ` WHERE b.ward_id = $1`
		args = append(args, wardID)
	}
	query += ` ORDER BY w.name, b.number`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*BoardEntry
	for rows.Next() {
		var e BoardEntry
		if err := rows.Scan(&e.ID, &e.WardID, &e.Number, &e.IsOccupied, &e.CreatedAt, &e.UpdatedAt,
			&e.WardName, &e.PatientName); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
