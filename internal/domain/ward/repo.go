package ward

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateWard(ctx context.Context, w *Ward) error
	GetWard(ctx context.Context, id uuid.UUID) (*Ward, error)
	UpdateWard(ctx context.Context, w *Ward) error
	DeleteWard(ctx context.Context, id uuid.UUID) error
	ListWards(ctx context.Context, limit, offset int) ([]*Ward, int, error)

	CreateBed(ctx context.Context, b *Bed) error
	GetBed(ctx context.Context, id uuid.UUID) (*Bed, error)
	SetBedOccupied(ctx context.Context, id uuid.UUID, occupied bool) error
	// BedBoard returns beds joined with ward name and active-admission
	// patient name. Zero wardID means all wards.
	BedBoard(ctx context.Context, wardID uuid.UUID) ([]*BoardEntry, error)
}
