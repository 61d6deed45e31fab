package ward

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/adt/internal/platform/adterr"
	"github.com/hms/adt/internal/platform/auth"
	"github.com/hms/adt/internal/platform/cache"
)

// bedBoardKeyPrefix namespaces bed board entries in the cache. The adt
// service invalidates the same prefix after every admission mutation.
const bedBoardKeyPrefix = "bedboard:"

type Service struct {
	repo   Repository
	cache  *cache.Cache
	logger zerolog.Logger
}

func NewService(repo Repository, c *cache.Cache, logger zerolog.Logger) *Service {
	return &Service{repo: repo, cache: c, logger: logger}
}

func (s *Service) CreateWard(ctx context.Context, w *Ward) error {
	if w.Name == "" {
		return adterr.Validationf("name is required")
	}
	if w.Department == "" {
		return adterr.Validationf("department is required")
	}
	return s.repo.CreateWard(ctx, w)
}

func (s *Service) GetWard(ctx context.Context, id uuid.UUID) (*Ward, error) {
	return s.repo.GetWard(ctx, id)
}

func (s *Service) UpdateWard(ctx context.Context, w *Ward) error {
	if w.Name == "" || w.Department == "" {
		return adterr.Validationf("name and department are required")
	}
	return s.repo.UpdateWard(ctx, w)
}

func (s *Service) DeleteWard(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteWard(ctx, id)
}

func (s *Service) ListWards(ctx context.Context, limit, offset int) ([]*Ward, int, error) {
	return s.repo.ListWards(ctx, limit, offset)
}

func (s *Service) CreateBed(ctx context.Context, b *Bed) error {
	if b.WardID == uuid.Nil {
		return adterr.Validationf("ward_id is required")
	}
	if b.Number == "" {
		return adterr.Validationf("number is required")
	}
	if _, err := s.repo.GetWard(ctx, b.WardID); err != nil {
		return err
	}
	if err := s.repo.CreateBed(ctx, b); err != nil {
		return err
	}
	s.cache.DeletePrefix(ctx, bedBoardKeyPrefix)
	return nil
}

// BedBoard returns the bed board, serving from cache when possible.
func (s *Service) BedBoard(ctx context.Context, wardID uuid.UUID) ([]*BoardEntry, error) {
	key := bedBoardKeyPrefix + "all"
	if wardID != uuid.Nil {
		key = bedBoardKeyPrefix + wardID.String()
	}

	var cached []*BoardEntry
	if s.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	entries, err := s.repo.BedBoard(ctx, wardID)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSON(ctx, key, entries)
	return entries, nil
}

// OverrideBedStatus sets a bed's occupancy flag directly, outside the
// admission flow. It is an administrative escape hatch for ward staff and
// deliberately skips admission-consistency checks, so every use is logged
// as an audit event with the operator's identity.
func (s *Service) OverrideBedStatus(ctx context.Context, bedID uuid.UUID, occupied bool) (*Bed, error) {
	bed, err := s.repo.GetBed(ctx, bedID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetBedOccupied(ctx, bedID, occupied); err != nil {
		return nil, err
	}

	s.logger.Warn().
		Str("event", "bed_status_override").
		Str("bed_id", bedID.String()).
		Str("bed_number", bed.Number).
		Bool("was_occupied", bed.IsOccupied).
		Bool("now_occupied", occupied).
		Str("operator", auth.UserIDFromContext(ctx)).
		Msg("bed occupancy manually overridden outside admission flow")

	s.cache.DeletePrefix(ctx, bedBoardKeyPrefix)

	bed.IsOccupied = occupied
	return bed, nil
}

// InvalidateBedBoard drops cached bed board entries. Called by the adt
// service after admissions, discharges and transfers.
func (s *Service) InvalidateBedBoard(ctx context.Context) {
	s.cache.DeletePrefix(ctx, bedBoardKeyPrefix)
}
