package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/hms/adt/internal/platform/adterr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Register(ctx context.Context, p *Patient) error {
	if p.MRN == "" {
		return adterr.Validationf("mrn is required")
	}
	if p.FirstName == "" || p.LastName == "" {
		return adterr.Validationf("first_name and last_name are required")
	}
	if existing, err := s.repo.GetByMRN(ctx, p.MRN); err == nil && existing != nil {
		return adterr.Conflictf("patient with mrn %s already exists", p.MRN)
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return adterr.Validationf("first_name and last_name are required")
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// List returns patients, optionally filtered by a case-insensitive name match.
func (s *Service) List(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	if name != "" {
		return s.repo.SearchByName(ctx, name, limit, offset)
	}
	return s.repo.List(ctx, limit, offset)
}
