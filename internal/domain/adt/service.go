package adt

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hms/adt/internal/platform/adterr"
	"github.com/hms/adt/internal/platform/db"
)

// BoardInvalidator drops cached bed board state after a mutation.
// *ward.Service satisfies it.
type BoardInvalidator interface {
	InvalidateBedBoard(ctx context.Context)
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateBedBoard(context.Context) {}

type Service struct {
	repo   Repository
	runTx  func(ctx context.Context, fn func(context.Context) error) error
	boards BoardInvalidator
	logger zerolog.Logger
}

// NewService builds the ADT service. A nil pool runs mutations without a
// transaction wrapper, which is only acceptable for tests backed by an
// in-memory repository.
func NewService(repo Repository, pool *pgxpool.Pool, boards BoardInvalidator, logger zerolog.Logger) *Service {
	if boards == nil {
		boards = noopInvalidator{}
	}
	s := &Service{repo: repo, boards: boards, logger: logger}
	if pool != nil {
		s.runTx = func(ctx context.Context, fn func(context.Context) error) error {
			return db.RunInTx(ctx, pool, fn)
		}
	} else {
		s.runTx = func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		}
	}
	return s
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.runTx(ctx, fn)
}

// AdmitParams is the input to Admit.
type AdmitParams struct {
	PatientID     uuid.UUID  `json:"patient_id"`
	WardID        uuid.UUID  `json:"ward_id"`
	BedID         *uuid.UUID `json:"bed_id,omitempty"`
	AdmissionDate time.Time  `json:"admission_date"`
	Reason        *string    `json:"reason,omitempty"`
}

// Admit creates an admission and, when a bed is requested, claims it. The
// admission row and the bed flag are written in one transaction; the bed row
// is locked first, so two concurrent admits into the same free bed cannot
// both see it free — the second blocks, then fails with a conflict.
func (s *Service) Admit(ctx context.Context, p AdmitParams) (*Admission, error) {
	if p.PatientID == uuid.Nil {
		return nil, adterr.Validationf("patient_id is required")
	}
	if p.WardID == uuid.Nil {
		return nil, adterr.Validationf("ward_id is required")
	}
	if p.AdmissionDate.IsZero() {
		p.AdmissionDate = time.Now().UTC()
	}

	adm := &Admission{
		PatientID:     p.PatientID,
		WardID:        p.WardID,
		BedID:         p.BedID,
		AdmissionDate: p.AdmissionDate,
		Reason:        p.Reason,
	}

	err := s.inTx(ctx, func(ctx context.Context) error {
		if ok, err := s.repo.PatientExists(ctx, p.PatientID); err != nil {
			return err
		} else if !ok {
			return adterr.NotFoundf("patient %s", p.PatientID)
		}
		if ok, err := s.repo.WardExists(ctx, p.WardID); err != nil {
			return err
		} else if !ok {
			return adterr.NotFoundf("ward %s", p.WardID)
		}

		if p.BedID != nil {
			bed, err := s.repo.GetBedForUpdate(ctx, *p.BedID)
			if err != nil {
				return err
			}
			if bed.WardID != p.WardID {
				return adterr.Validationf("bed %s is not in ward %s", bed.Number, p.WardID)
			}
			if bed.IsOccupied {
				return adterr.Conflictf("bed %s is occupied", bed.Number)
			}
			if err := s.repo.CreateAdmission(ctx, adm); err != nil {
				return err
			}
			return s.repo.SetBedOccupied(ctx, bed.ID, true)
		}

		return s.repo.CreateAdmission(ctx, adm)
	})
	if err != nil {
		return nil, err
	}

	s.boards.InvalidateBedBoard(ctx)
	s.logger.Info().
		Str("admission_id", adm.ID.String()).
		Str("patient_id", adm.PatientID.String()).
		Str("ward_id", adm.WardID.String()).
		Msg("patient admitted")
	return adm, nil
}

// DischargeParams is the input to Discharge.
type DischargeParams struct {
	AdmissionID   uuid.UUID `json:"admission_id"`
	DischargeDate time.Time `json:"discharge_date"`
	Notes         *string   `json:"notes,omitempty"`
}

// Discharge closes an admission and frees its bed. Discharging an admission
// that already has a discharge record is rejected as a conflict.
func (s *Service) Discharge(ctx context.Context, p DischargeParams) (*Discharge, error) {
	if p.AdmissionID == uuid.Nil {
		return nil, adterr.Validationf("admission_id is required")
	}
	if p.DischargeDate.IsZero() {
		p.DischargeDate = time.Now().UTC()
	}

	dis := &Discharge{
		AdmissionID:   p.AdmissionID,
		DischargeDate: p.DischargeDate,
		Notes:         p.Notes,
	}

	err := s.inTx(ctx, func(ctx context.Context) error {
		adm, err := s.repo.GetAdmission(ctx, p.AdmissionID)
		if err != nil {
			return err
		}
		if discharged, err := s.repo.HasDischarge(ctx, adm.ID); err != nil {
			return err
		} else if discharged {
			return adterr.Conflictf("admission %s is already discharged", adm.ID)
		}
		if err := s.repo.CreateDischarge(ctx, dis); err != nil {
			return err
		}
		if adm.BedID != nil {
			if _, err := s.repo.GetBedForUpdate(ctx, *adm.BedID); err != nil {
				return err
			}
			return s.repo.SetBedOccupied(ctx, *adm.BedID, false)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.boards.InvalidateBedBoard(ctx)
	s.logger.Info().
		Str("admission_id", p.AdmissionID.String()).
		Msg("patient discharged")
	return dis, nil
}

// TransferParams is the input to Transfer.
type TransferParams struct {
	AdmissionID  uuid.UUID  `json:"admission_id"`
	ToWardID     uuid.UUID  `json:"to_ward_id"`
	ToBedID      *uuid.UUID `json:"to_bed_id,omitempty"`
	TransferDate time.Time  `json:"transfer_date"`
}

// Transfer moves an active admission to a new ward and optionally a new bed.
// The transfer log row, both bed flags and the admission's location change
// in one transaction. The destination bed is locked before the occupancy
// check, same as Admit.
func (s *Service) Transfer(ctx context.Context, p TransferParams) (*Transfer, error) {
	if p.AdmissionID == uuid.Nil {
		return nil, adterr.Validationf("admission_id is required")
	}
	if p.ToWardID == uuid.Nil {
		return nil, adterr.Validationf("to_ward_id is required")
	}
	if p.TransferDate.IsZero() {
		p.TransferDate = time.Now().UTC()
	}

	var tr *Transfer
	err := s.inTx(ctx, func(ctx context.Context) error {
		adm, err := s.repo.GetAdmission(ctx, p.AdmissionID)
		if err != nil {
			return err
		}
		if discharged, err := s.repo.HasDischarge(ctx, adm.ID); err != nil {
			return err
		} else if discharged {
			return adterr.Conflictf("admission %s is already discharged", adm.ID)
		}
		if ok, err := s.repo.WardExists(ctx, p.ToWardID); err != nil {
			return err
		} else if !ok {
			return adterr.NotFoundf("ward %s", p.ToWardID)
		}

		if p.ToBedID != nil && adm.BedID != nil && *adm.BedID == *p.ToBedID {
			return adterr.Conflictf("admission %s already occupies bed %s", adm.ID, p.ToBedID)
		}

		// Lock the source and destination beds in id order so two
		// opposite-direction transfers over the same pair of beds cannot
		// deadlock against each other.
		lockIDs := make([]uuid.UUID, 0, 2)
		if adm.BedID != nil {
			lockIDs = append(lockIDs, *adm.BedID)
		}
		if p.ToBedID != nil {
			lockIDs = append(lockIDs, *p.ToBedID)
		}
		if len(lockIDs) == 2 && bytes.Compare(lockIDs[0][:], lockIDs[1][:]) > 0 {
			lockIDs[0], lockIDs[1] = lockIDs[1], lockIDs[0]
		}
		beds := make(map[uuid.UUID]*BedState, len(lockIDs))
		for _, id := range lockIDs {
			bed, err := s.repo.GetBedForUpdate(ctx, id)
			if err != nil {
				return err
			}
			beds[id] = bed
		}

		if p.ToBedID != nil {
			bed := beds[*p.ToBedID]
			if bed.WardID != p.ToWardID {
				return adterr.Validationf("bed %s is not in ward %s", bed.Number, p.ToWardID)
			}
			if bed.IsOccupied {
				return adterr.Conflictf("bed %s is occupied", bed.Number)
			}
		}

		tr = &Transfer{
			AdmissionID:  adm.ID,
			FromWardID:   adm.WardID,
			ToWardID:     p.ToWardID,
			FromBedID:    adm.BedID,
			ToBedID:      p.ToBedID,
			TransferDate: p.TransferDate,
		}
		if err := s.repo.CreateTransfer(ctx, tr); err != nil {
			return err
		}

		if adm.BedID != nil {
			if err := s.repo.SetBedOccupied(ctx, *adm.BedID, false); err != nil {
				return err
			}
		}
		if p.ToBedID != nil {
			if err := s.repo.SetBedOccupied(ctx, *p.ToBedID, true); err != nil {
				return err
			}
		}

		return s.repo.MoveAdmission(ctx, adm.ID, p.ToWardID, p.ToBedID)
	})
	if err != nil {
		return nil, err
	}

	s.boards.InvalidateBedBoard(ctx)
	s.logger.Info().
		Str("admission_id", p.AdmissionID.String()).
		Str("from_ward_id", tr.FromWardID.String()).
		Str("to_ward_id", tr.ToWardID.String()).
		Msg("patient transferred")
	return tr, nil
}

// AdmissionPatch holds the fields PATCH /admissions/:id may change. Ward and
// bed assignment only move through Transfer.
type AdmissionPatch struct {
	AdmissionDate *time.Time `json:"admission_date,omitempty"`
	Reason        *string    `json:"reason,omitempty"`
}

func (s *Service) UpdateAdmission(ctx context.Context, id uuid.UUID, patch AdmissionPatch) (*Admission, error) {
	var adm *Admission
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		adm, err = s.repo.GetAdmission(ctx, id)
		if err != nil {
			return err
		}
		if patch.AdmissionDate != nil {
			adm.AdmissionDate = *patch.AdmissionDate
		}
		if patch.Reason != nil {
			adm.Reason = patch.Reason
		}
		return s.repo.UpdateAdmission(ctx, adm)
	})
	if err != nil {
		return nil, err
	}
	return adm, nil
}

func (s *Service) GetAdmission(ctx context.Context, id uuid.UUID) (*AdmissionView, error) {
	return s.repo.GetAdmissionView(ctx, id)
}

func (s *Service) ListAdmissions(ctx context.Context, f AdmissionFilter) ([]*AdmissionView, error) {
	return s.repo.ListAdmissions(ctx, f)
}

func (s *Service) ListDischarges(ctx context.Context) ([]*DischargeView, error) {
	return s.repo.ListDischarges(ctx)
}

func (s *Service) ListTransfers(ctx context.Context) ([]*TransferView, error) {
	return s.repo.ListTransfers(ctx)
}
