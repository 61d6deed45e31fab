package adt

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence surface of the ADT workflow. The mutating
// methods are designed to be called inside a transaction started by the
// service (db.RunInTx); they join it through the context.
type Repository interface {
	CreateAdmission(ctx context.Context, a *Admission) error
	GetAdmission(ctx context.Context, id uuid.UUID) (*Admission, error)
	GetAdmissionView(ctx context.Context, id uuid.UUID) (*AdmissionView, error)
	UpdateAdmission(ctx context.Context, a *Admission) error
	// MoveAdmission rewrites an admission's ward and bed assignment.
	MoveAdmission(ctx context.Context, id uuid.UUID, wardID uuid.UUID, bedID *uuid.UUID) error
	ListAdmissions(ctx context.Context, f AdmissionFilter) ([]*AdmissionView, error)

	CreateDischarge(ctx context.Context, d *Discharge) error
	HasDischarge(ctx context.Context, admissionID uuid.UUID) (bool, error)
	ListDischarges(ctx context.Context) ([]*DischargeView, error)

	CreateTransfer(ctx context.Context, t *Transfer) error
	ListTransfers(ctx context.Context) ([]*TransferView, error)

	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
	WardExists(ctx context.Context, id uuid.UUID) (bool, error)
	// GetBedForUpdate loads a bed row and locks it for the duration of the
	// surrounding transaction, serializing concurrent claims on the bed.
	GetBedForUpdate(ctx context.Context, id uuid.UUID) (*BedState, error)
	SetBedOccupied(ctx context.Context, id uuid.UUID, occupied bool) error
}
