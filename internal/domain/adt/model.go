// Package adt implements the admission, discharge and transfer workflow.
// Its invariant: a bed's occupancy flag is true exactly when one active
// admission references the bed, where an admission is active until a
// discharge row exists for it. Every mutation that touches an admission and
// bed occupancy together runs in a single database transaction with the bed
// row locked.
package adt

import (
	"time"

	"github.com/google/uuid"
)

// Admission maps to the admissions table. BedID is optional: ward-only
// admissions carry no occupancy side effect.
type Admission struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	WardID        uuid.UUID  `db:"ward_id" json:"ward_id"`
	BedID         *uuid.UUID `db:"bed_id" json:"bed_id,omitempty"`
	AdmissionDate time.Time  `db:"admission_date" json:"admission_date"`
	Reason        *string    `db:"reason" json:"reason,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Discharge maps to the discharges table. At most one per admission;
// creating it is what closes the admission.
type Discharge struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AdmissionID   uuid.UUID `db:"admission_id" json:"admission_id"`
	DischargeDate time.Time `db:"discharge_date" json:"discharge_date"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Transfer maps to the transfers table: a log of ward/bed moves within an
// admission.
type Transfer struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	AdmissionID  uuid.UUID  `db:"admission_id" json:"admission_id"`
	FromWardID   uuid.UUID  `db:"from_ward_id" json:"from_ward_id"`
	ToWardID     uuid.UUID  `db:"to_ward_id" json:"to_ward_id"`
	FromBedID    *uuid.UUID `db:"from_bed_id" json:"from_bed_id,omitempty"`
	ToBedID      *uuid.UUID `db:"to_bed_id" json:"to_bed_id,omitempty"`
	TransferDate time.Time  `db:"transfer_date" json:"transfer_date"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// BedState is the slice of a bed row the workflow needs when claiming or
// releasing a bed under lock.
type BedState struct {
	ID         uuid.UUID `db:"id" json:"id"`
	WardID     uuid.UUID `db:"ward_id" json:"ward_id"`
	Number     string    `db:"number" json:"number"`
	IsOccupied bool      `db:"is_occupied" json:"is_occupied"`
}

// AdmissionView is an admission joined with the names the UI renders.
type AdmissionView struct {
	Admission
	PatientName string  `json:"patient_name"`
	WardName    string  `json:"ward_name"`
	BedNumber   *string `json:"bed_number,omitempty"`
	Active      bool    `json:"active"`
}

// DischargeView is a discharge joined with patient context.
type DischargeView struct {
	Discharge
	PatientID   uuid.UUID `json:"patient_id"`
	PatientName string    `json:"patient_name"`
}

// TransferView is a transfer joined with patient and ward names.
type TransferView struct {
	Transfer
	PatientName  string `json:"patient_name"`
	FromWardName string `json:"from_ward_name"`
	ToWardName   string `json:"to_ward_name"`
}

// AdmissionFilter narrows ListAdmissions. Zero values mean "no filter".
type AdmissionFilter struct {
	WardID     uuid.UUID
	PatientID  uuid.UUID
	ActiveOnly bool
	DateFrom   *time.Time
	DateTo     *time.Time
}
