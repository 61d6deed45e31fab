package ward

import (
	"time"

	"github.com/google/uuid"
)

// Ward maps to the wards table.
type Ward struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Department string    `db:"department" json:"department"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Bed maps to the beds table. IsOccupied is derived state: true exactly when
// an active admission references the bed. It is only written inside the same
// transaction as the admission mutation that changes it, or through the
// explicit staff override.
type Bed struct {
	ID         uuid.UUID `db:"id" json:"id"`
	WardID     uuid.UUID `db:"ward_id" json:"ward_id"`
	Number     string    `db:"number" json:"number"`
	IsOccupied bool      `db:"is_occupied" json:"is_occupied"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// BoardEntry is one row of the bed board: a bed with its ward name and, when
// occupied, the patient on the current active admission.
type BoardEntry struct {
	Bed
	WardName    string  `json:"ward_name"`
	PatientName *string `json:"patient_name,omitempty"`
}
