package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. ADT treats patients as immutable
// reference data; this package owns their registration and lookup.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	MRN       string     `db:"mrn" json:"mrn"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	Gender    *string    `db:"gender" json:"gender,omitempty"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	Address   *string    `db:"address" json:"address,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// DisplayName returns the name shown on bed boards and admission lists.
func (p *Patient) DisplayName() string {
	return p.FirstName + " " + p.LastName
}
