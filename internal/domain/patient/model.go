// Package patient implements clinic-scoped patient records: demographic
// data, a Brazilian-format address, and an optional portrait photo stored in
// the patient_images bucket.
package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient is a clinic's patient record. ClinicID scopes every read and
// write; UserID records who created the row.
type Patient struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	CPF       *string    `json:"cpf,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Gender    *string    `json:"gender,omitempty"`
	ImageURL  *string    `json:"image_url,omitempty"`
	ClinicID  uuid.UUID  `json:"clinic_id"`
	UserID    uuid.UUID  `json:"user_id"`
	Address   Address    `json:"address"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Address holds the Brazilian postal fields used on the patient form.
type Address struct {
	CEP      *string `json:"cep,omitempty"`
	Street   *string `json:"street,omitempty"`
	Number   *string `json:"number,omitempty"`
	District *string `json:"district,omitempty"`
	City     *string `json:"city,omitempty"`
	State    *string `json:"state,omitempty"`
}
