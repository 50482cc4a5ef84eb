// Package anamnesis stores the clinical questionnaire attached to a
// patient: chief complaint, allergies, systemic diseases, current medication
// and free-form notes. Each patient has at most one record; saving is an
// upsert.
package anamnesis

import (
	"time"

	"github.com/google/uuid"
)

// Record is a patient's anamnesis. Field names follow the clinical form.
type Record struct {
	ID               uuid.UUID `json:"id"`
	PatientID        uuid.UUID `json:"patient_id"`
	ClinicID         uuid.UUID `json:"clinic_id"`
	ChiefComplaint   string    `json:"queixa_principal"`
	Allergies        string    `json:"alergias"`
	SystemicDiseases string    `json:"doencas_sistemicas"`
	Medications      string    `json:"medicacoes"`
	Notes            string    `json:"observacoes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Input is the writable portion of a record.
type Input struct {
	ChiefComplaint   string `json:"queixa_principal"`
	Allergies        string `json:"alergias"`
	SystemicDiseases string `json:"doencas_sistemicas"`
	Medications      string `json:"medicacoes"`
	Notes            string `json:"observacoes"`
}
