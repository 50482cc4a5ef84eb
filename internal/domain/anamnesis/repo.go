package anamnesis

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a patient has no anamnesis yet.
var ErrNotFound = errors.New("anamnesis not found")

// Repository persists anamnesis records, one per patient.
type Repository interface {
	GetByPatient(ctx context.Context, clinicID, patientID uuid.UUID) (*Record, error)
	Create(ctx context.Context, r *Record) error
	Update(ctx context.Context, r *Record) error
}
