package planning

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a patient has no saved plan.
var ErrNotFound = errors.New("plan not found")

// Repository persists plans, one per patient.
type Repository interface {
	GetByPatient(ctx context.Context, clinicID, patientID uuid.UUID) (*Plan, error)
	Create(ctx context.Context, p *Plan) error
	Update(ctx context.Context, p *Plan) error
}
