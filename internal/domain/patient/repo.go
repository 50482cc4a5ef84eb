package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no patient matches the lookup within the
// caller's clinic.
var ErrNotFound = errors.New("patient not found")

// Repository persists patient records. Every method that reads or mutates an
// existing row takes the clinic id and must ignore rows belonging to other
// clinics.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, clinicID, id uuid.UUID) error
	// List returns the clinic's patients newest first, optionally filtered
	// by a case-insensitive name match.
	List(ctx context.Context, clinicID uuid.UUID, nameFilter string, limit, offset int) ([]*Patient, int, error)
}
