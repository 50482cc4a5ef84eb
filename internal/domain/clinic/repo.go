package clinic

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no clinic matches the lookup.
var ErrNotFound = errors.New("clinic not found")

// Repository defines clinic persistence. Clinic names are not unique at the
// database level; bootstrap looks up by name first and creates only on a
// miss, so two concurrent first logins can in rare cases create two clinics
// with the same derived name.
type Repository interface {
	Create(ctx context.Context, c *Clinic) error
	GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	GetByName(ctx context.Context, name string) (*Clinic, error)
}
