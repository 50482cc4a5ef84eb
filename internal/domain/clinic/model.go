package clinic

import (
	"time"

	"github.com/google/uuid"
)

// Clinic is the tenancy unit: every profile, patient and file belongs to
// exactly one clinic.
type Clinic struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
