// Package identity manages user accounts and clinic profiles. A user row
// holds credentials; a profile row links the user to a clinic with a role.
// Profiles are provisioned lazily on first login, which also creates the
// user's clinic.
package identity

import (
	"time"

	"github.com/google/uuid"
)

// Roles assignable to a profile.
const (
	RoleClinicAdmin  = "clinic_admin"
	RoleProfessional = "clinic_professional"
)

// User is a login account. The password is stored as a bcrypt hash and never
// leaves this package.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile links a user to a clinic. The profile id equals the user id, one
// profile per user.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ClinicID  uuid.UUID `json:"clinic_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
