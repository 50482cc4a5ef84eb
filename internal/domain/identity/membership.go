package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hubassist/clinic-api/internal/platform/auth"
)

// MembershipAdapter exposes profile resolution as the clinic membership
// lookup the HTTP layer scopes requests with. Lookups go through the
// resolver, so a first request right after signup waits for provisioning
// instead of failing.
type MembershipAdapter struct {
	resolver *Resolver
}

func NewMembershipAdapter(resolver *Resolver) *MembershipAdapter {
	return &MembershipAdapter{resolver: resolver}
}

func (m *MembershipAdapter) Lookup(ctx context.Context, userID string) (string, string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", "", auth.ErrNoProfile
	}

	profile, err := m.resolver.Resolve(ctx, id, auth.EmailFromContext(ctx)).Wait(ctx)
	if err != nil {
		if errors.Is(err, ErrProvisioning) {
			return "", "", auth.ErrNoProfile
		}
		return "", "", err
	}
	if profile == nil {
		return "", "", auth.ErrNoProfile
	}

	return profile.ClinicID.String(), profile.Role, nil
}
