package identity

import (
	"context"

	"github.com/hubassist/clinic-api/internal/platform/session"
)

// AccountsAdapter exposes the user repository to the session store.
type AccountsAdapter struct {
	users UserRepository
}

func NewAccountsAdapter(users UserRepository) *AccountsAdapter {
	return &AccountsAdapter{users: users}
}

func (a *AccountsAdapter) AccountByEmail(ctx context.Context, email string) (*session.UserAccount, error) {
	u, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return &session.UserAccount{ID: u.ID, Email: u.Email, PasswordHash: u.PasswordHash}, nil
}

func (a *AccountsAdapter) CreateAccount(ctx context.Context, email, passwordHash string) (*session.UserAccount, error) {
	u := &User{Email: email, PasswordHash: passwordHash}
	if err := a.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return &session.UserAccount{ID: u.ID, Email: u.Email, PasswordHash: u.PasswordHash}, nil
}
