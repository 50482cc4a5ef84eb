package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/hubassist/clinic-api/internal/platform/auth"
)

type mockRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func newMockRepo() *mockRepo {
	return &mockRepo{sessions: make(map[uuid.UUID]*Session)}
}

func (m *mockRepo) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *s
	m.sessions[s.ID] = &copied
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *mockRepo) Revoke(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok && s.RevokedAt == nil {
		s.RevokedAt = &at
	}
	return nil
}

func (m *mockRepo) ListActive(_ context.Context, now time.Time) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.Active(now) {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

type mockAccounts struct {
	mu    sync.Mutex
	users map[string]*UserAccount
}

func newMockAccounts() *mockAccounts {
	return &mockAccounts{users: make(map[string]*UserAccount)}
}

func (m *mockAccounts) AccountByEmail(_ context.Context, email string) (*UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func (m *mockAccounts) CreateAccount(_ context.Context, email, passwordHash string) (*UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[email]; ok {
		return nil, errors.New("email taken")
	}
	u := &UserAccount{ID: uuid.New(), Email: email, PasswordHash: passwordHash}
	m.users[email] = u
	return u, nil
}

func (m *mockAccounts) add(t *testing.T, email, password string) *UserAccount {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	u, err := m.CreateAccount(context.Background(), email, string(hash))
	if err != nil {
		t.Fatalf("creating account: %v", err)
	}
	return u
}

func newTestStore(repo Repository, accounts Accounts) *Store {
	issuer := auth.NewTokenIssuer("test-secret-at-least-32-characters!!", time.Hour)
	return NewStore(repo, accounts, issuer, time.Hour, bcrypt.MinCost, zerolog.Nop())
}

func TestSignIn_IssuesVerifiableToken(t *testing.T) {
	accounts := newMockAccounts()
	accounts.add(t, "doc@clinic.com", "s3cret")
	store := newTestStore(newMockRepo(), accounts)

	sess, token, err := store.SignIn(context.Background(), "doc@clinic.com", "s3cret")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	issuer := auth.NewTokenIssuer("test-secret-at-least-32-characters!!", time.Hour)
	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("token verification failed: %v", err)
	}
	if claims.SessionID != sess.ID.String() {
		t.Errorf("token session id = %q, want %q", claims.SessionID, sess.ID)
	}
	if claims.Email != "doc@clinic.com" {
		t.Errorf("token email = %q", claims.Email)
	}
}

func TestSignIn_RejectsWrongPassword(t *testing.T) {
	accounts := newMockAccounts()
	accounts.add(t, "doc@clinic.com", "s3cret")
	store := newTestStore(newMockRepo(), accounts)

	_, _, err := store.SignIn(context.Background(), "doc@clinic.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSignIn_RejectsUnknownEmail(t *testing.T) {
	store := newTestStore(newMockRepo(), newMockAccounts())

	_, _, err := store.SignIn(context.Background(), "nobody@clinic.com", "pw")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSignUp_CreatesAccountAndSession(t *testing.T) {
	accounts := newMockAccounts()
	store := newTestStore(newMockRepo(), accounts)

	sess, token, err := store.SignUp(context.Background(), "new@clinic.com", "s3cret")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if token == "" {
		t.Error("expected a token")
	}

	// The created account must sign in with the same password.
	if _, _, err := store.SignIn(context.Background(), "new@clinic.com", "s3cret"); err != nil {
		t.Errorf("sign-in after sign-up failed: %v", err)
	}

	active, err := store.IsActive(context.Background(), sess.ID.String())
	if err != nil || !active {
		t.Errorf("session should be active, got (%v, %v)", active, err)
	}
}

func TestSignOut_RevokesAndIsIdempotent(t *testing.T) {
	accounts := newMockAccounts()
	accounts.add(t, "doc@clinic.com", "s3cret")
	store := newTestStore(newMockRepo(), accounts)

	sess, _, err := store.SignIn(context.Background(), "doc@clinic.com", "s3cret")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	if err := store.SignOut(context.Background(), sess.ID); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	active, err := store.IsActive(context.Background(), sess.ID.String())
	if err != nil {
		t.Fatalf("IsActive failed: %v", err)
	}
	if active {
		t.Error("session should be inactive after sign-out")
	}

	// Second sign-out and sign-out of a random id are both no-ops.
	if err := store.SignOut(context.Background(), sess.ID); err != nil {
		t.Errorf("repeated SignOut should be a no-op, got %v", err)
	}
	if err := store.SignOut(context.Background(), uuid.New()); err != nil {
		t.Errorf("SignOut of unknown session should be a no-op, got %v", err)
	}
}

func TestSubscribe_ReceivesSignInAndSignOut(t *testing.T) {
	accounts := newMockAccounts()
	accounts.add(t, "doc@clinic.com", "s3cret")
	store := newTestStore(newMockRepo(), accounts)

	events := store.Subscribe()

	sess, _, err := store.SignIn(context.Background(), "doc@clinic.com", "s3cret")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if err := store.SignOut(context.Background(), sess.ID); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	ev := <-events
	if ev.Type != EventSignedIn || ev.Session.ID != sess.ID {
		t.Errorf("first event = %+v, want SIGNED_IN for %s", ev, sess.ID)
	}
	ev = <-events
	if ev.Type != EventSignedOut || ev.Session.ID != sess.ID {
		t.Errorf("second event = %+v, want SIGNED_OUT for %s", ev, sess.ID)
	}
}

func TestInitialize_ReplaysPersistedSessions(t *testing.T) {
	repo := newMockRepo()
	now := time.Now().UTC()
	persisted := &Session{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Email:     "doc@clinic.com",
		CreatedAt: now.Add(-time.Minute),
		ExpiresAt: now.Add(time.Hour),
	}
	if err := repo.Create(context.Background(), persisted); err != nil {
		t.Fatalf("seeding session: %v", err)
	}
	// Expired sessions must not be restored.
	expired := &Session{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Email:     "old@clinic.com",
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	if err := repo.Create(context.Background(), expired); err != nil {
		t.Fatalf("seeding session: %v", err)
	}

	store := newTestStore(repo, newMockAccounts())

	// Subscribing before Initialize must observe the replayed session.
	events := store.Subscribe()

	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Type != EventSignedIn || ev.Session.ID != persisted.ID {
			t.Errorf("replayed event = %+v", ev)
		}
	default:
		t.Fatal("expected a replayed sign-in event")
	}

	active, err := store.IsActive(context.Background(), persisted.ID.String())
	if err != nil || !active {
		t.Errorf("restored session should be active, got (%v, %v)", active, err)
	}
	active, err = store.IsActive(context.Background(), expired.ID.String())
	if err != nil {
		t.Fatalf("IsActive failed: %v", err)
	}
	if active {
		t.Error("expired session should not be active")
	}
}

func TestIsActive_MalformedID(t *testing.T) {
	store := newTestStore(newMockRepo(), newMockAccounts())

	active, err := store.IsActive(context.Background(), "not-a-uuid")
	if err != nil {
		t.Fatalf("IsActive failed: %v", err)
	}
	if active {
		t.Error("malformed session id should never be active")
	}
}
