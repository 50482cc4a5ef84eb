package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/hubassist/clinic-api/internal/platform/auth"
)

// dummyHash keeps the timing of sign-in with an unknown email in line with
// a real password check.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcrypt.DefaultCost)

// Store manages session lifecycle: sign-up, sign-in, sign-out and event
// fan-out. Subscribe before Initialize; events for sessions restored from
// the database are emitted during Initialize, and a late subscriber would
// miss them.
type Store struct {
	repo     Repository
	accounts Accounts
	issuer   *auth.TokenIssuer
	ttl      time.Duration
	cost     int
	logger   zerolog.Logger

	mu          sync.RWMutex
	active      map[uuid.UUID]*Session
	subscribers []chan Event
	initialized bool
}

func NewStore(repo Repository, accounts Accounts, issuer *auth.TokenIssuer, ttl time.Duration, bcryptCost int, logger zerolog.Logger) *Store {
	return &Store{
		repo:     repo,
		accounts: accounts,
		issuer:   issuer,
		ttl:      ttl,
		cost:     bcryptCost,
		logger:   logger.With().Str("component", "session_store").Logger(),
		active:   make(map[uuid.UUID]*Session),
	}
}

// Subscribe registers a listener for session events. Call before Initialize
// to observe sessions restored at startup. The returned channel is buffered;
// a subscriber that stops draining loses events rather than blocking the
// store.
func (s *Store) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

// Initialize loads unexpired sessions from the database into the in-memory
// cache and replays them to subscribers as sign-in events.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.initialized = true
	s.mu.Unlock()

	sessions, err := s.repo.ListActive(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("loading active sessions: %w", err)
	}

	s.mu.Lock()
	for _, sess := range sessions {
		s.active[sess.ID] = sess
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		s.publish(Event{Type: EventSignedIn, Session: *sess})
	}

	s.logger.Info().Int("restored", len(sessions)).Msg("session store initialized")
	return nil
}

// SignUp creates an account and immediately signs it in.
func (s *Store) SignUp(ctx context.Context, email, password string) (*Session, string, error) {
	if email == "" || password == "" {
		return nil, "", ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	account, err := s.accounts.CreateAccount(ctx, email, string(hash))
	if err != nil {
		return nil, "", err
	}

	return s.open(ctx, account)
}

// SignIn verifies credentials and opens a session. The issued token embeds
// the session id.
func (s *Store) SignIn(ctx context.Context, email, password string) (*Session, string, error) {
	account, err := s.accounts.AccountByEmail(ctx, email)
	if err != nil {
		// Burn a bcrypt comparison anyway so a missing account takes as
		// long as a wrong password.
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	return s.open(ctx, account)
}

func (s *Store) open(ctx context.Context, account *UserAccount) (*Session, string, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.New(),
		UserID:    account.ID,
		Email:     account.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("persisting session: %w", err)
	}

	token, _, err := s.issuer.Issue(account.ID.String(), sess.ID.String(), account.Email)
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	s.active[sess.ID] = sess
	s.mu.Unlock()

	s.publish(Event{Type: EventSignedIn, Session: *sess})
	s.logger.Info().Str("session_id", sess.ID.String()).Str("user_id", account.ID.String()).Msg("signed in")

	return sess, token, nil
}

// SignOut revokes a session. Revoking an unknown or already-revoked session
// is a no-op; sign-out is idempotent.
func (s *Store) SignOut(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if sess.RevokedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	if err := s.repo.Revoke(ctx, sessionID, now); err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}

	sess.RevokedAt = &now
	s.mu.Lock()
	delete(s.active, sessionID)
	s.mu.Unlock()

	s.publish(Event{Type: EventSignedOut, Session: *sess})
	s.logger.Info().Str("session_id", sessionID.String()).Msg("signed out")
	return nil
}

// Get returns a session from the cache, falling back to the database.
func (s *Store) Get(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.active[sessionID]
	s.mu.RUnlock()
	if ok {
		copied := *sess
		return &copied, nil
	}
	return s.repo.GetByID(ctx, sessionID)
}

// IsActive implements the auth middleware's session check.
func (s *Store) IsActive(ctx context.Context, sessionID string) (bool, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return false, nil
	}

	sess, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return sess.Active(time.Now()), nil
}

func (s *Store) publish(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			s.logger.Warn().Str("event", string(ev.Type)).Msg("subscriber channel full, event dropped")
		}
	}
}
