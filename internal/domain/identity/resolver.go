package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hubassist/clinic-api/internal/domain/clinic"
)

// ErrProvisioning is returned when a profile could not be provisioned; the
// caller should retry after the underlying condition clears.
var ErrProvisioning = errors.New("profile provisioning failed")

// ResolveTask is the future for an in-flight profile resolution. Concurrent
// resolutions of the same user share one task, so the bootstrap runs at most
// once per user per process.
type ResolveTask struct {
	done    chan struct{}
	profile *Profile
	err     error
}

func newResolveTask() *ResolveTask {
	return &ResolveTask{done: make(chan struct{})}
}

func (t *ResolveTask) complete(p *Profile, err error) {
	t.profile = p
	t.err = err
	close(t.done)
}

// Wait blocks until the resolution finishes or the context is cancelled.
func (t *ResolveTask) Wait(ctx context.Context) (*Profile, error) {
	select {
	case <-t.done:
		return t.profile, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TxRunner executes fn within a storage transaction. Without one the
// resolver runs its writes directly.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Resolver loads the profile for a user, provisioning the profile and its
// clinic on first login. Results are memoized per user id, including
// terminal errors: a failed resolution is not retried until the entry is
// invalidated (normally on sign-out).
type Resolver struct {
	profiles ProfileRepository
	clinics  clinic.Repository
	logger   zerolog.Logger
	runTx    TxRunner

	mu       sync.Mutex
	resolved map[uuid.UUID]*ResolveTask
}

func NewResolver(profiles ProfileRepository, clinics clinic.Repository, logger zerolog.Logger) *Resolver {
	return &Resolver{
		profiles: profiles,
		clinics:  clinics,
		logger:   logger.With().Str("component", "profile_resolver").Logger(),
		resolved: make(map[uuid.UUID]*ResolveTask),
	}
}

// Resolve returns the task resolving the given user's profile, starting one
// if none is in flight. A nil user id returns an already-completed empty
// task: nothing to resolve, nothing to provision.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID, email string) *ResolveTask {
	if userID == uuid.Nil {
		task := newResolveTask()
		task.complete(nil, nil)
		return task
	}

	r.mu.Lock()
	if task, ok := r.resolved[userID]; ok {
		r.mu.Unlock()
		return task
	}
	task := newResolveTask()
	r.resolved[userID] = task
	r.mu.Unlock()

	go func() {
		// Detach from the request context: the resolution outlives the
		// request that triggered it and is shared by later callers.
		profile, err := r.resolve(context.WithoutCancel(ctx), userID, email)
		if err != nil {
			r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("profile resolution failed")
		}
		task.complete(profile, err)
	}()

	return task
}

// SetTxRunner makes the bootstrap's clinic and profile writes atomic: a
// lost insert race rolls back the clinic row instead of orphaning it.
func (r *Resolver) SetTxRunner(run TxRunner) {
	r.runTx = run
}

func (r *Resolver) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.runTx == nil {
		return fn(ctx)
	}
	return r.runTx(ctx, fn)
}

// Invalidate drops the memoized entry for a user so the next Resolve hits
// the repository again.
func (r *Resolver) Invalidate(userID uuid.UUID) {
	r.mu.Lock()
	delete(r.resolved, userID)
	r.mu.Unlock()
}

func (r *Resolver) resolve(ctx context.Context, userID uuid.UUID, email string) (*Profile, error) {
	profile, err := r.profiles.GetByUserID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return r.bootstrap(ctx, userID, email)
}

// bootstrap provisions a first-login user: find or create their clinic by
// derived name, then create the profile as clinic admin. The profile is
// re-checked after the clinic step because a concurrent login may have
// finished provisioning in the meantime.
func (r *Resolver) bootstrap(ctx context.Context, userID uuid.UUID, email string) (*Profile, error) {
	name := DeriveClinicName(email)

	var profile *Profile
	err := r.inTx(ctx, func(ctx context.Context) error {
		cl, err := r.clinics.GetByName(ctx, name)
		if errors.Is(err, clinic.ErrNotFound) {
			cl = &clinic.Clinic{Name: name}
			if err := r.clinics.Create(ctx, cl); err != nil {
				return fmt.Errorf("creating clinic: %w", err)
			}
			r.logger.Info().Str("clinic_id", cl.ID.String()).Str("name", name).Msg("clinic created")
		} else if err != nil {
			return fmt.Errorf("looking up clinic: %w", err)
		}

		// Repair pass: another request may have created the profile while
		// we were setting up the clinic.
		if existing, err := r.profiles.GetByUserID(ctx, userID); err == nil {
			profile = existing
			return nil
		} else if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("re-checking profile: %w", err)
		}

		profile = &Profile{
			ID:       userID,
			Email:    email,
			Role:     RoleClinicAdmin,
			ClinicID: cl.ID,
		}
		if err := r.profiles.Create(ctx, profile); err != nil {
			return fmt.Errorf("creating profile: %w", err)
		}

		r.logger.Info().
			Str("user_id", userID.String()).
			Str("clinic_id", cl.ID.String()).
			Msg("profile provisioned")
		return nil
	})
	if err != nil {
		// Lost a race on the insert: the winner's profile is there now,
		// use it.
		if existing, lookupErr := r.profiles.GetByUserID(ctx, userID); lookupErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrProvisioning, err)
	}
	return profile, nil
}

// DeriveClinicName builds the default clinic name from the user's email
// local part. An email without an at sign counts as its own local part;
// an empty local part falls back to a generic placeholder. The "Clínica de"
// prefix is always present.
func DeriveClinicName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.TrimSpace(local)
	if local == "" {
		local = "Novo Usuário"
	}
	return "Clínica de " + local
}
