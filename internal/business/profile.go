package business

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/kskor/folio/internal/domain"
	"github.com/kskor/folio/internal/store"
)

// ProfileState is the closed variant set of the profile bootstrap feature.
type ProfileState interface{ profileState() }

type ProfileNotCreated struct{}

// FirstTimeCreation means the stub profile write is underway.
type FirstTimeCreation struct{}

// AlreadyCreated carries the existing profile document.
type AlreadyCreated struct{ Profile domain.Profile }

// NewlyCreated reports the stub profile written on first session.
type NewlyCreated struct{ Name string }

type ProfileError struct{ Reason string }

func (ProfileNotCreated) profileState() {}
func (FirstTimeCreation) profileState() {}
func (AlreadyCreated) profileState()    {}
func (NewlyCreated) profileState()      {}
func (ProfileError) profileState()      {}

// Bootstrap ensures a signed-in user has a profile document: the check on
// first session creates a stub from provider data when none exists. The
// check job is tracked so a screen teardown can cancel it.
type Bootstrap struct {
	store     *store.Store[ProfileState]
	auth      domain.Authenticator
	directory domain.Directory
	logger    *slog.Logger

	mu       sync.Mutex
	checkJob *store.Job
}

func NewBootstrap(ctx context.Context, auth domain.Authenticator, directory domain.Directory, logger *slog.Logger) *Bootstrap {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrap{
		store:     store.New[ProfileState](ctx, ProfileNotCreated{}, logger),
		auth:      auth,
		directory: directory,
		logger:    logger,
	}
}

func (b *Bootstrap) Store() *store.Store[ProfileState] { return b.store }

func (b *Bootstrap) Close() { b.store.Close() }

// Check looks the profile up and creates a stub when absent. A previous
// check still in flight is cancelled first.
func (b *Bootstrap) Check() *store.Job {
	b.mu.Lock()
	if b.checkJob != nil {
		b.checkJob.Cancel()
	}
	job := b.store.Intent("check_profile", func(ctx context.Context, tx *store.Tx[ProfileState]) {
		account, ok := b.auth.CurrentAccount()
		if !ok {
			tx.Post(store.ErrorEffect{Err: domain.ErrNotSignedIn})
			return
		}

		exists, err := b.directory.HasUser(ctx, account.ID)
		if err != nil {
			tx.Sub(b.fail(err))
			return
		}

		if exists {
			profile, err := b.directory.GetProfile(ctx, account.ID)
			if err != nil {
				tx.Sub(b.fail(err))
				return
			}
			tx.Update(func(ProfileState) ProfileState { return AlreadyCreated{Profile: profile} })
			return
		}

		tx.Update(func(ProfileState) ProfileState { return FirstTimeCreation{} })

		stub := stubProfile(account)
		if err := b.directory.CreateProfile(ctx, account.ID, stub); err != nil {
			tx.Sub(b.fail(err))
			return
		}

		name := stub.DisplayName()
		tx.Update(func(ProfileState) ProfileState { return NewlyCreated{Name: name} })
		tx.Post(store.Navigate{Route: store.RouteProfileSetup{}})
	})
	b.checkJob = job
	b.mu.Unlock()
	return job
}

// CancelCheck stops an in-flight check.
func (b *Bootstrap) CancelCheck() {
	b.mu.Lock()
	job := b.checkJob
	b.mu.Unlock()
	if job != nil {
		job.Cancel()
	}
}

// Update overwrites the profile document with edited fields.
func (b *Bootstrap) Update(profile domain.Profile) *store.Job {
	return b.store.Intent("update_profile", func(ctx context.Context, tx *store.Tx[ProfileState]) {
		account, ok := b.auth.CurrentAccount()
		if !ok {
			tx.Post(store.ErrorEffect{Err: domain.ErrNotSignedIn})
			return
		}
		if err := b.directory.CreateProfile(ctx, account.ID, profile); err != nil {
			tx.Sub(b.fail(err))
			return
		}
		tx.Update(func(ProfileState) ProfileState { return AlreadyCreated{Profile: profile} })
		tx.Post(store.Toast{Message: "Profile saved"})
	})
}

func (b *Bootstrap) fail(err error) func(ctx context.Context, tx *store.Tx[ProfileState]) {
	return func(ctx context.Context, tx *store.Tx[ProfileState]) {
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("profile bootstrap failed", "error", err)
		tx.Update(func(ProfileState) ProfileState { return ProfileError{Reason: err.Error()} })
		tx.Post(store.ErrorEffect{Err: err})
	}
}

// stubProfile derives a minimal profile from provider identity data.
func stubProfile(account domain.Account) domain.Profile {
	first, last := splitName(account.Name)
	if first == "" {
		first = "New"
		last = "User"
	}
	return domain.Profile{
		FirstName: first,
		LastName:  last,
		AvatarURL: account.AvatarURL,
		Roles:     []domain.ProfileRole{domain.ProfileRoleDeveloper},
		Location:  "Unknown",
	}
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], parts[0]
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
