// Package business holds the feature interaction modules. Each module owns
// one reactive store, exposes intent-launching methods to the UI layer, and
// talks to collaborators (auth, directory, remote API) through the domain
// interfaces.
package business

import (
	"context"
	"log/slog"

	"github.com/kskor/folio/internal/config"
	"github.com/kskor/folio/internal/domain"
	"github.com/kskor/folio/internal/store"
)

// LoginState is the closed variant set of the login feature.
type LoginState interface{ loginState() }

// Initialized is the resting state: no session, or session torn down.
type Initialized struct{}

// Authenticated carries the signed-in identity.
type Authenticated struct{ User domain.User }

// LoginError is a failed sign-in. The session is untouched when the failure
// is an account-exists conflict.
type LoginError struct{ Reason string }

func (Initialized) loginState()   {}
func (Authenticated) loginState() {}
func (LoginError) loginState()    {}

// Login drives session lifecycle: restore, sign-in across methods, account
// linking, sign-out and account deletion.
type Login struct {
	store  *store.Store[LoginState]
	auth   domain.Authenticator
	users  domain.UserRepository
	creds  *config.Holder
	logger *slog.Logger
}

func NewLogin(ctx context.Context, auth domain.Authenticator, users domain.UserRepository, creds *config.Holder, logger *slog.Logger) *Login {
	if logger == nil {
		logger = slog.Default()
	}
	return &Login{
		store:  store.New[LoginState](ctx, Initialized{}, logger),
		auth:   auth,
		users:  users,
		creds:  creds,
		logger: logger,
	}
}

// Store exposes the read-only observation surface.
func (l *Login) Store() *store.Store[LoginState] { return l.store }

func (l *Login) Close() { l.store.Close() }

// Initialize restores a previous session if one exists.
func (l *Login) Initialize() *store.Job {
	return l.store.Intent("initialize", func(ctx context.Context, tx *store.Tx[LoginState]) {
		if err := l.auth.Init(ctx); err != nil {
			tx.Sub(l.handleFailure(err))
			return
		}
		account, ok := l.auth.CurrentAccount()
		if !ok {
			tx.Reduce(func(LoginState) LoginState { return Initialized{} })
			tx.Post(store.Navigate{Route: store.RouteWelcome{}})
			return
		}
		user := domain.User{Account: account, SignInMethod: l.creds.Snapshot().SignInMethod}
		if account.Anonymous {
			user = domain.GuestUser(account)
		}
		tx.Reduce(func(LoginState) LoginState { return Authenticated{User: user} })
		tx.Post(store.Navigate{Route: store.RouteHome{}})
	})
}

// LoginAnonymous signs in as a guest.
func (l *Login) LoginAnonymous() *store.Job {
	return l.store.Intent("login_anonymous", func(ctx context.Context, tx *store.Tx[LoginState]) {
		user, err := l.auth.SignIn(ctx, domain.SignInRequest{Method: domain.MethodAnonymous})
		if err != nil {
			tx.Sub(l.handleFailure(err))
			return
		}
		tx.Reduce(func(LoginState) LoginState { return Authenticated{User: user} })
		tx.Post(store.Navigate{Route: store.RouteHome{}})
	})
}

// LoginEmail signs in (or registers, when create is set) with email
// credentials.
func (l *Login) LoginEmail(email, password string, create bool) *store.Job {
	return l.store.Intent("login_email", func(ctx context.Context, tx *store.Tx[LoginState]) {
		user, err := l.auth.SignIn(ctx, domain.SignInRequest{
			Method:   domain.MethodEmail,
			Email:    email,
			Password: password,
			Create:   create,
		})
		if err != nil {
			tx.Sub(l.handleFailure(err))
			return
		}
		method := string(domain.MethodEmail)
		l.creds.Apply(config.Update{SignInMethod: &method})
		tx.Reduce(func(LoginState) LoginState { return Authenticated{User: user} })
		tx.Post(store.Navigate{Route: store.RouteHome{}})
	})
}

// LoginGitHub runs the provider sign-in. refresh forces a new token even
// when one is stored; link attaches the provider to the current account
// instead of switching identities.
func (l *Login) LoginGitHub(refresh, link bool) *store.Job {
	return l.store.Intent("login_github", func(ctx context.Context, tx *store.Tx[LoginState]) {
		user, err := l.auth.SignIn(ctx, domain.SignInRequest{
			Method:  domain.MethodGitHub,
			Refresh: refresh,
			Link:    link,
		})
		if err != nil {
			tx.Sub(l.handleFailure(err))
			return
		}

		// Persist the token first so the identity lookup is authenticated.
		method := string(domain.MethodGitHub)
		l.creds.Apply(config.Update{Token: config.String(user.OAuthToken), SignInMethod: &method})

		login, err := l.users.FetchLogin(ctx)
		if err != nil {
			tx.Sub(l.handleFailure(err))
			return
		}
		l.creds.Apply(config.Update{User: config.String(login)})
		if user.Account.Name == "" {
			user.Account.Name = login
		}

		tx.Reduce(func(LoginState) LoginState { return Authenticated{User: user} })
		tx.Post(store.Navigate{Route: store.RouteHome{}})
	})
}

// LinkGitHub attaches the provider to the signed-in account.
func (l *Login) LinkGitHub() *store.Job { return l.LoginGitHub(true, true) }

// Logout tears the session down and returns to Initialized.
func (l *Login) Logout() *store.Job {
	return l.store.Intent("logout", func(ctx context.Context, tx *store.Tx[LoginState]) {
		tx.Sub(l.resetSession)
	})
}

// Delete destroys the account, then tears the session down.
func (l *Login) Delete() *store.Job {
	return l.store.Intent("delete_account", func(ctx context.Context, tx *store.Tx[LoginState]) {
		if err := l.auth.DeleteAccount(ctx); err != nil {
			tx.Sub(l.handleFailure(err))
			return
		}
		tx.Sub(l.resetSession)
	})
}

// resetSession is the shared teardown sub-intent: sign out, wipe stored
// credentials, return to Initialized and route to the welcome screen.
func (l *Login) resetSession(ctx context.Context, tx *store.Tx[LoginState]) {
	if err := l.auth.SignOut(); err != nil {
		l.logger.Warn("sign-out failed during session reset", "error", err)
	}
	if err := l.creds.Clear(); err != nil {
		l.logger.Warn("credential clear failed during session reset", "error", err)
	}
	tx.Update(func(LoginState) LoginState { return Initialized{} })
	tx.Post(store.Navigate{Route: store.RouteWelcome{}})
}

// handleFailure is the shared failure sub-intent. An account-exists
// conflict is recoverable: the session is left alone and a dedicated
// effect fires so callers can offer linking. Anything else resets the
// session.
func (l *Login) handleFailure(err error) func(ctx context.Context, tx *store.Tx[LoginState]) {
	return func(ctx context.Context, tx *store.Tx[LoginState]) {
		if domain.IsAccountExists(err) {
			l.logger.Info("sign-in conflict, offering account link", "error", err)
			tx.Update(func(LoginState) LoginState { return LoginError{Reason: err.Error()} })
			tx.Post(store.AccountExists{Err: err})
			return
		}
		l.logger.Error("sign-in failed", "error", err)
		tx.Update(func(LoginState) LoginState { return LoginError{Reason: err.Error()} })
		tx.Post(store.ErrorEffect{Err: err})
		tx.Sub(l.resetSession)
	}
}
