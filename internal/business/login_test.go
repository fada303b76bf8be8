package business

import (
	"context"
	"errors"
	"testing"

	"github.com/kskor/folio/internal/config"
	"github.com/kskor/folio/internal/domain"
	"github.com/kskor/folio/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHolder() *config.Holder {
	return config.NewHolder(config.DefaultConfig(), nil)
}

func collectEffects[S any](t *testing.T, st *store.Store[S]) (func() []store.Effect, func()) {
	t.Helper()
	effects, detach := st.Subscribe()
	var collected []store.Effect
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range effects {
			collected = append(collected, e)
		}
	}()
	return func() []store.Effect {
		detach()
		<-done
		return collected
	}, detach
}

func TestLoginAnonymous(t *testing.T) {
	auth := &fakeAuth{signInUser: domain.GuestUser(domain.Account{ID: "guest1", Anonymous: true})}
	login := NewLogin(context.Background(), auth, &fakeRemote{}, newTestHolder(), nil)
	defer login.Close()

	drain, _ := collectEffects(t, login.Store())

	login.LoginAnonymous().Join()
	login.Store().Wait()

	state, ok := login.Store().State().(Authenticated)
	require.True(t, ok, "state is %#v", login.Store().State())
	assert.True(t, state.User.Guest)

	var navigated bool
	for _, e := range drain() {
		if nav, ok := e.(store.Navigate); ok {
			if _, home := nav.Route.(store.RouteHome); home {
				navigated = true
			}
		}
	}
	assert.True(t, navigated, "expected navigation to home")
}

func TestLoginGitHubEnrichesIdentity(t *testing.T) {
	auth := &fakeAuth{signInUser: domain.User{
		Account:      domain.Account{ID: "acc1"},
		OAuthToken:   "gho_token",
		SignInMethod: string(domain.MethodGitHub),
	}}
	remote := &fakeRemote{login: "octocat"}
	creds := newTestHolder()

	login := NewLogin(context.Background(), auth, remote, creds, nil)
	defer login.Close()

	login.LoginGitHub(false, false).Join()
	login.Store().Wait()

	state, ok := login.Store().State().(Authenticated)
	require.True(t, ok, "state is %#v", login.Store().State())
	assert.Equal(t, "octocat", state.User.Account.Name)

	snap := creds.Snapshot()
	assert.Equal(t, "octocat", snap.User)
	assert.Equal(t, "gho_token", snap.Token)
	assert.Equal(t, string(domain.MethodGitHub), snap.SignInMethod)
}

// An account-exists conflict must not reset the session: no sign-out, no
// credential wipe, and a dedicated effect instead of the generic error.
func TestLoginAccountExistsDoesNotReset(t *testing.T) {
	conflict := &domain.AccountExistsError{Email: "a@b.c", Provider: "password"}
	auth := &fakeAuth{signInErr: conflict}
	creds := newTestHolder()
	creds.Apply(config.Update{Token: config.String("keepme")})

	login := NewLogin(context.Background(), auth, &fakeRemote{}, creds, nil)
	defer login.Close()

	drain, _ := collectEffects(t, login.Store())

	login.LoginGitHub(false, false).Join()
	login.Store().Wait()

	state, ok := login.Store().State().(LoginError)
	require.True(t, ok, "state is %#v", login.Store().State())
	assert.Contains(t, state.Reason, "already exists")

	assert.Zero(t, auth.signedOut, "conflict must not sign the session out")
	assert.Equal(t, "keepme", creds.Snapshot().Token, "conflict must not wipe credentials")

	var sawConflict, sawGeneric bool
	for _, e := range drain() {
		switch e.(type) {
		case store.AccountExists:
			sawConflict = true
		case store.ErrorEffect:
			sawGeneric = true
		}
	}
	assert.True(t, sawConflict, "expected the account-exists effect")
	assert.False(t, sawGeneric, "conflict must not fire the generic error effect")
}

func TestLoginGenericFailureResetsSession(t *testing.T) {
	auth := &fakeAuth{signInErr: errors.New("provider down")}
	creds := newTestHolder()
	creds.Apply(config.Update{Token: config.String("stale")})

	login := NewLogin(context.Background(), auth, &fakeRemote{}, creds, nil)
	defer login.Close()

	login.LoginGitHub(false, false).Join()
	login.Store().Wait()

	_, ok := login.Store().State().(Initialized)
	require.True(t, ok, "state is %#v", login.Store().State())
	assert.Equal(t, 1, auth.signedOut)
	assert.Empty(t, creds.Snapshot().Token)
}

func TestLogoutReturnsToInitialized(t *testing.T) {
	account := domain.Account{ID: "acc1"}
	auth := &fakeAuth{account: &account}
	creds := newTestHolder()
	creds.Apply(config.Update{User: config.String("octocat")})

	login := NewLogin(context.Background(), auth, &fakeRemote{}, creds, nil)
	defer login.Close()

	login.Logout().Join()
	login.Store().Wait()

	_, ok := login.Store().State().(Initialized)
	assert.True(t, ok)
	assert.Equal(t, 1, auth.signedOut)
	assert.Empty(t, creds.Snapshot().User)
}

func TestDeleteAccountDestroysAndResets(t *testing.T) {
	account := domain.Account{ID: "acc1"}
	auth := &fakeAuth{account: &account}

	login := NewLogin(context.Background(), auth, &fakeRemote{}, newTestHolder(), nil)
	defer login.Close()

	login.Delete().Join()
	login.Store().Wait()

	assert.Equal(t, 1, auth.deleted)
	_, ok := login.Store().State().(Initialized)
	assert.True(t, ok)
}

func TestInitializeRestoresSession(t *testing.T) {
	account := domain.Account{ID: "acc1", Name: "Octo"}
	auth := &fakeAuth{account: &account}

	login := NewLogin(context.Background(), auth, &fakeRemote{}, newTestHolder(), nil)
	defer login.Close()

	login.Initialize().Join()
	login.Store().Wait()

	state, ok := login.Store().State().(Authenticated)
	require.True(t, ok)
	assert.Equal(t, "acc1", state.User.Account.ID)
}
