package business

import (
	"context"
	"testing"

	"github.com/kskor/folio/internal/domain"
	"github.com/kskor/folio/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapCreatesStubOnFirstSession(t *testing.T) {
	account := domain.Account{ID: "user1", Name: "Ada Lovelace", AvatarURL: "https://example.com/a.png"}
	dir := newFakeDirectory()

	bootstrap := NewBootstrap(context.Background(), &fakeAuth{account: &account}, dir, nil)
	defer bootstrap.Close()

	bootstrap.Check().Join()
	bootstrap.Store().Wait()

	state, ok := bootstrap.Store().State().(NewlyCreated)
	require.True(t, ok, "state is %#v", bootstrap.Store().State())
	assert.Equal(t, "Ada Lovelace", state.Name)

	stored, err := dir.GetProfile(context.Background(), "user1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", stored.FirstName)
	assert.Equal(t, "Lovelace", stored.LastName)
	assert.Equal(t, "https://example.com/a.png", stored.AvatarURL)
}

func TestBootstrapSkipsWriteWhenProfileExists(t *testing.T) {
	account := domain.Account{ID: "user1", Name: "Ada Lovelace"}
	dir := newFakeDirectory()
	existing := domain.Profile{FirstName: "Ada", LastName: "L", Location: "London", Title: "Engineer"}
	dir.profiles["user1"] = existing

	bootstrap := NewBootstrap(context.Background(), &fakeAuth{account: &account}, dir, nil)
	defer bootstrap.Close()

	bootstrap.Check().Join()
	bootstrap.Store().Wait()

	state, ok := bootstrap.Store().State().(AlreadyCreated)
	require.True(t, ok, "state is %#v", bootstrap.Store().State())
	assert.Equal(t, "Engineer", state.Profile.Title)
	assert.Equal(t, existing, dir.profiles["user1"], "existing profile must not be rewritten")
}

func TestBootstrapRequiresSession(t *testing.T) {
	dir := newFakeDirectory()
	bootstrap := NewBootstrap(context.Background(), &fakeAuth{}, dir, nil)
	defer bootstrap.Close()

	drain, _ := collectEffects(t, bootstrap.Store())

	bootstrap.Check().Join()
	bootstrap.Store().Wait()

	_, ok := bootstrap.Store().State().(ProfileNotCreated)
	assert.True(t, ok, "no session leaves the initial state untouched")

	var sawError bool
	for _, e := range drain() {
		if ee, ok := e.(store.ErrorEffect); ok {
			assert.ErrorIs(t, ee.Err, domain.ErrNotSignedIn)
			sawError = true
		}
	}
	assert.True(t, sawError)
	assert.Empty(t, dir.profiles)
}

func TestBootstrapCheckCancellable(t *testing.T) {
	account := domain.Account{ID: "user1", Name: "Ada"}
	dir := newFakeDirectory()

	bootstrap := NewBootstrap(context.Background(), &fakeAuth{account: &account}, dir, nil)
	defer bootstrap.Close()

	job := bootstrap.Check()
	bootstrap.CancelCheck()
	job.Join()
	// Either the check finished before the cancel landed or it stopped
	// cleanly; both are acceptable, hanging is not.
}

func TestBootstrapUpdateOverwritesProfile(t *testing.T) {
	account := domain.Account{ID: "user1", Name: "Ada"}
	dir := newFakeDirectory()
	dir.profiles["user1"] = domain.Profile{FirstName: "Ada", LastName: "L"}

	bootstrap := NewBootstrap(context.Background(), &fakeAuth{account: &account}, dir, nil)
	defer bootstrap.Close()

	edited := domain.Profile{FirstName: "Ada", LastName: "Lovelace", Location: "London", Experience: 12}
	bootstrap.Update(edited).Join()
	bootstrap.Store().Wait()

	state, ok := bootstrap.Store().State().(AlreadyCreated)
	require.True(t, ok)
	assert.Equal(t, 12, state.Profile.Experience)
	assert.Equal(t, edited, dir.profiles["user1"])
}

func TestStubProfileNameSplit(t *testing.T) {
	p := stubProfile(domain.Account{Name: "Grace Brewster Murray Hopper"})
	assert.Equal(t, "Grace", p.FirstName)
	assert.Equal(t, "Brewster Murray Hopper", p.LastName)

	solo := stubProfile(domain.Account{Name: "Prince"})
	assert.Equal(t, "Prince", solo.FirstName)
	assert.NotEmpty(t, solo.LastName)

	anon := stubProfile(domain.Account{})
	assert.NotEmpty(t, anon.FirstName)
	assert.NotEmpty(t, anon.LastName)
}
