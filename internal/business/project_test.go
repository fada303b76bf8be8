package business

import (
	"context"
	"testing"

	"github.com/kskor/folio/internal/domain"
	"github.com/kskor/folio/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProject(dir *fakeDirectory) domain.Project {
	p := domain.Project{
		ID:        "p1",
		Name:      "folio",
		CreatedBy: "owner1",
		Stack: []domain.Stack{
			{Name: "Go", Percent: 80},
			{Name: "Shell", Percent: 20},
		},
	}
	dir.projects["owner1/p1"] = p
	return p
}

func TestEditionLoadColorsStackAndComputesFavorite(t *testing.T) {
	dir := newFakeDirectory()
	p := seedProject(dir)
	p.Followers = []domain.Follower{{UID: "viewer1", Name: "Viewer"}}
	dir.projects["owner1/p1"] = p

	account := domain.Account{ID: "viewer1", Name: "Viewer"}
	edition := NewEdition(context.Background(), dir, &fakeAuth{account: &account}, nil, nil)
	defer edition.Close()

	drain, _ := collectEffects(t, edition.Store())

	edition.Load("owner1", "p1").Join()
	edition.Store().Wait()

	state, ok := edition.Store().State().(ProjectLoaded)
	require.True(t, ok, "state is %#v", edition.Store().State())
	assert.True(t, state.Project.Favorite)
	for _, s := range state.Project.Stack {
		assert.NotZero(t, s.Color, "stack %s must be colored", s.Name)
	}

	var detailsRoute bool
	for _, e := range drain() {
		if nav, ok := e.(store.Navigate); ok {
			if d, ok := nav.Route.(store.RouteDetails); ok {
				detailsRoute = d.OwnerID == "owner1" && d.ProjectID == "p1"
			}
		}
	}
	assert.True(t, detailsRoute)
}

func TestEditionLoadSameStackNameGetsSameColor(t *testing.T) {
	dir := newFakeDirectory()
	seedProject(dir)

	palette := domain.NewStackPalette(nil)
	edition := NewEdition(context.Background(), dir, &fakeAuth{}, palette, nil)
	defer edition.Close()

	edition.Load("owner1", "p1").Join()
	edition.Store().Wait()

	first := edition.Store().State().(ProjectLoaded).Project.Stack[0].Color

	edition.Load("owner1", "p1").Join()
	edition.Store().Wait()

	second := edition.Store().State().(ProjectLoaded).Project.Stack[0].Color
	assert.Equal(t, first, second, "color must be stable per stack name")
}

func TestEditionLoadNotFound(t *testing.T) {
	dir := newFakeDirectory()
	edition := NewEdition(context.Background(), dir, &fakeAuth{}, nil, nil)
	defer edition.Close()

	edition.Load("owner1", "missing").Join()
	edition.Store().Wait()

	state, ok := edition.Store().State().(ProjectError)
	require.True(t, ok)
	assert.Contains(t, state.Reason, "not found")
}

func TestFollowRejectedWhenSignedOut(t *testing.T) {
	dir := newFakeDirectory()
	seedProject(dir)

	edition := NewEdition(context.Background(), dir, &fakeAuth{}, nil, nil)
	defer edition.Close()

	edition.Load("owner1", "p1").Join()
	edition.Store().Wait()
	before := edition.Store().State()

	drain, _ := collectEffects(t, edition.Store())

	edition.Follow(true).Join()
	edition.Store().Wait()

	assert.Equal(t, before, edition.Store().State(), "rejected follow must not change state")

	var sawError bool
	for _, e := range drain() {
		if ee, ok := e.(store.ErrorEffect); ok {
			assert.ErrorIs(t, ee.Err, domain.ErrNotSignedIn)
			sawError = true
		}
	}
	assert.True(t, sawError)
	assert.Zero(t, dir.projects["owner1/p1"].FollowersCount, "no remote write on rejection")
}

// Following twice in sequence leaves the follower exactly once.
func TestFollowIsIdempotent(t *testing.T) {
	dir := newFakeDirectory()
	seedProject(dir)

	account := domain.Account{ID: "viewer1", Name: "Viewer"}
	edition := NewEdition(context.Background(), dir, &fakeAuth{account: &account}, nil, nil)
	defer edition.Close()

	edition.Load("owner1", "p1").Join()
	edition.Store().Wait()

	edition.Follow(true).Join()
	edition.Follow(true).Join()
	edition.Store().Wait()

	state := edition.Store().State().(ProjectLoaded)
	assert.Len(t, state.Project.Followers, 1)
	assert.Equal(t, 1, state.Project.FollowersCount)
	assert.True(t, state.Project.Favorite)

	remote := dir.projects["owner1/p1"]
	assert.Len(t, remote.Followers, 1)
}

func TestUnfollowRemovesEntry(t *testing.T) {
	dir := newFakeDirectory()
	seedProject(dir)

	account := domain.Account{ID: "viewer1", Name: "Viewer"}
	edition := NewEdition(context.Background(), dir, &fakeAuth{account: &account}, nil, nil)
	defer edition.Close()

	edition.Load("owner1", "p1").Join()
	edition.Follow(true).Join()
	edition.Follow(false).Join()
	edition.Store().Wait()

	state := edition.Store().State().(ProjectLoaded)
	assert.Empty(t, state.Project.Followers)
	assert.False(t, state.Project.Favorite)
}

func TestSaveRequiresOwnership(t *testing.T) {
	dir := newFakeDirectory()
	p := seedProject(dir)

	account := domain.Account{ID: "intruder"}
	edition := NewEdition(context.Background(), dir, &fakeAuth{account: &account}, nil, nil)
	defer edition.Close()

	drain, _ := collectEffects(t, edition.Store())

	edition.Save(p).Join()
	edition.Store().Wait()

	var sawError bool
	for _, e := range drain() {
		if _, ok := e.(store.ErrorEffect); ok {
			sawError = true
		}
	}
	assert.True(t, sawError)
	assert.Equal(t, "folio", dir.projects["owner1/p1"].Name, "unauthorized save must not write")
}

func TestSavePersistsForOwner(t *testing.T) {
	dir := newFakeDirectory()
	p := seedProject(dir)

	account := domain.Account{ID: "owner1", Name: "Owner"}
	edition := NewEdition(context.Background(), dir, &fakeAuth{account: &account}, nil, nil)
	defer edition.Close()

	p.Description = "now with docs"
	edition.Save(p).Join()
	edition.Store().Wait()

	state, ok := edition.Store().State().(ProjectLoaded)
	require.True(t, ok)
	assert.Equal(t, "now with docs", state.Project.Description)
	assert.Equal(t, "now with docs", dir.projects["owner1/p1"].Description)
}
