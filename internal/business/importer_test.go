package business

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kskor/folio/internal/domain"
	"github.com/kskor/folio/internal/paging"
	"github.com/kskor/folio/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func importerFixture(pages []paging.Page[domain.Project]) (*Importer, *fakeAuth, *fakeDirectory, *fakeRemote) {
	account := domain.Account{ID: "user1", Name: "User One"}
	auth := &fakeAuth{
		account:    &account,
		signInUser: domain.User{Account: account, OAuthToken: "fresh_token"},
	}
	dir := newFakeDirectory()
	remote := &fakeRemote{pages: pages}
	imp := NewImporter(context.Background(), auth, remote, remote, remote, dir, newTestHolder(), nil)
	return imp, auth, dir, remote
}

func importPages() []paging.Page[domain.Project] {
	return []paging.Page[domain.Project]{
		{
			Items: []domain.Project{
				{ID: "r1", Name: "alpha", CreatedBy: "user1"},
				{ID: "r2", Name: "beta", CreatedBy: "user1"},
			},
			Paging: paging.After("", "page2", ""),
		},
		{
			Items: []domain.Project{
				{ID: "r3", Name: "gamma", CreatedBy: "user1"},
			},
			Paging: paging.After("page2", "", ""),
		},
	}
}

func TestImportRunCompletes(t *testing.T) {
	imp, auth, dir, _ := importerFixture(importPages())
	defer imp.Close()

	imp.Run().Join()
	imp.Store().Wait()

	state, ok := imp.Store().State().(ImportCompleted)
	require.True(t, ok, "state is %#v", imp.Store().State())
	assert.Equal(t, 3, state.Count)

	assert.Equal(t, 1, dir.syncCalls, "exactly one atomic batch write")
	assert.Equal(t, 3, dir.projectCount())

	_, synced, err := dir.LastSyncTimestamp(context.Background(), "user1", domain.SourceGitHub)
	require.NoError(t, err)
	assert.True(t, synced)

	// The run re-authenticated with a forced refresh.
	require.NotEmpty(t, auth.signInCalls)
	assert.True(t, auth.signInCalls[0].Refresh)
}

func TestImportEnrichesStacks(t *testing.T) {
	imp, _, dir, remote := importerFixture(importPages())
	defer imp.Close()
	remote.stacks = map[string][]domain.Stack{
		"alpha": {{Name: "Kotlin", Percent: 70}, {Name: "Swift", Percent: 30}},
	}

	imp.Run().Join()
	imp.Store().Wait()

	alpha, err := dir.GetProject(context.Background(), "user1", "r1")
	require.NoError(t, err)
	require.Len(t, alpha.Stack, 2)
	assert.Equal(t, "Kotlin", alpha.Stack[0].Name)
}

func TestImportReportsProgress(t *testing.T) {
	imp, _, _, _ := importerFixture(importPages())
	defer imp.Close()

	states, unwatch := imp.Store().Watch()
	defer unwatch()

	imp.Run().Join()
	imp.Store().Wait()

	var progress []ImportProgress
	for done := false; !done; {
		select {
		case s := <-states:
			if p, ok := s.(ImportProgress); ok {
				progress = append(progress, p)
			}
			if _, ok := s.(ImportCompleted); ok {
				done = true
			}
		case <-time.After(time.Second):
			t.Fatalf("missing states, got %d progress updates", len(progress))
		}
	}

	require.NotEmpty(t, progress)
	last := progress[len(progress)-1]
	assert.Equal(t, 3, last.Done)
	assert.Equal(t, 3, last.Total)
	assert.Equal(t, "gamma", last.Current)
	// Done counts never go backwards.
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i].Done, progress[i-1].Done)
	}
}

// Cancelling mid-stream must leave the directory untouched: no project
// records and no sync timestamp.
func TestImportCancelIsAllOrNothing(t *testing.T) {
	imp, _, dir, remote := importerFixture(importPages())
	defer imp.Close()

	gate := make(chan struct{})
	remote.fetchGate = gate

	job := imp.Run()

	// Let the first page through, then cancel before the second.
	gate <- struct{}{}
	time.Sleep(20 * time.Millisecond)
	imp.Cancel()
	job.Join()

	assert.Zero(t, dir.syncCalls, "cancelled import must not persist")
	assert.Zero(t, dir.projectCount())
	_, synced, err := dir.LastSyncTimestamp(context.Background(), "user1", domain.SourceGitHub)
	require.NoError(t, err)
	assert.False(t, synced, "cancelled import must not stamp a sync")

	_, ok := imp.Store().State().(ImportInitialized)
	assert.True(t, ok, "state is %#v", imp.Store().State())
}

// A cancel racing with completion joins the in-flight save instead of
// aborting it: the batch lands whole.
func TestImportCancelAfterStreamJoinsSave(t *testing.T) {
	imp, _, dir, _ := importerFixture(importPages())
	defer imp.Close()

	job := imp.Run()
	job.Join() // stream finished, save launched

	imp.Cancel()
	imp.Store().Wait()

	assert.Equal(t, 1, dir.syncCalls)
	assert.Equal(t, 3, dir.projectCount())
	_, ok := imp.Store().State().(ImportCompleted)
	assert.True(t, ok, "completed import survives a late cancel, state is %#v", imp.Store().State())
}

func TestImportCancelJoinsSaveLaunchedDuringJoin(t *testing.T) {
	imp, _, dir, _ := importerFixture(importPages())
	defer imp.Close()

	syncStarted := make(chan struct{})
	syncGate := make(chan struct{})
	dir.syncStarted = syncStarted
	dir.syncGate = syncGate

	// Stand in for a stream that is still being joined when Cancel takes
	// its snapshot: the save registers only after the join has begun.
	streamGate := make(chan struct{})
	imp.mu.Lock()
	imp.importJob = imp.store.Intent("stream", func(ctx context.Context, tx *store.Tx[ImportState]) {
		<-streamGate
		imp.launchSave("user1", []domain.Project{{ID: "r1", Name: "alpha", CreatedBy: "user1"}})
	})
	imp.mu.Unlock()

	cancelled := make(chan struct{})
	go func() {
		imp.Cancel()
		close(cancelled)
	}()

	time.Sleep(20 * time.Millisecond) // let Cancel reach the stream join
	close(streamGate)
	<-syncStarted

	select {
	case <-cancelled:
		t.Fatal("cancel returned while the save was still writing")
	case <-time.After(50 * time.Millisecond):
	}

	close(syncGate)
	<-cancelled
	imp.Store().Wait()

	assert.Equal(t, 1, dir.syncCalls)
	assert.Equal(t, 1, dir.projectCount())
	_, ok := imp.Store().State().(ImportCompleted)
	assert.True(t, ok, "batch written whole, state is %#v", imp.Store().State())
}

func TestImportStackFailureFailsRun(t *testing.T) {
	imp, _, dir, remote := importerFixture(importPages())
	defer imp.Close()
	remote.stackErr = errors.New("languages endpoint down")

	imp.Run().Join()
	imp.Store().Wait()

	state, ok := imp.Store().State().(ImportError)
	require.True(t, ok, "state is %#v", imp.Store().State())
	assert.Contains(t, state.Reason, "languages endpoint down")
	assert.Zero(t, dir.syncCalls)
}

func TestImportCheckReportsLastSync(t *testing.T) {
	imp, _, dir, _ := importerFixture(nil)
	defer imp.Close()
	dir.syncStamps["user1/github"] = 1690000000

	imp.Check().Join()
	imp.Store().Wait()

	state, ok := imp.Store().State().(SourceAvailable)
	require.True(t, ok)
	assert.True(t, state.HasSynced)
	assert.EqualValues(t, 1690000000, state.LastSync)
}

func TestImportConfirmRoutesToProgress(t *testing.T) {
	imp, _, _, _ := importerFixture(nil)
	defer imp.Close()

	drain, _ := collectEffects(t, imp.Store())

	imp.Confirm().Join()
	imp.Store().Wait()

	_, ok := imp.Store().State().(ImportConfirmed)
	assert.True(t, ok)

	var routed bool
	for _, e := range drain() {
		if nav, ok := e.(store.Navigate); ok {
			if _, p := nav.Route.(store.RouteImportProgress); p {
				routed = true
			}
		}
	}
	assert.True(t, routed)
}
