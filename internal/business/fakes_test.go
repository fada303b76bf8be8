package business

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kskor/folio/internal/domain"
	"github.com/kskor/folio/internal/paging"
)

// fakeAuth is an in-memory domain.Authenticator.
type fakeAuth struct {
	mu          sync.Mutex
	account     *domain.Account
	signInUser  domain.User
	signInErr   error
	signedOut   int
	deleted     int
	signInCalls []domain.SignInRequest
}

func (f *fakeAuth) Init(ctx context.Context) error { return nil }

func (f *fakeAuth) IsSignedIn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.account != nil
}

func (f *fakeAuth) CurrentAccount() (domain.Account, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.account == nil {
		return domain.Account{}, false
	}
	return *f.account, true
}

func (f *fakeAuth) HasProvider(domain.SignInMethod) bool        { return false }
func (f *fakeAuth) ShouldLinkAccounts(domain.SignInMethod) bool { return false }

func (f *fakeAuth) SignIn(ctx context.Context, req domain.SignInRequest) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signInCalls = append(f.signInCalls, req)
	if f.signInErr != nil {
		return domain.User{}, f.signInErr
	}
	account := f.signInUser.Account
	f.account = &account
	return f.signInUser, nil
}

func (f *fakeAuth) SignOut() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedOut++
	f.account = nil
	return nil
}

func (f *fakeAuth) DeleteAccount(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted++
	f.account = nil
	return nil
}

// fakeDirectory is an in-memory domain.Directory.
type fakeDirectory struct {
	mu          sync.Mutex
	profiles    map[string]domain.Profile
	projects    map[string]domain.Project // key: uid/projectID
	syncStamps  map[string]int64          // key: uid/source
	syncCalls   int
	failSync    error
	failToggle  error
	syncStarted chan struct{} // closed when SyncProjects is entered
	syncGate    chan struct{} // SyncProjects blocks until this closes
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		profiles:   make(map[string]domain.Profile),
		projects:   make(map[string]domain.Project),
		syncStamps: make(map[string]int64),
	}
}

func (f *fakeDirectory) key(uid, id string) string { return uid + "/" + id }

func (f *fakeDirectory) HasUser(ctx context.Context, uid string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.profiles[uid]
	return ok, nil
}

func (f *fakeDirectory) GetProfile(ctx context.Context, uid string) (domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[uid]
	if !ok {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeDirectory) CreateProfile(ctx context.Context, uid string, profile domain.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[uid] = profile
	return nil
}

func (f *fakeDirectory) GetProject(ctx context.Context, ownerID, projectID string) (domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[f.key(ownerID, projectID)]
	if !ok {
		return domain.Project{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeDirectory) UpdateProject(ctx context.Context, uid, id string, project domain.Project) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == "" {
		id = fmt.Sprintf("gen%d", len(f.projects)+1)
		project.ID = id
	}
	f.projects[f.key(uid, id)] = project
	return id, nil
}

func (f *fakeDirectory) GetProjects(ctx context.Context, cursor, uid string, filter domain.ProjectFilter) (domain.CursorPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []domain.Project
	for key, p := range f.projects {
		if strings.HasPrefix(key, uid+"/") {
			items = append(items, p)
		}
	}
	return domain.CursorPage{Items: items}, nil
}

func (f *fakeDirectory) SyncProjects(ctx context.Context, uid string, projects []domain.Project, source domain.Source) error {
	if f.syncStarted != nil {
		close(f.syncStarted)
		f.syncStarted = nil
	}
	if f.syncGate != nil {
		<-f.syncGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSync != nil {
		return f.failSync
	}
	f.syncCalls++
	for _, p := range projects {
		f.projects[f.key(uid, p.ID)] = p
	}
	f.syncStamps[f.key(uid, string(source))] = 1700000000
	return nil
}

func (f *fakeDirectory) LastSyncTimestamp(ctx context.Context, uid string, source domain.Source) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts, ok := f.syncStamps[f.key(uid, string(source))]
	return ts, ok, nil
}

func (f *fakeDirectory) ToggleFollow(ctx context.Context, ownerID, projectID string, follower domain.Follower, follow bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failToggle != nil {
		return f.failToggle
	}
	key := f.key(ownerID, projectID)
	p, ok := f.projects[key]
	if !ok {
		return domain.ErrNotFound
	}
	var followers []domain.Follower
	for _, fl := range p.Followers {
		if fl.UID == follower.UID {
			continue
		}
		followers = append(followers, fl)
	}
	if follow {
		followers = append(followers, follower)
	}
	p.Followers = followers
	p.FollowersCount = len(followers)
	f.projects[key] = p
	return nil
}

func (f *fakeDirectory) projectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.projects)
}

// fakeRemote serves canned pages and stacks, standing in for the remote
// project API. It implements ProjectRepository, SearchRepository,
// StackRepository and UserRepository.
type fakeRemote struct {
	mu        sync.Mutex
	pages     []paging.Page[domain.Project]
	fetchN    int
	fetchGate chan struct{} // when set, each fetch waits on it
	login     string
	stacks    map[string][]domain.Stack
	stackErr  error
	paging    paging.Paging
}

func (f *fakeRemote) FetchPage(ctx context.Context, key string) (paging.Page[domain.Project], error) {
	f.mu.Lock()
	gate := f.fetchGate
	n := f.fetchN
	f.fetchN++
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return paging.Page[domain.Project]{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return paging.Page[domain.Project]{}, err
	}
	if n >= len(f.pages) {
		return paging.Page[domain.Project]{Paging: paging.After(key, "", "")}, nil
	}
	page := f.pages[n]
	f.mu.Lock()
	f.paging = page.Paging
	f.mu.Unlock()
	return page, nil
}

func (f *fakeRemote) PagingState() paging.Paging {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paging
}

func (f *fakeRemote) ResetPaging() {
	f.mu.Lock()
	f.fetchN = 0
	f.paging = paging.First()
	f.mu.Unlock()
}

func (f *fakeRemote) SearchPage(ctx context.Context, query, key string) (paging.Page[domain.Project], error) {
	return f.FetchPage(ctx, key)
}

func (f *fakeRemote) FetchStack(ctx context.Context, name string) ([]domain.Stack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stackErr != nil {
		return nil, f.stackErr
	}
	if s, ok := f.stacks[name]; ok {
		return s, nil
	}
	return []domain.Stack{{Name: "Go", Percent: 100}}, nil
}

func (f *fakeRemote) FetchLogin(ctx context.Context) (string, error) {
	if f.login == "" {
		return "", domain.ErrAuthFailed
	}
	return f.login, nil
}

func (f *fakeRemote) TotalProjects(ctx context.Context) (int, error) {
	total := 0
	for _, p := range f.pages {
		total += len(p.Items)
	}
	return total, nil
}

var (
	_ domain.Authenticator     = (*fakeAuth)(nil)
	_ domain.Directory         = (*fakeDirectory)(nil)
	_ domain.ProjectRepository = (*fakeRemote)(nil)
	_ domain.SearchRepository  = (*fakeRemote)(nil)
	_ domain.StackRepository   = (*fakeRemote)(nil)
	_ domain.UserRepository    = (*fakeRemote)(nil)
)
