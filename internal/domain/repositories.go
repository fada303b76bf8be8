package domain

import (
	"context"
	"slices"

	"github.com/kskor/folio/internal/paging"
)

// ProjectRepository is a paged source of projects. Implementations own the
// paging cursor and replace it wholesale after every fetch; callers must not
// issue concurrent FetchPage calls against one instance.
type ProjectRepository interface {
	// FetchPage returns the page at key ("" = first page). The key must be
	// "" or a key previously returned by this same repository.
	FetchPage(ctx context.Context, key string) (paging.Page[Project], error)

	// PagingState returns the cursor recorded by the last fetch.
	PagingState() paging.Paging

	// ResetPaging discards the recorded cursor so the next fetch starts over.
	ResetPaging()
}

// SearchRepository serves paged full-text project search.
type SearchRepository interface {
	SearchPage(ctx context.Context, query, key string) (paging.Page[Project], error)
}

// StackRepository resolves the language/technology breakdown of one project.
type StackRepository interface {
	FetchStack(ctx context.Context, name string) ([]Stack, error)
}

// UserRepository resolves the remote identity behind the configured token.
type UserRepository interface {
	// FetchLogin returns the provider-side login name of the current user.
	FetchLogin(ctx context.Context) (string, error)

	// TotalProjects returns how many projects the current user owns remotely.
	TotalProjects(ctx context.Context) (int, error)
}

// ProjectFilter narrows a directory project query.
type ProjectFilter struct {
	Phrase       string
	Categories   []string
	OnlyFeatured bool
	FeaturedFor  string // uid whose favorites count as featured
}

// Equal reports whether two filters describe the same query.
func (f ProjectFilter) Equal(o ProjectFilter) bool {
	return f.Phrase == o.Phrase &&
		f.OnlyFeatured == o.OnlyFeatured &&
		f.FeaturedFor == o.FeaturedFor &&
		slices.Equal(f.Categories, o.Categories)
}

// CursorPage is one page of directory documents plus the opaque cursor
// for the next page ("" when exhausted).
type CursorPage struct {
	Items  []Project
	Cursor string
}

// Directory is the document-store collaborator: profiles, projects,
// followers and per-source sync timestamps.
type Directory interface {
	HasUser(ctx context.Context, uid string) (bool, error)
	GetProfile(ctx context.Context, uid string) (Profile, error)
	CreateProfile(ctx context.Context, uid string, profile Profile) error

	GetProject(ctx context.Context, ownerID, projectID string) (Project, error)
	// UpdateProject writes the project under id; an empty id creates a new
	// document and the assigned id is returned.
	UpdateProject(ctx context.Context, uid, id string, project Project) (string, error)
	GetProjects(ctx context.Context, cursor, uid string, filter ProjectFilter) (CursorPage, error)

	// SyncProjects replaces the uid's projects from source in one atomic
	// batch write and records the sync timestamp for that source.
	SyncProjects(ctx context.Context, uid string, projects []Project, source Source) error
	LastSyncTimestamp(ctx context.Context, uid string, source Source) (int64, bool, error)

	ToggleFollow(ctx context.Context, ownerID, projectID string, follower Follower, follow bool) error
}

// SignInMethod selects an identity provider.
type SignInMethod string

const (
	MethodAnonymous SignInMethod = "anonymous"
	MethodEmail     SignInMethod = "email"
	MethodGitHub    SignInMethod = "github"
)

// SignInRequest carries everything a sign-in flow may need.
type SignInRequest struct {
	Method   SignInMethod
	Email    string
	Password string
	Create   bool // register instead of sign in (email only)
	Refresh  bool // force a fresh provider token (github only)
	Link     bool // link provider to the current account instead of switching
}

// Authenticator is the auth-provider collaborator. SignIn failures caused by
// an identity existing under another provider surface as *AccountExistsError.
type Authenticator interface {
	Init(ctx context.Context) error
	IsSignedIn() bool
	CurrentAccount() (Account, bool)
	HasProvider(method SignInMethod) bool
	ShouldLinkAccounts(method SignInMethod) bool
	SignIn(ctx context.Context, req SignInRequest) (User, error)
	SignOut() error
	DeleteAccount(ctx context.Context) error
}
