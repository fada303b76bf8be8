package github

import (
	"context"
	"log/slog"
	"sort"

	"github.com/kskor/folio/internal/config"
	"github.com/kskor/folio/internal/domain"
	"github.com/kskor/folio/internal/paging"
)

const defaultPageSize = 5

// Repository adapts the REST client to the paged project-source contract.
// It owns the paging cursor for its screen: the cursor is replaced wholesale
// after every fetch, and callers must not fetch concurrently.
type Repository struct {
	api      *Client
	creds    *config.Holder
	paging   paging.Paging
	pageSize int
	logger   *slog.Logger
}

// NewRepository creates a GitHub-backed project repository.
func NewRepository(api *Client, creds *config.Holder, pageSize int, logger *slog.Logger) *Repository {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{api: api, creds: creds, pageSize: pageSize, logger: logger}
}

var (
	_ domain.ProjectRepository = (*Repository)(nil)
	_ domain.SearchRepository  = (*Repository)(nil)
	_ domain.StackRepository   = (*Repository)(nil)
	_ domain.UserRepository    = (*Repository)(nil)
)

// FetchPage fetches the repository page at key ("" = first page). Filters
// for this source are expressed server-side; pagination cursors come from
// the response Link header.
func (r *Repository) FetchPage(ctx context.Context, key string) (paging.Page[domain.Project], error) {
	dtos, rels, err := r.api.ListRepos(ctx, key, r.pageSize)
	if err != nil {
		r.logger.Error("failed to fetch project page", "key", key, "error", err)
		return paging.Page[domain.Project]{}, err
	}

	next, _ := rels.Get(paging.RelNext)
	prev, _ := rels.Get(paging.RelPrev)
	r.paging = paging.After(key, next, prev)

	creds := r.creds.Snapshot()
	page := paging.Page[domain.Project]{
		Items:  MapRepos(dtos, creds.User, creds.User),
		Paging: r.paging,
	}
	r.logger.Debug("fetched project page", "key", key, "count", len(page.Items), "last", page.Paging.IsLastPage)
	return page, nil
}

// PagingState returns the cursor recorded by the last fetch.
func (r *Repository) PagingState() paging.Paging { return r.paging }

// ResetPaging restarts pagination from the first page.
func (r *Repository) ResetPaging() { r.paging = paging.First() }

// SearchPage fetches one page of server-side repository search results.
func (r *Repository) SearchPage(ctx context.Context, query, key string) (paging.Page[domain.Project], error) {
	result, rels, err := r.api.SearchRepos(ctx, query, key, r.pageSize)
	if err != nil {
		r.logger.Error("failed to search projects", "query", query, "error", err)
		return paging.Page[domain.Project]{}, err
	}

	next, _ := rels.Get(paging.RelNext)
	prev, _ := rels.Get(paging.RelPrev)

	creds := r.creds.Snapshot()
	return paging.Page[domain.Project]{
		Items:  MapRepos(result.Items, creds.User, creds.User),
		Paging: paging.After(key, next, prev),
	}, nil
}

// FetchStack resolves the language breakdown of one repository, largest
// share first.
func (r *Repository) FetchStack(ctx context.Context, name string) ([]domain.Stack, error) {
	langs, err := r.api.GetRepoLanguages(ctx, name)
	if err != nil {
		return nil, err
	}
	stack := MapLanguages(langs)
	sort.Slice(stack, func(i, j int) bool { return stack[i].Percent > stack[j].Percent })
	return stack, nil
}

// FetchLogin returns the provider-side login of the token owner.
func (r *Repository) FetchLogin(ctx context.Context) (string, error) {
	user, err := r.api.GetUser(ctx)
	if err != nil {
		return "", err
	}
	return user.Login, nil
}

// TotalProjects returns how many repositories the token owner has, used for
// import progress display.
func (r *Repository) TotalProjects(ctx context.Context) (int, error) {
	user, err := r.api.GetUser(ctx)
	if err != nil {
		return 0, err
	}
	return user.PublicRepos + user.OwnedRepos, nil
}

// FetchProject returns one repository by name as a project.
func (r *Repository) FetchProject(ctx context.Context, name string) (domain.Project, error) {
	dto, err := r.api.GetRepo(ctx, name)
	if err != nil {
		return domain.Project{}, err
	}
	creds := r.creds.Snapshot()
	return MapRepo(dto, creds.User, creds.User), nil
}
