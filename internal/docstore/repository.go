package docstore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kskor/folio/internal/domain"
	"github.com/kskor/folio/internal/paging"
)

// Repository adapts the document store to the paged project-source
// contract used by the list screens. The signed-in user is resolved
// through uid before any store access happens.
type Repository struct {
	store  *Store
	uid    func() (string, bool)
	logger *slog.Logger

	mu     sync.Mutex
	paging paging.Paging
	filter domain.ProjectFilter
}

func NewRepository(store *Store, uid func() (string, bool), logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{store: store, uid: uid, logger: logger}
}

// SetFilter replaces the query filter and resets paging, since pages from
// different filters do not line up. Setting an unchanged filter keeps the
// cursor, so callers may hand the filter over before every fetch.
func (r *Repository) SetFilter(filter domain.ProjectFilter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if filter.Equal(r.filter) {
		return
	}
	r.filter = filter
	r.paging = paging.First()
}

func (r *Repository) FetchPage(ctx context.Context, key string) (paging.Page[domain.Project], error) {
	uid, ok := r.uid()
	if !ok {
		return paging.Page[domain.Project]{}, domain.ErrNotSignedIn
	}

	r.mu.Lock()
	filter := r.filter
	r.mu.Unlock()
	if filter.OnlyFeatured && filter.FeaturedFor == "" {
		filter.FeaturedFor = uid
	}

	result, err := r.store.GetProjects(ctx, key, uid, filter)
	if err != nil {
		return paging.Page[domain.Project]{}, err
	}

	state := paging.After(key, result.Cursor, "")
	r.mu.Lock()
	r.paging = state
	r.mu.Unlock()

	return paging.Page[domain.Project]{Items: result.Items, Paging: state}, nil
}

func (r *Repository) PagingState() paging.Paging {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paging
}

func (r *Repository) ResetPaging() {
	r.mu.Lock()
	r.paging = paging.First()
	r.mu.Unlock()
}

// SearchPage serves ranked local search as a single page. The index lives
// in the store, so there is nothing to page through.
func (r *Repository) SearchPage(ctx context.Context, query, key string) (paging.Page[domain.Project], error) {
	uid, ok := r.uid()
	if !ok {
		return paging.Page[domain.Project]{}, domain.ErrNotSignedIn
	}
	results, err := r.store.Search(ctx, uid, query)
	if err != nil {
		return paging.Page[domain.Project]{}, err
	}
	return paging.Page[domain.Project]{Items: results, Paging: paging.After(key, "", "")}, nil
}

var (
	_ domain.ProjectRepository = (*Repository)(nil)
	_ domain.SearchRepository  = (*Repository)(nil)
)
