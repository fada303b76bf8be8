package business

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kskor/folio/internal/domain"
	"github.com/kskor/folio/internal/paging"
	"github.com/kskor/folio/internal/store"
)

// ListState is the closed variant set of the projects list feature.
type ListState interface{ listState() }

type ListInitialized struct{}

// ListLoaded accumulates every page fetched so far plus the cursor after
// the latest fetch.
type ListLoaded struct {
	Projects []domain.Project
	Paging   paging.Paging
}

type ListError struct{ Reason string }

func (ListInitialized) listState() {}
func (ListLoaded) listState()      {}
func (ListError) listState()       {}

// List drives the paged projects list. It implements paging.Loader so a
// Pager can bridge it to an infinite-scroll consumer: LoadPage launches the
// fetch intent and the keyed outcome lands on the result stream. The source
// is chosen per fetch: a non-empty filter phrase goes to the search
// repository, everything else to the project repository.
type List struct {
	store    *store.Store[ListState]
	projects domain.ProjectRepository
	search   domain.SearchRepository
	filter   *Filter
	logger   *slog.Logger

	subMu   sync.Mutex
	subs    map[uint64]chan paging.PageResult[domain.Project]
	nextSub uint64
}

func NewList(ctx context.Context, projects domain.ProjectRepository, search domain.SearchRepository, filter *Filter, logger *slog.Logger) *List {
	if logger == nil {
		logger = slog.Default()
	}
	return &List{
		store:    store.New[ListState](ctx, ListInitialized{}, logger),
		projects: projects,
		search:   search,
		filter:   filter,
		logger:   logger,
		subs:     make(map[uint64]chan paging.PageResult[domain.Project]),
	}
}

func (l *List) Store() *store.Store[ListState] { return l.store }

func (l *List) Close() {
	l.store.Close()
	l.subMu.Lock()
	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
	l.subMu.Unlock()
}

// filterSink is satisfied by sources whose predicate filter is evaluated
// client-side; the current filter is handed over before every fetch.
type filterSink interface {
	SetFilter(domain.ProjectFilter)
}

// LoadPage launches the fetch for key (implements paging.Loader).
func (l *List) LoadPage(ctx context.Context, key string) {
	l.store.Intent("load_page", func(ctx context.Context, tx *store.Tx[ListState]) {
		filter := domain.ProjectFilter{}
		if l.filter != nil {
			filter = l.filter.Current()
		}
		if sink, ok := l.projects.(filterSink); ok {
			sink.SetFilter(filter)
		}

		var (
			page paging.Page[domain.Project]
			err  error
		)
		if filter.Phrase != "" && l.search != nil {
			page, err = l.search.SearchPage(ctx, filter.Phrase, key)
		} else {
			page, err = l.projects.FetchPage(ctx, key)
		}

		if err != nil {
			l.logger.Error("page fetch failed", "key", key, "error", err)
			tx.Update(func(ListState) ListState { return ListError{Reason: err.Error()} })
			tx.Post(store.ErrorEffect{Err: err})
			l.publish(paging.PageResult[domain.Project]{Key: key, Err: err})
			return
		}

		tx.Update(func(s ListState) ListState {
			loaded, ok := s.(ListLoaded)
			if !ok || key == "" {
				return ListLoaded{Projects: page.Items, Paging: page.Paging}
			}
			loaded.Projects = append(loaded.Projects, page.Items...)
			loaded.Paging = page.Paging
			return loaded
		})
		l.publish(paging.PageResult[domain.Project]{
			Key:     key,
			Items:   page.Items,
			PrevKey: page.Paging.PrevPageKey,
			NextKey: page.Paging.NextPageKey,
		})
	})
}

// PageResults attaches a result subscription (implements paging.Loader).
func (l *List) PageResults() (<-chan paging.PageResult[domain.Project], func()) {
	ch := make(chan paging.PageResult[domain.Project], 4)
	l.subMu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.subMu.Unlock()
	return ch, func() {
		l.subMu.Lock()
		if _, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(ch)
		}
		l.subMu.Unlock()
	}
}

func (l *List) publish(res paging.PageResult[domain.Project]) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- res:
		default:
		}
	}
}

// Refresh discards accumulated pages and the source cursor so the next
// load starts over, typically after a filter change.
func (l *List) Refresh() *store.Job {
	return l.store.Intent("refresh_list", func(ctx context.Context, tx *store.Tx[ListState]) {
		l.projects.ResetPaging()
		tx.Update(func(ListState) ListState { return ListInitialized{} })
	})
}

var _ paging.Loader[domain.Project] = (*List)(nil)
