package business

import (
	"context"
	"log/slog"

	"github.com/kskor/folio/internal/domain"
	"github.com/kskor/folio/internal/store"
)

// FilterState is the single-variant list filter. Setters patch their own
// field and keep the rest: filters compose instead of resetting each other.
type FilterState struct {
	Phrase       string
	Categories   []string
	OnlyFeatured bool
}

// Filter owns the list filter state. Each setter is an independent intent
// so concurrent updates from different controls merge field-wise.
type Filter struct {
	store  *store.Store[FilterState]
	logger *slog.Logger
}

func NewFilter(ctx context.Context, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{
		store:  store.New(ctx, FilterState{}, logger),
		logger: logger,
	}
}

func (f *Filter) Store() *store.Store[FilterState] { return f.store }

func (f *Filter) Close() { f.store.Close() }

// Current returns the filter as the list source should see it.
func (f *Filter) Current() domain.ProjectFilter {
	s := f.store.State()
	return domain.ProjectFilter{
		Phrase:       s.Phrase,
		Categories:   s.Categories,
		OnlyFeatured: s.OnlyFeatured,
	}
}

func (f *Filter) SetPhrase(phrase string) *store.Job {
	return f.store.Intent("set_phrase", func(ctx context.Context, tx *store.Tx[FilterState]) {
		tx.Update(func(s FilterState) FilterState {
			s.Phrase = phrase
			return s
		})
	})
}

func (f *Filter) SetCategories(categories []string) *store.Job {
	return f.store.Intent("set_categories", func(ctx context.Context, tx *store.Tx[FilterState]) {
		tx.Update(func(s FilterState) FilterState {
			s.Categories = categories
			return s
		})
	})
}

func (f *Filter) SetOnlyFeatured(only bool) *store.Job {
	return f.store.Intent("set_only_featured", func(ctx context.Context, tx *store.Tx[FilterState]) {
		tx.Update(func(s FilterState) FilterState {
			s.OnlyFeatured = only
			return s
		})
	})
}

// Clear resets every field at once.
func (f *Filter) Clear() *store.Job {
	return f.store.Intent("clear_filter", func(ctx context.Context, tx *store.Tx[FilterState]) {
		tx.Update(func(FilterState) FilterState { return FilterState{} })
	})
}
