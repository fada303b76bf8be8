package paging

import (
	"context"
	"log/slog"
)

// PageResult is one keyed outcome on a loader's result stream.
type PageResult[T any] struct {
	Key     string
	Items   []T
	PrevKey string
	NextKey string
	Err     error
}

// Loader is the asynchronous page producer behind a Pager: LoadPage kicks
// off a fetch and the outcome arrives on the result stream keyed by the
// requested page key.
type Loader[T any] interface {
	LoadPage(ctx context.Context, key string)
	// PageResults attaches a result subscription; the returned func detaches it.
	PageResults() (<-chan PageResult[T], func())
}

// LoadResult is the page handed to the list consumer.
type LoadResult[T any] struct {
	Items   []T
	PrevKey string
	NextKey string
}

// Pager bridges a Loader into a synchronous infinite-scroll load contract.
// Loader failures are swallowed here and degrade to an empty page: the list
// must not hard-fail mid-scroll, and errors are surfaced through the owning
// store's error state and side effects instead.
type Pager[T any] struct {
	loader Loader[T]
	logger *slog.Logger
}

// NewPager creates a pager over loader.
func NewPager[T any](loader Loader[T], logger *slog.Logger) *Pager[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pager[T]{loader: loader, logger: logger}
}

// Load requests the page at key and waits for exactly one matching update
// from the loader's result stream. The subscription is attached before the
// load is triggered so the result cannot be missed.
func (p *Pager[T]) Load(ctx context.Context, key string) LoadResult[T] {
	results, cancel := p.loader.PageResults()
	defer cancel()

	p.loader.LoadPage(ctx, key)

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("page load cancelled", "key", key)
			return LoadResult[T]{}
		case res, ok := <-results:
			if !ok {
				return LoadResult[T]{}
			}
			if res.Key != key {
				continue
			}
			if res.Err != nil {
				p.logger.Warn("page load failed, returning empty page", "key", key, "error", res.Err)
				return LoadResult[T]{}
			}
			return LoadResult[T]{Items: res.Items, PrevKey: res.PrevKey, NextKey: res.NextKey}
		}
	}
}
