package paging

import "context"

// Page bundles one fetched page with the cursor recorded after the fetch.
type Page[T any] struct {
	Items  []T
	Paging Paging
}

// Source produces pages of items given a cursor key. "" requests the first
// page; any other key must have been returned by this same source. Each call
// is a fresh fetch: sources make no assumption about client-side caching of
// items across pages. Callers must not issue two concurrent FetchPage calls
// against one source instance.
type Source[T any] interface {
	FetchPage(ctx context.Context, key string) (Page[T], error)
}

// SourceFunc adapts a function to the Source contract.
type SourceFunc[T any] func(ctx context.Context, key string) (Page[T], error)

func (f SourceFunc[T]) FetchPage(ctx context.Context, key string) (Page[T], error) {
	return f(ctx, key)
}
