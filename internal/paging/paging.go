// Package paging holds the cursor model shared by every paged project
// source: the link-header parser for web APIs, the generic page-source
// contract, and the adapter that feeds infinite-scroll style consumers.
package paging

// Paging records the position within a paged collection after one fetch.
// Keys are opaque tokens; "" means absent. A Paging value is replaced
// wholesale on every fetch, never mutated field by field.
type Paging struct {
	PageKey     string
	NextPageKey string
	PrevPageKey string
	IsLastPage  bool
}

// First is the cursor before any fetch.
func First() Paging {
	return Paging{}
}

// After builds the cursor following a fetch of pageKey. IsLastPage holds
// exactly when there is no next key.
func After(pageKey, nextKey, prevKey string) Paging {
	return Paging{
		PageKey:     pageKey,
		NextPageKey: nextKey,
		PrevPageKey: prevKey,
		IsLastPage:  nextKey == "",
	}
}
