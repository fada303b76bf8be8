package paging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLinkHeader(t *testing.T) {
	header := `<https://api.github.com/user/repos?page=3&per_page=5>; rel="next", ` +
		`<https://api.github.com/user/repos?page=12&per_page=5>; rel="last", ` +
		`<https://api.github.com/user/repos?page=1&per_page=5>; rel="first", ` +
		`<https://api.github.com/user/repos?page=1&per_page=5>; rel="prev"`

	rels := ParseLinkHeader(header, nil)

	next, ok := rels.Get(RelNext)
	require.True(t, ok)
	assert.Equal(t, "https://api.github.com/user/repos?page=3&per_page=5", next)

	prev, ok := rels.Get(RelPrev)
	require.True(t, ok)
	assert.Equal(t, "https://api.github.com/user/repos?page=1&per_page=5", prev)

	assert.False(t, rels.IsLast())
}

func TestParseLinkHeaderNoNext(t *testing.T) {
	header := `<https://api.github.com/user/repos?page=1>; rel="first"`

	rels := ParseLinkHeader(header, nil)

	_, ok := rels.Get(RelNext)
	assert.False(t, ok)
	assert.True(t, rels.IsLast())
}

func TestParseLinkHeaderDropsMalformedSegments(t *testing.T) {
	header := `garbage, <https://example.com/a?page=2>; rel="next", ` +
		`<https://example.com/broken>, ; rel="prev", <>; rel="last"`

	rels := ParseLinkHeader(header, nil)

	next, ok := rels.Get(RelNext)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/a?page=2", next)

	_, ok = rels.Get(RelPrev)
	assert.False(t, ok)
	_, ok = rels.Get(RelLast)
	assert.False(t, ok)
	assert.Len(t, rels, 1)
}

func TestParseLinkHeaderEmpty(t *testing.T) {
	rels := ParseLinkHeader("", nil)
	assert.True(t, rels.IsLast())
	assert.Empty(t, rels)
}

func TestParseLinkHeaderIgnoresUnknownParams(t *testing.T) {
	header := `<https://example.com/b>; title="page two"; rel="next"`

	rels := ParseLinkHeader(header, nil)

	next, ok := rels.Get(RelNext)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/b", next)
}

func TestPagingAfter(t *testing.T) {
	p := After("page2", "page3", "page1")
	assert.Equal(t, "page2", p.PageKey)
	assert.Equal(t, "page3", p.NextPageKey)
	assert.Equal(t, "page1", p.PrevPageKey)
	assert.False(t, p.IsLastPage)

	last := After("page12", "", "page11")
	assert.True(t, last.IsLastPage)

	assert.False(t, First().IsLastPage)
	assert.Empty(t, First().PageKey)
}
