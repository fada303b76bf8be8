package paging

import (
	"log/slog"
	"strings"
)

// Rel names a link relation in an RFC 5988 Link header.
type Rel string

const (
	RelPrev  Rel = "prev"
	RelNext  Rel = "next"
	RelLast  Rel = "last"
	RelFirst Rel = "first"
)

// Relations maps link relations to their target locators. Built once per
// response and discarded after the cursor is extracted.
type Relations map[Rel]string

// Get returns the locator for rel, with ok reporting presence.
func (r Relations) Get(rel Rel) (string, bool) {
	v, ok := r[rel]
	return v, ok
}

// IsLast reports whether the header marked the fetched page as final.
func (r Relations) IsLast() bool {
	_, ok := r[RelNext]
	return !ok
}

// ParseLinkHeader extracts pagination relations from a raw Link header value
// such as `<https://api.example.com/...?page=2>; rel="next", <...>; rel="last"`.
// Malformed segments are dropped, not fatal: the parser favors resilience
// over strictness.
func ParseLinkHeader(header string, logger *slog.Logger) Relations {
	if logger == nil {
		logger = slog.Default()
	}
	rels := Relations{}
	for _, segment := range strings.Split(header, ",") {
		uri, rel, ok := parseSegment(segment)
		if !ok {
			if strings.TrimSpace(segment) != "" {
				logger.Debug("dropping malformed link segment", "segment", segment)
			}
			continue
		}
		rels[rel] = uri
	}
	return rels
}

// parseSegment decodes one `<uri>; rel="next"` segment.
func parseSegment(segment string) (string, Rel, bool) {
	parts := strings.Split(segment, ";")
	if len(parts) < 2 {
		return "", "", false
	}

	uri := strings.TrimSpace(parts[0])
	for strings.HasPrefix(uri, "<") {
		uri = strings.TrimSuffix(strings.TrimPrefix(uri, "<"), ">")
	}
	if uri == "" {
		return "", "", false
	}

	for _, param := range parts[1:] {
		name, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "rel") {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if value == "" {
			continue
		}
		return uri, Rel(strings.ToLower(value)), true
	}
	return "", "", false
}
