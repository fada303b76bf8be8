package docstore

import (
	"github.com/kskor/folio/internal/domain"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// matchesFilter applies the list filter to a stored document. An empty
// filter matches everything.
func matchesFilter(doc ProjectDoc, f domain.ProjectFilter) bool {
	if f.Phrase != "" && !matchesPhrase(doc, f.Phrase) {
		return false
	}
	if len(f.Categories) > 0 && !matchesCategory(doc, f.Categories) {
		return false
	}
	if f.OnlyFeatured && !isFeaturedFor(doc, f.FeaturedFor) {
		return false
	}
	return true
}

func matchesPhrase(doc ProjectDoc, phrase string) bool {
	if fuzzy.MatchNormalizedFold(phrase, doc.Name) {
		return true
	}
	return fuzzy.MatchNormalizedFold(phrase, doc.Description)
}

func matchesCategory(doc ProjectDoc, categories []string) bool {
	for _, cat := range categories {
		for _, s := range doc.Stack {
			if fuzzy.MatchNormalizedFold(cat, s.Name) {
				return true
			}
		}
	}
	return false
}

func isFeaturedFor(doc ProjectDoc, uid string) bool {
	if uid == "" {
		return doc.FollowersCount > 0
	}
	for _, f := range doc.Followers {
		if f.UID == uid {
			return true
		}
	}
	return false
}
