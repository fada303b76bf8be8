package docstore

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kskor/folio/internal/domain"
	"github.com/sahilm/fuzzy"
	bolt "go.etcd.io/bbolt"
)

// projectIndex implements sahilm/fuzzy.Source for zero-allocation matching
// over stored projects.
type projectIndex struct {
	projects    []domain.Project
	lowerTitles []string // Pre-computed lowercase "name description"
}

func (idx *projectIndex) String(i int) string { return idx.lowerTitles[i] }
func (idx *projectIndex) Len() int            { return len(idx.projects) }

// Search runs a ranked fuzzy search over all of uid's stored projects.
// Results come back best match first. Invalid records are skipped.
func (s *Store) Search(ctx context.Context, uid, query string) ([]domain.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	idx := &projectIndex{}
	prefix := uid + "/"
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProjects)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			var doc ProjectDoc
			if err := json.Unmarshal(v, &doc); err != nil {
				continue
			}
			project, err := doc.ToProject()
			if err != nil {
				continue
			}
			idx.projects = append(idx.projects, project)
			idx.lowerTitles = append(idx.lowerTitles, strings.ToLower(project.Name+" "+project.Description))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if idx.Len() == 0 {
		return nil, nil
	}

	matches := fuzzy.FindFrom(strings.ToLower(query), idx)
	results := make([]domain.Project, 0, len(matches))
	for _, m := range matches {
		results = append(results, idx.projects[m.Index])
	}
	s.logger.Debug("local search", "query", query, "matches", len(results))
	return results, nil
}
