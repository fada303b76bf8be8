// Package docstore implements the document-store collaborator on BoltDB:
// profile and project documents, follower lists, per-source sync timestamps,
// cursor-paged queries and local ranked search.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kskor/folio/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketProfiles = []byte("profiles")
	bucketProjects = []byte("projects")
	bucketSync     = []byte("sync")
)

// Store implements domain.Directory using BoltDB.
type Store struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte

	pageSize int
	now      func() time.Time
	logger   *slog.Logger
}

// NewStore opens (or creates) the document store under dataDir.
func NewStore(dataDir string, pageSize int, logger *slog.Logger) (*Store, error) {
	if pageSize <= 0 {
		pageSize = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "folio.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketProfiles, bucketProjects, bucketSync} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:       db,
		cache:    make(map[string][]byte),
		pageSize: pageSize,
		now:      time.Now,
		logger:   logger,
	}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *Store) get(bucket []byte, key string, dest interface{}) bool {
	cacheKey := string(bucket) + ":" + key

	// Check memory cache first
	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	// Read from BoltDB
	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

func (s *Store) set(bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	cacheKey := string(bucket) + ":" + key

	// Update memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	// Write to BoltDB
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Put([]byte(key), data)
	})
}

func (s *Store) invalidatePrefix(bucket []byte, prefix string) {
	cachePrefix := string(bucket) + ":" + prefix
	s.mu.Lock()
	for k := range s.cache {
		if strings.HasPrefix(k, cachePrefix) {
			delete(s.cache, k)
		}
	}
	s.mu.Unlock()
}

// === Profiles ===

func (s *Store) HasUser(ctx context.Context, uid string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var doc ProfileDoc
	return s.get(bucketProfiles, uid, &doc), nil
}

func (s *Store) GetProfile(ctx context.Context, uid string) (domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return domain.Profile{}, err
	}
	var doc ProfileDoc
	if !s.get(bucketProfiles, uid, &doc) {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return doc.ToProfile()
}

func (s *Store) CreateProfile(ctx context.Context, uid string, profile domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := ProfileToDoc(profile)
	if err := doc.Validate(); err != nil {
		return err
	}
	return s.set(bucketProfiles, uid, doc)
}

// === Projects (hierarchical key: {uid}/{projectID}) ===

func projectKey(uid, projectID string) string {
	return uid + "/" + projectID
}

func (s *Store) GetProject(ctx context.Context, ownerID, projectID string) (domain.Project, error) {
	if err := ctx.Err(); err != nil {
		return domain.Project{}, err
	}
	var doc ProjectDoc
	if !s.get(bucketProjects, projectKey(ownerID, projectID), &doc) {
		return domain.Project{}, domain.ErrNotFound
	}
	return doc.ToProject()
}

func (s *Store) UpdateProject(ctx context.Context, uid, id string, project domain.Project) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
		project.ID = id
	}
	doc := ProjectToDoc(project)
	if err := doc.Validate(); err != nil {
		return "", err
	}
	if err := s.set(bucketProjects, projectKey(uid, id), doc); err != nil {
		return "", err
	}
	s.logger.Debug("project updated", "uid", uid, "id", id)
	return id, nil
}

// GetProjects returns up to one page of uid's projects after cursor (""
// starts at the beginning). The returned cursor is the opaque key of the
// last scanned document, or "" when the collection is exhausted. Records
// that fail validation are skipped; the page fails only when every record
// that matched the filter was invalid.
func (s *Store) GetProjects(ctx context.Context, cursor, uid string, filter domain.ProjectFilter) (domain.CursorPage, error) {
	if err := ctx.Err(); err != nil {
		return domain.CursorPage{}, err
	}

	prefix := uid + "/"
	var (
		items    []domain.Project
		lastKey  string
		mapped   int
		haveMore bool
	)

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProjects)
		if b == nil {
			return nil
		}
		c := b.Cursor()

		var k, v []byte
		if cursor == "" {
			k, v = c.Seek([]byte(prefix))
		} else {
			c.Seek([]byte(cursor))
			k, v = c.Next()
		}

		for ; k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			if len(items) >= s.pageSize {
				haveMore = true
				break
			}

			var doc ProjectDoc
			if err := json.Unmarshal(v, &doc); err != nil {
				s.logger.Warn("skipping undecodable project record", "key", string(k), "error", err)
				lastKey = string(k)
				continue
			}
			if !matchesFilter(doc, filter) {
				lastKey = string(k)
				continue
			}
			mapped++
			project, err := doc.ToProject()
			if err != nil {
				s.logger.Warn("skipping invalid project record", "key", string(k), "error", err)
				lastKey = string(k)
				continue
			}
			items = append(items, project)
			lastKey = string(k)
		}
		return nil
	})
	if err != nil {
		return domain.CursorPage{}, err
	}

	if mapped > 0 && len(items) == 0 {
		return domain.CursorPage{}, fmt.Errorf("page at cursor %q: %w", cursor, domain.ErrInvalidRecord)
	}

	next := ""
	if haveMore {
		next = lastKey
	}
	return domain.CursorPage{Items: items, Cursor: next}, nil
}

// === Sync ===

func syncKey(uid string, source domain.Source) string {
	return uid + "/" + string(source)
}

// SyncProjects replaces uid's projects from source in a single transaction:
// existing documents from that source are dropped, the new batch is written,
// and the sync timestamp is recorded. Either everything lands or nothing
// does.
func (s *Store) SyncProjects(ctx context.Context, uid string, projects []domain.Project, source domain.Source) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	docs := make(map[string]ProjectDoc, len(projects))
	for _, p := range projects {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		doc := ProjectToDoc(p)
		if err := doc.Validate(); err != nil {
			return fmt.Errorf("project %q: %w", p.Name, err)
		}
		docs[projectKey(uid, p.ID)] = doc
	}

	prefix := uid + "/"
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProjects)

		// Drop previous documents from this source
		c := b.Cursor()
		for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			var doc ProjectDoc
			if err := json.Unmarshal(v, &doc); err == nil && doc.Source != string(source) {
				continue
			}
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		for key, doc := range docs {
			data, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(key), data); err != nil {
				return err
			}
		}

		ts, err := json.Marshal(s.now().Unix())
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSync).Put([]byte(syncKey(uid, source)), ts)
	})
	if err != nil {
		return err
	}

	s.invalidatePrefix(bucketProjects, prefix)
	s.invalidatePrefix(bucketSync, prefix)
	s.logger.Info("projects synced", "uid", uid, "source", source, "count", len(docs))
	return nil
}

func (s *Store) LastSyncTimestamp(ctx context.Context, uid string, source domain.Source) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	var ts int64
	if !s.get(bucketSync, syncKey(uid, source), &ts) {
		return 0, false, nil
	}
	return ts, true, nil
}

// === Followers ===

// ToggleFollow adds or removes follower on the project in one transaction.
// Following is idempotent: a follower already present is not duplicated.
func (s *Store) ToggleFollow(ctx context.Context, ownerID, projectID string, follower domain.Follower, follow bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := (FollowerDoc{UID: follower.UID, Name: follower.Name}).Validate(); err != nil {
		return err
	}

	key := projectKey(ownerID, projectID)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProjects)
		v := b.Get([]byte(key))
		if v == nil {
			return domain.ErrNotFound
		}
		var doc ProjectDoc
		if err := json.Unmarshal(v, &doc); err != nil {
			return fmt.Errorf("project %s: %w", key, domain.ErrInvalidRecord)
		}

		var followers []FollowerDoc
		present := false
		for _, f := range doc.Followers {
			if f.UID == follower.UID {
				present = true
				if !follow {
					continue
				}
			}
			followers = append(followers, f)
		}
		if follow && !present {
			followers = append(followers, FollowerDoc{UID: follower.UID, Name: follower.Name})
		}
		doc.Followers = followers
		doc.FollowersCount = len(followers)

		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return err
	}

	s.invalidatePrefix(bucketProjects, key)
	return nil
}

var _ domain.Directory = (*Store)(nil)
