package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/kskor/folio/internal/domain"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/bcrypt"
)

var (
	bucketIdentities = []byte("identities")
	bucketIndex      = []byte("index")
	bucketSession    = []byte("session")
)

var sessionKey = []byte("current")

// identityRecord is the stored shape of one local account.
type identityRecord struct {
	ID           string            `json:"id"`
	Email        string            `json:"email,omitempty"`
	PasswordHash []byte            `json:"passwordHash,omitempty"`
	Name         string            `json:"name,omitempty"`
	AvatarURL    string            `json:"avatarUrl,omitempty"`
	Anonymous    bool              `json:"anonymous"`
	Providers    []domain.Provider `json:"providers,omitempty"`
	CreatedOn    int64             `json:"createdOn"`
}

func (r identityRecord) account() domain.Account {
	return domain.Account{
		ID:            r.ID,
		Name:          r.Name,
		Email:         r.Email,
		AvatarURL:     r.AvatarURL,
		EmailVerified: r.Email != "" && !r.Anonymous,
		Anonymous:     r.Anonymous,
	}
}

func (r identityRecord) hasProvider(providerID string) bool {
	for _, p := range r.Providers {
		if p.ProviderID == providerID {
			return true
		}
	}
	return false
}

// Vault persists local identities in a BoltDB file separate from the
// document store.
type Vault struct {
	db     *bolt.DB
	logger *slog.Logger
}

// NewVault opens (or creates) the identity vault under dataDir.
func NewVault(dataDir string, logger *slog.Logger) (*Vault, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "identity.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open identity vault: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketIdentities, bucketIndex, bucketSession} {
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

	return &Vault{db: db, logger: logger}, nil
}

func (v *Vault) Close() error {
	if v.db != nil {
		return v.db.Close()
	}
	return nil
}

func emailIndexKey(email string) []byte { return []byte("email:" + email) }
func providerIndexKey(providerID, uid string) []byte {
	return []byte(providerID + ":" + uid)
}

func (v *Vault) getRecord(tx *bolt.Tx, id string) (identityRecord, bool) {
	data := tx.Bucket(bucketIdentities).Get([]byte(id))
	if data == nil {
		return identityRecord{}, false
	}
	var rec identityRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return identityRecord{}, false
	}
	return rec, true
}

func (v *Vault) putRecord(tx *bolt.Tx, rec identityRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketIdentities).Put([]byte(rec.ID), data)
}

// Lookup returns the identity with the given id.
func (v *Vault) Lookup(id string) (identityRecord, bool) {
	var (
		rec identityRecord
		ok  bool
	)
	v.db.View(func(tx *bolt.Tx) error {
		rec, ok = v.getRecord(tx, id)
		return nil
	})
	return rec, ok
}

// LookupEmail returns the identity registered under email.
func (v *Vault) LookupEmail(email string) (identityRecord, bool) {
	var (
		rec identityRecord
		ok  bool
	)
	v.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketIndex).Get(emailIndexKey(email))
		if id == nil {
			return nil
		}
		rec, ok = v.getRecord(tx, string(id))
		return nil
	})
	return rec, ok
}

// LookupProvider returns the identity linked to the provider uid.
func (v *Vault) LookupProvider(providerID, uid string) (identityRecord, bool) {
	var (
		rec identityRecord
		ok  bool
	)
	v.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketIndex).Get(providerIndexKey(providerID, uid))
		if id == nil {
			return nil
		}
		rec, ok = v.getRecord(tx, string(id))
		return nil
	})
	return rec, ok
}

// CreateAnonymous mints a fresh guest identity.
func (v *Vault) CreateAnonymous() (identityRecord, error) {
	rec := identityRecord{
		ID:        uuid.NewString(),
		Anonymous: true,
		CreatedOn: time.Now().Unix(),
	}
	err := v.db.Update(func(tx *bolt.Tx) error {
		return v.putRecord(tx, rec)
	})
	if err != nil {
		return identityRecord{}, err
	}
	v.logger.Debug("anonymous identity created", "id", rec.ID)
	return rec, nil
}

// CreateEmail registers a new email identity. The email must not already be
// taken; a collision with an identity owned by another provider surfaces as
// *domain.AccountExistsError.
func (v *Vault) CreateEmail(email, password string) (identityRecord, error) {
	if existing, ok := v.LookupEmail(email); ok {
		provider := "password"
		if len(existing.PasswordHash) == 0 && len(existing.Providers) > 0 {
			provider = existing.Providers[0].ProviderID
		}
		return identityRecord{}, &domain.AccountExistsError{Email: email, Provider: provider}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return identityRecord{}, err
	}

	rec := identityRecord{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedOn:    time.Now().Unix(),
	}
	err = v.db.Update(func(tx *bolt.Tx) error {
		if err := v.putRecord(tx, rec); err != nil {
			return err
		}
		return tx.Bucket(bucketIndex).Put(emailIndexKey(email), []byte(rec.ID))
	})
	if err != nil {
		return identityRecord{}, err
	}
	v.logger.Info("email identity created", "id", rec.ID)
	return rec, nil
}

// VerifyEmail checks the password for an existing email identity.
func (v *Vault) VerifyEmail(email, password string) (identityRecord, error) {
	rec, ok := v.LookupEmail(email)
	if !ok {
		return identityRecord{}, domain.ErrAuthFailed
	}
	if len(rec.PasswordHash) == 0 {
		// Identity exists but is owned by a provider sign-in
		provider := "password"
		if len(rec.Providers) > 0 {
			provider = rec.Providers[0].ProviderID
		}
		return identityRecord{}, &domain.AccountExistsError{Email: email, Provider: provider}
	}
	if bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(password)) != nil {
		return identityRecord{}, domain.ErrAuthFailed
	}
	return rec, nil
}

// AttachProvider links a provider identity to the account, creating the
// provider index entry. Profile fields are filled from the provider when
// the account has none.
func (v *Vault) AttachProvider(id string, p domain.Provider) (identityRecord, error) {
	var rec identityRecord
	err := v.db.Update(func(tx *bolt.Tx) error {
		var ok bool
		rec, ok = v.getRecord(tx, id)
		if !ok {
			return domain.ErrNotFound
		}
		if !rec.hasProvider(p.ProviderID) {
			rec.Providers = append(rec.Providers, p)
		}
		rec.Anonymous = false
		if rec.Name == "" {
			rec.Name = p.Name
		}
		if rec.Email == "" {
			rec.Email = p.Email
		}
		if rec.AvatarURL == "" {
			rec.AvatarURL = p.PhotoURL
		}
		if err := v.putRecord(tx, rec); err != nil {
			return err
		}
		idx := tx.Bucket(bucketIndex)
		if rec.Email != "" {
			if err := idx.Put(emailIndexKey(rec.Email), []byte(rec.ID)); err != nil {
				return err
			}
		}
		return idx.Put(providerIndexKey(p.ProviderID, p.UID), []byte(rec.ID))
	})
	if err != nil {
		return identityRecord{}, err
	}
	v.logger.Info("provider linked", "id", id, "provider", p.ProviderID)
	return rec, nil
}

// SaveSession records the signed-in account id.
func (v *Vault) SaveSession(id string) error {
	return v.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSession).Put(sessionKey, []byte(id))
	})
}

// LoadSession returns the previously signed-in identity, if any.
func (v *Vault) LoadSession() (identityRecord, bool) {
	var id string
	v.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(bucketSession).Get(sessionKey); data != nil {
			id = string(data)
		}
		return nil
	})
	if id == "" {
		return identityRecord{}, false
	}
	return v.Lookup(id)
}

// ClearSession forgets the signed-in account without touching identities.
func (v *Vault) ClearSession() error {
	return v.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSession).Delete(sessionKey)
	})
}

// DeleteIdentity removes the account, its index entries and the session.
func (v *Vault) DeleteIdentity(id string) error {
	return v.db.Update(func(tx *bolt.Tx) error {
		rec, ok := v.getRecord(tx, id)
		if !ok {
			return domain.ErrNotFound
		}
		idx := tx.Bucket(bucketIndex)
		if rec.Email != "" {
			if err := idx.Delete(emailIndexKey(rec.Email)); err != nil {
				return err
			}
		}
		for _, p := range rec.Providers {
			if err := idx.Delete(providerIndexKey(p.ProviderID, p.UID)); err != nil {
				return err
			}
		}
		if session := tx.Bucket(bucketSession).Get(sessionKey); string(session) == id {
			if err := tx.Bucket(bucketSession).Delete(sessionKey); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketIdentities).Delete([]byte(id))
	})
}
