// Package snapshot persists the last reconciled occupancy counts to a local
// BoltDB file so the service can serve a stale-but-labelled figure across
// restarts and event store outages.
package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/doorcount/backend/domain"
)

// Snapshot is one persisted per-business-date occupancy state.
type Snapshot struct {
	BusinessDate string    `json:"business_date"`
	Male         int       `json:"male"`
	Female       int       `json:"female"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Counts converts the snapshot back to a live count value.
func (s *Snapshot) Counts() domain.CurrentCount {
	if s == nil {
		return domain.CurrentCount{}
	}
	return domain.CurrentCount{Male: s.Male, Female: s.Female}
}

// Store wraps BoltDB, keyed by business date.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open initializes the BoltDB file and ensures the bucket exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	bucket := []byte("occupancy")
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, bucket: bucket}, nil
}

// Save upserts the snapshot for one business date.
func (s *Store) Save(businessDate string, counts domain.CurrentCount) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	snap := Snapshot{
		BusinessDate: businessDate,
		Male:         counts.Male,
		Female:       counts.Female,
		UpdatedAt:    time.Now(),
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(businessDate), payload)
	})
}

// Load returns the snapshot for a business date, or nil when none exists.
func (s *Store) Load(businessDate string) (*Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	var snap *Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(s.bucket).Get([]byte(businessDate))
		if raw == nil {
			return nil
		}
		var decoded Snapshot
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return err
		}
		snap = &decoded
		return nil
	})
	return snap, err
}

// Cleanup removes snapshots for business dates older than keep.
func (s *Store) Cleanup(olderThan string) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if string(k) < olderThan {
				if err := c.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Size returns the number of stored snapshots.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
