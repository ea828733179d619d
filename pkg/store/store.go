package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketWorkers = []byte("workers")
	bucketForks   = []byte("forks")
)

// WorkerSnapshot is the last-known state of one worker slot.
type WorkerSnapshot struct {
	Slot         int       `json:"slot"`
	PID          int       `json:"pid"`
	Restarts     int       `json:"restarts"`
	LastExitCode int       `json:"last_exit_code"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ForkSnapshot is the last-known state of one fork slot.
type ForkSnapshot struct {
	Path      string    `json:"path"`
	PID       int       `json:"pid"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a BoltDB-backed snapshot of the master's supervision state,
// written on every worker or fork spawn and every worker exit so a
// diagnostic read through ListWorkers/ListForks can see the last state
// without racing the live supervisor.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the snapshot database under dataDir.
func Open(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "colony.db")
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketWorkers, bucketForks} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveWorker upserts a worker slot's snapshot.
func (s *Store) SaveWorker(snap WorkerSnapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketWorkers).Put(slotKey(snap.Slot), data)
	})
}

// ListWorkers returns every worker snapshot ordered by slot.
func (s *Store) ListWorkers() ([]WorkerSnapshot, error) {
	var out []WorkerSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketWorkers).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var snap WorkerSnapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				return fmt.Errorf("store: decode worker %s: %w", k, err)
			}
			out = append(out, snap)
		}
		return nil
	})
	return out, err
}

// SaveFork upserts a fork slot's snapshot.
func (s *Store) SaveFork(snap ForkSnapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketForks).Put([]byte(snap.Path), data)
	})
}

// ListForks returns every fork snapshot.
func (s *Store) ListForks() ([]ForkSnapshot, error) {
	var out []ForkSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketForks).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var snap ForkSnapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				return fmt.Errorf("store: decode fork %s: %w", k, err)
			}
			out = append(out, snap)
		}
		return nil
	})
	return out, err
}

func slotKey(slot int) []byte {
	return []byte(fmt.Sprintf("%08d", slot))
}
