// Package history records run summaries in a bbolt file so status survives a
// daemon restart.
package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/large-farva/groundstation/internal/trsp"
)

var bucketRuns = []byte("runs")

// ErrEmpty is returned by Last when no run has been recorded.
var ErrEmpty = errors.New("history: no runs recorded")

// Store is an append-only, size-bounded log of run summaries.
type Store struct {
	db      *bolt.DB
	maxRuns int
}

// Open opens or creates the history file at path. At most maxRuns entries
// are kept; older ones are pruned on Append.
func Open(path string, maxRuns int) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history: %w", err)
	}
	if maxRuns <= 0 {
		maxRuns = 1
	}
	return &Store{db: db, maxRuns: maxRuns}, nil
}

// Close releases the file lock.
func (s *Store) Close() error { return s.db.Close() }

// Append stores sum as the newest entry.
func (s *Store) Append(sum trsp.Summary) error {
	v, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(seqKey(seq), v); err != nil {
			return err
		}
		return prune(b, s.maxRuns)
	})
}

func prune(b *bolt.Bucket, keep int) error {
	c := b.Cursor()
	n := 0
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	excess := n - keep
	if excess <= 0 {
		return nil
	}
	stale := make([][]byte, 0, excess)
	for k, _ := c.First(); k != nil && len(stale) < excess; k, _ = c.Next() {
		stale = append(stale, append([]byte(nil), k...))
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// List returns up to limit summaries, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]trsp.Summary, error) {
	var out []trsp.Summary
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var sum trsp.Summary
			if err := json.Unmarshal(v, &sum); err != nil {
				return fmt.Errorf("history entry %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, sum)
		}
		return nil
	})
	return out, err
}

// Last returns the most recent summary.
func (s *Store) Last() (trsp.Summary, error) {
	runs, err := s.List(1)
	if err != nil {
		return trsp.Summary{}, err
	}
	if len(runs) == 0 {
		return trsp.Summary{}, ErrEmpty
	}
	return runs[0], nil
}

// LastSuccess returns the most recent summary without a run-level error.
func (s *Store) LastSuccess() (trsp.Summary, error) {
	runs, err := s.List(0)
	if err != nil {
		return trsp.Summary{}, err
	}
	for _, r := range runs {
		if r.OK() {
			return r, nil
		}
	}
	return trsp.Summary{}, ErrEmpty
}

func seqKey(n uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, n)
	return k
}
