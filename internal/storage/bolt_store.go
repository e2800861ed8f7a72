// Package storage keeps a history of finished runs in a bbolt file.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.etcd.io/bbolt"

	"quizload/internal/config"
	"quizload/internal/stats"
)

const BucketRuns = "runs"

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	ErrNotFound = errors.New("run not found")
)

// Record is one stored run. Results are kept without raw latency lists.
type Record struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Config     config.Config     `json:"config"`
	StopReason string            `json:"stop_reason,omitempty"`
	Results    []stats.RunResult `json:"results"`
}

// NewRecord stamps a run with a time-ordered id.
func NewRecord(cfg config.Config, results []stats.RunResult) (Record, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Record{}, fmt.Errorf("generate run id: %w", err)
	}
	rec := Record{
		ID:        id.String(),
		Timestamp: time.Now(),
		Config:    cfg,
	}
	for _, r := range results {
		rec.Results = append(rec.Results, r.WithoutLatencies())
		if r.StopReason != "" {
			rec.StopReason = r.StopReason
		}
	}
	return rec, nil
}

type Store struct {
	db       *bbolt.DB
	filePath string
}

// DefaultPath is ~/.quizload/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".quizload", "history.db"), nil
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:       db,
		filePath: path,
	}, nil
}

func (s *Store) Path() string {
	return s.filePath
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(rec Record) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		return b.Put([]byte(rec.ID), data)
	})
}

// List returns up to limit records, newest first. limit <= 0 means all.
// Records that fail to decode are skipped.
func (s *Store) List(limit int) ([]Record, error) {
	var recs []Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(BucketRuns)).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(recs) >= limit {
				break
			}
			var rec Record
			if err := json.Unmarshal(v, &rec); err == nil {
				recs = append(recs, rec)
			}
		}
		return nil
	})

	return recs, err
}

func (s *Store) Get(id string) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(BucketRuns)).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return b.Delete([]byte(id))
	})
}
