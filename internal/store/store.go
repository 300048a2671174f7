// Package store persists inbox job records and their annotated results in an
// embedded bbolt database. Records are JSON documents in a single "jobs"
// bucket keyed by job ID; every write is one transaction.
package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/MrWong99/callmark/internal/conversation"
)

// ErrNotFound is returned when no job exists under the requested ID.
var ErrNotFound = errors.New("store: job not found")

var bucketJobs = []byte("jobs")

// Status is the lifecycle state of a job.
type Status string

const (
	StatusNew      Status = "new"
	StatusPending  Status = "pending"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// Job is one conversation file submitted for analysis.
type Job struct {
	ID             string    `json:"id"`
	Source         string    `json:"source"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Status         Status    `json:"status"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Duration is the conversation length in seconds.
	Duration float64 `json:"duration,omitempty"`

	// Entries holds the annotated utterances once the job has finished.
	Entries []conversation.Entry `json:"entries,omitempty"`
}

// Store is a bbolt-backed job repository. It is safe for concurrent use.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketJobs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or replaces job.
func (s *Store) Put(job Job) error {
	if job.ID == "" {
		return errors.New("store: job id is empty")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("store: marshal job %q: %w", job.ID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).Put([]byte(job.ID), data)
	})
}

// Get returns the job stored under id or [ErrNotFound].
func (s *Store) Get(id string) (Job, error) {
	var job Job
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketJobs).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		// v is only valid inside the transaction; Unmarshal copies.
		return json.Unmarshal(v, &job)
	})
	if err != nil {
		return Job{}, err
	}
	return job, nil
}

// List returns the jobs with the given status ordered by creation time. An
// empty status lists every job.
func (s *Store) List(status Status) ([]Job, error) {
	var jobs []Job
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).ForEach(func(k, v []byte) error {
			var job Job
			if err := json.Unmarshal(v, &job); err != nil {
				return fmt.Errorf("store: decode job %q: %w", k, err)
			}
			if status == "" || job.Status == status {
				jobs = append(jobs, job)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(jobs, func(a, b Job) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return jobs, nil
}

// Delete removes the job stored under id. Deleting a missing job is not an
// error.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).Delete([]byte(id))
	})
}

// Ping verifies that the database answers read transactions.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketJobs) == nil {
			return errors.New("store: jobs bucket missing")
		}
		return nil
	})
}
