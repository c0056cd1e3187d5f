// ============================================================================
// Embedded Document Store - Single-File Job Table
// ============================================================================
//
// Package: internal/store/filestore
// File: filestore.go
// Purpose: A State Store backend that persists every Job row to one JSON
// document file, table "aws-batch-jobs", no external server required.
//
// Atomic Writes:
//   Every Save rewrites the whole table:
//   1. Write to a temp file beside the target path
//   2. os.Rename() over the real path (atomic on POSIX)
//   This keeps the file either fully-previous or fully-current, never a
//   half-written document, even if the process dies mid-write.
//
// Concurrency:
//   A single sync.Mutex serializes all reads and writes. This store is
//   meant for one engine instance; it does not coordinate across processes.
//
// ============================================================================

package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/mhconradt/aio-aws/internal/batchjob"
	"github.com/mhconradt/aio-aws/internal/store"
)

const tableName = "aws-batch-jobs"

// document is the on-disk shape of the whole table file.
type document struct {
	Table string                        `json:"table"`
	Rows  map[string]batchjob.DBData    `json:"rows"`
}

// Store is a filestore.Store, a Store backend that keeps every row in one
// JSON file on local disk.
type Store struct {
	path string
	mu   sync.Mutex
}

var _ store.Store = (*Store)(nil)

// New returns a Store persisting to path. The file is created on first Save
// if it does not already exist.
func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) load() (document, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return document{Table: tableName, Rows: make(map[string]batchjob.DBData)}, nil
		}
		return document{}, fmt.Errorf("filestore: read %s: %w", s.path, err)
	}
	if len(raw) == 0 {
		return document{Table: tableName, Rows: make(map[string]batchjob.DBData)}, nil
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return document{}, fmt.Errorf("filestore: corrupt table file %s: %w", s.path, err)
	}
	if doc.Rows == nil {
		doc.Rows = make(map[string]batchjob.DBData)
	}
	return doc, nil
}

func (s *Store) write(doc document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: marshal table: %w", err)
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0644); err != nil {
		return fmt.Errorf("filestore: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("filestore: rename temp file: %w", err)
	}
	return nil
}

// Save upserts job keyed by job_id.
func (s *Store) Save(_ context.Context, job *batchjob.Job) error {
	if job.JobID == "" {
		return store.ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.Table = tableName
	doc.Rows[job.JobID] = job.DBData()
	return s.write(doc)
}

// FindByJobID returns the row for jobID.
func (s *Store) FindByJobID(_ context.Context, jobID string) (*batchjob.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	row, ok := doc.Rows[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return batchjob.FromDBData(row), nil
}

// FindByJobName returns every row recorded under jobName.
func (s *Store) FindByJobName(_ context.Context, jobName string) ([]*batchjob.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []*batchjob.Job
	for _, row := range doc.Rows {
		if row.JobName == jobName {
			out = append(out, batchjob.FromDBData(row))
		}
	}
	return out, nil
}

// FindLatestByJobName returns the row for jobName with the greatest
// createdAt. Rows missing createdAt lose ties to rows that have it; among
// rows all missing createdAt, the last one encountered in map iteration
// order wins — callers needing a stable tie-break should ensure
// job_description is populated before relying on this.
func (s *Store) FindLatestByJobName(ctx context.Context, jobName string) (*batchjob.Job, error) {
	rows, err := s.FindByJobName(ctx, jobName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	var latest *batchjob.Job
	var latestCreated int64 = -1
	for _, row := range rows {
		created, ok := row.Created()
		if !ok {
			created = 0
		}
		if latest == nil || created >= latestCreated {
			latest = row
			latestCreated = created
		}
	}
	return latest, nil
}

// RemoveByJobID deletes the row for jobID, if present.
func (s *Store) RemoveByJobID(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Rows[jobID]; !ok {
		return nil
	}
	delete(doc.Rows, jobID)
	return s.write(doc)
}

// RemoveByJobName deletes every row recorded under jobName.
func (s *Store) RemoveByJobName(_ context.Context, jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	changed := false
	for id, row := range doc.Rows {
		if row.JobName == jobName {
			delete(doc.Rows, id)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.write(doc)
}

// FindByJobStatus returns every row whose status is one of statuses.
func (s *Store) FindByJobStatus(_ context.Context, statuses ...batchjob.Status) ([]*batchjob.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	want := make(map[batchjob.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []*batchjob.Job
	for _, row := range doc.Rows {
		if want[row.Status] {
			out = append(out, batchjob.FromDBData(row))
		}
	}
	return out, nil
}

// All returns every row in the table.
func (s *Store) All(_ context.Context) ([]*batchjob.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*batchjob.Job, 0, len(doc.Rows))
	for _, row := range doc.Rows {
		out = append(out, batchjob.FromDBData(row))
	}
	return out, nil
}
