// Package redisstore is a State Store backend over Redis: job rows keyed by
// job_id under a "jobs:" prefix, with a "logs:" prefixed Set per job_name
// mapping to every job_id submitted under that name, for find-by-name and
// find-latest-by-name lookups.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mhconradt/aio-aws/internal/batchjob"
	"github.com/mhconradt/aio-aws/internal/store"
)

const (
	defaultPrefix     = "queue:"
	defaultJobsPrefix = "jobs:"
	defaultLogsPrefix = "logs:"
)

// Store is a Redis-backed State Store.
type Store struct {
	client     redis.UniversalClient
	jobsPrefix string
	logsPrefix string
}

var _ store.Store = (*Store)(nil)

// Options configures key prefixing for a Store.
type Options struct {
	// Prefix namespaces every key this store touches. Default: "queue:"
	Prefix string
}

// DefaultOptions returns the default Options.
func DefaultOptions() Options {
	return Options{Prefix: defaultPrefix}
}

// New returns a Store backed by client.
func New(client redis.UniversalClient, opts ...Options) *Store {
	options := DefaultOptions()
	if len(opts) > 0 {
		options = opts[0]
	}
	if options.Prefix != "" && options.Prefix[len(options.Prefix)-1] != ':' {
		options.Prefix += ":"
	}
	return &Store{
		client:     client,
		jobsPrefix: options.Prefix + defaultJobsPrefix,
		logsPrefix: options.Prefix + defaultLogsPrefix,
	}
}

func (s *Store) jobKey(jobID string) string {
	return s.jobsPrefix + jobID
}

func (s *Store) nameKey(jobName string) string {
	return s.logsPrefix + jobName
}

// Save upserts job by job_id and records job_id under job_name's index set.
func (s *Store) Save(ctx context.Context, job *batchjob.Job) error {
	if job.JobID == "" {
		return store.ErrMissingID
	}
	data, err := json.Marshal(job.DBData())
	if err != nil {
		return fmt.Errorf("redisstore: marshal job: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.jobKey(job.JobID), data, 0)
	pipe.SAdd(ctx, s.nameKey(job.JobName), job.JobID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redisstore: save %s: %w", job.JobID, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, jobID string) (*batchjob.Job, error) {
	raw, err := s.client.Get(ctx, s.jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("redisstore: get %s: %w", jobID, err)
	}
	var row batchjob.DBData
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("redisstore: unmarshal %s: %w", jobID, err)
	}
	return batchjob.FromDBData(row), nil
}

// FindByJobID returns the row for jobID.
func (s *Store) FindByJobID(ctx context.Context, jobID string) (*batchjob.Job, error) {
	return s.get(ctx, jobID)
}

// FindByJobName returns every row recorded under jobName's index set.
func (s *Store) FindByJobName(ctx context.Context, jobName string) ([]*batchjob.Job, error) {
	ids, err := s.client.SMembers(ctx, s.nameKey(jobName)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: smembers %s: %w", jobName, err)
	}
	var out []*batchjob.Job
	for _, id := range ids {
		job, err := s.get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

// FindLatestByJobName returns the row under jobName with the greatest
// createdAt, breaking ties on the order returned by the underlying Set scan.
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

// RemoveByJobID deletes job row jobID, and drops it from whatever name
// index it was filed under if the row can still be read first.
func (s *Store) RemoveByJobID(ctx context.Context, jobID string) error {
	job, err := s.get(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.jobKey(jobID))
	pipe.SRem(ctx, s.nameKey(job.JobName), jobID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redisstore: remove %s: %w", jobID, err)
	}
	return nil
}

// RemoveByJobName deletes every row recorded under jobName and the index
// set itself.
func (s *Store) RemoveByJobName(ctx context.Context, jobName string) error {
	ids, err := s.client.SMembers(ctx, s.nameKey(jobName)).Result()
	if err != nil {
		return fmt.Errorf("redisstore: smembers %s: %w", jobName, err)
	}
	if len(ids) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.jobKey(id))
	}
	pipe.Del(ctx, s.nameKey(jobName))
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redisstore: remove by name %s: %w", jobName, err)
	}
	return nil
}

// FindByJobStatus scans every job row and returns those matching statuses.
// Redis holds no per-status index in this store (status churns far more
// often than job_name), so this is a full scan over jobsPrefix keys.
func (s *Store) FindByJobStatus(ctx context.Context, statuses ...batchjob.Status) ([]*batchjob.Job, error) {
	want := make(map[batchjob.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*batchjob.Job
	for _, job := range all {
		if want[job.Status] {
			out = append(out, job)
		}
	}
	return out, nil
}

// All returns every row under the jobs prefix.
func (s *Store) All(ctx context.Context) ([]*batchjob.Job, error) {
	var out []*batchjob.Job
	iter := s.client.Scan(ctx, 0, s.jobsPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("redisstore: scan get %s: %w", iter.Val(), err)
		}
		var row batchjob.DBData
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("redisstore: unmarshal %s: %w", iter.Val(), err)
		}
		out = append(out, batchjob.FromDBData(row))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redisstore: scan: %w", err)
	}
	return out, nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
