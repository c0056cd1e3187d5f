// ============================================================================
// Remote API Adapter - Throttle-Aware AWS Batch Client Wrapper
// ============================================================================
//
// Package: internal/batchapi
// File: adapter.go
// Purpose: Every submit/describe/terminate call against AWS Batch passes
// through here: acquire a Rate Gate slot, call the remote client, and on a
// throttling response retry with jittered backoff while still holding the
// slot, up to a configured retry ceiling.
//
// Grounded on the submit/describe/terminate retry loops of the original
// engine's batch wrapper functions, each of which is: acquire a semaphore,
// loop up to config.retries attempts, check for a throttling error code,
// sleep with jitter, raise once retries are exhausted.
//
// ============================================================================

package batchapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mhconradt/aio-aws/internal/batchjob"
	"github.com/mhconradt/aio-aws/internal/rategate"
)

// ErrRetriesExceeded is returned when a call keeps being throttled past the
// configured retry ceiling.
var ErrRetriesExceeded = errors.New("batchapi: retries exceeded")

// ErrThrottled marks an error as a throttling response from the remote
// client, for wrapping with fmt.Errorf("%w: ...", ErrThrottled, ...).
var ErrThrottled = errors.New("batchapi: throttled")

// RemoteClient is the narrow surface the engine needs from AWS Batch. An
// awsbatch.Client built on aws-sdk-go-v2 is the concrete implementation;
// tests substitute a fake.
type RemoteClient interface {
	SubmitJob(ctx context.Context, params batchjob.SubmitParams) (batchjob.Submission, error)
	DescribeJobs(ctx context.Context, jobIDs []string) ([]batchjob.Description, error)
	TerminateJob(ctx context.Context, jobID, reason string) error
}

// ThrottleClassifier reports whether err represents a throttling response
// from the remote client (AWS Batch's TooManyRequestsException, or an
// equivalent from a fake client in tests).
type ThrottleClassifier func(err error) bool

// Adapter wraps a RemoteClient with Rate Gate admission control and
// jittered throttle retry.
type Adapter struct {
	client      RemoteClient
	gate        *rategate.Gate
	retries     int
	isThrottled ThrottleClassifier
	log         *slog.Logger
}

// New returns an Adapter. retries is the total number of attempts per call,
// the first one included, so a call that keeps being throttled is retried
// retries-1 times before ErrRetriesExceeded is returned.
func New(client RemoteClient, gate *rategate.Gate, retries int, isThrottled ThrottleClassifier) *Adapter {
	if retries <= 0 {
		retries = 1
	}
	return &Adapter{
		client:      client,
		gate:        gate,
		retries:     retries,
		isThrottled: isThrottled,
		log:         slog.Default(),
	}
}

// SubmitJob submits a job, retrying on throttling responses.
func (a *Adapter) SubmitJob(ctx context.Context, params batchjob.SubmitParams) (batchjob.Submission, error) {
	var result batchjob.Submission
	err := a.withGate(ctx, func() error {
		var callErr error
		result, callErr = a.client.SubmitJob(ctx, params)
		return callErr
	}, "submit_job", params.JobName)
	return result, err
}

// DescribeJobs describes jobIDs, retrying on throttling responses.
func (a *Adapter) DescribeJobs(ctx context.Context, jobIDs []string) ([]batchjob.Description, error) {
	var result []batchjob.Description
	err := a.withGate(ctx, func() error {
		var callErr error
		result, callErr = a.client.DescribeJobs(ctx, jobIDs)
		return callErr
	}, "describe_jobs", fmt.Sprintf("%d jobs", len(jobIDs)))
	return result, err
}

// TerminateJob terminates jobID, retrying on throttling responses.
func (a *Adapter) TerminateJob(ctx context.Context, jobID, reason string) error {
	return a.withGate(ctx, func() error {
		return a.client.TerminateJob(ctx, jobID, reason)
	}, "terminate_job", jobID)
}

// withGate acquires a Rate Gate slot for the duration of the call, including
// every throttle-retry sleep, and releases it on return.
func (a *Adapter) withGate(ctx context.Context, call func() error, op, subject string) error {
	if err := a.gate.Acquire(ctx); err != nil {
		return fmt.Errorf("batchapi: %s %s: acquire gate: %w", op, subject, err)
	}
	defer a.gate.Release()

	for attempt := 0; attempt < a.retries; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		if a.isThrottled == nil || !a.isThrottled(err) {
			return fmt.Errorf("batchapi: %s %s: %w", op, subject, err)
		}
		a.log.Warn("remote call throttled", "op", op, "subject", subject, "attempt", attempt)
		if pauseErr := a.gate.Throttle(ctx); pauseErr != nil {
			return fmt.Errorf("batchapi: %s %s: %w", op, subject, pauseErr)
		}
	}
	return fmt.Errorf("batchapi: %s %s: %w", op, subject, ErrRetriesExceeded)
}
