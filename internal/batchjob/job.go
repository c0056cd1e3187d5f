// ============================================================================
// AIO AWS Batch Job - Job Record Domain Model
// ============================================================================
//
// Package: internal/batchjob
// File: job.go
// Purpose: The in-memory representation of one logical AWS Batch job: its
// submission parameters, its accumulated remote identifiers/attempts, and
// its last-known status.
//
// Design Philosophy:
//   A Job carries two pure projections of its state:
//   1. SubmitParams() - what gets sent to batch.SubmitJob
//   2. DBData()       - what gets persisted to the State Store
//   Both are derived from the same underlying fields; neither is the
//   "real" representation, they are just views for different consumers.
//
// Lifecycle:
//   A Job is created by the caller (job_name/job_queue/job_definition set),
//   handed to a Manager, and mutated only by the Manager/Waiter that owns
//   it. reset() rewinds a Job to "never submitted" while preserving its
//   attempt history for audit.
//
// ============================================================================

package batchjob

import "time"

// Status is one of the AWS Batch job lifecycle states.
type Status string

const (
	StatusSubmitted Status = "SUBMITTED"
	StatusPending   Status = "PENDING"
	StatusRunnable  Status = "RUNNABLE"
	StatusStarting  Status = "STARTING"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Statuses enumerates every valid non-empty status, in the order AWS Batch
// reports them moving toward a terminal state.
var Statuses = []Status{
	StatusSubmitted, StatusPending, StatusRunnable,
	StatusStarting, StatusRunning, StatusSucceeded, StatusFailed,
}

// RunningStatuses are the non-terminal states a submitted job passes through.
var RunningStatuses = []Status{
	StatusSubmitted, StatusPending, StatusRunnable, StatusStarting, StatusRunning,
}

// CompleteStatuses are the terminal states.
var CompleteStatuses = []Status{StatusSucceeded, StatusFailed}

// IsTerminal reports whether s is SUCCEEDED or FAILED.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// maxJobNameLen is the contractual truncation length for job_name: AWS Batch
// itself caps jobName at 128 characters, and callers rely on that cap to
// build stable, collision-free names.
const maxJobNameLen = 128

// defaultMaxTries is the engine-level retry ceiling applied when a Job is
// constructed with MaxTries left at zero.
const defaultMaxTries = 4

// Dependency describes one entry of AWS Batch's dependsOn list.
type Dependency struct {
	JobID string `json:"jobId"`
	Type  string `json:"type,omitempty"`
}

// Description is the verbatim shape of one entry from a describe_jobs
// response, trimmed to the fields the engine reads.
type Description struct {
	JobID         string                 `json:"jobId"`
	JobName       string                 `json:"jobName"`
	JobQueue      string                 `json:"jobQueue"`
	JobDefinition string                 `json:"jobDefinition"`
	Status        Status                 `json:"status"`
	StatusReason  string                 `json:"statusReason,omitempty"`
	CreatedAt     int64                  `json:"createdAt,omitempty"`
	StartedAt     int64                  `json:"startedAt,omitempty"`
	StoppedAt     int64                  `json:"stoppedAt,omitempty"`
	DependsOn     []Dependency           `json:"dependsOn,omitempty"`
	Attempts      []map[string]any       `json:"attempts,omitempty"`
	Parameters    map[string]string      `json:"parameters,omitempty"`
	Container     map[string]any         `json:"container,omitempty"`
	Timeout       map[string]any         `json:"timeout,omitempty"`
}

// Submission is the verbatim shape of a submit_job response.
type Submission struct {
	JobName string `json:"jobName"`
	JobID   string `json:"jobId"`
}

// Job is one logical unit of AWS Batch work, from first submission through
// however many spot-reclaim retries it takes to reach a terminal status.
type Job struct {
	JobName            string
	JobQueue           string
	JobDefinition      string
	Command            []string
	ContainerOverrides map[string]any
	DependsOn          []Dependency

	JobID      string
	Status     Status
	JobTries   []string
	NumTries   int
	MaxTries   int

	JobSubmission  *Submission
	JobDescription *Description
}

// New constructs a Job Record, applying the job_name truncation contract
// and the default max_tries. It takes no command; set Command afterwards and
// call Normalize to fold it into ContainerOverrides["command"].
func New(jobName, jobQueue, jobDefinition string) *Job {
	j := &Job{
		JobName:       truncateName(jobName),
		JobQueue:      jobQueue,
		JobDefinition: jobDefinition,
		MaxTries:      defaultMaxTries,
	}
	return j
}

func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= maxJobNameLen {
		return name
	}
	return string(runes[:maxJobNameLen])
}

// normalize applies invariants that must hold regardless of how a Job was
// constructed (via New, via DB-row hydration, or via a literal struct in a
// test). Callers that build a Job by hand should call this once before
// handing it to a Manager.
func (j *Job) normalize() {
	j.JobName = truncateName(j.JobName)
	if j.MaxTries == 0 {
		j.MaxTries = defaultMaxTries
	}
	if j.ContainerOverrides == nil {
		j.ContainerOverrides = map[string]any{}
	}
	if len(j.Command) > 0 {
		j.ContainerOverrides["command"] = j.Command
	}
}

// Normalize applies construction-time invariants in place and returns the
// receiver, so it can be chained after hydrating a Job from a stored row.
func (j *Job) Normalize() *Job {
	j.normalize()
	return j
}

// SubmitParams is the AWS Batch SubmitJob parameter projection.
type SubmitParams struct {
	JobName            string
	JobQueue           string
	JobDefinition      string
	ContainerOverrides map[string]any
	DependsOn          []Dependency
}

// SubmitParams returns the wire parameters for a submit_job call.
func (j *Job) SubmitParams() SubmitParams {
	return SubmitParams{
		JobName:            j.JobName,
		JobQueue:           j.JobQueue,
		JobDefinition:      j.JobDefinition,
		ContainerOverrides: j.ContainerOverrides,
		DependsOn:          j.DependsOn,
	}
}

// DBData is the State Store persistence projection of a Job.
type DBData struct {
	JobID              string          `json:"job_id"`
	JobName            string          `json:"job_name"`
	JobQueue           string          `json:"job_queue"`
	JobDefinition      string          `json:"job_definition"`
	JobSubmission      *Submission     `json:"job_submission"`
	JobDescription     *Description    `json:"job_description"`
	ContainerOverrides map[string]any  `json:"container_overrides"`
	Command            []string        `json:"command"`
	DependsOn          []Dependency    `json:"depends_on"`
	Status             Status          `json:"status"`
	JobTries           []string        `json:"job_tries"`
	NumTries           int             `json:"num_tries"`
	MaxTries           int             `json:"max_tries"`
}

// DBData returns the State Store persistence projection of the job.
func (j *Job) DBData() DBData {
	return DBData{
		JobID:              j.JobID,
		JobName:            j.JobName,
		JobQueue:           j.JobQueue,
		JobDefinition:      j.JobDefinition,
		JobSubmission:      j.JobSubmission,
		JobDescription:     j.JobDescription,
		ContainerOverrides: j.ContainerOverrides,
		Command:            j.Command,
		DependsOn:          j.DependsOn,
		Status:             j.Status,
		JobTries:           j.JobTries,
		NumTries:           j.NumTries,
		MaxTries:           j.MaxTries,
	}
}

// FromDBData hydrates a Job from a stored row, applying construction
// invariants (job_name truncation, default max_tries, command folding).
func FromDBData(d DBData) *Job {
	j := &Job{
		JobID:              d.JobID,
		JobName:            d.JobName,
		JobQueue:           d.JobQueue,
		JobDefinition:      d.JobDefinition,
		JobSubmission:      d.JobSubmission,
		JobDescription:     d.JobDescription,
		ContainerOverrides: d.ContainerOverrides,
		Command:            d.Command,
		DependsOn:          d.DependsOn,
		Status:             d.Status,
		JobTries:           d.JobTries,
		NumTries:           d.NumTries,
		MaxTries:           d.MaxTries,
	}
	j.normalize()
	return j
}

// Reset clears job_id, job_submission, job_description, and status so the
// record can be re-submitted, while preserving job_name, job_tries,
// num_tries, and max_tries for audit.
func (j *Job) Reset() {
	j.JobID = ""
	j.JobSubmission = nil
	j.JobDescription = nil
	j.Status = ""
}

// RecordSubmission applies a successful submit_job response: sets job_id,
// appends it to job_tries, increments num_tries, and stores the response.
func (j *Job) RecordSubmission(sub Submission) {
	j.JobID = sub.JobID
	j.JobSubmission = &sub
	j.JobTries = append(j.JobTries, sub.JobID)
	j.NumTries++
}

// RecordDescription copies a describe_jobs entry into job_description and
// status.
func (j *Job) RecordDescription(desc Description) {
	j.JobDescription = &desc
	j.Status = desc.Status
}

// Created returns job_description.createdAt, if the description is present
// and the field is non-zero.
func (j *Job) Created() (int64, bool) {
	if j.JobDescription == nil || j.JobDescription.CreatedAt == 0 {
		return 0, false
	}
	return j.JobDescription.CreatedAt, true
}

// Started returns job_description.startedAt, if present and non-zero.
func (j *Job) Started() (int64, bool) {
	if j.JobDescription == nil || j.JobDescription.StartedAt == 0 {
		return 0, false
	}
	return j.JobDescription.StartedAt, true
}

// Stopped returns job_description.stoppedAt, if present and non-zero.
func (j *Job) Stopped() (int64, bool) {
	if j.JobDescription == nil || j.JobDescription.StoppedAt == 0 {
		return 0, false
	}
	return j.JobDescription.StoppedAt, true
}

// Elapsed returns stopped-created, only defined when both operands exist.
func (j *Job) Elapsed() (time.Duration, bool) {
	created, ok := j.Created()
	if !ok {
		return 0, false
	}
	stopped, ok := j.Stopped()
	if !ok {
		return 0, false
	}
	return millis(stopped - created), true
}

// Runtime returns stopped-started, only defined when both operands exist.
func (j *Job) Runtime() (time.Duration, bool) {
	started, ok := j.Started()
	if !ok {
		return 0, false
	}
	stopped, ok := j.Stopped()
	if !ok {
		return 0, false
	}
	return millis(stopped - started), true
}

// Spinup returns started-created, only defined when both operands exist.
func (j *Job) Spinup() (time.Duration, bool) {
	created, ok := j.Created()
	if !ok {
		return 0, false
	}
	started, ok := j.Started()
	if !ok {
		return 0, false
	}
	return millis(started - created), true
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
