package domain

import "time"

// JobState is a training-job lifecycle state.
type JobState string

// Training-job states. Terminal states are immutable.
const (
	JobQueued    JobState = "QUEUED"
	JobRunning   JobState = "RUNNING"
	JobSucceeded JobState = "SUCCEEDED"
	JobFailed    JobState = "FAILED"
	JobCancelled JobState = "CANCELLED"
)

// Terminal returns true for states a job can never leave.
func (s JobState) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving to the given state is legal.
func (s JobState) CanTransition(to JobState) bool {
	switch s {
	case JobQueued:
		return to == JobRunning || to == JobCancelled
	case JobRunning:
		return to == JobSucceeded || to == JobFailed || to == JobCancelled
	}
	return false
}

// Pipeline stage names reported while a job is running.
const (
	StagePreprocess = "preprocessing"
	StageEmbed      = "embedding"
	StageCluster    = "clustering"
	StageTrain      = "training"
	StageEvaluate   = "evaluation"
	StagePackage    = "packaging"
)

// TrainingJob tracks one training run through its state machine.
// Owned by the job coordinator; references one dataset and, on
// success, one model bundle.
type TrainingJob struct {
	// ID is the unique job identifier.
	ID string

	// DatasetID references the dataset being trained on.
	DatasetID string

	// Params holds the per-stage configuration for this run.
	Params TrainingParams

	// State is the current lifecycle state.
	State JobState

	// Stage names the pipeline stage currently executing, empty unless
	// the job is running.
	Stage string

	// ErrorKind and ErrorReason describe the failure on FAILED jobs.
	// ErrorKind is machine-readable; ErrorReason is for humans.
	ErrorKind   string
	ErrorReason string

	// BundleVersion references the published bundle on SUCCEEDED jobs.
	BundleVersion string

	// CreatedAt, StartedAt and FinishedAt bound the job's lifetime.
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}
