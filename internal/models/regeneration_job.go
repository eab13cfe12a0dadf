package models

import "time"

// RegenerationJobStatus tracks the lifecycle of an asynchronous regeneration.
type RegenerationJobStatus string

const (
	RegenerationJobQueued    RegenerationJobStatus = "QUEUED"
	RegenerationJobRunning   RegenerationJobStatus = "RUNNING"
	RegenerationJobSucceeded RegenerationJobStatus = "SUCCEEDED"
	RegenerationJobFailed    RegenerationJobStatus = "FAILED"
)

// RegenerationJob is the status record kept for an asynchronous regeneration request.
type RegenerationJob struct {
	ID         string                `json:"id"`
	Status     RegenerationJobStatus `json:"status"`
	ClassIDs   []string              `json:"class_ids"`
	Attempts   int                   `json:"attempts"`
	Error      string                `json:"error,omitempty"`
	Result     *RegenerationResult   `json:"result,omitempty"`
	EnqueuedAt time.Time             `json:"enqueued_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// Finished reports whether the job reached a terminal status.
func (s RegenerationJobStatus) Finished() bool {
	return s == RegenerationJobSucceeded || s == RegenerationJobFailed
}
