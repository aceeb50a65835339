package domain

import "time"

// Status is the lifecycle state of a job. Transitions are strictly forward:
// queued -> running -> completed|failed. Terminal states are never left.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions may occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal forward step.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Params are the caller-supplied job inputs, clamped at intake.
type Params struct {
	MaxComments int    `json:"maxComments"`
	Lang        string `json:"lang"`
}

// Progress tracks counters updated by the worker at each milestone.
// Invariant: Analyzed <= Fetched <= Total once Total is known.
type Progress struct {
	Fetched  int `json:"fetched"`
	Analyzed int `json:"analyzed"`
	Total    int `json:"total"`
}

// JobError describes why a job failed.
type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Job is one asynchronous request to fetch and analyze comments for one video.
// Exactly one of Result and Error is set once the job is terminal.
type Job struct {
	ID        string    `json:"jobId"`
	VideoID   string    `json:"videoId"`
	Status    Status    `json:"status"`
	Params    Params    `json:"params"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ExpiresAt time.Time `json:"-"`
	Result    *Result   `json:"result,omitempty"`
	Error     *JobError `json:"error,omitempty"`
}

// NewJob creates a queued job with the retention deadline applied.
func NewJob(id, videoID string, params Params, retention time.Duration) *Job {
	now := time.Now().UTC()

	return &Job{
		ID:        id,
		VideoID:   videoID,
		Status:    StatusQueued,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(retention),
	}
}

// Expired reports whether the job is past its retention deadline.
func (j *Job) Expired(now time.Time) bool {
	return !j.ExpiresAt.IsZero() && now.After(j.ExpiresAt)
}
