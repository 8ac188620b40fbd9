// Package jobs owns transcription jobs: identity, lifecycle and the worker
// pool that runs them.
package jobs

import (
	"errors"
	"time"
)

// Status is a job's lifecycle stage.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Mode selects the transcription backend.
type Mode string

const (
	ModeLocal Mode = "local"
	ModeAPI   Mode = "api"
)

// ParseMode validates a mode name. The empty string selects ModeLocal.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeLocal, nil
	case ModeLocal, ModeAPI:
		return Mode(s), nil
	default:
		return "", ErrInvalidMode
	}
}

var (
	// ErrNotFound is returned for an unknown job id.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidMode is returned when submitting with an unknown mode.
	ErrInvalidMode = errors.New("invalid mode: must be local or api")
)

// Job is one unit of asynchronous transcription work.
type Job struct {
	ID           string     `json:"id" yaml:"id"`
	Status       Status     `json:"status" yaml:"status"`
	Mode         Mode       `json:"mode" yaml:"mode"`
	InputRef     string     `json:"input_ref" yaml:"input_ref"`
	ResultText   string     `json:"result_text,omitempty" yaml:"result_text,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	LogTail      []string   `json:"log_tail,omitempty" yaml:"log_tail,omitempty"`
	Progress     int        `json:"progress" yaml:"progress"`
	Message      string     `json:"message,omitempty" yaml:"message,omitempty"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// clone returns a copy sharing no memory with j.
func (j *Job) clone() Job {
	c := *j
	c.LogTail = append([]string(nil), j.LogTail...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return c
}
