// Package job defines the conversion job record, its state machine, and the
// PostgreSQL-backed store that is the single source of truth for job state.
package job

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanTransition reports whether the edge from -> to exists in the state
// machine. queued -> processing -> completed|error, plus the retry edge
// processing -> queued taken when a failed attempt is rescheduled.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusError || to == StatusQueued
	default:
		return false
	}
}

type Job struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	SourceName   string
	OutputName   string // set iff status = completed
	ErrorMessage string // set iff status = error
	Status       Status
	Attempts     int
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary is the per-user job view served by the status endpoint and kept in
// the status cache.
type Summary struct {
	ID       uuid.UUID `json:"id"`
	Filename string    `json:"filename"`
	Status   Status    `json:"status"`
}

func (j *Job) Summary() Summary {
	return Summary{ID: j.ID, Filename: j.SourceName, Status: j.Status}
}
