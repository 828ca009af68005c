package models

import "time"

// Recording lifecycle status.
const (
	RecordingStatusCompleted = "completed"
	RecordingStatusFailed    = "failed"
)

// Recording is one finished (or failed) egress job for a session. Records are
// append-only: each completion produces exactly one, never updated afterwards.
type Recording struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	JobID     string    `json:"jobId"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Duration  int64     `json:"duration"` // whole seconds
	FileKey   string    `json:"fileKey,omitempty"`
	FileURL   string    `json:"fileUrl,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
