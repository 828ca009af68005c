// Package sessions implements the session registry: ad-hoc rooms created
// explicitly or on first join, mutated by webhook-driven participant events
// and by recording start/stop.
package sessions

import (
	"context"
	"time"

	"github.com/roomloop/backend/internal/models"
)

// Store is the session registry. The memory implementation is the default;
// the redis one exists so several instances can share a registry.
type Store interface {
	// Create registers a session under a freshly generated ID.
	Create(ctx context.Context, creatorIdentity string) (*models.Session, error)
	// Get returns the session or an apperr.NotFound error.
	Get(ctx context.Context, id string) (*models.Session, error)
	// CreateOrGet is an idempotent upsert, used on join and on webhook events
	// so delivery order never matters. The first non-empty identity to reach
	// an ownerless session becomes its creator.
	CreateOrGet(ctx context.Context, id, identity string) (*models.Session, error)
	// AddParticipant adds identity to the participant set (idempotent).
	AddParticipant(ctx context.Context, id, identity string) error
	// RemoveParticipant removes identity from the set; removing an absent
	// member is a no-op.
	RemoveParticipant(ctx context.Context, id, identity string) error
	// SetRecording atomically marks the session recording with jobID. Fails
	// with apperr.Precondition when a job is already in flight: at most one
	// recording per session.
	SetRecording(ctx context.Context, id, jobID string, startedAt time.Time) error
	// ClearRecording unconditionally clears the recording flag and job index.
	ClearRecording(ctx context.Context, id string) error
	// FindByJob resolves the session owning an in-flight job ID.
	FindByJob(ctx context.Context, jobID string) (*models.Session, error)
	// IsCreator reports whether identity is the session's creator of record.
	IsCreator(ctx context.Context, id, identity string) (bool, error)
}

// Sweeper is implemented by stores that need periodic eviction of idle
// sessions (the redis backend relies on key TTLs instead).
type Sweeper interface {
	Sweep(ctx context.Context, ttl time.Duration) (int, error)
}
