// Package media adapts the LiveKit server APIs behind small interfaces so the
// orchestration layer can be exercised without a live media server. The
// adapter owns classification of upstream failures into the apperr taxonomy.
package media

import (
	"context"

	"github.com/livekit/protocol/livekit"
)

// RoomClient exposes the room-service calls the backend needs.
type RoomClient interface {
	// ListParticipants returns the participants currently connected to room.
	ListParticipants(ctx context.Context, room string) ([]*livekit.ParticipantInfo, error)
}

// EgressClient exposes the egress-service calls the backend needs.
type EgressClient interface {
	// StartRoomComposite submits a room-composite egress job.
	StartRoomComposite(ctx context.Context, req *livekit.RoomCompositeEgressRequest) (*livekit.EgressInfo, error)
	// Stop requests the job stop. Completion still arrives via webhook.
	Stop(ctx context.Context, egressID string) (*livekit.EgressInfo, error)
	// Status fetches the current job descriptor.
	Status(ctx context.Context, egressID string) (*livekit.EgressInfo, error)
}

// HasPublishedAudio reports whether any participant has an audio track
// published. Recording cannot target a room without one.
func HasPublishedAudio(participants []*livekit.ParticipantInfo) bool {
	for _, p := range participants {
		for _, t := range p.Tracks {
			if t.Type == livekit.TrackType_AUDIO {
				return true
			}
		}
	}
	return false
}

// Terminal reports whether an egress status is a terminal one.
func Terminal(status livekit.EgressStatus) bool {
	switch status {
	case livekit.EgressStatus_EGRESS_COMPLETE,
		livekit.EgressStatus_EGRESS_FAILED,
		livekit.EgressStatus_EGRESS_ABORTED,
		livekit.EgressStatus_EGRESS_LIMIT_REACHED:
		return true
	}
	return false
}

// Failed reports whether a terminal egress status is a failure.
func Failed(status livekit.EgressStatus) bool {
	return Terminal(status) && status != livekit.EgressStatus_EGRESS_COMPLETE
}
