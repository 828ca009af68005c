package models

import "time"

// Session is an ad-hoc meeting room tracked in memory. The session ID doubles
// as the media-server room name. Participant membership is advisory: it is
// driven by webhook delivery, not authoritative presence.
type Session struct {
	ID                 string     `json:"sessionId"`
	CreatorIdentity    string     `json:"creatorIdentity,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	Participants       []string   `json:"participants,omitempty"`
	IsRecording        bool       `json:"isRecording"`
	RecordingJobID     string     `json:"recordingJobId,omitempty"`
	RecordingStartedAt *time.Time `json:"recordingStartedAt,omitempty"`
	LastActiveAt       time.Time  `json:"-"`
}

// HasParticipant reports whether identity is currently in the session.
func (s *Session) HasParticipant(identity string) bool {
	for _, p := range s.Participants {
		if p == identity {
			return true
		}
	}
	return false
}
