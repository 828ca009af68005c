package sessions

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roomloop/backend/internal/apperr"
	"github.com/roomloop/backend/internal/models"
)

const createAttempts = 5

// MemoryStore is the in-process session registry. All state is lost on
// restart; that is an accepted property of the system.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	jobs     map[string]string // egress job ID -> session ID
	logger   *zap.Logger
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory registry.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		jobs:     make(map[string]string),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, creatorIdentity string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < createAttempts; i++ {
		id := GenerateID()
		if _, exists := s.sessions[id]; exists {
			continue
		}
		sess := &models.Session{
			ID:              id,
			CreatorIdentity: creatorIdentity,
			CreatedAt:       s.now(),
			LastActiveAt:    s.now(),
		}
		s.sessions[id] = sess
		return clone(sess), nil
	}
	return nil, apperr.External("session id generation collided", nil)
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, apperr.NotFound("session %s not found", id)
	}
	return clone(sess), nil
}

func (s *MemoryStore) CreateOrGet(_ context.Context, id, identity string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &models.Session{ID: id, CreatedAt: s.now()}
		s.sessions[id] = sess
	}
	if sess.CreatorIdentity == "" && identity != "" {
		sess.CreatorIdentity = identity
	}
	sess.LastActiveAt = s.now()
	return clone(sess), nil
}

func (s *MemoryStore) AddParticipant(_ context.Context, id, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return apperr.NotFound("session %s not found", id)
	}
	if !sess.HasParticipant(identity) {
		sess.Participants = append(sess.Participants, identity)
	}
	sess.LastActiveAt = s.now()
	return nil
}

func (s *MemoryStore) RemoveParticipant(_ context.Context, id, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return apperr.NotFound("session %s not found", id)
	}
	for i, p := range sess.Participants {
		if p == identity {
			sess.Participants = append(sess.Participants[:i], sess.Participants[i+1:]...)
			break
		}
	}
	sess.LastActiveAt = s.now()
	return nil
}

func (s *MemoryStore) SetRecording(_ context.Context, id, jobID string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return apperr.NotFound("session %s not found", id)
	}
	if sess.IsRecording {
		return apperr.Precondition("recording already in progress for session %s", id)
	}
	sess.IsRecording = true
	sess.RecordingJobID = jobID
	t := startedAt
	sess.RecordingStartedAt = &t
	sess.LastActiveAt = s.now()
	s.jobs[jobID] = id
	return nil
}

func (s *MemoryStore) ClearRecording(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return apperr.NotFound("session %s not found", id)
	}
	if sess.RecordingJobID != "" {
		delete(s.jobs, sess.RecordingJobID)
	}
	sess.IsRecording = false
	sess.RecordingJobID = ""
	sess.RecordingStartedAt = nil
	sess.LastActiveAt = s.now()
	return nil
}

func (s *MemoryStore) FindByJob(_ context.Context, jobID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.jobs[jobID]
	if !ok {
		return nil, apperr.NotFound("no session owns job %s", jobID)
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, apperr.NotFound("session %s not found", id)
	}
	return clone(sess), nil
}

func (s *MemoryStore) IsCreator(_ context.Context, id, identity string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return false, apperr.NotFound("session %s not found", id)
	}
	return identity != "" && sess.CreatorIdentity == identity, nil
}

// Sweep evicts sessions idle longer than ttl. Recording sessions are never
// evicted; their completion webhook still needs the job index.
func (s *MemoryStore) Sweep(_ context.Context, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-ttl)
	n := 0
	for id, sess := range s.sessions {
		if sess.IsRecording || sess.LastActiveAt.After(cutoff) {
			continue
		}
		delete(s.sessions, id)
		n++
	}
	if n > 0 {
		s.logger.Info("session sweep", zap.Int("evicted", n))
	}
	return n, nil
}

func clone(sess *models.Session) *models.Session {
	out := *sess
	out.Participants = append([]string(nil), sess.Participants...)
	if sess.RecordingStartedAt != nil {
		t := *sess.RecordingStartedAt
		out.RecordingStartedAt = &t
	}
	return &out
}
