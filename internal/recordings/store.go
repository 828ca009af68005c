package recordings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roomloop/backend/internal/apperr"
	"github.com/roomloop/backend/internal/models"
)

// Store holds completed and failed recording records. Append-only in the
// primary flow; Delete exists for administrative cleanup only.
type Store interface {
	// Save appends a record, assigning its ID when empty.
	Save(ctx context.Context, rec *models.Recording) (*models.Recording, error)
	// GetBySession returns records for one session in insertion order.
	GetBySession(ctx context.Context, sessionID string) ([]models.Recording, error)
	// GetByID returns a record or an apperr.NotFound error.
	GetByID(ctx context.Context, id string) (*models.Recording, error)
	// GetAll returns every record in insertion order.
	GetAll(ctx context.Context) ([]models.Recording, error)
	// Delete removes a record (admin cleanup).
	Delete(ctx context.Context, id string) error
}

// MemoryStore is the in-process recording metadata store.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]models.Recording
}

// NewMemoryStore creates an empty metadata store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]models.Recording)}
}

func (s *MemoryStore) Save(_ context.Context, rec *models.Recording) (*models.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("%s-%d", rec.SessionID, rec.CreatedAt.UnixMilli())
		if _, taken := s.byID[rec.ID]; taken {
			rec.ID = rec.ID + "-" + uuid.NewString()[:8]
		}
	}
	s.byID[rec.ID] = *rec
	s.order = append(s.order, rec.ID)
	return rec, nil
}

func (s *MemoryStore) GetBySession(_ context.Context, sessionID string) ([]models.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Recording
	for _, id := range s.order {
		if rec, ok := s.byID[id]; ok && rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*models.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, apperr.NotFound("recording %s not found", id)
	}
	return &rec, nil
}

func (s *MemoryStore) GetAll(_ context.Context) ([]models.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Recording, 0, len(s.order))
	for _, id := range s.order {
		if rec, ok := s.byID[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return apperr.NotFound("recording %s not found", id)
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
