package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/roomloop/backend/internal/apperr"
	"github.com/roomloop/backend/internal/models"
)

const (
	fieldCreatedAt        = "created_at"
	fieldCreator          = "creator"
	fieldRecordingJob     = "recording_job"
	fieldRecordingStarted = "recording_started"
	keyJobIndex           = "sessions:jobs"
)

// RedisStore is a Redis-backed session registry for multi-instance
// deployments. Retention rides on key TTLs instead of a sweeper.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed registry. ttl <= 0 disables expiry.
func NewRedisStore(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{rdb: rdb, ttl: ttl, logger: logger, now: time.Now}
}

func sessionKey(id string) string { return "sessions:" + id }
func membersKey(id string) string { return "sessions:" + id + ":members" }

func (s *RedisStore) Create(ctx context.Context, creatorIdentity string) (*models.Session, error) {
	for i := 0; i < createAttempts; i++ {
		id := GenerateID()
		ok, err := s.rdb.HSetNX(ctx, sessionKey(id), fieldCreatedAt, s.now().Format(time.RFC3339Nano)).Result()
		if err != nil {
			return nil, apperr.External("session create", err)
		}
		if !ok {
			continue
		}
		if creatorIdentity != "" {
			if err := s.rdb.HSet(ctx, sessionKey(id), fieldCreator, creatorIdentity).Err(); err != nil {
				return nil, apperr.External("session create", err)
			}
		}
		s.expire(ctx, id)
		return s.Get(ctx, id)
	}
	return nil, apperr.External("session id generation collided", nil)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Session, error) {
	fields, err := s.rdb.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, apperr.External("session get", err)
	}
	if len(fields) == 0 {
		return nil, apperr.NotFound("session %s not found", id)
	}
	members, err := s.rdb.SMembers(ctx, membersKey(id)).Result()
	if err != nil {
		return nil, apperr.External("session get", err)
	}
	sess := &models.Session{ID: id, CreatorIdentity: fields[fieldCreator], Participants: members}
	if v := fields[fieldCreatedAt]; v != "" {
		sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	if job := fields[fieldRecordingJob]; job != "" {
		sess.IsRecording = true
		sess.RecordingJobID = job
		if v := fields[fieldRecordingStarted]; v != "" {
			t, _ := time.Parse(time.RFC3339Nano, v)
			sess.RecordingStartedAt = &t
		}
	}
	return sess, nil
}

func (s *RedisStore) CreateOrGet(ctx context.Context, id, identity string) (*models.Session, error) {
	if _, err := s.rdb.HSetNX(ctx, sessionKey(id), fieldCreatedAt, s.now().Format(time.RFC3339Nano)).Result(); err != nil {
		return nil, apperr.External("session upsert", err)
	}
	if identity != "" {
		// HSETNX gives the first-joiner-becomes-creator rule for free.
		if err := s.rdb.HSetNX(ctx, sessionKey(id), fieldCreator, identity).Err(); err != nil {
			return nil, apperr.External("session upsert", err)
		}
	}
	s.expire(ctx, id)
	return s.Get(ctx, id)
}

func (s *RedisStore) AddParticipant(ctx context.Context, id, identity string) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	if err := s.rdb.SAdd(ctx, membersKey(id), identity).Err(); err != nil {
		return apperr.External("add participant", err)
	}
	s.expire(ctx, id)
	return nil
}

func (s *RedisStore) RemoveParticipant(ctx context.Context, id, identity string) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	if err := s.rdb.SRem(ctx, membersKey(id), identity).Err(); err != nil {
		return apperr.External("remove participant", err)
	}
	s.expire(ctx, id)
	return nil
}

func (s *RedisStore) SetRecording(ctx context.Context, id, jobID string, startedAt time.Time) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	// HSETNX is the compare-and-swap: only one job may hold the field.
	ok, err := s.rdb.HSetNX(ctx, sessionKey(id), fieldRecordingJob, jobID).Result()
	if err != nil {
		return apperr.External("set recording", err)
	}
	if !ok {
		return apperr.Precondition("recording already in progress for session %s", id)
	}
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, sessionKey(id), fieldRecordingStarted, startedAt.Format(time.RFC3339Nano))
	pipe.HSet(ctx, keyJobIndex, jobID, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.External("set recording", err)
	}
	s.expire(ctx, id)
	return nil
}

func (s *RedisStore) ClearRecording(ctx context.Context, id string) error {
	jobID, err := s.rdb.HGet(ctx, sessionKey(id), fieldRecordingJob).Result()
	if errors.Is(err, redis.Nil) {
		if err := s.exists(ctx, id); err != nil {
			return err
		}
		return nil // not recording
	}
	if err != nil {
		return apperr.External("clear recording", err)
	}
	pipe := s.rdb.Pipeline()
	pipe.HDel(ctx, sessionKey(id), fieldRecordingJob, fieldRecordingStarted)
	pipe.HDel(ctx, keyJobIndex, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.External("clear recording", err)
	}
	return nil
}

func (s *RedisStore) FindByJob(ctx context.Context, jobID string) (*models.Session, error) {
	id, err := s.rdb.HGet(ctx, keyJobIndex, jobID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.NotFound("no session owns job %s", jobID)
	}
	if err != nil {
		return nil, apperr.External("job lookup", err)
	}
	return s.Get(ctx, id)
}

func (s *RedisStore) IsCreator(ctx context.Context, id, identity string) (bool, error) {
	creator, err := s.rdb.HGet(ctx, sessionKey(id), fieldCreator).Result()
	if errors.Is(err, redis.Nil) {
		if err := s.exists(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	if err != nil {
		return false, apperr.External("creator lookup", err)
	}
	return identity != "" && creator == identity, nil
}

func (s *RedisStore) exists(ctx context.Context, id string) error {
	n, err := s.rdb.Exists(ctx, sessionKey(id)).Result()
	if err != nil {
		return apperr.External("session lookup", err)
	}
	if n == 0 {
		return apperr.NotFound("session %s not found", id)
	}
	return nil
}

func (s *RedisStore) expire(ctx context.Context, id string) {
	if s.ttl <= 0 {
		return
	}
	pipe := s.rdb.Pipeline()
	pipe.Expire(ctx, sessionKey(id), s.ttl)
	pipe.Expire(ctx, membersKey(id), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("session expire", zap.String("session_id", id), zap.Error(err))
	}
}

