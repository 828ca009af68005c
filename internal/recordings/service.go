package recordings

import (
	"context"
	"sync"
	"time"

	"github.com/livekit/protocol/livekit"
	"go.uber.org/zap"

	"github.com/roomloop/backend/internal/apperr"
	"github.com/roomloop/backend/internal/media"
	"github.com/roomloop/backend/internal/models"
	"github.com/roomloop/backend/internal/sessions"
	"github.com/roomloop/backend/pkg/storage"
)

// Service orchestrates egress recording jobs: start, stop, and webhook-driven
// completion. Start/stop for one session are serialized through a keyed mutex
// so two near-simultaneous calls cannot race the recording flag.
type Service struct {
	sessions sessions.Store
	records  Store
	room     media.RoomClient
	egress   media.EgressClient
	storage  storage.Config
	logger   *zap.Logger
	now      func() time.Time

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewService creates a recording controller.
func NewService(sessionStore sessions.Store, recordStore Store, room media.RoomClient, egress media.EgressClient, storageCfg storage.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions: sessionStore,
		records:  recordStore,
		room:     room,
		egress:   egress,
		storage:  storageCfg,
		logger:   logger,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockFor(sessionID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	mu, ok := s.locks[sessionID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[sessionID] = mu
	}
	return mu
}

// Start begins an audio room-composite recording for the session and returns
// the egress job ID. Preconditions (storage configured, a participant with
// published audio present) are checked before any egress call is made.
func (s *Service) Start(ctx context.Context, sessionID string) (string, error) {
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if sess.IsRecording {
		return "", apperr.Precondition("recording already in progress for session %s", sessionID)
	}
	if !s.storage.Configured() {
		return "", apperr.Configuration("object storage not configured (S3_ACCESS_KEY, S3_SECRET_KEY, S3_BUCKET)")
	}

	participants, err := s.room.ListParticipants(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if !media.HasPublishedAudio(participants) {
		return "", apperr.Precondition("no participant with published audio in session %s", sessionID)
	}

	startedAt := s.now()
	key := storage.RecordingKey(sessionID, startedAt)
	req := &livekit.RoomCompositeEgressRequest{
		RoomName:  sessionID,
		AudioOnly: true,
		FileOutputs: []*livekit.EncodedFileOutput{{
			FileType: livekit.EncodedFileType_OGG,
			Filepath: key,
			Output: &livekit.EncodedFileOutput_S3{
				S3: &livekit.S3Upload{
					AccessKey:      s.storage.AccessKey,
					Secret:         s.storage.SecretKey,
					Bucket:         s.storage.Bucket,
					Endpoint:       s.storage.Endpoint,
					Region:         s.storage.Region,
					ForcePathStyle: s.storage.ForcePathStyle,
				},
			},
		}},
	}

	info, err := s.egress.StartRoomComposite(ctx, req)
	if err != nil {
		return "", err
	}

	if err := s.sessions.SetRecording(ctx, sessionID, info.EgressId, startedAt); err != nil {
		// Lost the slot (another instance won, or the session vanished):
		// don't leave an orphan job running.
		if _, stopErr := s.egress.Stop(ctx, info.EgressId); stopErr != nil {
			s.logger.Warn("stop orphan egress failed", zap.String("egress_id", info.EgressId), zap.Error(stopErr))
		}
		return "", err
	}

	s.logger.Info("recording started",
		zap.String("session_id", sessionID),
		zap.String("egress_id", info.EgressId),
		zap.String("file_key", key),
	)
	return info.EgressId, nil
}

// Stop requests the job stop. Completion arrives asynchronously via webhook;
// jobs that already failed are routed straight into completion handling.
func (s *Service) Stop(ctx context.Context, jobID string) error {
	info, err := s.egress.Status(ctx, jobID)
	if err != nil {
		return err
	}

	switch {
	case info.Status == livekit.EgressStatus_EGRESS_COMPLETE,
		info.Status == livekit.EgressStatus_EGRESS_ENDING:
		// Already finished or finishing; the webhook will finalize.
		return nil
	case media.Failed(info.Status):
		s.HandleCompletion(ctx, info)
		return nil
	}

	if _, err := s.egress.Stop(ctx, jobID); err != nil {
		if apperr.IsPrecondition(err) {
			// The job may have terminated between the status query and the
			// stop call. Re-query and finalize failed jobs here.
			requeried, qerr := s.egress.Status(ctx, jobID)
			if qerr == nil && media.Failed(requeried.Status) {
				s.HandleCompletion(ctx, requeried)
				return nil
			}
		}
		s.logger.Warn("stop egress failed, job may have already finished",
			zap.String("egress_id", jobID), zap.Error(err))
	}
	return nil
}

// HandleCompletion finalizes a terminal egress job: appends exactly one
// recording record (success and failure alike) and clears the session's
// recording flag. It never raises past its own boundary; by the time it runs
// the webhook has already been acknowledged, so failures are only logged.
func (s *Service) HandleCompletion(ctx context.Context, info *livekit.EgressInfo) {
	sess, err := s.sessions.FindByJob(ctx, info.EgressId)
	if err != nil {
		// Already finalized, or the session is gone. Either way there is
		// nothing left to record.
		s.logger.Warn("completion for unknown job", zap.String("egress_id", info.EgressId), zap.Error(err))
		return
	}

	mu := s.lockFor(sess.ID)
	mu.Lock()
	defer mu.Unlock()

	endedAt := s.now()
	startedAt := endedAt
	if sess.RecordingStartedAt != nil {
		startedAt = *sess.RecordingStartedAt
	}
	duration := int64(endedAt.Sub(startedAt).Seconds())
	if duration < 0 {
		duration = 0
	}

	fileKey, fileURL := fileResult(info)
	if fileKey == "" && sess.RecordingStartedAt != nil {
		fileKey = storage.RecordingKey(sess.ID, *sess.RecordingStartedAt)
	}
	if fileURL == "" && fileKey != "" && s.storage.Configured() {
		// Best effort: the object is not verified to exist.
		fileURL = s.storage.PublicObjectURL(fileKey)
	}

	rec := &models.Recording{
		SessionID: sess.ID,
		JobID:     info.EgressId,
		StartedAt: startedAt,
		EndedAt:   endedAt,
		Duration:  duration,
		FileKey:   fileKey,
		FileURL:   fileURL,
		Status:    models.RecordingStatusCompleted,
		CreatedAt: endedAt,
	}
	if info.Status != livekit.EgressStatus_EGRESS_COMPLETE {
		rec.Status = models.RecordingStatusFailed
		rec.Error = info.Error
		if rec.Error == "" {
			rec.Error = info.Status.String()
		}
	}

	if _, err := s.records.Save(ctx, rec); err != nil {
		s.logger.Error("save recording record failed", zap.String("egress_id", info.EgressId), zap.Error(err))
	}
	if err := s.sessions.ClearRecording(ctx, sess.ID); err != nil {
		s.logger.Error("clear recording flag failed", zap.String("session_id", sess.ID), zap.Error(err))
	}

	s.logger.Info("recording finalized",
		zap.String("session_id", sess.ID),
		zap.String("egress_id", info.EgressId),
		zap.String("status", rec.Status),
		zap.Int64("duration_sec", duration),
	)
}

// fileResult extracts the object key and URL from a terminal job descriptor.
func fileResult(info *livekit.EgressInfo) (key, url string) {
	if len(info.FileResults) == 0 {
		return "", ""
	}
	fr := info.FileResults[0]
	return fr.Filename, fr.Location
}
