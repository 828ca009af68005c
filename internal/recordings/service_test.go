package recordings

import (
	"context"
	"testing"
	"time"

	"github.com/livekit/protocol/livekit"

	"github.com/roomloop/backend/internal/apperr"
	"github.com/roomloop/backend/internal/models"
	"github.com/roomloop/backend/internal/sessions"
	"github.com/roomloop/backend/pkg/storage"
)

type fakeRoomClient struct {
	participants []*livekit.ParticipantInfo
	err          error
}

func (f *fakeRoomClient) ListParticipants(context.Context, string) ([]*livekit.ParticipantInfo, error) {
	return f.participants, f.err
}

type fakeEgressClient struct {
	startInfo  *livekit.EgressInfo
	startErr   error
	startCalls int

	stopInfo  *livekit.EgressInfo
	stopErr   error
	stopCalls int

	statusInfos []*livekit.EgressInfo // consumed in order; last repeats
	statusErr   error
	statusCalls int
}

func (f *fakeEgressClient) StartRoomComposite(_ context.Context, req *livekit.RoomCompositeEgressRequest) (*livekit.EgressInfo, error) {
	f.startCalls++
	return f.startInfo, f.startErr
}

func (f *fakeEgressClient) Stop(context.Context, string) (*livekit.EgressInfo, error) {
	f.stopCalls++
	return f.stopInfo, f.stopErr
}

func (f *fakeEgressClient) Status(context.Context, string) (*livekit.EgressInfo, error) {
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	i := f.statusCalls - 1
	if i >= len(f.statusInfos) {
		i = len(f.statusInfos) - 1
	}
	return f.statusInfos[i], nil
}

func audioParticipant(identity string) *livekit.ParticipantInfo {
	return &livekit.ParticipantInfo{
		Identity: identity,
		Tracks:   []*livekit.TrackInfo{{Sid: "TR_audio", Type: livekit.TrackType_AUDIO}},
	}
}

var testStorage = storage.Config{
	AccessKey: "key",
	SecretKey: "secret",
	Bucket:    "rec-bucket",
	Region:    "us-east-1",
}

type fixture struct {
	svc      *Service
	sessions sessions.Store
	records  *MemoryStore
	room     *fakeRoomClient
	egress   *fakeEgressClient
}

func newFixture(t *testing.T, storageCfg storage.Config) *fixture {
	t.Helper()
	sessionStore := sessions.NewMemoryStore(nil)
	recordStore := NewMemoryStore()
	room := &fakeRoomClient{participants: []*livekit.ParticipantInfo{audioParticipant("alice")}}
	egress := &fakeEgressClient{
		startInfo: &livekit.EgressInfo{EgressId: "EG_1", RoomName: "ABCD1234", Status: livekit.EgressStatus_EGRESS_STARTING},
	}
	svc := NewService(sessionStore, recordStore, room, egress, storageCfg, nil)
	return &fixture{svc: svc, sessions: sessionStore, records: recordStore, room: room, egress: egress}
}

func (f *fixture) withSession(t *testing.T, id string) {
	t.Helper()
	if _, err := f.sessions.CreateOrGet(context.Background(), id, "alice"); err != nil {
		t.Fatal(err)
	}
}

func TestStartRequiresStorageConfig(t *testing.T) {
	f := newFixture(t, storage.Config{})
	f.withSession(t, "ABCD1234")

	_, err := f.svc.Start(context.Background(), "ABCD1234")
	if !apperr.IsConfiguration(err) {
		t.Fatalf("expected Configuration error, got %v", err)
	}
	if f.egress.startCalls != 0 {
		t.Error("egress start must not be called without storage config")
	}
}

func TestStartRequiresAudioParticipant(t *testing.T) {
	f := newFixture(t, testStorage)
	f.withSession(t, "ABCD1234")
	f.room.participants = nil

	_, err := f.svc.Start(context.Background(), "ABCD1234")
	if !apperr.IsPrecondition(err) {
		t.Fatalf("expected Precondition error, got %v", err)
	}
	if f.egress.startCalls != 0 {
		t.Error("egress start must not be called for an empty room")
	}

	// A participant without audio tracks does not satisfy the precondition.
	f.room.participants = []*livekit.ParticipantInfo{{Identity: "bob"}}
	if _, err := f.svc.Start(context.Background(), "ABCD1234"); !apperr.IsPrecondition(err) {
		t.Fatalf("expected Precondition error, got %v", err)
	}
}

func TestStartUnknownSession(t *testing.T) {
	f := newFixture(t, testStorage)
	if _, err := f.svc.Start(context.Background(), "MISSING9"); !apperr.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestStartMarksSessionRecording(t *testing.T) {
	f := newFixture(t, testStorage)
	f.withSession(t, "ABCD1234")

	jobID, err := f.svc.Start(context.Background(), "ABCD1234")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if jobID != "EG_1" {
		t.Errorf("jobID = %q", jobID)
	}
	sess, _ := f.sessions.Get(context.Background(), "ABCD1234")
	if !sess.IsRecording || sess.RecordingJobID != "EG_1" {
		t.Errorf("session not marked recording: %+v", sess)
	}

	// Double start is rejected before reaching the egress API again.
	if _, err := f.svc.Start(context.Background(), "ABCD1234"); !apperr.IsPrecondition(err) {
		t.Fatalf("expected Precondition on double start, got %v", err)
	}
	if f.egress.startCalls != 1 {
		t.Errorf("egress start called %d times, want 1", f.egress.startCalls)
	}
}

func TestHandleCompletionSuccess(t *testing.T) {
	f := newFixture(t, testStorage)
	f.withSession(t, "ABCD1234")

	base := time.Now()
	f.svc.now = func() time.Time { return base }
	if _, err := f.svc.Start(context.Background(), "ABCD1234"); err != nil {
		t.Fatal(err)
	}

	f.svc.now = func() time.Time { return base.Add(125 * time.Second) }
	f.svc.HandleCompletion(context.Background(), &livekit.EgressInfo{
		EgressId: "EG_1",
		RoomName: "ABCD1234",
		Status:   livekit.EgressStatus_EGRESS_COMPLETE,
		FileResults: []*livekit.FileInfo{{
			Filename: "recordings/ABCD1234/123.ogg",
			Location: "https://cdn.test/recordings/ABCD1234/123.ogg",
		}},
	})

	recs, _ := f.records.GetBySession(context.Background(), "ABCD1234")
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Status != models.RecordingStatusCompleted {
		t.Errorf("status = %q", rec.Status)
	}
	if rec.Duration != 125 {
		t.Errorf("duration = %d, want 125", rec.Duration)
	}
	if rec.JobID != "EG_1" || rec.FileURL != "https://cdn.test/recordings/ABCD1234/123.ogg" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Error != "" {
		t.Errorf("success record must not carry an error, got %q", rec.Error)
	}

	sess, _ := f.sessions.Get(context.Background(), "ABCD1234")
	if sess.IsRecording || sess.RecordingJobID != "" {
		t.Errorf("recording flag not cleared: %+v", sess)
	}
}

func TestHandleCompletionFailure(t *testing.T) {
	f := newFixture(t, testStorage)
	f.withSession(t, "ABCD1234")
	if _, err := f.svc.Start(context.Background(), "ABCD1234"); err != nil {
		t.Fatal(err)
	}

	f.svc.HandleCompletion(context.Background(), &livekit.EgressInfo{
		EgressId: "EG_1",
		RoomName: "ABCD1234",
		Status:   livekit.EgressStatus_EGRESS_FAILED,
		Error:    "upload failed",
	})

	recs, _ := f.records.GetBySession(context.Background(), "ABCD1234")
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Status != models.RecordingStatusFailed || recs[0].Error != "upload failed" {
		t.Errorf("record = %+v", recs[0])
	}
	// Flag cleared even on failure so a new recording can start.
	sess, _ := f.sessions.Get(context.Background(), "ABCD1234")
	if sess.IsRecording {
		t.Error("recording flag must be cleared after failure")
	}
}

func TestHandleCompletionEffectiveOnce(t *testing.T) {
	f := newFixture(t, testStorage)
	f.withSession(t, "ABCD1234")
	if _, err := f.svc.Start(context.Background(), "ABCD1234"); err != nil {
		t.Fatal(err)
	}

	info := &livekit.EgressInfo{EgressId: "EG_1", RoomName: "ABCD1234", Status: livekit.EgressStatus_EGRESS_COMPLETE}
	f.svc.HandleCompletion(context.Background(), info)
	f.svc.HandleCompletion(context.Background(), info) // redelivered webhook

	recs, _ := f.records.GetAll(context.Background())
	if len(recs) != 1 {
		t.Errorf("expected exactly 1 record after redelivery, got %d", len(recs))
	}
}

func TestHandleCompletionFallbackFileURL(t *testing.T) {
	f := newFixture(t, testStorage)
	f.withSession(t, "ABCD1234")
	if _, err := f.svc.Start(context.Background(), "ABCD1234"); err != nil {
		t.Fatal(err)
	}

	// No file result in the descriptor: fall back to the key derived from
	// storage config and the recorded start time.
	f.svc.HandleCompletion(context.Background(), &livekit.EgressInfo{
		EgressId: "EG_1",
		RoomName: "ABCD1234",
		Status:   livekit.EgressStatus_EGRESS_COMPLETE,
	})
	recs, _ := f.records.GetBySession(context.Background(), "ABCD1234")
	if len(recs) != 1 {
		t.Fatal("expected 1 record")
	}
	if recs[0].FileKey == "" || recs[0].FileURL == "" {
		t.Errorf("expected fallback file key and URL, got %+v", recs[0])
	}
}

func TestStopAlreadyComplete(t *testing.T) {
	f := newFixture(t, testStorage)
	f.withSession(t, "ABCD1234")
	if _, err := f.svc.Start(context.Background(), "ABCD1234"); err != nil {
		t.Fatal(err)
	}
	f.egress.statusInfos = []*livekit.EgressInfo{{EgressId: "EG_1", RoomName: "ABCD1234", Status: livekit.EgressStatus_EGRESS_COMPLETE}}

	if err := f.svc.Stop(context.Background(), "EG_1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if f.egress.stopCalls != 0 {
		t.Error("stop must not be issued for a completed job")
	}
	// Completion arrives via webhook, so no record yet.
	recs, _ := f.records.GetAll(context.Background())
	if len(recs) != 0 {
		t.Errorf("expected 0 records, got %d", len(recs))
	}
}

func TestStopFailedJobFinalizesImmediately(t *testing.T) {
	f := newFixture(t, testStorage)
	f.withSession(t, "ABCD1234")
	if _, err := f.svc.Start(context.Background(), "ABCD1234"); err != nil {
		t.Fatal(err)
	}
	f.egress.statusInfos = []*livekit.EgressInfo{{
		EgressId: "EG_1", RoomName: "ABCD1234",
		Status: livekit.EgressStatus_EGRESS_FAILED, Error: "egress crashed",
	}}

	if err := f.svc.Stop(context.Background(), "EG_1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if f.egress.stopCalls != 0 {
		t.Error("stop must not be issued for an already-failed job")
	}
	recs, _ := f.records.GetAll(context.Background())
	if len(recs) != 1 || recs[0].Status != models.RecordingStatusFailed {
		t.Errorf("expected 1 failed record, got %+v", recs)
	}
}

func TestStopActiveJob(t *testing.T) {
	f := newFixture(t, testStorage)
	f.withSession(t, "ABCD1234")
	if _, err := f.svc.Start(context.Background(), "ABCD1234"); err != nil {
		t.Fatal(err)
	}
	f.egress.statusInfos = []*livekit.EgressInfo{{EgressId: "EG_1", RoomName: "ABCD1234", Status: livekit.EgressStatus_EGRESS_ACTIVE}}

	if err := f.svc.Stop(context.Background(), "EG_1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if f.egress.stopCalls != 1 {
		t.Errorf("stop calls = %d, want 1", f.egress.stopCalls)
	}
	// Still recording until the completion webhook lands.
	sess, _ := f.sessions.Get(context.Background(), "ABCD1234")
	if !sess.IsRecording {
		t.Error("session should remain recording until completion arrives")
	}
}

func TestStopPreconditionRequeriesAndFinalizes(t *testing.T) {
	f := newFixture(t, testStorage)
	f.withSession(t, "ABCD1234")
	if _, err := f.svc.Start(context.Background(), "ABCD1234"); err != nil {
		t.Fatal(err)
	}
	f.egress.statusInfos = []*livekit.EgressInfo{
		{EgressId: "EG_1", RoomName: "ABCD1234", Status: livekit.EgressStatus_EGRESS_ACTIVE},
		{EgressId: "EG_1", RoomName: "ABCD1234", Status: livekit.EgressStatus_EGRESS_FAILED, Error: "died mid-stop"},
	}
	f.egress.stopErr = apperr.Precondition("egress already terminated")

	if err := f.svc.Stop(context.Background(), "EG_1"); err != nil {
		t.Fatalf("Stop should swallow the error, got %v", err)
	}
	recs, _ := f.records.GetAll(context.Background())
	if len(recs) != 1 || recs[0].Status != models.RecordingStatusFailed {
		t.Errorf("expected failed record after requery, got %+v", recs)
	}
}
