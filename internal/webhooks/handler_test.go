package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/webhook"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/roomloop/backend/internal/models"
	"github.com/roomloop/backend/internal/recordings"
	"github.com/roomloop/backend/internal/sessions"
	"github.com/roomloop/backend/pkg/storage"
)

const testSecret = "whsec_test_0123456789"

type stubRoomClient struct{}

func (stubRoomClient) ListParticipants(context.Context, string) ([]*livekit.ParticipantInfo, error) {
	return []*livekit.ParticipantInfo{{
		Identity: "alice",
		Tracks:   []*livekit.TrackInfo{{Sid: "TR_audio", Type: livekit.TrackType_AUDIO}},
	}}, nil
}

type stubEgressClient struct{}

func (stubEgressClient) StartRoomComposite(_ context.Context, req *livekit.RoomCompositeEgressRequest) (*livekit.EgressInfo, error) {
	return &livekit.EgressInfo{EgressId: "EG_1", RoomName: req.RoomName, Status: livekit.EgressStatus_EGRESS_STARTING}, nil
}

func (stubEgressClient) Stop(context.Context, string) (*livekit.EgressInfo, error) {
	return &livekit.EgressInfo{EgressId: "EG_1", Status: livekit.EgressStatus_EGRESS_ENDING}, nil
}

func (stubEgressClient) Status(context.Context, string) (*livekit.EgressInfo, error) {
	return &livekit.EgressInfo{EgressId: "EG_1", Status: livekit.EgressStatus_EGRESS_ACTIVE}, nil
}

type env struct {
	router   *gin.Engine
	sessions sessions.Store
	records  recordings.Store
	recorder *recordings.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sessionStore := sessions.NewMemoryStore(nil)
	recordStore := recordings.NewMemoryStore()
	cfg := storage.Config{AccessKey: "key", SecretKey: "secret", Bucket: "rec-bucket", Region: "us-east-1"}
	recorder := recordings.NewService(sessionStore, recordStore, stubRoomClient{}, stubEgressClient{}, cfg, nil)

	h := NewHandler(testSecret, sessionStore, recorder, nil)
	r := gin.New()
	r.POST("/api/webhooks/livekit", h.Handle)
	return &env{router: r, sessions: sessionStore, records: recordStore, recorder: recorder}
}

func (e *env) post(t *testing.T, secret string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/livekit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func marshalEvent(t *testing.T, ev *livekit.WebhookEvent) []byte {
	t.Helper()
	body, err := protojson.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestRejectsBadCredentials(t *testing.T) {
	e := newEnv(t)
	body := marshalEvent(t, &livekit.WebhookEvent{Event: webhook.EventParticipantJoined})

	if w := e.post(t, "", body); w.Code != http.StatusUnauthorized {
		t.Errorf("missing auth: status = %d, want 401", w.Code)
	}
	if w := e.post(t, "wrong-secret", body); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d, want 401", w.Code)
	}
}

func TestEmptySecretRejectsEverything(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler("", sessions.NewMemoryStore(nil), nil, nil)
	r := gin.New()
	r.POST("/api/webhooks/livekit", h.Handle)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/livekit", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 when no secret is configured", w.Code)
	}
}

func TestRejectsMalformedBody(t *testing.T) {
	e := newEnv(t)
	if w := e.post(t, testSecret, []byte(`{"event": 42`)); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestParticipantJoinedCreatesSession(t *testing.T) {
	e := newEnv(t)
	body := marshalEvent(t, &livekit.WebhookEvent{
		Event:       webhook.EventParticipantJoined,
		Room:        &livekit.Room{Name: "ABCD1234"},
		Participant: &livekit.ParticipantInfo{Identity: "alice"},
	})
	if w := e.post(t, testSecret, body); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	sess, err := e.sessions.Get(context.Background(), "ABCD1234")
	if err != nil {
		t.Fatalf("session not created: %v", err)
	}
	if sess.CreatorIdentity != "alice" || !sess.HasParticipant("alice") {
		t.Errorf("session = %+v", sess)
	}
}

func TestParticipantLeftUnknownSession(t *testing.T) {
	e := newEnv(t)
	body := marshalEvent(t, &livekit.WebhookEvent{
		Event:       webhook.EventParticipantLeft,
		Room:        &livekit.Room{Name: "ABCD1234"},
		Participant: &livekit.ParticipantInfo{Identity: "ghost"},
	})
	if w := e.post(t, testSecret, body); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	// The departure materializes an empty session rather than erroring.
	sess, err := e.sessions.Get(context.Background(), "ABCD1234")
	if err != nil {
		t.Fatalf("session not created: %v", err)
	}
	if len(sess.Participants) != 0 {
		t.Errorf("participants = %v, want none", sess.Participants)
	}
}

func TestEgressEndedFailureFinalizesRecording(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if _, err := e.sessions.CreateOrGet(ctx, "ABCD1234", "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.recorder.Start(ctx, "ABCD1234"); err != nil {
		t.Fatal(err)
	}

	body := marshalEvent(t, &livekit.WebhookEvent{
		Event: webhook.EventEgressEnded,
		EgressInfo: &livekit.EgressInfo{
			EgressId: "EG_1",
			RoomName: "ABCD1234",
			Status:   livekit.EgressStatus_EGRESS_FAILED,
			Error:    "upload failed",
		},
	})
	if w := e.post(t, testSecret, body); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	recs, _ := e.records.GetBySession(ctx, "ABCD1234")
	if len(recs) != 1 || recs[0].Status != models.RecordingStatusFailed {
		t.Fatalf("records = %+v", recs)
	}
	sess, _ := e.sessions.Get(ctx, "ABCD1234")
	if sess.IsRecording {
		t.Error("recording flag must be cleared after egress failure")
	}
}

func TestUnknownEventAcknowledged(t *testing.T) {
	e := newEnv(t)
	body := marshalEvent(t, &livekit.WebhookEvent{Event: "room_finished"})
	if w := e.post(t, testSecret, body); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for unknown event", w.Code)
	}
}
