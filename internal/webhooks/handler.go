// Package webhooks ingests asynchronous lifecycle notifications from the
// media server and forwards state changes into the session registry and the
// recording controller.
package webhooks

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/webhook"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/roomloop/backend/internal/recordings"
	"github.com/roomloop/backend/internal/sessions"
	"github.com/roomloop/backend/pkg/response"
)

// Some deployments report failures as a distinct event kind instead of an
// egress_ended with failed status; both are handled identically.
const eventEgressFailed = "egress_failed"

const maxBodyBytes = 1 << 20

// Handler handles POST /api/webhooks/livekit.
type Handler struct {
	secret   string
	sessions sessions.Store
	recorder *recordings.Service
	logger   *zap.Logger
}

// NewHandler creates a webhook handler. secret is the static bearer credential
// the media server is configured to send.
func NewHandler(secret string, sessionStore sessions.Store, recorder *recordings.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{secret: secret, sessions: sessionStore, recorder: recorder, logger: logger}
}

// Handle validates the shared secret, then dispatches on event kind. Unknown
// kinds are acknowledged with 200 so the sender's redelivery backoff never
// amplifies load; only auth and parse failures get a non-2xx, which the
// sender will retry.
func (h *Handler) Handle(c *gin.Context) {
	if !h.authorized(c.GetHeader("Authorization")) {
		response.Unauthorized(c, "invalid webhook credentials")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	var event livekit.WebhookEvent
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(body, &event); err != nil {
		h.logger.Warn("malformed webhook body", zap.Error(err))
		response.BadRequest(c, "malformed event payload")
		return
	}

	ctx := c.Request.Context()
	switch event.Event {
	case webhook.EventParticipantJoined:
		if event.Room == nil || event.Participant == nil {
			h.logger.Warn("participant_joined without room or participant")
			break
		}
		if _, err := h.sessions.CreateOrGet(ctx, event.Room.Name, event.Participant.Identity); err != nil {
			h.logger.Error("webhook join upsert failed", zap.String("room", event.Room.Name), zap.Error(err))
			break
		}
		if err := h.sessions.AddParticipant(ctx, event.Room.Name, event.Participant.Identity); err != nil {
			h.logger.Error("webhook add participant failed", zap.String("room", event.Room.Name), zap.Error(err))
		}

	case webhook.EventParticipantLeft:
		if event.Room == nil || event.Participant == nil {
			h.logger.Warn("participant_left without room or participant")
			break
		}
		if _, err := h.sessions.CreateOrGet(ctx, event.Room.Name, ""); err != nil {
			h.logger.Error("webhook leave upsert failed", zap.String("room", event.Room.Name), zap.Error(err))
			break
		}
		if err := h.sessions.RemoveParticipant(ctx, event.Room.Name, event.Participant.Identity); err != nil {
			h.logger.Error("webhook remove participant failed", zap.String("room", event.Room.Name), zap.Error(err))
		}

	case webhook.EventEgressStarted:
		if event.EgressInfo != nil {
			h.logger.Info("egress started", zap.String("egress_id", event.EgressInfo.EgressId))
		}

	case webhook.EventEgressEnded, eventEgressFailed:
		if event.EgressInfo == nil {
			h.logger.Warn("egress completion event without egress info", zap.String("event", event.Event))
			break
		}
		h.recorder.HandleCompletion(ctx, event.EgressInfo)

	default:
		h.logger.Info("ignoring webhook event", zap.String("event", event.Event))
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) authorized(header string) bool {
	if h.secret == "" {
		return false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}
