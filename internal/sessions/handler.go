package sessions

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roomloop/backend/internal/apperr"
	"github.com/roomloop/backend/internal/rtc"
	"github.com/roomloop/backend/pkg/response"
)

// Handler handles session HTTP endpoints.
type Handler struct {
	store   Store
	issuer  *rtc.Issuer
	baseURL string // shareable link base, e.g. https://app.example.com
	logger  *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(store Store, issuer *rtc.Issuer, baseURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, issuer: issuer, baseURL: baseURL, logger: logger}
}

type createRequest struct {
	CreatorIdentity string `json:"creatorIdentity"`
}

// Create handles POST /api/sessions/create.
func (h *Handler) Create(c *gin.Context) {
	var body createRequest
	_ = c.ShouldBindJSON(&body) // body is optional

	sess, err := h.store.Create(c.Request.Context(), body.CreatorIdentity)
	if err != nil {
		h.logger.Error("create session failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"sessionId":       sess.ID,
		"creatorIdentity": sess.CreatorIdentity,
		"shareableLink":   h.baseURL + "/session/" + sess.ID,
	})
}

type joinRequest struct {
	Identity string `json:"identity"`
}

// Join handles POST /api/sessions/:sessionId/join. Unknown sessions with a
// validly formatted ID are created on the fly, so a shared link works before
// its creator arrives.
func (h *Handler) Join(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if !ValidID(sessionID) {
		response.BadRequest(c, "invalid session id format")
		return
	}
	var body joinRequest
	_ = c.ShouldBindJSON(&body)

	sess, err := h.store.CreateOrGet(c.Request.Context(), sessionID, body.Identity)
	if err != nil {
		h.logger.Error("join session failed", zap.Error(err), zap.String("session_id", sessionID))
		response.Error(c, err)
		return
	}

	token, err := h.issuer.Generate(sess.ID, body.Identity)
	if err != nil {
		h.logger.Error("token generation failed", zap.Error(err), zap.String("session_id", sessionID))
		response.Error(c, apperr.External("token generation failed", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"token":       token.Token,
		"endpointUrl": token.EndpointURL,
		"identity":    token.Identity,
		"roomName":    token.RoomName,
		"sessionId":   sess.ID,
	})
}

// Get handles GET /api/sessions/:sessionId.
func (h *Handler) Get(c *gin.Context) {
	sess, err := h.store.Get(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": gin.H{
			"sessionId":        sess.ID,
			"createdAt":        sess.CreatedAt,
			"creatorIdentity":  sess.CreatorIdentity,
			"participantCount": len(sess.Participants),
			"isRecording":      sess.IsRecording,
		},
	})
}
