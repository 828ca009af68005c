package recordings

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roomloop/backend/internal/models"
	"github.com/roomloop/backend/internal/sessions"
	"github.com/roomloop/backend/pkg/response"
	"github.com/roomloop/backend/pkg/storage"
)

// Handler handles recording HTTP endpoints.
type Handler struct {
	svc          *Service
	sessionStore sessions.Store
	records      Store
	s3           *storage.S3 // optional; nil disables download URLs
	logger       *zap.Logger
}

// NewHandler creates a recordings handler.
func NewHandler(svc *Service, sessionStore sessions.Store, records Store, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, sessionStore: sessionStore, records: records, s3: s3, logger: logger}
}

type controlRequest struct {
	Identity string `json:"identity"`
}

// authorize resolves the session and verifies identity is its creator.
// Responds on failure and returns nil.
func (h *Handler) authorize(c *gin.Context) *models.Session {
	sessionID := c.Param("sessionId")
	var body controlRequest
	_ = c.ShouldBindJSON(&body)

	sess, err := h.sessionStore.Get(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return nil
	}
	ok, err := h.sessionStore.IsCreator(c.Request.Context(), sessionID, body.Identity)
	if err != nil {
		response.Error(c, err)
		return nil
	}
	if !ok {
		response.Forbidden(c, "only the session creator can control recording")
		return nil
	}
	return sess
}

// Start handles POST /api/recordings/session/:sessionId/start.
func (h *Handler) Start(c *gin.Context) {
	sess := h.authorize(c)
	if sess == nil {
		return
	}
	if sess.IsRecording {
		response.BadRequest(c, "recording already in progress")
		return
	}
	jobID, err := h.svc.Start(c.Request.Context(), sess.ID)
	if err != nil {
		h.logger.Error("start recording failed", zap.String("session_id", sess.ID), zap.Error(err))
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessionId": sess.ID, "jobId": jobID})
}

// Stop handles POST /api/recordings/session/:sessionId/stop.
func (h *Handler) Stop(c *gin.Context) {
	sess := h.authorize(c)
	if sess == nil {
		return
	}
	if !sess.IsRecording {
		response.BadRequest(c, "no recording in progress")
		return
	}
	if err := h.svc.Stop(c.Request.Context(), sess.RecordingJobID); err != nil {
		h.logger.Error("stop recording failed", zap.String("session_id", sess.ID), zap.Error(err))
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessionId": sess.ID, "jobId": sess.RecordingJobID})
}

// ListBySession handles GET /api/recordings/session/:sessionId.
func (h *Handler) ListBySession(c *gin.Context) {
	list, err := h.records.GetBySession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if list == nil {
		list = []models.Recording{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "recordings": list})
}

// GetByID handles GET /api/recordings/:id.
func (h *Handler) GetByID(c *gin.Context) {
	rec, err := h.records.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "recording": rec})
}

// List handles GET /api/recordings.
func (h *Handler) List(c *gin.Context) {
	list, err := h.records.GetAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if list == nil {
		list = []models.Recording{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "recordings": list})
}

// DownloadURL handles GET /api/recordings/:id/download-url. Returns a
// presigned GET URL for the recording object.
func (h *Handler) DownloadURL(c *gin.Context) {
	rec, err := h.records.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if rec.Status != models.RecordingStatusCompleted || rec.FileKey == "" {
		response.BadRequest(c, "recording not ready for download")
		return
	}
	if h.s3 == nil {
		response.ServiceUnavailable(c, "object storage not configured")
		return
	}
	expire := h.s3.PresignExpire()
	url, err := h.s3.PresignDownloadURL(c.Request.Context(), rec.FileKey, expire)
	if err != nil {
		h.logger.Error("presign download failed", zap.String("recording_id", rec.ID), zap.Error(err))
		response.Internal(c, "failed to generate download URL")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "downloadUrl": url, "expiresIn": int(expire.Seconds())})
}
