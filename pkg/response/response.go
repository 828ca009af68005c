package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roomloop/backend/internal/apperr"
)

// failure is the JSON body for every non-2xx response. Success bodies are
// written flat by handlers (e.g. {"success":true,"sessionId":...}).
type failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Error maps a classified error (internal/apperr) to its HTTP status and
// writes the standard failure body.
func Error(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), failure{Error: err.Error()})
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, failure{Error: err})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, failure{Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, failure{Error: err})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, failure{Error: err})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, failure{Error: err})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, failure{Error: err})
}
