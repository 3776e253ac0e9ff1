package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"emergency-dispatch/internal/apperr"
	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/realtime"
	"emergency-dispatch/internal/services"
)

type Handler struct {
	svc    *services.Service
	hub    *realtime.Hub
	logger *logging.Logger
}

func NewHandler(svc *services.Service, hub *realtime.Hub, logger *logging.Logger) *Handler {
	return &Handler{svc: svc, hub: hub, logger: logger}
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation: http.StatusBadRequest,
	apperr.KindConflict:   http.StatusConflict,
	apperr.KindNotFound:   http.StatusNotFound,
	apperr.KindForbidden:  http.StatusForbidden,
	apperr.KindInternal:   http.StatusInternalServerError,
}

// respondError writes err with the status its kind maps to. Internal errors
// are logged and hidden from the client.
func (h *Handler) respondError(c *gin.Context, op string, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		h.logger.Errorf("%s failed: %v", op, err)
	} else {
		h.logger.Debugf("%s rejected: %v", op, err)
	}
	c.JSON(statusByKind[kind], gin.H{"error": apperr.Message(err)})
}

// idParam reads a positive integer path parameter.
func (h *Handler) idParam(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.Debugf("Invalid request body for %s: %v", c.FullPath(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}
