package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"emergency-dispatch/internal/apperr"
	"emergency-dispatch/internal/models"
	"emergency-dispatch/internal/services"
)

func (h *Handler) AssignAlert(c *gin.Context) {
	alertID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		AgencyID int64 `json:"agency_id"`
	}
	if !h.bindJSON(c, &req) {
		return
	}
	msg, asg, err := h.svc.AssignAlert(c.Request.Context(), alertID, req.AgencyID)
	if err != nil {
		h.respondError(c, "Assign alert", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg, "assignment": asg})
}

func (h *Handler) ListAlerts(c *gin.Context) {
	f := models.AlertFilter{
		Status:   models.AlertStatus(strings.ToUpper(c.Query("status"))),
		Type:     models.AlertType(strings.ToUpper(c.Query("type"))),
		Priority: models.Priority(strings.ToUpper(c.Query("priority"))),
	}
	alerts, err := h.svc.ListAlerts(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, "List alerts", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(alerts))
}

func (h *Handler) ListAgencies(c *gin.Context) {
	agencies, err := h.svc.ListAgencies(c.Request.Context())
	if err != nil {
		h.respondError(c, "List agencies", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(agencies))
}

func (h *Handler) CreateAgency(c *gin.Context) {
	var in services.AgencyInput
	if !h.bindJSON(c, &in) {
		return
	}
	agency, err := h.svc.CreateAgency(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, "Create agency", err)
		return
	}
	c.JSON(http.StatusCreated, agency)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	f := models.LogFilter{
		Channel: models.Channel(strings.ToUpper(c.Query("channel"))),
		Status:  models.NotificationStatus(strings.ToUpper(c.Query("status"))),
	}
	if raw := c.Query("assignment"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid assignment"})
			return
		}
		f.AssignmentID = id
	}
	logs, err := h.svc.ListNotificationLogs(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, "List notifications", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(logs))
}

func (h *Handler) Reports(c *gin.Context) {
	report, err := h.svc.Reports(c.Request.Context())
	if err != nil {
		h.respondError(c, "Reports", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) ListSettings(c *gin.Context) {
	list, err := h.svc.ListSettings(c.Request.Context())
	if err != nil {
		h.respondError(c, "List settings", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Expected a JSON object of {key: new_value} pairs."})
		return
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		values[k] = fmt.Sprint(v)
	}

	res, err := h.svc.UpdateSettings(c.Request.Context(), values)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindValidation {
			h.respondError(c, "Update settings", err)
			return
		}
		c.JSON(http.StatusBadRequest, res)
		return
	}
	c.JSON(http.StatusOK, res)
}
