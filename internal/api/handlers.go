package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"emergency-dispatch/internal/models"
	"emergency-dispatch/internal/services"
)

func (h *Handler) CreateAlert(c *gin.Context) {
	var in services.CreateAlertInput
	if !h.bindJSON(c, &in) {
		return
	}
	detail, err := h.svc.CreateAlert(c.Request.Context(), identity(c), in)
	if err != nil {
		h.respondError(c, "Create alert", err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *Handler) AlertHistory(c *gin.Context) {
	alerts, err := h.svc.AlertHistory(c.Request.Context(), identity(c))
	if err != nil {
		h.respondError(c, "Alert history", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(alerts))
}

func (h *Handler) GetAlert(c *gin.Context) {
	alertID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.svc.GetAlert(c.Request.Context(), identity(c), alertID)
	if err != nil {
		h.respondError(c, "Get alert", err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) UpdateAlertLocation(c *gin.Context) {
	alertID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var in services.LocationInput
	if !h.bindJSON(c, &in) {
		return
	}
	out, err := h.svc.UpdateLocation(c.Request.Context(), identity(c), alertID, in)
	if err != nil {
		h.respondError(c, "Update alert location", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) CancelAlert(c *gin.Context) {
	alertID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.CancelAlert(c.Request.Context(), identity(c), alertID); err != nil {
		h.respondError(c, "Cancel alert", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert cancelled.", "alert_id": alertID})
}

func (h *Handler) AgencyAlerts(c *gin.Context) {
	list, err := h.svc.AgencyAssignments(c.Request.Context(), identity(c))
	if err != nil {
		h.respondError(c, "Agency alerts", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) AcknowledgeAssignment(c *gin.Context) {
	assignmentID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var in services.AckInput
	if !h.bindJSON(c, &in) {
		return
	}
	ack, err := h.svc.Acknowledge(c.Request.Context(), identity(c), assignmentID, in)
	if err != nil {
		h.respondError(c, "Acknowledge assignment", err)
		return
	}
	c.JSON(http.StatusCreated, ack)
}

func (h *Handler) UpdateAssignmentStatus(c *gin.Context) {
	assignmentID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status models.AlertStatus `json:"status"`
	}
	if !h.bindJSON(c, &req) {
		return
	}
	alert, err := h.svc.UpdateStatus(c.Request.Context(), identity(c), assignmentID, req.Status)
	if err != nil {
		h.respondError(c, "Update assignment status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Alert status updated to '" + string(alert.Status) + "'.",
		"alert_id": alert.ID,
	})
}

func (h *Handler) AssignmentLocation(c *gin.Context) {
	assignmentID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	loc, err := h.svc.AssignmentLocation(c.Request.Context(), identity(c), assignmentID)
	if err != nil {
		h.respondError(c, "Assignment location", err)
		return
	}
	c.JSON(http.StatusOK, loc)
}

func (h *Handler) RegisterDevice(c *gin.Context) {
	var req struct {
		PushToken string `json:"push_token"`
	}
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.svc.RegisterDevice(c.Request.Context(), identity(c), req.PushToken); err != nil {
		h.respondError(c, "Register device", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Device registered successfully."})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
