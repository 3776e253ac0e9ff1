package api

import (
	"net/http"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"emergency-dispatch/internal/auth"
	"emergency-dispatch/internal/config"
	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/ratelimit"
)

func NewRouter(h *Handler, alertThrottle *ratelimit.Limiter, logger *logging.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.API.CORSOrigins)))
	r.Use(RequestLoggingMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group(cfg.API.BasePath)
	api.Use(IdentityMiddleware(logger))

	civilian := api.Group("", RequireRole(auth.RoleCivilian))
	{
		civilian.POST("/alerts", ThrottleMiddleware(alertThrottle, "alert_create"), h.CreateAlert)
		civilian.GET("/alerts", h.AlertHistory)
		civilian.PATCH("/alerts/:id/location", h.UpdateAlertLocation)
		civilian.PUT("/alerts/:id/cancel", h.CancelAlert)
	}
	api.GET("/alerts/:id", h.GetAlert)

	agency := api.Group("/agency", RequireRole(auth.RoleAgency))
	{
		agency.GET("/alerts", h.AgencyAlerts)
		agency.POST("/assignments/:id/acknowledge", h.AcknowledgeAssignment)
		agency.PUT("/assignments/:id/status", h.UpdateAssignmentStatus)
		agency.GET("/assignments/:id/location", h.AssignmentLocation)
		agency.POST("/register-device", h.RegisterDevice)
		agency.GET("/ws", h.AgencyFeed)
	}

	admin := api.Group("/admin", RequireRole(auth.RoleAdmin))
	{
		admin.POST("/alerts/:id/assign", h.AssignAlert)
		admin.GET("/alerts", h.ListAlerts)
		admin.GET("/agencies", h.ListAgencies)
		admin.POST("/agencies", h.CreateAgency)
		admin.GET("/notifications", h.ListNotifications)
		admin.GET("/reports", h.Reports)
		admin.GET("/settings", h.ListSettings)
		admin.PATCH("/settings", h.UpdateSettings)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", auth.HeaderUserID, auth.HeaderRole, auth.HeaderAgencyID},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
