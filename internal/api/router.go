// Package api exposes the assignment and resolution engines over HTTP.
package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/godesk-io/godesk-ce/internal/middleware"
	"github.com/godesk-io/godesk-ce/internal/models"
	"github.com/godesk-io/godesk-ce/internal/notifications"
	"github.com/godesk-io/godesk-ce/internal/repository"
	"github.com/godesk-io/godesk-ce/internal/services/assignment"
	"github.com/godesk-io/godesk-ce/internal/services/resolution"
)

// Server bundles the services the handlers call.
type Server struct {
	Ledger     *resolution.Ledger
	Workflow   *resolution.Workflow
	Assigner   *assignment.Service
	Oracle     *assignment.AvailabilityOracle
	Resolver   *assignment.GroupResolver
	Tickets    repository.TicketRepository
	Rules      repository.RuleRepository
	Groups     repository.GroupRepository
	Calendar   repository.CalendarRepository
	Hub        *notifications.Hub
	Auth       *middleware.AuthMiddleware
	Logger     *log.Logger
	Production bool
}

// NewRouter builds the gin engine with all routes registered.
func (s *Server) NewRouter() *gin.Engine {
	if s.Logger == nil {
		s.Logger = log.Default()
	}
	if s.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(s.Auth.RequireAuth())
	{
		api.GET("/ws", func(c *gin.Context) {
			s.Hub.ServeHTTP(c.Writer, c.Request)
		})

		tickets := api.Group("/tickets/:id")
		{
			tickets.GET("/resolutions", s.listResolutions)
			tickets.GET("/resolutions/current", s.currentResolution)
			tickets.GET("/resolutions/compare", s.compareResolutions)
			tickets.POST("/resolutions", s.submitResolution)
			tickets.POST("/resolutions/reject", s.rejectResolution)
			tickets.POST("/resolutions/accept", s.acceptResolution)

			tickets.GET("/permissions", s.ticketPermissions)
			tickets.GET("/activities", s.listActivities)
			tickets.POST("/closure/request", s.requestClosure)
			tickets.POST("/closure/confirm", s.confirmClosure)
			tickets.POST("/closure/decline", s.declineClosure)
			tickets.POST("/reopen", s.reopenTicket)
		}

		api.GET("/availability/:user", s.checkAvailability)
		api.GET("/holidays", s.myHolidays)

		admin := api.Group("/admin")
		admin.Use(s.Auth.RequireRole(models.RoleAgentManager))
		{
			admin.GET("/assignment-rules", s.listRules)
			admin.POST("/assignment-rules", s.saveRule)
			admin.GET("/assignment-rules/:id", s.getRule)
			admin.PUT("/assignment-rules/:id", s.saveRule)
			admin.POST("/assignment-rules/:id/run", s.runRule)
			admin.POST("/assignment-rules/:id/duplicate", s.duplicateRule)

			admin.GET("/dynamic-groups", s.listGroups)
			admin.POST("/dynamic-groups", s.saveGroup)

			admin.GET("/holidays", s.listHolidays)
			admin.POST("/holidays", s.createHoliday)
			admin.PUT("/holidays/:id", s.updateHoliday)
			admin.DELETE("/holidays/:id", s.deleteHoliday)
		}
	}

	return r
}

// respondError maps service errors to HTTP status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case models.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
