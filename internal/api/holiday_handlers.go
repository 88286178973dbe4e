package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/godesk-io/godesk-ce/internal/middleware"
	"github.com/godesk-io/godesk-ce/internal/models"
)

type holidayRequest struct {
	Name           string   `json:"name" binding:"required"`
	Date           string   `json:"date" binding:"required"` // YYYY-MM-DD
	Type           string   `json:"type"`
	RepeatNextYear bool     `json:"repeat_next_year"`
	Locations      []string `json:"locations"`
}

func (r *holidayRequest) toModel() (*models.Holiday, error) {
	date, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return nil, models.NewValidationError("date", "date must be YYYY-MM-DD")
	}
	return &models.Holiday{
		Name:           r.Name,
		Date:           date,
		Type:           r.Type,
		RepeatNextYear: r.RepeatNextYear,
		Locations:      r.Locations,
	}, nil
}

func (s *Server) listHolidays(c *gin.Context) {
	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			from = &parsed
		}
	}
	if raw := c.Query("to"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			to = &parsed
		}
	}

	holidays, err := s.Calendar.List(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"holidays": holidays, "total": len(holidays)})
}

// myHolidays lists the holidays that apply to the authenticated user:
// global holidays plus those linked to a group the user belongs to.
func (s *Server) myHolidays(c *gin.Context) {
	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			from = &parsed
		}
	}
	if raw := c.Query("to"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			to = &parsed
		}
	}

	all, err := s.Calendar.List(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	email := middleware.ActorFrom(c).Email
	applicable := make([]models.Holiday, 0, len(all))
	for _, h := range all {
		if s.holidayApplies(c, h, email) {
			applicable = append(applicable, h)
		}
	}
	c.JSON(http.StatusOK, gin.H{"holidays": applicable, "total": len(applicable)})
}

func (s *Server) holidayApplies(c *gin.Context, h models.Holiday, email string) bool {
	if len(h.Locations) == 0 {
		return true
	}
	for _, groupID := range h.Locations {
		for _, member := range s.Resolver.ResolveMembers(c.Request.Context(), groupID) {
			if member == email {
				return true
			}
		}
	}
	return false
}

func (s *Server) createHoliday(c *gin.Context) {
	var req holidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and date are required"})
		return
	}
	holiday, err := req.toModel()
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.Calendar.Create(c.Request.Context(), holiday); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, holiday)
}

func (s *Server) updateHoliday(c *gin.Context) {
	var req holidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and date are required"})
		return
	}
	holiday, err := req.toModel()
	if err != nil {
		respondError(c, err)
		return
	}
	holiday.ID = c.Param("id")
	if err := s.Calendar.Update(c.Request.Context(), holiday); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, holiday)
}

func (s *Server) deleteHoliday(c *gin.Context) {
	if err := s.Calendar.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
