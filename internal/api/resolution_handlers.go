package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xeonx/timeago"

	"github.com/godesk-io/godesk-ce/internal/middleware"
	"github.com/godesk-io/godesk-ce/internal/models"
)

type resolutionView struct {
	models.ResolutionHistoryEntry
	SubmittedAgo string `json:"submitted_ago"`
}

func toView(e models.ResolutionHistoryEntry) resolutionView {
	return resolutionView{
		ResolutionHistoryEntry: e,
		SubmittedAgo:           timeago.English.Format(e.SubmittedOn),
	}
}

func (s *Server) listResolutions(c *gin.Context) {
	entries, err := s.Ledger.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]resolutionView, 0, len(entries))
	for _, e := range entries {
		views = append(views, toView(e))
	}
	c.JSON(http.StatusOK, gin.H{"resolutions": views, "total": len(views)})
}

func (s *Server) currentResolution(c *gin.Context) {
	entries, err := s.Ledger.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	for _, e := range entries {
		if e.IsCurrent {
			c.JSON(http.StatusOK, toView(e))
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "no current resolution"})
}

func (s *Server) compareResolutions(c *gin.Context) {
	from, _ := strconv.Atoi(c.Query("from"))
	to, _ := strconv.Atoi(c.Query("to"))
	a, b, err := s.Ledger.Compare(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": toView(*a), "to": toView(*b)})
}

func (s *Server) submitResolution(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	actor := middleware.ActorFrom(c)
	entry, err := s.Ledger.Submit(c.Request.Context(), actor, c.Param("id"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toView(*entry))
}

func (s *Server) rejectResolution(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}

	actor := middleware.ActorFrom(c)
	if err := s.Ledger.Reject(c.Request.Context(), actor, c.Param("id"), req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (s *Server) acceptResolution(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if err := s.Ledger.Satisfy(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (s *Server) listActivities(c *gin.Context) {
	activities, err := s.Tickets.ListActivities(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": activities})
}
