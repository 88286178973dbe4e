package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/godesk-io/godesk-ce/internal/middleware"
)

type commentRequest struct {
	Comment string `json:"comment"`
}

func (s *Server) requestClosure(c *gin.Context) {
	var req commentRequest
	_ = c.ShouldBindJSON(&req)

	actor := middleware.ActorFrom(c)
	if err := s.Workflow.RequestClosure(c.Request.Context(), actor, c.Param("id"), req.Comment); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "pending closure"})
}

func (s *Server) confirmClosure(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if err := s.Workflow.Close(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

func (s *Server) declineClosure(c *gin.Context) {
	var req commentRequest
	_ = c.ShouldBindJSON(&req)

	actor := middleware.ActorFrom(c)
	if err := s.Workflow.DeclineClosure(c.Request.Context(), actor, c.Param("id"), req.Comment); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closure declined"})
}

func (s *Server) reopenTicket(c *gin.Context) {
	var req commentRequest
	_ = c.ShouldBindJSON(&req)

	actor := middleware.ActorFrom(c)
	if err := s.Workflow.Reopen(c.Request.Context(), actor, c.Param("id"), req.Comment); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reopened"})
}

func (s *Server) ticketPermissions(c *gin.Context) {
	ticket, err := s.Tickets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	actor := middleware.ActorFrom(c)
	c.JSON(http.StatusOK, s.Workflow.PermissionsFor(c.Request.Context(), actor, ticket))
}
