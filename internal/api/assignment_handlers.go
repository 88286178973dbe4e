package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/godesk-io/godesk-ce/internal/models"
)

func (s *Server) listRules(c *gin.Context) {
	rules, err := s.Rules.List(c.Request.Context(), "Ticket")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules, "total": len(rules)})
}

func (s *Server) getRule(c *gin.Context) {
	rule, err := s.Rules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) saveRule(c *gin.Context) {
	var rule models.AssignmentRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule payload"})
		return
	}
	if id := c.Param("id"); id != "" {
		rule.ID = id
	}
	if rule.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rule name is required"})
		return
	}
	if rule.DocumentType == "" {
		rule.DocumentType = "Ticket"
	}
	switch rule.Policy {
	case "", models.PolicyRoundRobin, models.PolicyLoadBalancing, models.PolicyBasedOnField:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown assignment policy"})
		return
	}

	if err := s.Rules.Save(c.Request.Context(), &rule); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// duplicateRule clones an existing rule under a new ID. The copy starts
// disabled with a fresh rotation cursor so enabling it is a deliberate step.
func (s *Server) duplicateRule(c *gin.Context) {
	rule, err := s.Rules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	rule.ID = ""
	rule.Name = rule.Name + " (Copy)"
	rule.Disabled = true
	rule.LastUser = ""
	if err := s.Rules.Save(c.Request.Context(), rule); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// runRule triggers a single rule against a ticket immediately, outside the
// normal lifecycle hooks. Admin tooling uses this to test a rule.
func (s *Server) runRule(c *gin.Context) {
	var req struct {
		TicketID string `json:"ticket_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticket_id is required"})
		return
	}

	outcome, err := s.Assigner.Assign(c.Request.Context(), c.Param("id"), req.TicketID, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (s *Server) listGroups(c *gin.Context) {
	groups, err := s.Groups.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups, "total": len(groups)})
}

func (s *Server) saveGroup(c *gin.Context) {
	var group models.DynamicGroup
	if err := c.ShouldBindJSON(&group); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group payload"})
		return
	}
	if group.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group name is required"})
		return
	}
	if err := s.Groups.Save(c.Request.Context(), &group); err != nil {
		respondError(c, err)
		return
	}
	// Stale cached membership would keep feeding the selector old members.
	s.Resolver.Invalidate(c.Request.Context(), group.ID)
	c.JSON(http.StatusOK, group)
}

// checkAvailability reports the exclusion verdict for a user on a date.
func (s *Server) checkAvailability(c *gin.Context) {
	date := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	verdict := s.Oracle.Check(c.Request.Context(), c.Param("user"), date)
	c.JSON(http.StatusOK, gin.H{
		"user":       c.Param("user"),
		"date":       date.Format("2006-01-02"),
		"verdict":    verdict.String(),
		"assignable": verdict.Assignable(),
	})
}
