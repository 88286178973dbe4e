package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godesk-io/godesk-ce/internal/auth"
	"github.com/godesk-io/godesk-ce/internal/middleware"
	"github.com/godesk-io/godesk-ce/internal/models"
	"github.com/godesk-io/godesk-ce/internal/notifications"
	"github.com/godesk-io/godesk-ce/internal/repository"
	"github.com/godesk-io/godesk-ce/internal/services/assignment"
	"github.com/godesk-io/godesk-ce/internal/services/resolution"
	"github.com/godesk-io/godesk-ce/internal/services/sla"
)

type apiFixture struct {
	router  *gin.Engine
	jwt     *auth.JWTManager
	tickets *repository.MemoryTicketRepository
	rules   *repository.MemoryRuleRepository
	groups  *repository.MemoryGroupRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tickets := repository.NewMemoryTicketRepository()
	history := repository.NewMemoryResolutionRepository()
	rules := repository.NewMemoryRuleRepository()
	groups := repository.NewMemoryGroupRepository()
	calendar := repository.NewMemoryCalendarRepository()
	directory := repository.NewMemoryDirectoryRepository()
	workItems := repository.NewMemoryWorkItemRepository()
	slas := repository.NewMemorySLARepository()

	resolver := assignment.NewGroupResolver(groups, nil, 0, nil)
	oracle := assignment.NewAvailabilityOracle(directory, calendar, resolver, nil)
	evaluator := assignment.NewConditionEvaluator(0)
	assigner := assignment.NewService(rules, tickets, workItems, oracle, resolver, evaluator, nil, nil)

	restarter := sla.NewRestarter(slas, nil, nil)
	ledger := resolution.NewLedger(tickets, history, restarter, nil, nil)
	workflow := resolution.NewWorkflow(tickets, directory, restarter, nil, nil)

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	server := &Server{
		Ledger:   ledger,
		Workflow: workflow,
		Assigner: assigner,
		Oracle:   oracle,
		Resolver: resolver,
		Tickets:  tickets,
		Rules:    rules,
		Groups:   groups,
		Calendar: calendar,
		Hub:      notifications.NewHub(nil),
		Auth:     middleware.NewAuthMiddleware(jwtManager),
	}

	return &apiFixture{
		router:  server.NewRouter(),
		jwt:     jwtManager,
		tickets: tickets,
		rules:   rules,
		groups:  groups,
	}
}

func (f *apiFixture) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewBuffer(raw)
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) token(t *testing.T, email string, roles ...string) string {
	t.Helper()
	token, err := f.jwt.GenerateToken(email, roles)
	require.NoError(t, err)
	return token
}

func TestAuthRequired(t *testing.T) {
	f := newAPIFixture(t)

	w := f.request(t, http.MethodGet, "/api/tickets/T-1/resolutions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.request(t, http.MethodGet, "/api/tickets/T-1/resolutions", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestResolutionEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.tickets.Seed(&models.Ticket{
		ID:       "T-1",
		Subject:  "Cannot log in",
		Status:   models.StatusOpen,
		RaisedBy: "customer@x.com",
	})
	agentToken := f.token(t, "agent@x.com", models.RoleAgent)
	customerToken := f.token(t, "customer@x.com", models.RoleCustomer)

	t.Run("submit", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/tickets/T-1/resolutions", agentToken,
			gin.H{"content": "<p>Reset the password</p>"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var entry resolutionView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
		assert.Equal(t, 1, entry.VersionNumber)
		assert.NotEmpty(t, entry.SubmittedAgo)
	})

	t.Run("customer cannot submit", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/tickets/T-1/resolutions", customerToken,
			gin.H{"content": "<p>nope</p>"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("current and history", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/api/tickets/T-1/resolutions/current", agentToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = f.request(t, http.MethodGet, "/api/tickets/T-1/resolutions", agentToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var list struct {
			Total int `json:"total"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		assert.Equal(t, 1, list.Total)
	})

	t.Run("reject requires a reason", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/tickets/T-1/resolutions/reject", customerToken, gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("customer rejects", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/tickets/T-1/resolutions/reject", customerToken,
			gin.H{"reason": "incomplete"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("history of unknown ticket is 404", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/api/tickets/missing/resolutions", agentToken, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAdminEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	managerToken := f.token(t, "manager@x.com", models.RoleAgentManager)
	agentToken := f.token(t, "agent@x.com", models.RoleAgent)

	t.Run("plain agents cannot reach admin routes", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/api/admin/assignment-rules", agentToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("rule lifecycle and manual run", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/admin/assignment-rules", managerToken, gin.H{
			"name":   "Support rotation",
			"policy": "Round Robin",
			"users":  []string{"a@x.com", "b@x.com"},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var rule models.AssignmentRule
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rule))
		require.NotEmpty(t, rule.ID)

		f.tickets.Seed(&models.Ticket{ID: "T-1", Subject: "s", Status: models.StatusOpen})
		w = f.request(t, http.MethodPost, "/api/admin/assignment-rules/"+rule.ID+"/run", managerToken,
			gin.H{"ticket_id": "T-1"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var outcome struct {
			Assigned bool   `json:"assigned"`
			User     string `json:"user"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))
		assert.True(t, outcome.Assigned)
		assert.Equal(t, "a@x.com", outcome.User)
	})

	t.Run("invalid policy is rejected", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/admin/assignment-rules", managerToken, gin.H{
			"name":   "Broken",
			"policy": "Coin Flip",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("holiday crud", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/admin/holidays", managerToken, gin.H{
			"name": "Christmas",
			"date": "2026-12-25",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var holiday models.Holiday
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &holiday))

		w = f.request(t, http.MethodGet, "/api/admin/holidays", managerToken, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = f.request(t, http.MethodDelete, "/api/admin/holidays/"+holiday.ID, managerToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("bad holiday date", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/admin/holidays", managerToken, gin.H{
			"name": "Oops",
			"date": "25/12/2026",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMyHolidays(t *testing.T) {
	f := newAPIFixture(t)
	managerToken := f.token(t, "manager@x.com", models.RoleAgentManager)

	w := f.request(t, http.MethodPost, "/api/admin/dynamic-groups", managerToken, gin.H{
		"name":    "EU Support",
		"members": []string{"a@x.com"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var group models.DynamicGroup
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &group))

	w = f.request(t, http.MethodPost, "/api/admin/holidays", managerToken, gin.H{
		"name": "Christmas",
		"date": "2026-12-25",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	w = f.request(t, http.MethodPost, "/api/admin/holidays", managerToken, gin.H{
		"name":      "Labour Day",
		"date":      "2026-05-01",
		"locations": []string{group.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var list struct {
		Total int `json:"total"`
	}

	w = f.request(t, http.MethodGet, "/api/holidays", f.token(t, "a@x.com", models.RoleAgent), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Total, "group member sees global and group holidays")

	w = f.request(t, http.MethodGet, "/api/holidays", f.token(t, "b@x.com", models.RoleAgent), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total, "outsider sees only the global holiday")
}

func TestDuplicateRule(t *testing.T) {
	f := newAPIFixture(t)
	managerToken := f.token(t, "manager@x.com", models.RoleAgentManager)

	w := f.request(t, http.MethodPost, "/api/admin/assignment-rules", managerToken, gin.H{
		"name":   "Night shift",
		"policy": "Round Robin",
		"users":  []string{"a@x.com"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var original models.AssignmentRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &original))

	w = f.request(t, http.MethodPost, "/api/admin/assignment-rules/"+original.ID+"/duplicate", managerToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var clone models.AssignmentRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &clone))

	assert.NotEqual(t, original.ID, clone.ID)
	assert.Equal(t, "Night shift (Copy)", clone.Name)
	assert.True(t, clone.Disabled)
	assert.Empty(t, clone.LastUser)
	assert.Equal(t, original.Users, clone.Users)
}

func TestAvailabilityEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, "agent@x.com", models.RoleAgent)

	w := f.request(t, http.MethodGet, "/api/availability/agent@x.com?date=2026-03-10", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Verdict    string `json:"verdict"`
		Assignable bool   `json:"assignable"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "included", resp.Verdict)
	assert.True(t, resp.Assignable)

	w = f.request(t, http.MethodGet, "/api/availability/agent@x.com?date=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
