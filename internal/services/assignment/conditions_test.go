package assignment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionEvaluator(t *testing.T) {
	e := NewConditionEvaluator(0)
	doc := map[string]interface{}{
		"status":   "Open",
		"priority": "High",
	}

	t.Run("empty expression is true", func(t *testing.T) {
		ok, err := e.Evaluate("", doc)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("field comparison", func(t *testing.T) {
		ok, err := e.Evaluate(`doc.status == "Open" && doc.priority == "High"`, doc)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = e.Evaluate(`doc.status == "Closed"`, doc)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed expression returns an error", func(t *testing.T) {
		_, err := e.Evaluate(`doc.status ==`, doc)
		assert.Error(t, err)
	})

	t.Run("unknown field compares as undefined rather than failing", func(t *testing.T) {
		ok, err := e.Evaluate(`doc.missing == "x"`, doc)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestNormalizeDates(t *testing.T) {
	when := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("times become RFC 3339 strings", func(t *testing.T) {
		out := NormalizeDates(map[string]interface{}{
			"created_at": when,
			"due":        &when,
			"nested":     []interface{}{when},
			"name":       "T-1",
		}).(map[string]interface{})

		assert.Equal(t, "2026-05-01T10:00:00Z", out["created_at"])
		assert.Equal(t, "2026-05-01T10:00:00Z", out["due"])
		assert.Equal(t, []interface{}{"2026-05-01T10:00:00Z"}, out["nested"])
		assert.Equal(t, "T-1", out["name"])
	})

	t.Run("nil time pointers become nil", func(t *testing.T) {
		out := NormalizeDates(map[string]interface{}{"due": (*time.Time)(nil)}).(map[string]interface{})
		assert.Nil(t, out["due"])
	})

	t.Run("normalized dates compare textually in conditions", func(t *testing.T) {
		e := NewConditionEvaluator(0)
		doc := NormalizeDates(map[string]interface{}{"created_at": when}).(map[string]interface{})
		ok, err := e.Evaluate(`doc.created_at < "2026-06-01T00:00:00Z"`, doc)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
