package assignment

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// ConditionEvaluator runs a rule's boolean condition expression against a
// document context inside a sandboxed JavaScript runtime.
//
// Date and time values are normalized to RFC 3339 strings before evaluation
// so conditions compare them as one canonical textual form instead of
// tripping over mixed types.
type ConditionEvaluator struct {
	timeout time.Duration
}

// NewConditionEvaluator creates an evaluator with the given per-expression
// timeout.
func NewConditionEvaluator(timeout time.Duration) *ConditionEvaluator {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ConditionEvaluator{timeout: timeout}
}

// Evaluate runs expr with the document bound as `doc`. An empty expression
// is true. Malformed expressions return an error; callers treat that as
// "do not assign" rather than propagating it.
func (e *ConditionEvaluator) Evaluate(expr string, doc map[string]interface{}) (bool, error) {
	if expr == "" {
		return true, nil
	}

	runtime := goja.New()

	timer := time.AfterFunc(e.timeout, func() {
		runtime.Interrupt("condition evaluation timed out")
	})
	defer timer.Stop()

	if err := runtime.Set("doc", NormalizeDates(doc)); err != nil {
		return false, fmt.Errorf("bind condition context: %w", err)
	}

	value, err := runtime.RunString(expr)
	if err != nil {
		return false, fmt.Errorf("evaluate condition %q: %w", expr, err)
	}
	return value.ToBoolean(), nil
}

// NormalizeDates recursively converts time.Time values inside maps and
// slices to RFC 3339 strings, returning a structure safe for comparison in
// condition expressions.
func NormalizeDates(v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		return val.Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.Format(time.RFC3339)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = NormalizeDates(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = NormalizeDates(item)
		}
		return out
	default:
		return v
	}
}
