package coordinator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// readinessKeys are the status document fields that may carry readiness,
// matched case-insensitively in this order.
var readinessKeys = []string{"downloaded", "ready", "status", "state"}

var truthy = map[string]bool{
	"true":       true,
	"yes":        true,
	"y":          true,
	"ready":      true,
	"downloaded": true,
	"done":       true,
	"complete":   true,
	"completed":  true,
	"ok":         true,
	"1":          true,
}

var failed = map[string]bool{
	"failed": true,
	"error":  true,
}

// Readiness is the interpretation of one acquisition status document.
type Readiness struct {
	Ready  bool
	Failed bool
}

// ParseReadiness interprets a status body. The first recognised key that
// reports ready wins; a status or state of "failed" marks the download as
// failed. Unknown shapes are not ready.
func ParseReadiness(body []byte) (Readiness, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return Readiness{}, fmt.Errorf("decoding status: %w", err)
	}
	fields := make(map[string]any, len(doc))
	for k, v := range doc {
		fields[strings.ToLower(k)] = v
	}

	var r Readiness
	for _, key := range readinessKeys {
		v, ok := fields[key]
		if !ok {
			continue
		}
		if isTruthy(v) {
			return Readiness{Ready: true}, nil
		}
		if s, ok := v.(string); ok && failed[strings.ToLower(strings.TrimSpace(s))] {
			r.Failed = true
		}
	}
	return r, nil
}

func isTruthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return truthy[strings.ToLower(strings.TrimSpace(t))]
	case float64:
		return t != 0
	default:
		return false
	}
}
