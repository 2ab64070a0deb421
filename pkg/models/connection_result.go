package models

import (
	"errors"
	"fmt"
)

// result statuses a diagnostic callable can report
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ErrMissingStatus is returned when a remote result has no usable status field
var ErrMissingStatus = errors.New("result has no status")

// ConnectionResult is the payload a diagnostic callable returns.
// Only Status is mandatory, the rest default to "".
type ConnectionResult struct {
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"` // ISO-8601, set by the server at call time
	ServerModule string `json:"server_module,omitempty"`
}

// OK reports whether the remote side said "success"
func (r *ConnectionResult) OK() bool {
	return r != nil && r.Status == StatusSuccess
}

// Map returns the wire form of the result (what a server callable returns)
func (r *ConnectionResult) Map() map[string]any {
	out := map[string]any{"status": r.Status}
	if r.Message != "" {
		out["message"] = r.Message
	}
	if r.Timestamp != "" {
		out["timestamp"] = r.Timestamp
	}
	if r.ServerModule != "" {
		out["server_module"] = r.ServerModule
	}
	return out
}

// ConnectionResultFromMap builds a result from a decoded remote mapping.
// Missing optional fields stay empty, non-string values are rendered with %v.
func ConnectionResultFromMap(raw map[string]any) (*ConnectionResult, error) {
	status := field(raw, "status")
	if status == "" {
		return nil, ErrMissingStatus
	}
	return &ConnectionResult{
		Status:       status,
		Message:      field(raw, "message"),
		Timestamp:    field(raw, "timestamp"),
		ServerModule: field(raw, "server_module"),
	}, nil
}

func field(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
