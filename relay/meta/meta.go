// Package meta aggregates the per-request facts the rest of the proxy
// pipeline needs (resolved upstream, requested model, streaming flag,
// timing) into one value threaded through C7–C10.
package meta

import (
	"time"

	"github.com/loomrelay/gateway/model"
)

// Meta is built once per request after the Load Balancer (C3) has picked an
// upstream candidate, and rebuilt for each retry against a new candidate.
type Meta struct {
	RequestID       string
	Upstream        model.Upstream
	RequestModel    string // the model name as the client sent it
	IsStream        bool
	RequestPath     string
	PrincipalUserID int
	StartTime       time.Time
}

// New builds a Meta for one attempt against upstream.
func New(requestID string, upstream model.Upstream, requestModel, path string, stream bool, principalUserID int) *Meta {
	return &Meta{
		RequestID:       requestID,
		Upstream:        upstream,
		RequestModel:    requestModel,
		IsStream:        stream,
		RequestPath:     path,
		PrincipalUserID: principalUserID,
		StartTime:       time.Now(),
	}
}

// Elapsed returns the time since the attempt started, in milliseconds.
func (m *Meta) Elapsed() int64 {
	return time.Since(m.StartTime).Milliseconds()
}
