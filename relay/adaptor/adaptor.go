// Package adaptor defines the Protocol Adaptor (C7) contract shared by every
// dialect package, grounded on this codebase family's
// relay/adaptor/interface.go shape: one small interface, one struct per
// provider, selected by a static factory map rather than plugin loading
// (spec §9 "Adaptor polymorphism").
package adaptor

import (
	"net/http"

	"github.com/loomrelay/gateway/model"
	"github.com/loomrelay/gateway/relay/meta"
)

// Adaptor translates one dialect's wire format to/from the canonical
// OpenAIChat shape the gateway's inbound surface speaks, and injects
// upstream auth.
type Adaptor interface {
	// Init binds the adaptor instance to the upstream it will serve for the
	// remainder of this attempt (credentials, region, etc).
	Init(upstream model.Upstream)

	// GetRequestURL returns the fully-qualified outbound URL for this
	// request, applying the path rewrite rules of spec §4.7 item 1.
	GetRequestURL(m *meta.Meta) (string, error)

	// SetupRequestHeader injects auth (spec §4.7 item 3) and any
	// dialect-required headers into header.
	SetupRequestHeader(m *meta.Meta, header http.Header, body []byte) error

	// ConvertRequest translates an inbound body into the upstream's dialect.
	// When dialect.Detect reports the inbound body is already native,
	// callers skip this and forward body unchanged (passthrough, §4.7.1).
	ConvertRequest(m *meta.Meta, body []byte) ([]byte, error)

	// ConvertResponse translates a complete, non-streaming upstream response
	// body back into the canonical OpenAIChat shape.
	ConvertResponse(m *meta.Meta, body []byte) ([]byte, error)

	// TranslateStreamChunk translates one upstream SSE data payload (without
	// the "data: " prefix) into the client dialect. An unparsable chunk
	// should be returned unchanged, per spec §4.7 item 4.
	TranslateStreamChunk(m *meta.Meta, chunk []byte) ([]byte, error)
}

// RequestSigner is an optional capability implemented by adaptors whose
// upstream authenticates the whole request rather than a single header
// value (AWS SigV4 for Bedrock). The proxy pipeline type-asserts for this
// after ConvertRequest/SetupRequestHeader have produced the final outbound
// request, since the signature must cover the finished body.
type RequestSigner interface {
	Sign(req *http.Request, body []byte) error
}

// Factory constructs a fresh Adaptor for a channel type. Adding a dialect
// means adding a package plus one factory entry — no runtime plugin loading
// (spec §9).
type Factory func() Adaptor

var registry = map[model.ChannelType]Factory{}

// Register adds (or replaces) the factory for channelType. Dialect packages
// call this from an init() func.
func Register(channelType model.ChannelType, f Factory) {
	registry[channelType] = f
}

// ErrUnsupportedDialect is returned by For when no adaptor is registered for
// a channel type (a config-store misconfiguration, surfaced by relay/proxy
// as AdaptationFailed).
type ErrUnsupportedDialect model.ChannelType

func (e ErrUnsupportedDialect) Error() string {
	return "unsupported channel type: " + string(e)
}

// For returns a fresh Adaptor instance for channelType.
func For(channelType model.ChannelType) (Adaptor, error) {
	f, ok := registry[channelType]
	if !ok {
		return nil, ErrUnsupportedDialect(channelType)
	}
	return f(), nil
}
