package ctxkey

import "github.com/gin-gonic/gin"

// Gin context keys set/read across the proxy pipeline, mirroring the dense
// Set in:/Read in: convention used throughout this codebase so the data flow
// stays greppable without tracing every middleware by hand.
const (
	// RequestId is the per-request identifier generated at the top of the pipeline.
	// Set in: middleware/request-id.go.
	// Read in: relay/proxy.Pipeline.Handle (LogRecord.RequestID).
	RequestId = "request_id"

	// Principal is the authenticated ApiToken's owning user id.
	// Set in: middleware/auth.
	// Read in: relay/proxy (LogRecord.UserID).
	Principal = "principal"

	// Token is the resolved model.ApiToken (stored by value) for the current request.
	// Set in: middleware/auth.
	// Read in: relay/proxy, whose Token string keys the rate-limit bucket.
	Token = "token"

	// RouteTarget names a slot for the *route.Target resolved for (path, model).
	// No package sets or reads it: relay/proxy.Pipeline keeps the target
	// returned by route.ResolveCached in a local variable.
	RouteTarget = "route_target"

	// Meta names a slot for the *meta.Meta of this request.
	// No package sets or reads it: relay/proxy builds one with meta.New per
	// attempt and passes it along directly.
	Meta = "meta"

	// KeyRequestBody caches the raw request body bytes so middleware and the
	// pipeline can both inspect it without consuming the reader twice.
	KeyRequestBody = gin.BodyBytesKey
)
