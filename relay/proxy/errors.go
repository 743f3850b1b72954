// Package proxy implements the Proxy Pipeline (C8): the per-request
// orchestration of C2-C7 (resolve -> admit -> pick -> gate -> adapt),
// the outbound HTTP call with streaming and retry, and the C9/C10 tee
// at the tail, spec §4.8.
package proxy

import "net/http"

// ErrorKind enumerates the client-facing error kinds of spec §7, each with a
// fixed HTTP status and a stable machine-readable code for the JSON envelope.
type ErrorKind string

const (
	ErrAuthRequired    ErrorKind = "auth_required"
	ErrQuotaExceeded   ErrorKind = "quota_exceeded"
	ErrNoRoute         ErrorKind = "no_route"
	ErrRateLimited     ErrorKind = "rate_limited"
	ErrAllUpstreamsDown ErrorKind = "all_upstreams_down"
	ErrAdaptationFailed ErrorKind = "adaptation_failed"
	ErrTimeout         ErrorKind = "timeout"
	ErrInternal        ErrorKind = "internal_error"

	// ErrInvalidRequest is an ambient addition beyond spec §7's table: a
	// canonical-shape request that fails go-playground/validator struct
	// validation before routing is attempted at all.
	ErrInvalidRequest ErrorKind = "invalid_request"
)

// StatusCode returns the HTTP status spec §7's table assigns to k.
func (k ErrorKind) StatusCode() int {
	switch k {
	case ErrAuthRequired:
		return http.StatusUnauthorized
	case ErrQuotaExceeded:
		return http.StatusPaymentRequired
	case ErrNoRoute:
		return http.StatusNotFound
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrAllUpstreamsDown:
		return http.StatusServiceUnavailable
	case ErrAdaptationFailed:
		return http.StatusBadGateway
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error pairs an ErrorKind with a human-readable message so callers can
// `errors.As` it out of a failed attempt and still keep the message for
// logs/response bodies.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// errorBody is the JSON envelope every failure path writes, spec §7:
// {"error": {"code": "...", "message": "..."}}.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newErrorBody(kind ErrorKind, msg string) errorBody {
	var b errorBody
	b.Error.Code = string(kind)
	b.Error.Message = msg
	return b
}
