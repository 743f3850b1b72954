// Package breaker implements the Circuit Breaker (C5): a per-upstream
// three-state machine (spec §4.5), backed by github.com/sony/gobreaker/v2
// rather than hand-rolled Closed/Open/HalfOpen bookkeeping.
package breaker

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/loomrelay/gateway/common/metrics"
	"github.com/loomrelay/gateway/internal/shard"
)

// FailureType classifies an outcome, per spec §4.5. RateLimited and AuthError
// never reach the breaker's counters — the Proxy Pipeline routes those to
// the Channel-State Tracker (C6) instead.
type FailureType int

const (
	Success FailureType = iota
	Timeout
	HttpServerError
	RateLimited
	AuthError
	NetworkError
)

// State mirrors gobreaker's three states under our own names so callers
// never import gobreaker directly.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return Open
	case gobreaker.StateHalfOpen:
		return HalfOpen
	default:
		return Closed
	}
}

// CircuitState is the observable snapshot spec §3 names, readable without
// reaching into gobreaker internals.
type CircuitState struct {
	State       State
	Failures    uint32
	Successes   uint32
	WindowStart time.Time
}

// Breaker owns one gobreaker.CircuitBreaker[struct{}] per upstream id, keyed
// in a sharded map so lookups never contend across unrelated upstreams.
type Breaker struct {
	FailureThreshold uint32
	SuccessThreshold uint32
	OpenDuration     time.Duration

	cbs    *shard.Map[*gobreaker.CircuitBreaker[struct{}]]
	states *shard.Map[*CircuitState]
}

// New constructs a Breaker with the given thresholds, applied to every
// upstream it manages.
func New(failureThreshold, successThreshold uint32, openDuration time.Duration) *Breaker {
	return &Breaker{
		FailureThreshold: failureThreshold,
		SuccessThreshold: successThreshold,
		OpenDuration:     openDuration,
		cbs:              shard.New[*gobreaker.CircuitBreaker[struct{}]](),
		states:           shard.New[*CircuitState](),
	}
}

func (b *Breaker) circuitFor(upstreamID string) *gobreaker.CircuitBreaker[struct{}] {
	return b.cbs.GetOrCreate(upstreamID, func() *gobreaker.CircuitBreaker[struct{}] {
		st := &CircuitState{State: Closed, WindowStart: time.Now()}
		b.states.Set(upstreamID, st)

		settings := gobreaker.Settings{
			Name:        upstreamID,
			MaxRequests: b.SuccessThreshold,
			Timeout:     b.OpenDuration,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= b.FailureThreshold
			},
			OnStateChange: func(_ string, from, to gobreaker.State) {
				if to == gobreaker.StateOpen {
					metrics.CircuitOpenTotal.WithLabelValues(upstreamID).Inc()
				}
				b.states.Update(upstreamID, func(v **CircuitState) {
					if *v == nil {
						*v = &CircuitState{}
					}
					(*v).State = fromGobreaker(to)
					if to == gobreaker.StateClosed {
						(*v).Failures = 0
						(*v).WindowStart = time.Now()
					}
				})
			},
		}
		return gobreaker.NewCircuitBreaker[struct{}](settings)
	})
}

// Allow reports whether upstreamID may currently be dispatched to — false
// iff the breaker is Open (spec §4.5's allow()).
func (b *Breaker) Allow(upstreamID string) bool {
	cb := b.circuitFor(upstreamID)
	return cb.State() != gobreaker.StateOpen
}

// Record classifies outcome and feeds the breaker's counters, except for
// RateLimited/AuthError, which are ignored here: they neither count as
// failures nor change the breaker's state (spec §4.5).
func (b *Breaker) Record(upstreamID string, outcome FailureType) {
	cb := b.circuitFor(upstreamID)

	switch outcome {
	case RateLimited, AuthError:
		// Surfaced to the Channel-State Tracker by the caller; the breaker
		// itself stays uninformed, per spec.
		return
	case Success:
		_, _ = cb.Execute(func() (struct{}, error) { return struct{}{}, nil })
	default:
		_, _ = cb.Execute(func() (struct{}, error) { return struct{}{}, errTripped })
	}

	b.states.Update(upstreamID, func(v **CircuitState) {
		if *v == nil {
			*v = &CircuitState{}
		}
		if outcome == Success {
			(*v).Successes++
		} else {
			(*v).Failures++
		}
	})
}

// State returns the observable CircuitState for upstreamID.
func (b *Breaker) State(upstreamID string) CircuitState {
	b.circuitFor(upstreamID) // ensure it exists
	if v, ok := b.states.Get(upstreamID); ok && v != nil {
		return *v
	}
	return CircuitState{State: Closed}
}

// classificationError is a sentinel passed to gobreaker.Execute to mark a
// call as failed without allocating a new error per call.
type classificationError struct{}

func (classificationError) Error() string { return "classified failure" }

var errTripped = classificationError{}

// ClassifyHTTP maps an outbound attempt's outcome to a FailureType, the
// first step of spec §4.8's "classify failures".
func ClassifyHTTP(statusCode int, err error) FailureType {
	if err != nil {
		if isTimeout(err) {
			return Timeout
		}
		return NetworkError
	}
	switch {
	case statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout:
		// Spec §4.8: "4xx (except 408/429 from upstream which bump
		// rate-limit state and still terminal)" — 408 is grouped with 429,
		// not routed into the breaker's failure window.
		return RateLimited
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return AuthError
	case statusCode >= 500:
		return HttpServerError
	default:
		return Success
	}
}

type timeouter interface{ Timeout() bool }

func isTimeout(err error) bool {
	t, ok := err.(timeouter)
	return ok && t.Timeout()
}
