// Package channelstate implements the Channel-State Tracker (C6): transient
// upstream disablement independent of the Circuit Breaker (rate-limit
// cooldown, auth-error manual reset), spec §4.6.
package channelstate

import (
	"time"

	"github.com/loomrelay/gateway/internal/shard"
)

// Reason names why an upstream was disabled.
type Reason string

const (
	ReasonRateLimit Reason = "rate_limit"
	ReasonAuthError Reason = "auth_error"
)

// ChannelDisable mirrors spec §3: a reason plus an optional expiry. A nil
// DisabledUntil (manual-reset auth disablement) never clears on its own.
type ChannelDisable struct {
	Reason        Reason
	DisabledUntil *time.Time
}

// Tracker is a sharded map of upstream id -> ChannelDisable.
type Tracker struct {
	disabled *shard.Map[*ChannelDisable]
	now      func() time.Time
}

// New constructs an empty Tracker.
func New() *Tracker {
	return &Tracker{disabled: shard.New[*ChannelDisable](), now: time.Now}
}

// DisableForDuration marks upstreamID disabled until now+hint, used on a 429
// with a Retry-After hint (or parsed body hint).
func (t *Tracker) DisableForDuration(upstreamID string, hint time.Duration) {
	until := t.now().Add(hint)
	t.disabled.Set(upstreamID, &ChannelDisable{Reason: ReasonRateLimit, DisabledUntil: &until})
}

// DisableUntilManualReset marks upstreamID disabled with no expiry, used on
// an auth error. Only Reset (an explicit management action) clears it.
func (t *Tracker) DisableUntilManualReset(upstreamID string) {
	t.disabled.Set(upstreamID, &ChannelDisable{Reason: ReasonAuthError, DisabledUntil: nil})
}

// Reset clears any disablement recorded for upstreamID.
func (t *Tracker) Reset(upstreamID string) {
	t.disabled.Delete(upstreamID)
}

// IsAvailable reports whether upstreamID may be used, clearing an expired
// entry lazily on read (spec §4.6).
func (t *Tracker) IsAvailable(upstreamID string) bool {
	d, ok := t.disabled.Get(upstreamID)
	if !ok || d == nil {
		return true
	}
	if d.DisabledUntil == nil {
		return false // manual-reset disablement, still in effect
	}
	if t.now().Before(*d.DisabledUntil) {
		return false
	}
	t.disabled.Delete(upstreamID)
	return true
}
