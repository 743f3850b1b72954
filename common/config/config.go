// Package config exposes the gateway's env-driven tunables as typed
// package-level variables, resolved once at process start.
package config

import (
	"strings"
	"time"

	"github.com/loomrelay/gateway/common/env"
)

var (
	// ServerPort overrides the listen port when running inside a container or PaaS environment.
	ServerPort = strings.TrimSpace(env.String("PORT", "3000"))
	// GinMode allows forcing Gin into release mode without recompiling.
	GinMode = strings.TrimSpace(env.String("GIN_MODE", "release"))

	// DebugEnabled toggles verbose structured logging when DEBUG=true.
	DebugEnabled = env.Bool("DEBUG", false)

	// ConfigRefreshIntervalSec controls how often the Config Store reloads upstreams/groups/tokens
	// from the relational store in the background, in addition to explicit Refresh calls.
	ConfigRefreshIntervalSec = env.Int("CONFIG_REFRESH_INTERVAL_SECONDS", 30)
	// RouteCacheTTLSeconds bounds how long a resolved (path, model) route is memoized before
	// re-resolution, invalidated early on any config refresh regardless of this TTL.
	RouteCacheTTLSeconds = env.Int("ROUTE_CACHE_TTL_SECONDS", 60)

	// DefaultBucketCapacity is the token-bucket burst capacity applied when a principal has no
	// explicit override.
	DefaultBucketCapacity = env.Float64("RATE_LIMIT_DEFAULT_CAPACITY", 60)
	// DefaultBucketRefillPerSec is the token-bucket refill rate (tokens/sec) applied by default.
	DefaultBucketRefillPerSec = env.Float64("RATE_LIMIT_DEFAULT_REFILL_PER_SEC", 1)

	// CircuitFailureThreshold is the number of consecutive classified failures that trips an
	// upstream's breaker from Closed to Open; a recorded success resets the count, and failures
	// are not counted over a time window.
	CircuitFailureThreshold = uint32(env.Int("CIRCUIT_FAILURE_THRESHOLD", 5))
	// CircuitSuccessThreshold is the number of consecutive HalfOpen successes required to close
	// the breaker again.
	CircuitSuccessThreshold = uint32(env.Int("CIRCUIT_SUCCESS_THRESHOLD", 2))
	// CircuitOpenDuration is how long an Open breaker stays Open before probing HalfOpen.
	CircuitOpenDuration = time.Second * time.Duration(env.Int("CIRCUIT_OPEN_DURATION_SECONDS", 30))

	// MaxAttempts caps how many candidate upstreams the proxy pipeline tries per request, further
	// bounded by min(MaxAttempts, len(candidates)) at call time.
	MaxAttempts = env.Int("PROXY_MAX_ATTEMPTS", 3)
	// ConnectTimeout bounds outbound TCP/TLS handshake time per attempt.
	ConnectTimeout = time.Second * time.Duration(env.Int("UPSTREAM_CONNECT_TIMEOUT_SECONDS", 5))
	// RequestTimeout bounds the overall outbound request deadline (including streaming reads),
	// configurable per route in a future extension; the default applies uniformly today.
	RequestTimeout = time.Second * time.Duration(env.Int("UPSTREAM_REQUEST_TIMEOUT_SECONDS", 300))
	// StreamIdleTimeout bounds the gap allowed between successive SSE chunks before treating the
	// stream as stalled.
	StreamIdleTimeout = time.Second * time.Duration(env.Int("UPSTREAM_STREAM_IDLE_TIMEOUT_SECONDS", 60))
	// MaxIdleConnsPerHost is the floor on pooled idle connections per upstream host.
	MaxIdleConnsPerHost = env.Int("UPSTREAM_MAX_IDLE_CONNS_PER_HOST", 100)

	// LogChannelCapacity is the bounded Log Sink channel size (Nlog); beyond this, records drop
	// rather than block request latency.
	LogChannelCapacity = env.Int("LOG_CHANNEL_CAPACITY", 4096)
	// LogBatchSize is the maximum number of log records flushed to storage in one transaction.
	LogBatchSize = env.Int("LOG_BATCH_SIZE", 128)
	// LogBatchIntervalMs is the maximum time a partial batch waits before being flushed anyway.
	LogBatchIntervalMs = env.Int("LOG_BATCH_INTERVAL_MS", 200)

	// TokenEstimateEncoding names the tiktoken-go encoding used to estimate prompt/completion
	// tokens when an upstream response omits usage accounting.
	TokenEstimateEncoding = env.String("TOKEN_ESTIMATE_ENCODING", "cl100k_base")

	// SQLiteBusyRetryAttempts bounds how many times a SQLite write retries after "database is
	// locked"/"database is busy" errors.
	SQLiteBusyRetryAttempts = env.Int("SQLITE_BUSY_RETRY_ATTEMPTS", 5)

	// LogDir, when non-empty, mirrors gin's default writers to a log file under it, named by the
	// date the process started; the file is not rotated while the process runs.
	LogDir = strings.TrimSpace(env.String("LOG_DIR", ""))
	// LogRetentionDays bounds how long log files under LogDir are kept before deletion;
	// 0 disables the retention cleaner entirely.
	LogRetentionDays = env.Int("LOG_RETENTION_DAYS", 0)
)
