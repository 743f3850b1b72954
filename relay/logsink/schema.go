package logsink

import "time"

// LogRecord is one billing/audit entry per completed proxied request (spec
// §3), immutable after creation. UpstreamID is empty when the request never
// reached an upstream (e.g. NoRoute).
type LogRecord struct {
	ID               int64     `json:"-" gorm:"primaryKey;autoIncrement"`
	RequestID        string    `json:"request_id" gorm:"type:char(36);index"`
	UserID           int       `json:"user_id,omitempty" gorm:"index"`
	Path             string    `json:"path" gorm:"type:varchar(512)"`
	UpstreamID       string    `json:"upstream_id,omitempty" gorm:"type:varchar(64);index"`
	StatusCode       int       `json:"status_code"`
	LatencyMs        int64     `json:"latency_ms"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TokensEstimated  bool      `json:"tokens_estimated"`
	Cost             float64   `json:"cost"`
	Timestamp        time.Time `json:"timestamp" gorm:"index"`
}

func (LogRecord) TableName() string { return "router_logs" }
