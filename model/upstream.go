// Package model holds the gorm schemas the Config Store (C1) reads — the
// relational tables owned by the external management plane, read-only from
// this repo's perspective.
package model

import "time"

// AuthType enumerates how the proxy pipeline authenticates outbound requests
// to a given Upstream.
type AuthType string

const (
	AuthBearer     AuthType = "Bearer"
	AuthXApiKey    AuthType = "XApiKey"
	AuthQuery      AuthType = "Query"
	AuthAwsSigV4   AuthType = "AwsSigV4"
	AuthGoogleAI   AuthType = "GoogleAI"
)

// ChannelType identifies the upstream's wire dialect, selecting which
// relay/adaptor.Adaptor the Protocol Adaptor (C7) uses for it.
type ChannelType string

const (
	ChannelOpenAIChat      ChannelType = "OpenAIChat"
	ChannelClaude          ChannelType = "Claude"
	ChannelGeminiNative    ChannelType = "GeminiNative"
	ChannelVertexAI        ChannelType = "VertexAI"
	ChannelBedrockAnthropic ChannelType = "BedrockAnthropic"
)

// Upstream is an outbound LLM provider endpoint, as spec'd in §3. The
// `api_key` column holds an opaque secret (bearer token, API key, or AWS
// secret key depending on AuthType) and is never logged or returned verbatim
// to clients.
type Upstream struct {
	ID          string      `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name        string      `json:"name" gorm:"type:varchar(255)"`
	BaseURL     string      `json:"base_url" gorm:"type:varchar(1024)"`
	APIKey      string      `json:"-" gorm:"type:text"`
	AuthType    AuthType    `json:"auth_type" gorm:"type:varchar(32)"`
	QueryParam  string      `json:"query_param,omitempty" gorm:"type:varchar(64)"` // for AuthQuery
	Region      string      `json:"region,omitempty" gorm:"type:varchar(32)"`      // for AuthAwsSigV4
	MatchPath   string      `json:"match_path" gorm:"type:varchar(255);index"`
	Priority    int         `json:"priority" gorm:"default:0"`
	Models      string      `json:"models" gorm:"type:text"` // comma-separated, may include "*"
	GroupTag    string      `json:"group_tag" gorm:"type:varchar(64);index"`
	ChannelType ChannelType `json:"channel_type" gorm:"type:varchar(32)"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (Upstream) TableName() string { return "upstreams" }

// ModelsList splits the comma-separated Models column, trimming whitespace.
func (u Upstream) ModelsList() []string {
	return splitCSV(u.Models)
}

// SupportsModel reports whether u advertises model, a bare "*" matching any.
func (u Upstream) SupportsModel(model string) bool {
	if model == "" {
		return true
	}
	for _, m := range u.ModelsList() {
		if m == "*" || m == model {
			return true
		}
	}
	return false
}
