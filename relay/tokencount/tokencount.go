// Package tokencount implements the Token Counter (C9): extracting
// prompt/completion token counts from non-streaming bodies and streaming SSE
// chunks, per dialect, with a tiktoken-go fallback estimate when an upstream
// omits usage accounting.
package tokencount

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/loomrelay/gateway/common/config"
	"github.com/loomrelay/gateway/model"
)

// Usage is the accumulated token tally for one request.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	Estimated        bool
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding(config.TokenEstimateEncoding)
		if err == nil {
			enc = e
		}
	})
	return enc
}

// Estimate counts text with the configured tiktoken-go encoding, falling
// back to a word-count heuristic if the encoding failed to load (e.g. no
// cached BPE ranks available), matching spec §9's documented fallback
// heuristic as a last resort rather than a primary strategy.
func Estimate(text string) int {
	if e := encoding(); e != nil {
		return len(e.Encode(text, nil, nil))
	}
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return len(strings.Fields(text))
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

// FromNonStreamingBody extracts usage from a complete JSON response body,
// per dialect (spec §4.9). A missing/unparsable usage field returns
// estimated=true built from promptText/completionText instead.
func FromNonStreamingBody(channel model.ChannelType, body []byte, promptText, completionText string) Usage {
	switch channel {
	case model.ChannelClaude, model.ChannelBedrockAnthropic:
		var env struct {
			Usage claudeUsage `json:"usage"`
		}
		if json.Unmarshal(body, &env) == nil && (env.Usage.InputTokens != 0 || env.Usage.OutputTokens != 0) {
			return Usage{PromptTokens: env.Usage.InputTokens, CompletionTokens: env.Usage.OutputTokens}
		}
	case model.ChannelGeminiNative, model.ChannelVertexAI:
		var env struct {
			UsageMetadata geminiUsage `json:"usageMetadata"`
		}
		if json.Unmarshal(body, &env) == nil && (env.UsageMetadata.PromptTokenCount != 0 || env.UsageMetadata.CandidatesTokenCount != 0) {
			return Usage{PromptTokens: env.UsageMetadata.PromptTokenCount, CompletionTokens: env.UsageMetadata.CandidatesTokenCount}
		}
	default:
		var env struct {
			Usage openAIUsage `json:"usage"`
		}
		if json.Unmarshal(body, &env) == nil && (env.Usage.PromptTokens != 0 || env.Usage.CompletionTokens != 0) {
			return Usage{PromptTokens: env.Usage.PromptTokens, CompletionTokens: env.Usage.CompletionTokens}
		}
	}
	return Usage{
		PromptTokens:     Estimate(promptText),
		CompletionTokens: Estimate(completionText),
		Estimated:        true,
	}
}

// StreamAccumulator maintains (prompt, completion) accumulators across SSE
// chunks for one request, per spec §4.9/§9 ("the counter subscribing as a
// side-effect stage").
type StreamAccumulator struct {
	channel model.ChannelType
	usage   Usage
	seen    bool
	partial strings.Builder
}

// NewStreamAccumulator constructs an accumulator for channel's dialect.
func NewStreamAccumulator(channel model.ChannelType) *StreamAccumulator {
	return &StreamAccumulator{channel: channel}
}

// Observe feeds one re-emitted SSE data payload (without the "data: "
// prefix) through dialect-specific extraction. For chunks that carry no usage
// information, any OpenAI-shaped choices[].delta.content text is appended to
// a running completion-text buffer for the estimate fallback.
func (a *StreamAccumulator) Observe(chunk []byte) {
	switch a.channel {
	case model.ChannelClaude, model.ChannelBedrockAnthropic:
		var delta struct {
			Type  string `json:"type"`
			Usage struct {
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if json.Unmarshal(chunk, &delta) == nil && delta.Type == "message_delta" && delta.Usage.OutputTokens > 0 {
			a.usage.CompletionTokens = delta.Usage.OutputTokens // cumulative, per spec
			a.seen = true
			return
		}
	case model.ChannelGeminiNative, model.ChannelVertexAI:
		var env struct {
			UsageMetadata geminiUsage `json:"usageMetadata"`
		}
		if json.Unmarshal(chunk, &env) == nil && env.UsageMetadata.CandidatesTokenCount > 0 {
			a.usage.PromptTokens = env.UsageMetadata.PromptTokenCount
			a.usage.CompletionTokens = env.UsageMetadata.CandidatesTokenCount
			a.seen = true
			return
		}
	default:
		var env struct {
			Usage *openAIUsage `json:"usage"`
		}
		if json.Unmarshal(chunk, &env) == nil && env.Usage != nil {
			a.usage.PromptTokens = env.Usage.PromptTokens
			a.usage.CompletionTokens = env.Usage.CompletionTokens
			a.seen = true
			return
		}
	}

	// No usage in this chunk: keep text around for the estimate fallback.
	var generic struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	if json.Unmarshal(chunk, &generic) == nil {
		for _, c := range generic.Choices {
			a.partial.WriteString(c.Delta.Content)
		}
	}
}

// Final returns the accumulated usage, estimating from observed text if no
// chunk ever reported real usage.
func (a *StreamAccumulator) Final() Usage {
	if a.seen {
		return a.usage
	}
	return Usage{CompletionTokens: Estimate(a.partial.String()), Estimated: true}
}
