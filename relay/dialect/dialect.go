// Package dialect implements the passthrough decision (spec §4.7.1): whether
// an inbound request already speaks the upstream's native wire format and can
// be forwarded verbatim save for auth rewriting.
package dialect

import (
	"encoding/json"

	"github.com/loomrelay/gateway/model"
)

// nativeField names, per dialect, one JSON field whose presence in the
// inbound body discriminates "this request is already native" from "this
// request needs translation".
var nativeField = map[model.ChannelType]string{
	model.ChannelClaude:          "anthropic_version",
	model.ChannelGeminiNative:    "contents",
	model.ChannelVertexAI:        "contents",
	model.ChannelBedrockAnthropic: "anthropic_version",
}

// Detect reports whether body already matches upstream's native dialect, in
// which case the Protocol Adaptor forwards it verbatim and only rewrites
// auth. OpenAIChat has no distinguishing field of its own — any body shaped
// like a chat-completions request is already native to it, so Detect always
// reports true for that channel type.
func Detect(upstream model.ChannelType, body []byte) bool {
	if upstream == model.ChannelOpenAIChat {
		return true
	}

	field, ok := nativeField[upstream]
	if !ok || len(body) == 0 {
		return false
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	_, present := probe[field]
	return present
}

// NativePath returns the upstream-native path for a request against model m,
// used for the path-rewrite step of non-passthrough translation (spec
// §4.7 item 1).
func NativePath(upstream model.ChannelType, model_ string, stream bool) string {
	switch upstream {
	case model.ChannelClaude, model.ChannelBedrockAnthropic:
		return "/v1/messages"
	case model.ChannelGeminiNative, model.ChannelVertexAI:
		action := "generateContent"
		if stream {
			action = "streamGenerateContent"
		}
		return "/v1beta/models/" + model_ + ":" + action
	default:
		return "/v1/chat/completions"
	}
}
