// Package anthropic implements the Claude dialect adaptor: OpenAI chat
// completions <-> Anthropic Messages translation (spec §4.7 item 2), native
// passthrough when the body already carries "anthropic_version" (§4.7.1).
package anthropic

import "encoding/json"

// ToolCall is the OpenAI-shaped function tool call an assistant message
// carries in canonical chat-completions requests/responses.
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// ChatMessage is the canonical (OpenAI-shaped) message the gateway's inbound
// surface uses. ToolCalls carries an assistant's function-call requests;
// ToolCallID/Content on a "tool" role message carries that call's result
// back, mirroring OpenAI's tool-message wire shape.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ChatRequest is the canonical inbound chat-completions request.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// claudeContentBlock is one entry of Anthropic's content-block array, used
// whenever a message carries more than plain text: tool_use (an assistant's
// function call) or tool_result (that call's result), per spec §4.7 item 2.
type claudeContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

// claudeMessage is Anthropic's wire shape for one Messages entry: content is
// either a plain string (the common case) or a content-block array (tool
// calls/results). The two are distinguished at marshal/unmarshal time since
// encoding/json can't express a sum type directly.
type claudeMessage struct {
	Role   string
	Text   string
	Blocks []claudeContentBlock
}

func (m claudeMessage) MarshalJSON() ([]byte, error) {
	if m.Blocks != nil {
		return json.Marshal(struct {
			Role    string               `json:"role"`
			Content []claudeContentBlock `json:"content"`
		}{Role: m.Role, Content: m.Blocks})
	}
	return json.Marshal(struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{Role: m.Role, Content: m.Text})
}

func (m *claudeMessage) UnmarshalJSON(data []byte) error {
	var probe struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	m.Role = probe.Role

	var asString string
	if err := json.Unmarshal(probe.Content, &asString); err == nil {
		m.Text = asString
		return nil
	}
	var blocks []claudeContentBlock
	if err := json.Unmarshal(probe.Content, &blocks); err != nil {
		return err
	}
	m.Blocks = blocks
	return nil
}

// MessagesRequest is Anthropic's native /v1/messages request shape.
type MessagesRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Stream      bool            `json:"stream,omitempty"`
}

// ToClaudeRequest converts a canonical ChatRequest into Anthropic's Messages
// shape: the leading system-role message (if any) is hoisted into the
// top-level `system` field; an assistant's tool_calls become "tool_use"
// content blocks, and a "tool" role message carrying a call's result becomes
// a user message with a "tool_result" block, per spec §4.7 item 2.
func ToClaudeRequest(body []byte) ([]byte, error) {
	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}

	out := MessagesRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = 4096 // Claude requires max_tokens; pick a safe default when unset
	}

	for _, msg := range req.Messages {
		if msg.Role == "system" && out.System == "" {
			out.System = msg.Content
			continue
		}

		switch {
		case len(msg.ToolCalls) > 0:
			var blocks []claudeContentBlock
			if msg.Content != "" {
				blocks = append(blocks, claudeContentBlock{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, claudeContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Function.Name,
					Input: json.RawMessage(tc.Function.Arguments),
				})
			}
			out.Messages = append(out.Messages, claudeMessage{Role: msg.Role, Blocks: blocks})
		case msg.Role == "tool":
			out.Messages = append(out.Messages, claudeMessage{
				Role: "user",
				Blocks: []claudeContentBlock{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})
		default:
			out.Messages = append(out.Messages, claudeMessage{Role: msg.Role, Text: msg.Content})
		}
	}

	return json.Marshal(out)
}

// FromClaudeRequest is the inverse of ToClaudeRequest, used both for the
// round-trip property test and to translate a native Claude request back to
// canonical shape when bridging to an OpenAIChat upstream.
func FromClaudeRequest(body []byte) ([]byte, error) {
	var req MessagesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}

	out := ChatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
	}
	if req.System != "" {
		out.Messages = append(out.Messages, ChatMessage{Role: "system", Content: req.System})
	}

	for _, msg := range req.Messages {
		if msg.Blocks == nil {
			out.Messages = append(out.Messages, ChatMessage{Role: msg.Role, Content: msg.Text})
			continue
		}

		var text string
		var toolResult *claudeContentBlock
		var calls []ToolCall
		for _, b := range msg.Blocks {
			switch b.Type {
			case "text":
				text += b.Text
			case "tool_use":
				tc := ToolCall{ID: b.ID, Type: "function"}
				tc.Function.Name = b.Name
				tc.Function.Arguments = string(b.Input)
				calls = append(calls, tc)
			case "tool_result":
				block := b
				toolResult = &block
			}
		}
		if toolResult != nil {
			out.Messages = append(out.Messages, ChatMessage{
				Role:       "tool",
				Content:    toolResult.Content,
				ToolCallID: toolResult.ToolUseID,
			})
			continue
		}
		out.Messages = append(out.Messages, ChatMessage{Role: msg.Role, Content: text, ToolCalls: calls})
	}

	return json.Marshal(out)
}

// claudeResponse is the subset of Anthropic's Messages response this
// gateway translates back to the canonical chat-completions shape.
type claudeResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text"`
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// ToChatResponse converts a non-streaming Claude Messages response into the
// canonical chat-completions response shape. A "tool_use" content block
// becomes a tool_calls entry on the assistant message, per spec §4.7 item 2.
func ToChatResponse(model string, body []byte) ([]byte, error) {
	var cr claudeResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, err
	}

	var text string
	var calls []ToolCall
	for _, block := range cr.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "tool_use":
			tc := ToolCall{ID: block.ID, Type: "function"}
			tc.Function.Name = block.Name
			tc.Function.Arguments = string(block.Input)
			calls = append(calls, tc)
		}
	}

	out := chatResponse{
		ID:     cr.ID,
		Object: "chat.completion",
		Model:  model,
		Choices: []chatChoice{{
			Index:        0,
			Message:      ChatMessage{Role: "assistant", Content: text, ToolCalls: calls},
			FinishReason: finishReasonFromClaude(cr.StopReason),
		}},
	}
	out.Usage.PromptTokens = cr.Usage.InputTokens
	out.Usage.CompletionTokens = cr.Usage.OutputTokens

	return json.Marshal(out)
}

func finishReasonFromClaude(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return reason
	}
}
