// Package gemini implements the GeminiNative dialect adaptor: OpenAI chat
// completions <-> Google Generative Language API translation (spec §4.7
// item 3), native passthrough when the body already carries "contents".
package gemini

import (
	"encoding/json"
	"strconv"
)

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
// ToolCallID/Name/Content on a "tool" role message carries that call's
// result back, mirroring OpenAI's tool-message wire shape.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ChatRequest is the canonical inbound chat-completions request.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// functionCall is Gemini's wire shape for a model-emitted tool invocation
// (spec §4.7 item 2: "tool calls" in body translation).
type functionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// functionResponse is Gemini's wire shape for a tool call's result, carried
// back to the model in the next turn.
type functionResponse struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response,omitempty"`
}

type part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

// generateContentRequest is Gemini's native request shape.
type generateContentRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig,omitempty"`
}

// geminiRole maps an OpenAI role to Gemini's role vocabulary; Gemini has no
// "system" role (callers must hoist it separately) and carries tool results
// under "function" rather than "tool".
func geminiRole(openaiRole string) string {
	switch openaiRole {
	case "assistant":
		return "model"
	case "tool":
		return "function"
	default:
		return "user"
	}
}

// ToGeminiRequest converts a canonical ChatRequest into Gemini's
// generateContent shape, hoisting any system-role message into
// systemInstruction. An assistant's tool_calls become functionCall parts; a
// "tool" role message carrying a call's result becomes a functionResponse
// part, per spec §4.7 item 2.
func ToGeminiRequest(body []byte) ([]byte, error) {
	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}

	out := generateContentRequest{
		GenerationConfig: generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}

	for _, msg := range req.Messages {
		if msg.Role == "system" && out.SystemInstruction == nil {
			out.SystemInstruction = &content{Parts: []part{{Text: msg.Content}}}
			continue
		}

		switch {
		case len(msg.ToolCalls) > 0:
			var parts []part
			if msg.Content != "" {
				parts = append(parts, part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, part{FunctionCall: &functionCall{
					Name: tc.Function.Name,
					Args: json.RawMessage(tc.Function.Arguments),
				}})
			}
			out.Contents = append(out.Contents, content{Role: geminiRole(msg.Role), Parts: parts})
		case msg.Role == "tool":
			response, _ := json.Marshal(map[string]string{"content": msg.Content})
			out.Contents = append(out.Contents, content{
				Role: geminiRole(msg.Role),
				Parts: []part{{FunctionResponse: &functionResponse{
					Name:     msg.Name,
					Response: response,
				}}},
			})
		default:
			out.Contents = append(out.Contents, content{
				Role:  geminiRole(msg.Role),
				Parts: []part{{Text: msg.Content}},
			})
		}
	}

	return json.Marshal(out)
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type generateContentResponse struct {
	Candidates    []candidate   `json:"candidates"`
	UsageMetadata usageMetadata `json:"usageMetadata"`
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

// ToChatResponse converts a non-streaming Gemini generateContent response
// into the canonical chat-completions response shape. A functionCall part
// becomes a tool_calls entry on the assistant message, per spec §4.7 item 2.
func ToChatResponse(model string, body []byte) ([]byte, error) {
	var gr generateContentResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, err
	}

	var text string
	var calls []ToolCall
	var finish string
	if len(gr.Candidates) > 0 {
		for i, p := range gr.Candidates[0].Content.Parts {
			if p.FunctionCall != nil {
				tc := ToolCall{ID: syntheticCallID(model, i), Type: "function"}
				tc.Function.Name = p.FunctionCall.Name
				tc.Function.Arguments = string(p.FunctionCall.Args)
				calls = append(calls, tc)
				continue
			}
			text += p.Text
		}
		finish = finishReasonFromGemini(gr.Candidates[0].FinishReason)
	}
	if len(calls) > 0 && finish == "stop" {
		finish = "tool_calls"
	}

	out := chatResponse{
		Object: "chat.completion",
		Model:  model,
		Choices: []chatChoice{{
			Index:        0,
			Message:      ChatMessage{Role: "assistant", Content: text, ToolCalls: calls},
			FinishReason: finish,
		}},
	}
	out.Usage.PromptTokens = gr.UsageMetadata.PromptTokenCount
	out.Usage.CompletionTokens = gr.UsageMetadata.CandidatesTokenCount

	return json.Marshal(out)
}

// syntheticCallID fabricates a stable tool_calls id: Gemini's functionCall
// parts carry no call id of their own, unlike OpenAI/Claude.
func syntheticCallID(model string, index int) string {
	return "call_" + model + "_" + strconv.Itoa(index)
}

func finishReasonFromGemini(reason string) string {
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "":
		return "stop"
	default:
		return reason
	}
}
