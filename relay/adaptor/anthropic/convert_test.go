package anthropic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToClaudeRequest_HoistsSystemMessage(t *testing.T) {
	in := `{"model":"gpt-4o","messages":[{"role":"system","content":"be nice"},{"role":"user","content":"hi"}],"max_tokens":100}`
	out, err := ToClaudeRequest([]byte(in))
	require.NoError(t, err)

	var req MessagesRequest
	require.NoError(t, json.Unmarshal(out, &req))
	assert.Equal(t, "be nice", req.System)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
}

func TestRoundTrip_OpenAIToClaudeToOpenAI_PreservesModelAgnosticFields(t *testing.T) {
	temp := 0.7
	original := ChatRequest{
		Model:       "gpt-4o",
		Messages:    []ChatMessage{{Role: "system", Content: "be nice"}, {Role: "user", Content: "hi"}},
		Temperature: &temp,
		MaxTokens:   256,
	}
	originalBody, err := json.Marshal(original)
	require.NoError(t, err)

	claudeBody, err := ToClaudeRequest(originalBody)
	require.NoError(t, err)

	roundTripped, err := FromClaudeRequest(claudeBody)
	require.NoError(t, err)

	var got ChatRequest
	require.NoError(t, json.Unmarshal(roundTripped, &got))

	assert.Equal(t, original.MaxTokens, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, *original.Temperature, *got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, original.Messages[0].Content, got.Messages[0].Content)
	assert.Equal(t, original.Messages[1].Content, got.Messages[1].Content)
}

func TestToClaudeRequest_ToolCallBecomesToolUseBlock(t *testing.T) {
	in := `{"model":"gpt-4o","max_tokens":100,"messages":[
		{"role":"user","content":"what's the weather in sf?"},
		{"role":"assistant","tool_calls":[{"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"city\":\"sf\"}"}}]},
		{"role":"tool","tool_call_id":"call_1","content":"72F and sunny"}
	]}`
	out, err := ToClaudeRequest([]byte(in))
	require.NoError(t, err)

	var raw struct {
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type      string `json:"type"`
				ID        string `json:"id"`
				Name      string `json:"name"`
				ToolUseID string `json:"tool_use_id"`
				Content   string `json:"content"`
			} `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(out, &raw))
	require.Len(t, raw.Messages, 3)

	assistantMsg := raw.Messages[1]
	require.Len(t, assistantMsg.Content, 1)
	assert.Equal(t, "tool_use", assistantMsg.Content[0].Type)
	assert.Equal(t, "call_1", assistantMsg.Content[0].ID)
	assert.Equal(t, "get_weather", assistantMsg.Content[0].Name)

	toolMsg := raw.Messages[2]
	assert.Equal(t, "user", toolMsg.Role)
	require.Len(t, toolMsg.Content, 1)
	assert.Equal(t, "tool_result", toolMsg.Content[0].Type)
	assert.Equal(t, "call_1", toolMsg.Content[0].ToolUseID)
	assert.Equal(t, "72F and sunny", toolMsg.Content[0].Content)
}

func TestRoundTrip_ToolCall_OpenAIToClaudeToOpenAI(t *testing.T) {
	original := ChatRequest{
		Model: "gpt-4o",
		Messages: []ChatMessage{
			{Role: "user", Content: "what's the weather in sf?"},
			{Role: "assistant", ToolCalls: []ToolCall{{ID: "call_1", Type: "function"}}},
			{Role: "tool", ToolCallID: "call_1", Content: "72F and sunny"},
		},
		MaxTokens: 256,
	}
	original.Messages[1].ToolCalls[0].Function.Name = "get_weather"
	original.Messages[1].ToolCalls[0].Function.Arguments = `{"city":"sf"}`

	originalBody, err := json.Marshal(original)
	require.NoError(t, err)

	claudeBody, err := ToClaudeRequest(originalBody)
	require.NoError(t, err)

	roundTripped, err := FromClaudeRequest(claudeBody)
	require.NoError(t, err)

	var got ChatRequest
	require.NoError(t, json.Unmarshal(roundTripped, &got))
	require.Len(t, got.Messages, 3)

	require.Len(t, got.Messages[1].ToolCalls, 1)
	assert.Equal(t, "call_1", got.Messages[1].ToolCalls[0].ID)
	assert.Equal(t, "get_weather", got.Messages[1].ToolCalls[0].Function.Name)
	assert.Equal(t, `{"city":"sf"}`, got.Messages[1].ToolCalls[0].Function.Arguments)

	assert.Equal(t, "tool", got.Messages[2].Role)
	assert.Equal(t, "call_1", got.Messages[2].ToolCallID)
	assert.Equal(t, "72F and sunny", got.Messages[2].Content)
}

func TestToChatResponse_ToolUseBlockBecomesToolCall(t *testing.T) {
	body := `{"id":"msg_1","content":[{"type":"tool_use","id":"call_9","name":"get_weather","input":{"city":"sf"}}],"stop_reason":"tool_use","usage":{"input_tokens":3,"output_tokens":5}}`
	out, err := ToChatResponse("claude-3", []byte(body))
	require.NoError(t, err)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	require.Len(t, resp.Choices, 1)
	require.Len(t, resp.Choices[0].Message.ToolCalls, 1)
	assert.Equal(t, "call_9", resp.Choices[0].Message.ToolCalls[0].ID)
	assert.Equal(t, "get_weather", resp.Choices[0].Message.ToolCalls[0].Function.Name)
	assert.Equal(t, "tool_calls", resp.Choices[0].FinishReason)
}

func TestToChatResponse_ExtractsTextAndUsage(t *testing.T) {
	body := `{"id":"msg_1","content":[{"type":"text","text":"hello"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":5}}`
	out, err := ToChatResponse("claude-3", []byte(body))
	require.NoError(t, err)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, 3, resp.Usage.PromptTokens)
	assert.Equal(t, 5, resp.Usage.CompletionTokens)
}

func TestTranslateStreamChunk_ContentDelta(t *testing.T) {
	out, err := TranslateStreamChunk([]byte(`{"type":"content_block_delta","delta":{"type":"text_delta","text":"hi"}}`))
	require.NoError(t, err)
	var chunk chatStreamChunk
	require.NoError(t, json.Unmarshal(out, &chunk))
	assert.Equal(t, "hi", chunk.Choices[0].Delta.Content)
}

func TestTranslateStreamChunk_UnparsablePassesThrough(t *testing.T) {
	raw := []byte(`not json at all`)
	out, err := TranslateStreamChunk(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}
