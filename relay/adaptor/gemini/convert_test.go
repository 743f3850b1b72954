package gemini

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToGeminiRequest_HoistsSystemInstruction(t *testing.T) {
	in := `{"model":"gemini-1.5-pro","messages":[{"role":"system","content":"be nice"},{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`
	out, err := ToGeminiRequest([]byte(in))
	require.NoError(t, err)

	var req generateContentRequest
	require.NoError(t, json.Unmarshal(out, &req))
	require.NotNil(t, req.SystemInstruction)
	assert.Equal(t, "be nice", req.SystemInstruction.Parts[0].Text)
	require.Len(t, req.Contents, 2)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "model", req.Contents[1].Role)
}

func TestToGeminiRequest_ToolCallAndResultBecomeFunctionParts(t *testing.T) {
	in := `{"model":"gemini-1.5-pro","messages":[
		{"role":"user","content":"what's the weather in sf?"},
		{"role":"assistant","tool_calls":[{"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"city\":\"sf\"}"}}]},
		{"role":"tool","tool_call_id":"call_1","name":"get_weather","content":"72F and sunny"}
	]}`
	out, err := ToGeminiRequest([]byte(in))
	require.NoError(t, err)

	var req generateContentRequest
	require.NoError(t, json.Unmarshal(out, &req))
	require.Len(t, req.Contents, 3)

	assistantMsg := req.Contents[1]
	assert.Equal(t, "model", assistantMsg.Role)
	require.Len(t, assistantMsg.Parts, 1)
	require.NotNil(t, assistantMsg.Parts[0].FunctionCall)
	assert.Equal(t, "get_weather", assistantMsg.Parts[0].FunctionCall.Name)

	toolMsg := req.Contents[2]
	assert.Equal(t, "function", toolMsg.Role)
	require.Len(t, toolMsg.Parts, 1)
	require.NotNil(t, toolMsg.Parts[0].FunctionResponse)
	assert.Equal(t, "get_weather", toolMsg.Parts[0].FunctionResponse.Name)
}

func TestToChatResponse_FunctionCallBecomesToolCall(t *testing.T) {
	body := `{"candidates":[{"content":{"parts":[{"functionCall":{"name":"get_weather","args":{"city":"sf"}}}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":2}}`
	out, err := ToChatResponse("gemini-1.5-pro", []byte(body))
	require.NoError(t, err)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	require.Len(t, resp.Choices, 1)
	require.Len(t, resp.Choices[0].Message.ToolCalls, 1)
	assert.Equal(t, "get_weather", resp.Choices[0].Message.ToolCalls[0].Function.Name)
	assert.Equal(t, "tool_calls", resp.Choices[0].FinishReason)
}

func TestToChatResponse_ExtractsTextAndUsage(t *testing.T) {
	body := `{"candidates":[{"content":{"parts":[{"text":"hi there"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":2}}`
	out, err := ToChatResponse("gemini-1.5-pro", []byte(body))
	require.NoError(t, err)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hi there", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, 4, resp.Usage.PromptTokens)
	assert.Equal(t, 2, resp.Usage.CompletionTokens)
}

func TestTranslateStreamChunk_AccumulatesUsageOnLastChunk(t *testing.T) {
	out, err := TranslateStreamChunk([]byte(`{"candidates":[{"content":{"parts":[{"text":"partial"}]}}]}`))
	require.NoError(t, err)
	var chunk chatStreamChunk
	require.NoError(t, json.Unmarshal(out, &chunk))
	assert.Equal(t, "partial", chunk.Choices[0].Delta.Content)
	assert.Nil(t, chunk.Usage)

	last, err := TranslateStreamChunk([]byte(`{"candidates":[{"content":{"parts":[{"text":""}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":9}}`))
	require.NoError(t, err)
	var lastChunk chatStreamChunk
	require.NoError(t, json.Unmarshal(last, &lastChunk))
	require.NotNil(t, lastChunk.Usage)
	assert.Equal(t, 9, lastChunk.Usage.CompletionTokens)
}

func TestTranslateStreamChunk_UnparsablePassesThrough(t *testing.T) {
	raw := []byte(`not json`)
	out, err := TranslateStreamChunk(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}
