package anthropic

import "encoding/json"

type claudeStreamEvent struct {
	Type         string `json:"type"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

type chatStreamChunk struct {
	Object  string `json:"object"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Content   string          `json:"content,omitempty"`
			ToolCalls []toolCallDelta `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
}

// TranslateStreamChunk re-emits one Claude SSE event as an OpenAI-shaped
// streaming chunk. Events carrying no text delta and no usage (message_start,
// ping) translate to an empty-delta chunk rather than being dropped,
// preserving chunk boundaries per spec §4.7 item 4. A "tool_use" content
// block's start and its incremental "input_json_delta" chunks (spec §4.7
// item 2's streaming tool-call case) become an OpenAI-shaped tool_calls
// delta entry at index 0.
func TranslateStreamChunk(chunk []byte) ([]byte, error) {
	var ev claudeStreamEvent
	if err := json.Unmarshal(chunk, &ev); err != nil {
		return chunk, nil // unparsable chunks pass through verbatim
	}

	out := chatStreamChunk{Object: "chat.completion.chunk"}
	choice := struct {
		Index int `json:"index"`
		Delta struct {
			Content   string          `json:"content,omitempty"`
			ToolCalls []toolCallDelta `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	}{Index: 0}

	switch ev.Type {
	case "content_block_start":
		if ev.ContentBlock.Type == "tool_use" {
			td := toolCallDelta{Index: 0, ID: ev.ContentBlock.ID, Type: "function"}
			td.Function.Name = ev.ContentBlock.Name
			choice.Delta.ToolCalls = []toolCallDelta{td}
		}
	case "content_block_delta":
		switch ev.Delta.Type {
		case "input_json_delta":
			td := toolCallDelta{Index: 0}
			td.Function.Arguments = ev.Delta.PartialJSON
			choice.Delta.ToolCalls = []toolCallDelta{td}
		default:
			choice.Delta.Content = ev.Delta.Text
		}
	case "message_delta":
		if ev.Usage.OutputTokens > 0 {
			out.Usage = &struct {
				PromptTokens     int `json:"prompt_tokens"`
				CompletionTokens int `json:"completion_tokens"`
			}{CompletionTokens: ev.Usage.OutputTokens}
		}
	case "message_stop":
		reason := "stop"
		choice.FinishReason = &reason
	}

	out.Choices = append(out.Choices, choice)
	return json.Marshal(out)
}
