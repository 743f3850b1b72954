package gemini

import "encoding/json"

// TranslateStreamChunk re-emits one Gemini streamGenerateContent JSON object
// (Gemini's stream is a sequence of complete JSON values, not SSE deltas) as
// an OpenAI-shaped streaming chunk.
func TranslateStreamChunk(chunk []byte) ([]byte, error) {
	var gr generateContentResponse
	if err := json.Unmarshal(chunk, &gr); err != nil {
		return chunk, nil // unparsable chunks pass through verbatim
	}

	out := chatStreamChunk{Object: "chat.completion.chunk"}
	out.Choices = append(out.Choices, chatStreamChoice{Index: 0})

	if len(gr.Candidates) > 0 {
		for i, p := range gr.Candidates[0].Content.Parts {
			if p.FunctionCall != nil {
				td := toolCallDelta{Index: i, Type: "function"}
				td.Function.Name = p.FunctionCall.Name
				td.Function.Arguments = string(p.FunctionCall.Args)
				out.Choices[0].Delta.ToolCalls = append(out.Choices[0].Delta.ToolCalls, td)
				continue
			}
			out.Choices[0].Delta.Content += p.Text
		}
		if reason := gr.Candidates[0].FinishReason; reason != "" {
			mapped := finishReasonFromGemini(reason)
			out.Choices[0].FinishReason = &mapped
		}
	}

	if gr.UsageMetadata.CandidatesTokenCount > 0 || gr.UsageMetadata.PromptTokenCount > 0 {
		out.Usage = &chatStreamUsage{
			PromptTokens:     gr.UsageMetadata.PromptTokenCount,
			CompletionTokens: gr.UsageMetadata.CandidatesTokenCount,
		}
	}

	return json.Marshal(out)
}

type toolCallDelta struct {
	Index    int    `json:"index"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

type chatStreamChoice struct {
	Index int `json:"index"`
	Delta struct {
		Content   string          `json:"content,omitempty"`
		ToolCalls []toolCallDelta `json:"tool_calls,omitempty"`
	} `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type chatStreamUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatStreamChunk struct {
	Object  string             `json:"object"`
	Choices []chatStreamChoice `json:"choices"`
	Usage   *chatStreamUsage   `json:"usage,omitempty"`
}
