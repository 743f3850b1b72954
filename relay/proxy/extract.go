package proxy

import "encoding/json"

// inboundProbe reads just enough of the canonical inbound request body to
// drive routing (model) and protocol decisions (stream), without committing
// to any one dialect's full request shape.
type inboundProbe struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

func probeInbound(body []byte) inboundProbe {
	var p inboundProbe
	_ = json.Unmarshal(body, &p) // best-effort; zero value routes by path only
	return p
}

// promptText concatenates the canonical request's message contents, used as
// the Token Counter's (C9) estimate-fallback input when an upstream response
// omits usage accounting (spec §4.9/§9).
func promptText(body []byte) string {
	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if json.Unmarshal(body, &req) != nil {
		return ""
	}
	var out string
	for i, m := range req.Messages {
		if i > 0 {
			out += "\n"
		}
		out += m.Content
	}
	return out
}

// completionText extracts the assistant message content from a canonical
// (already-translated) chat-completions response body, same fallback role
// as promptText above.
func completionText(canonicalBody []byte) string {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if json.Unmarshal(canonicalBody, &resp) != nil || len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}
