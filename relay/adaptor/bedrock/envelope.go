package bedrock

import "encoding/json"

const invokeModelAnthropicVersion = "bedrock-2023-05-31"

// injectAnthropicVersion rewrites a Claude Messages request for Bedrock's
// InvokeModel envelope: the model field is dropped (it travels in the URL
// path instead) and anthropic_version is pinned to Bedrock's own constant,
// distinct from the Anthropic API's "2023-06-01" header value.
func injectAnthropicVersion(claudeBody []byte) ([]byte, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(claudeBody, &raw); err != nil {
		return nil, err
	}

	delete(raw, "model")
	delete(raw, "stream")
	version, err := json.Marshal(invokeModelAnthropicVersion)
	if err != nil {
		return nil, err
	}
	raw["anthropic_version"] = version

	return json.Marshal(raw)
}
