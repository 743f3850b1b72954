package bedrock

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomrelay/gateway/model"
	"github.com/loomrelay/gateway/relay/meta"
)

func TestInit_ParsesCompositeAPIKey(t *testing.T) {
	a := &Adaptor{}
	a.Init(model.Upstream{APIKey: "AKID:SECRET:TOKEN", Region: "eu-west-1"})
	assert.Equal(t, "eu-west-1", a.signer.region)
	assert.Equal(t, "AKID", a.signer.provider.Value.AccessKeyID)
	assert.Equal(t, "SECRET", a.signer.provider.Value.SecretAccessKey)
	assert.Equal(t, "TOKEN", a.signer.provider.Value.SessionToken)
}

func TestGetRequestURL_InvokeVsStreamingAction(t *testing.T) {
	a := &Adaptor{}
	a.Init(model.Upstream{APIKey: "AKID:SECRET", Region: "us-east-1"})

	url, err := a.GetRequestURL(&meta.Meta{RequestModel: "anthropic.claude-3-sonnet", IsStream: false})
	require.NoError(t, err)
	assert.Equal(t, "https://bedrock-runtime.us-east-1.amazonaws.com/model/anthropic.claude-3-sonnet/invoke", url)

	url, err = a.GetRequestURL(&meta.Meta{RequestModel: "anthropic.claude-3-sonnet", IsStream: true})
	require.NoError(t, err)
	assert.Equal(t, "https://bedrock-runtime.us-east-1.amazonaws.com/model/anthropic.claude-3-sonnet/invoke-with-response-stream", url)
}

func TestConvertRequest_StripsModelAndPinsBedrockAnthropicVersion(t *testing.T) {
	a := &Adaptor{}
	a.Init(model.Upstream{APIKey: "AKID:SECRET"})

	in := `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"max_tokens":50}`
	out, err := a.ConvertRequest(&meta.Meta{}, []byte(in))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &raw))
	_, hasModel := raw["model"]
	assert.False(t, hasModel)

	var version string
	require.NoError(t, json.Unmarshal(raw["anthropic_version"], &version))
	assert.Equal(t, "bedrock-2023-05-31", version)
}
