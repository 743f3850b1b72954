package vertexai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomrelay/gateway/model"
	"github.com/loomrelay/gateway/relay/meta"
)

func TestGetRequestURL_DefaultRegionAndStreamingAction(t *testing.T) {
	a := &Adaptor{}
	a.Init(model.Upstream{GroupTag: "my-project"})

	m := &meta.Meta{RequestModel: "gemini-1.5-pro", IsStream: false}
	url, err := a.GetRequestURL(m)
	require.NoError(t, err)
	assert.Equal(t,
		"https://us-central1-aiplatform.googleapis.com/v1/projects/my-project/locations/us-central1/publishers/google/models/gemini-1.5-pro:generateContent",
		url)

	m.IsStream = true
	url, err = a.GetRequestURL(m)
	require.NoError(t, err)
	assert.Contains(t, url, ":streamGenerateContent")
}

func TestGetRequestURL_CustomRegionAndBaseURL(t *testing.T) {
	a := &Adaptor{}
	a.Init(model.Upstream{GroupTag: "my-project", Region: "europe-west4", BaseURL: "https://private.example.com"})

	url, err := a.GetRequestURL(&meta.Meta{RequestModel: "gemini-1.5-flash"})
	require.NoError(t, err)
	assert.Equal(t,
		"https://private.example.com/v1/projects/my-project/locations/europe-west4/publishers/google/models/gemini-1.5-flash:generateContent",
		url)
}

func TestConvertRequestAndResponse_DelegatesToGeminiShape(t *testing.T) {
	a := &Adaptor{}
	a.Init(model.Upstream{})

	in := `{"model":"gemini-1.5-pro","messages":[{"role":"user","content":"hi"}]}`
	out, err := a.ConvertRequest(&meta.Meta{}, []byte(in))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"contents"`)

	respBody := `{"candidates":[{"content":{"parts":[{"text":"hello"}]},"finishReason":"STOP"}]}`
	chatResp, err := a.ConvertResponse(&meta.Meta{RequestModel: "gemini-1.5-pro"}, []byte(respBody))
	require.NoError(t, err)
	assert.Contains(t, string(chatResp), "hello")
}
