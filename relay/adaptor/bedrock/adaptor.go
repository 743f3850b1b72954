package bedrock

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/loomrelay/gateway/model"
	"github.com/loomrelay/gateway/relay/adaptor"
	"github.com/loomrelay/gateway/relay/adaptor/anthropic"
	"github.com/loomrelay/gateway/relay/meta"
)

func init() {
	adaptor.Register(model.ChannelBedrockAnthropic, func() adaptor.Adaptor { return &Adaptor{} })
}

// Adaptor talks to Bedrock's runtime API. The upstream's APIKey field
// carries "<access_key_id>:<secret_access_key>[:<session_token>]"; Region
// selects the Bedrock regional endpoint.
type Adaptor struct {
	upstream model.Upstream
	signer   *signer
}

func (a *Adaptor) Init(upstream model.Upstream) {
	a.upstream = upstream

	accessKeyID, secretAccessKey, sessionToken := "", "", ""
	parts := strings.SplitN(upstream.APIKey, ":", 3)
	if len(parts) > 0 {
		accessKeyID = parts[0]
	}
	if len(parts) > 1 {
		secretAccessKey = parts[1]
	}
	if len(parts) > 2 {
		sessionToken = parts[2]
	}

	region := upstream.Region
	if region == "" {
		region = "us-east-1"
	}
	a.signer = newSigner(accessKeyID, secretAccessKey, sessionToken, region)
}

func (a *Adaptor) endpointHost() string {
	if a.upstream.BaseURL != "" {
		return strings.TrimRight(a.upstream.BaseURL, "/")
	}
	return fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", a.signer.region)
}

func (a *Adaptor) GetRequestURL(m *meta.Meta) (string, error) {
	action := "invoke"
	if m.IsStream {
		action = "invoke-with-response-stream"
	}
	return fmt.Sprintf("%s/model/%s/%s", a.endpointHost(), m.RequestModel, action), nil
}

// SetupRequestHeader sets only Content-Type and Accept: SigV4 signing happens
// in ConvertRequest's caller via Sign, since it must see the final body.
func (a *Adaptor) SetupRequestHeader(_ *meta.Meta, header http.Header, _ []byte) error {
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	return nil
}

// Sign applies SigV4 signing to the outbound request. Called by the proxy
// pipeline after headers and body are finalized, since the signature
// covers both.
func (a *Adaptor) Sign(req *http.Request, body []byte) error {
	return a.signer.sign(req.Context(), req, body)
}

// ConvertRequest reshapes a canonical ChatRequest into Bedrock's InvokeModel
// envelope: Claude's native Messages body with anthropic_version pinned,
// and model/stream fields stripped since they travel in the URL instead.
func (a *Adaptor) ConvertRequest(m *meta.Meta, body []byte) ([]byte, error) {
	claudeBody, err := anthropic.ToClaudeRequest(body)
	if err != nil {
		return nil, err
	}
	return injectAnthropicVersion(claudeBody)
}

func (a *Adaptor) ConvertResponse(m *meta.Meta, body []byte) ([]byte, error) {
	return anthropic.ToChatResponse(m.RequestModel, body)
}

func (a *Adaptor) TranslateStreamChunk(_ *meta.Meta, chunk []byte) ([]byte, error) {
	return anthropic.TranslateStreamChunk(chunk)
}
