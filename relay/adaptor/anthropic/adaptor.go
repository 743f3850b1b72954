package anthropic

import (
	"net/http"
	"strings"

	"github.com/loomrelay/gateway/model"
	"github.com/loomrelay/gateway/relay/adaptor"
	"github.com/loomrelay/gateway/relay/meta"
)

func init() {
	adaptor.Register(model.ChannelClaude, func() adaptor.Adaptor { return &Adaptor{} })
}

const anthropicVersion = "2023-06-01"

type Adaptor struct {
	upstream model.Upstream
}

func (a *Adaptor) Init(upstream model.Upstream) { a.upstream = upstream }

func (a *Adaptor) GetRequestURL(_ *meta.Meta) (string, error) {
	return strings.TrimRight(a.upstream.BaseURL, "/") + "/v1/messages", nil
}

func (a *Adaptor) SetupRequestHeader(_ *meta.Meta, header http.Header, _ []byte) error {
	header.Set("Content-Type", "application/json")
	header.Set("anthropic-version", anthropicVersion)
	header.Set("x-api-key", a.upstream.APIKey)
	return nil
}

func (a *Adaptor) ConvertRequest(_ *meta.Meta, body []byte) ([]byte, error) {
	return ToClaudeRequest(body)
}

func (a *Adaptor) ConvertResponse(m *meta.Meta, body []byte) ([]byte, error) {
	return ToChatResponse(m.RequestModel, body)
}

func (a *Adaptor) TranslateStreamChunk(_ *meta.Meta, chunk []byte) ([]byte, error) {
	return TranslateStreamChunk(chunk)
}
