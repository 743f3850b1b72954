package gemini

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/loomrelay/gateway/model"
	"github.com/loomrelay/gateway/relay/adaptor"
	"github.com/loomrelay/gateway/relay/dialect"
	"github.com/loomrelay/gateway/relay/meta"
)

func init() {
	adaptor.Register(model.ChannelGeminiNative, func() adaptor.Adaptor { return &Adaptor{} })
}

type Adaptor struct {
	upstream model.Upstream
}

func (a *Adaptor) Init(upstream model.Upstream) { a.upstream = upstream }

func (a *Adaptor) GetRequestURL(m *meta.Meta) (string, error) {
	base := strings.TrimRight(a.upstream.BaseURL, "/")
	path := dialect.NativePath(model.ChannelGeminiNative, m.RequestModel, m.IsStream)

	param := a.upstream.QueryParam
	if param == "" {
		param = "key"
	}
	q := url.Values{}
	q.Set(param, a.upstream.APIKey)
	return base + path + "?" + q.Encode(), nil
}

func (a *Adaptor) SetupRequestHeader(_ *meta.Meta, header http.Header, _ []byte) error {
	header.Set("Content-Type", "application/json")
	return nil
}

func (a *Adaptor) ConvertRequest(_ *meta.Meta, body []byte) ([]byte, error) {
	return ToGeminiRequest(body)
}

func (a *Adaptor) ConvertResponse(m *meta.Meta, body []byte) ([]byte, error) {
	return ToChatResponse(m.RequestModel, body)
}

func (a *Adaptor) TranslateStreamChunk(_ *meta.Meta, chunk []byte) ([]byte, error) {
	return TranslateStreamChunk(chunk)
}
