// Package openai implements the OpenAIChat dialect adaptor: the canonical,
// native format the gateway's inbound surface already speaks, so request and
// response translation are identity operations — only path/auth are
// upstream-specific.
package openai

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/loomrelay/gateway/model"
	"github.com/loomrelay/gateway/relay/adaptor"
	"github.com/loomrelay/gateway/relay/meta"
)

func init() {
	adaptor.Register(model.ChannelOpenAIChat, func() adaptor.Adaptor { return &Adaptor{} })
}

type Adaptor struct {
	upstream model.Upstream
}

func (a *Adaptor) Init(upstream model.Upstream) { a.upstream = upstream }

func (a *Adaptor) GetRequestURL(m *meta.Meta) (string, error) {
	base := strings.TrimRight(a.upstream.BaseURL, "/")
	full := base + m.RequestPath
	if a.upstream.AuthType == model.AuthQuery {
		param := a.upstream.QueryParam
		if param == "" {
			param = "key"
		}
		q := url.Values{}
		q.Set(param, a.upstream.APIKey)
		full += "?" + q.Encode()
	}
	return full, nil
}

func (a *Adaptor) SetupRequestHeader(_ *meta.Meta, header http.Header, _ []byte) error {
	header.Set("Content-Type", "application/json")
	switch a.upstream.AuthType {
	case model.AuthXApiKey:
		header.Set("api-key", a.upstream.APIKey)
	case model.AuthQuery:
		// credential is appended as a query parameter in GetRequestURL
	default:
		header.Set("Authorization", "Bearer "+a.upstream.APIKey)
	}
	return nil
}

func (a *Adaptor) ConvertRequest(_ *meta.Meta, body []byte) ([]byte, error) { return body, nil }

func (a *Adaptor) ConvertResponse(_ *meta.Meta, body []byte) ([]byte, error) { return body, nil }

func (a *Adaptor) TranslateStreamChunk(_ *meta.Meta, chunk []byte) ([]byte, error) {
	return chunk, nil
}
