// Package vertexai implements the VertexAI dialect adaptor: Google's hosted
// Vertex AI endpoint for Gemini models, reached with a Google Cloud service
// account OAuth2 token rather than Gemini's API-key query parameter (spec
// §4.7 item 3, auth variant). Request/response bodies share Gemini's native
// generateContent shape, so translation is delegated to the gemini package.
package vertexai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"

	"github.com/loomrelay/gateway/model"
	"github.com/loomrelay/gateway/relay/adaptor"
	"github.com/loomrelay/gateway/relay/adaptor/gemini"
	"github.com/loomrelay/gateway/relay/meta"
)

func init() {
	adaptor.Register(model.ChannelVertexAI, func() adaptor.Adaptor { return &Adaptor{} })
}

// Adaptor talks to Vertex AI's publisher-model endpoint. The upstream's
// APIKey field carries the service account JSON credential; BaseURL, when
// set, overrides the default regional host (useful for private endpoints or
// test doubles).
type Adaptor struct {
	upstream model.Upstream

	tokenOnce sync.Once
	tokenSrc  tokenSource
	tokenErr  error
}

type tokenSource interface {
	Token() (string, error)
}

func (a *Adaptor) Init(upstream model.Upstream) { a.upstream = upstream }

func (a *Adaptor) endpointHost() string {
	if a.upstream.BaseURL != "" {
		return strings.TrimRight(a.upstream.BaseURL, "/")
	}
	region := a.upstream.Region
	if region == "" {
		region = "us-central1"
	}
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com", region)
}

func (a *Adaptor) GetRequestURL(m *meta.Meta) (string, error) {
	action := "generateContent"
	if m.IsStream {
		action = "streamGenerateContent"
	}
	// Vertex AI's publisher-model path embeds the project and region rather
	// than taking a bare model name; GroupTag on the upstream record carries
	// the GCP project ID.
	region := a.upstream.Region
	if region == "" {
		region = "us-central1"
	}
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:%s",
		a.endpointHost(), a.upstream.GroupTag, region, m.RequestModel, action), nil
}

func (a *Adaptor) SetupRequestHeader(_ *meta.Meta, header http.Header, _ []byte) error {
	header.Set("Content-Type", "application/json")
	token, err := a.accessToken()
	if err != nil {
		return fmt.Errorf("vertexai: obtaining access token: %w", err)
	}
	header.Set("Authorization", "Bearer "+token)
	return nil
}

// accessToken lazily builds a google.Credentials-backed token source from
// the upstream's service account JSON and fetches a fresh access token,
// refreshing transparently on expiry courtesy of oauth2's TokenSource.
func (a *Adaptor) accessToken() (string, error) {
	a.tokenOnce.Do(func() {
		creds, err := google.CredentialsFromJSON(context.Background(), []byte(a.upstream.APIKey),
			"https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			a.tokenErr = err
			return
		}
		a.tokenSrc = oauth2Adapter{creds}
	})
	if a.tokenErr != nil {
		return "", a.tokenErr
	}
	return a.tokenSrc.Token()
}

type oauth2Adapter struct {
	creds *google.Credentials
}

func (o oauth2Adapter) Token() (string, error) {
	tok, err := o.creds.TokenSource.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (a *Adaptor) ConvertRequest(_ *meta.Meta, body []byte) ([]byte, error) {
	return gemini.ToGeminiRequest(body)
}

func (a *Adaptor) ConvertResponse(m *meta.Meta, body []byte) ([]byte, error) {
	return gemini.ToChatResponse(m.RequestModel, body)
}

func (a *Adaptor) TranslateStreamChunk(_ *meta.Meta, chunk []byte) ([]byte, error) {
	return gemini.TranslateStreamChunk(chunk)
}
