// Package bedrock implements the BedrockAnthropic dialect adaptor: Claude
// models served through AWS Bedrock's InvokeModel/InvokeModelWithResponseStream
// API, authenticated with SigV4 request signing rather than a bearer token
// (spec §4.7 item 5). Body translation is delegated to the anthropic package
// since Bedrock's InvokeModel body is Claude's native Messages shape with the
// model/anthropic_version fields handled out-of-band.
package bedrock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

const bedrockService = "bedrock"

// signer wraps v4.Signer with a static-credential provider: the upstream
// record's APIKey field carries "<access_key_id>:<secret_access_key>"
// (optionally ":<session_token>").
type signer struct {
	provider credentials.StaticCredentialsProvider
	region   string
	// clock supplies the signing timestamp; overridden in tests so the
	// canonical request's date/scope is pinned and reproducible, since SigV4
	// is only deterministic (spec §8) for a fixed signing time.
	clock func() time.Time
}

func newSigner(accessKeyID, secretAccessKey, sessionToken, region string) *signer {
	return &signer{
		provider: credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken),
		region:   region,
		clock:    time.Now,
	}
}

// sign applies an AWS SigV4 signature to req for the bedrock service,
// hashing body as the payload hash per SigV4's requirement that the
// signature cover the request body.
func (s *signer) sign(ctx context.Context, req *http.Request, body []byte) error {
	creds, err := s.provider.Retrieve(ctx)
	if err != nil {
		return err
	}

	hash := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(hash[:])

	return v4.NewSigner().SignHTTP(ctx, creds, req, payloadHash, bedrockService, s.region, s.clock())
}
