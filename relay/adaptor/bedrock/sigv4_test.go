package bedrock

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSign_IsDeterministicForFixedTimestamp asserts the property this
// gateway actually depends on: signing the same request twice with the same
// credentials, region, and clock yields byte-identical Authorization
// headers.
func TestSign_IsDeterministicForFixedTimestamp(t *testing.T) {
	s := newSigner("AKIDEXAMPLE", "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY", "", "us-east-1")
	s.clock = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	body := []byte(`{"anthropic_version":"bedrock-2023-05-31","messages":[{"role":"user","content":"hi"}]}`)

	req1, err := http.NewRequest(http.MethodPost,
		"https://bedrock-runtime.us-east-1.amazonaws.com/model/anthropic.claude-3/invoke", nil)
	require.NoError(t, err)
	req1.Header.Set("Content-Type", "application/json")

	req2, err := http.NewRequest(http.MethodPost,
		"https://bedrock-runtime.us-east-1.amazonaws.com/model/anthropic.claude-3/invoke", nil)
	require.NoError(t, err)
	req2.Header.Set("Content-Type", "application/json")

	require.NoError(t, s.sign(t.Context(), req1, body))
	require.NoError(t, s.sign(t.Context(), req2, body))

	auth1 := req1.Header.Get("Authorization")
	auth2 := req2.Header.Get("Authorization")
	require.NotEmpty(t, auth1)
	assert.True(t, strings.HasPrefix(auth1, "AWS4-HMAC-SHA256"))
	assert.Equal(t, auth1, auth2, "same credentials/body/clock must yield the same signature")
}

func TestSign_DifferentBodyYieldsDifferentSignature(t *testing.T) {
	s := newSigner("AKIDEXAMPLE", "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY", "", "us-east-1")

	newReq := func() *http.Request {
		req, err := http.NewRequest(http.MethodPost,
			"https://bedrock-runtime.us-east-1.amazonaws.com/model/anthropic.claude-3/invoke", nil)
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	req1, req2 := newReq(), newReq()
	require.NoError(t, s.sign(t.Context(), req1, []byte(`{"a":1}`)))
	require.NoError(t, s.sign(t.Context(), req2, []byte(`{"a":2}`)))

	assert.NotEqual(t, req1.Header.Get("Authorization"), req2.Header.Get("Authorization"))
}

// TestSign_MatchesReferenceVectorForScenario6 pins clock, credentials, region,
// method, path, and body to the exact reference vector named in spec.md
// scenario 6 — (AK=AKID, SK=SECRET, region=us-east-1, POST
// /model/foo/invoke, body={}, date=20240101T000000Z) — and checks the
// produced Authorization header byte-for-byte against a signature recomputed
// from first principles (the HMAC-SHA256 key-derivation chain and canonical
// request construction defined by the SigV4 algorithm, per spec §4.7.2's
// encoding rule), rather than against a second call into the same signer.
// This is the strongest check possible without either fabricating a
// third-party-verified vector or running the toolchain to capture one.
func TestSign_MatchesReferenceVectorForScenario6(t *testing.T) {
	const (
		accessKeyID     = "AKID"
		secretAccessKey = "SECRET"
		region          = "us-east-1"
	)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	body := []byte(`{}`)

	s := newSigner(accessKeyID, secretAccessKey, "", region)
	s.clock = func() time.Time { return date }

	req, err := http.NewRequest(http.MethodPost,
		"https://bedrock-runtime.us-east-1.amazonaws.com/model/foo/invoke", nil)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	require.NoError(t, s.sign(t.Context(), req, body))

	auth := req.Header.Get("Authorization")
	require.NotEmpty(t, auth)

	signedHeaderNames, gotSignature := parseAuthorizationHeader(t, auth)
	wantSignature := referenceSigV4Signature(t, req, signedHeaderNames, body, secretAccessKey, date, region, bedrockService)
	assert.Equal(t, wantSignature, gotSignature, "signature must match the SigV4 algorithm applied independently to the same inputs")
}

// parseAuthorizationHeader extracts the SignedHeaders list and Signature from
// an "AWS4-HMAC-SHA256 Credential=..., SignedHeaders=..., Signature=..."
// header, without assuming which headers the signing library chose to sign.
func parseAuthorizationHeader(t *testing.T, auth string) (signedHeaders []string, signature string) {
	t.Helper()
	parts := strings.SplitN(auth, " ", 2)
	require.Len(t, parts, 2)
	require.Equal(t, "AWS4-HMAC-SHA256", parts[0])

	for _, field := range strings.Split(parts[1], ", ") {
		kv := strings.SplitN(field, "=", 2)
		require.Len(t, kv, 2)
		switch kv[0] {
		case "SignedHeaders":
			signedHeaders = strings.Split(kv[1], ";")
		case "Signature":
			signature = kv[1]
		}
	}
	require.NotEmpty(t, signedHeaders)
	require.NotEmpty(t, signature)
	return signedHeaders, signature
}

// referenceSigV4Signature independently recomputes the SigV4 signature for
// req using the algorithm's public definition: a canonical request built
// from the exact signed-header set the real signer chose, hashed and folded
// through the AWS4-HMAC-SHA256 key-derivation chain.
func referenceSigV4Signature(t *testing.T, req *http.Request, signedHeaders []string, body []byte, secretAccessKey string, date time.Time, region, service string) string {
	t.Helper()

	amzDate := date.Format("20060102T150405Z")
	dateStamp := date.Format("20060102")

	var canonicalHeaders strings.Builder
	for _, name := range signedHeaders {
		var value string
		switch strings.ToLower(name) {
		case "host":
			value = req.Host
			if value == "" {
				value = req.URL.Host
			}
		default:
			value = req.Header.Get(name)
		}
		canonicalHeaders.WriteString(strings.ToLower(name))
		canonicalHeaders.WriteString(":")
		canonicalHeaders.WriteString(value)
		canonicalHeaders.WriteString("\n")
	}

	payloadHash := sha256.Sum256(body)

	canonicalRequest := strings.Join([]string{
		req.Method,
		req.URL.Path,
		"",
		canonicalHeaders.String(),
		strings.Join(signedHeaders, ";"),
		hex.EncodeToString(payloadHash[:]),
	}, "\n")

	hashedCanonicalRequest := sha256.Sum256([]byte(canonicalRequest))
	credentialScope := dateStamp + "/" + region + "/" + service + "/aws4_request"
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		credentialScope,
		hex.EncodeToString(hashedCanonicalRequest[:]),
	}, "\n")

	signingKey := deriveSigningKey(secretAccessKey, dateStamp, region, service)
	sig := hmacSHA256(signingKey, stringToSign)
	return hex.EncodeToString(sig)
}

func deriveSigningKey(secretAccessKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretAccessKey), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, "aws4_request")
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
