package proxy

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/loomrelay/gateway/common/config"
	"github.com/loomrelay/gateway/common/ctxkey"
	"github.com/loomrelay/gateway/common/graceful"
	"github.com/loomrelay/gateway/common/logger"
	"github.com/loomrelay/gateway/common/metrics"
	"github.com/loomrelay/gateway/internal/balancer"
	"github.com/loomrelay/gateway/internal/breaker"
	"github.com/loomrelay/gateway/internal/channelstate"
	"github.com/loomrelay/gateway/internal/configstore"
	"github.com/loomrelay/gateway/internal/ratelimit"
	"github.com/loomrelay/gateway/internal/route"
	"github.com/loomrelay/gateway/model"
	"github.com/loomrelay/gateway/relay/adaptor"
	"github.com/loomrelay/gateway/relay/dialect"
	"github.com/loomrelay/gateway/relay/logsink"
	"github.com/loomrelay/gateway/relay/meta"
	"github.com/loomrelay/gateway/relay/tokencount"
)

const maxSSELineBytes = 1 << 20 // 1 MiB, well above any single SSE event OpenAI/Claude/Gemini emit

// Pipeline owns the shared state the Proxy Pipeline (C8) orchestrates C2-C7
// through, plus the outbound *http.Client with its pooled transport (spec §6:
// "pool size >= 100 per host").
type Pipeline struct {
	Store    *configstore.Store
	Limiter  *ratelimit.Limiter
	Balancer *balancer.Balancer
	Breaker  *breaker.Breaker
	Channels *channelstate.Tracker
	Sink     *logsink.Sink

	httpClient *http.Client
}

// New constructs a Pipeline with a transport sized per spec §6.
func New(store *configstore.Store, lim *ratelimit.Limiter, bal *balancer.Balancer, brk *breaker.Breaker, ch *channelstate.Tracker, sink *logsink.Sink) *Pipeline {
	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConnsPerHost * 4,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout: config.ConnectTimeout,
		}).DialContext,
	}
	return &Pipeline{
		Store:    store,
		Limiter:  lim,
		Balancer: bal,
		Breaker:  brk,
		Channels: ch,
		Sink:     sink,
		httpClient: &http.Client{
			Transport: transport,
			// No client-level Timeout: the overall deadline
			// (config.RequestTimeout) is applied per attempt via context and
			// covers streaming reads as well.
		},
	}
}

// Handle implements spec §4.8 end to end for one inbound request.
func (p *Pipeline) Handle(c *gin.Context) {
	defer graceful.BeginRequest()()

	requestID, _ := c.Get(ctxkey.RequestId)
	reqID, _ := requestID.(string)
	if reqID == "" {
		reqID = uuid.NewString()
	}

	start := time.Now()
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		p.writeError(c, ErrInternal, "failed to read request body")
		return
	}
	probe := probeInbound(body)

	if c.Request.URL.Path == "/v1/chat/completions" && c.Request.Method == http.MethodPost && len(body) > 0 {
		if err := validateChatCompletions(body); err != nil {
			p.finish(c, reqID, "", http.StatusBadRequest, start, tokencount.Usage{}, principalUserID(c))
			c.JSON(ErrInvalidRequest.StatusCode(), newErrorBody(ErrInvalidRequest, err.Error()))
			return
		}
	}

	userID, principalKey := principalFromContext(c)

	snap := p.Store.Current()
	if snap == nil {
		p.finish(c, reqID, "", http.StatusServiceUnavailable, start, tokencount.Usage{}, userID)
		p.writeError(c, ErrInternal, "configuration store unavailable")
		return
	}

	target, err := route.ResolveCached(p.Store, snap, c.Request.URL.Path, probe.Model)
	if err != nil {
		p.finish(c, reqID, "", http.StatusNotFound, start, tokencount.Usage{}, userID)
		p.writeError(c, ErrNoRoute, err.Error())
		return
	}

	if !p.Limiter.Allow(principalKey, 1) {
		metrics.RateLimitedTotal.Inc()
		p.finish(c, reqID, "", http.StatusTooManyRequests, start, tokencount.Usage{}, userID)
		c.Header("Retry-After", "1")
		p.writeError(c, ErrRateLimited, "rate limit exceeded")
		return
	}

	upstreamByID := snap.Upstreams
	gate := func(id string) bool {
		// C6 before C5, per spec §9's open question: order is not
		// semantically observable, so pick one and keep it deterministic.
		return p.Channels.IsAvailable(id) && p.Breaker.Allow(id)
	}
	pool := buildPool(target, upstreamByID, gate)
	pk := newPicker(pool, p.Balancer)

	maxAttempts := config.MaxAttempts
	if pk.Len() < maxAttempts {
		maxAttempts = pk.Len()
	}
	if maxAttempts == 0 {
		p.finish(c, reqID, "", http.StatusServiceUnavailable, start, tokencount.Usage{}, userID)
		p.writeError(c, ErrAllUpstreamsDown, "no healthy upstream available")
		return
	}

	var lastUpstreamID string
	for attempt := 0; attempt < maxAttempts; attempt++ {
		u, ok := pk.Next()
		if !ok {
			break
		}
		lastUpstreamID = u.ID

		usage, status, retryable, handled := p.attempt(c, reqID, u, probe, body)
		if handled {
			metrics.RequestsTotal.WithLabelValues(outcomeLabel(status)).Inc()
			p.finish(c, reqID, u.ID, status, start, usage, userID)
			return
		}
		if !retryable {
			// The only non-retryable, not-yet-handled outcome is a client
			// disconnect mid-attempt (spec §5 cancellation): nothing was
			// written back since there's no client left to write to.
			metrics.RequestsTotal.WithLabelValues("client_disconnect").Inc()
			p.finish(c, reqID, u.ID, status, start, usage, userID)
			return
		}
		metrics.RetriesTotal.Inc()
		// retryable: loop tries the next candidate, if any remain.
	}

	metrics.RequestsTotal.WithLabelValues("all_upstreams_down").Inc()
	p.finish(c, reqID, lastUpstreamID, http.StatusServiceUnavailable, start, tokencount.Usage{}, userID)
	p.writeError(c, ErrAllUpstreamsDown, "all candidate upstreams failed")
}

// attempt issues one outbound call against u and, if the response reaches
// the client, streams/writes it back. It returns the token usage observed,
// the upstream's raw status code, whether the failure (if any) is retryable,
// and whether a response was already written to the client (i.e. this
// attempt is terminal one way or another and the caller must not retry).
func (p *Pipeline) attempt(c *gin.Context, reqID string, u model.Upstream, probe inboundProbe, body []byte) (usage tokencount.Usage, statusCode int, retryable bool, handled bool) {
	m := meta.New(reqID, u, probe.Model, c.Request.URL.Path, probe.Stream, principalUserID(c))

	a, err := adaptor.For(u.ChannelType)
	if err != nil {
		p.Breaker.Record(u.ID, breaker.NetworkError)
		p.writeError(c, ErrAdaptationFailed, err.Error())
		return usage, http.StatusBadGateway, false, true
	}
	a.Init(u)

	passthrough := dialect.Detect(u.ChannelType, body)
	outBody := body
	if !passthrough {
		outBody, err = a.ConvertRequest(m, body)
		if err != nil {
			p.writeError(c, ErrAdaptationFailed, "request translation failed: "+err.Error())
			return usage, http.StatusBadGateway, false, true
		}
	}

	reqURL, err := a.GetRequestURL(m)
	if err != nil {
		p.writeError(c, ErrAdaptationFailed, "building request url failed: "+err.Error())
		return usage, http.StatusBadGateway, false, true
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), config.RequestTimeout)
	defer cancel()

	outReq, err := http.NewRequestWithContext(ctx, c.Request.Method, reqURL, bytes.NewReader(outBody))
	if err != nil {
		p.writeError(c, ErrAdaptationFailed, "building outbound request failed: "+err.Error())
		return usage, http.StatusBadGateway, false, true
	}
	if err := a.SetupRequestHeader(m, outReq.Header, outBody); err != nil {
		p.writeError(c, ErrAdaptationFailed, "header setup failed: "+err.Error())
		return usage, http.StatusBadGateway, false, true
	}
	if signer, ok := a.(adaptor.RequestSigner); ok {
		if err := signer.Sign(outReq, outBody); err != nil {
			p.writeError(c, ErrAdaptationFailed, "request signing failed: "+err.Error())
			return usage, http.StatusBadGateway, false, true
		}
	}

	resp, err := p.httpClient.Do(outReq)
	if err != nil {
		if c.Request.Context().Err() != nil {
			// Client disconnected; the outbound call was cancelled as a
			// consequence, not an upstream failure worth counting.
			return usage, 499, false, false
		}
		ft := breaker.ClassifyHTTP(0, err)
		p.Breaker.Record(u.ID, ft)
		logger.Logger.Warn("outbound request failed", zap.String("upstream_id", u.ID), zap.Error(err))
		return usage, 0, true, false
	}
	defer resp.Body.Close()

	ft := breaker.ClassifyHTTP(resp.StatusCode, nil)
	switch ft {
	case breaker.RateLimited:
		p.Channels.DisableForDuration(u.ID, retryAfter(resp.Header))
	case breaker.AuthError:
		p.Channels.DisableUntilManualReset(u.ID)
	default:
		p.Breaker.Record(u.ID, ft)
	}

	if isRetryableStatus(resp.StatusCode) {
		return usage, resp.StatusCode, true, false
	}

	if m.IsStream {
		usage = p.streamResponse(c, m, a, u.ChannelType, resp, passthrough)
	} else {
		usage = p.bufferedResponse(c, m, a, u.ChannelType, resp, passthrough, body)
	}
	return usage, resp.StatusCode, false, true
}

// bufferedResponse reads a complete non-streaming upstream body, tallies
// tokens from the raw (pre-translation) body, translates it unless this
// attempt was a passthrough, and writes it to the client.
func (p *Pipeline) bufferedResponse(c *gin.Context, m *meta.Meta, a adaptor.Adaptor, channel model.ChannelType, resp *http.Response, passthrough bool, reqBody []byte) tokencount.Usage {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		p.writeError(c, ErrAdaptationFailed, "reading upstream response failed")
		return tokencount.Usage{}
	}

	out := raw
	if !passthrough {
		translated, err := a.ConvertResponse(m, raw)
		if err != nil {
			// Unparsable upstream body after a successful status: forward
			// verbatim rather than fail the whole request (spec §4.7 item 4's
			// "unparsable chunks are passed through" spirit applied to the
			// non-streaming case).
			out = raw
		} else {
			out = translated
		}
	}

	usage := tokencount.FromNonStreamingBody(channel, raw, promptText(reqBody), completionText(out))

	c.Status(resp.StatusCode)
	for k, vv := range resp.Header {
		if isHopByHop(k) {
			continue
		}
		for _, v := range vv {
			c.Writer.Header().Add(k, v)
		}
	}
	c.Writer.Header().Set("Content-Length", strconv.Itoa(len(out)))
	_, _ = c.Writer.Write(out)
	return usage
}

// streamResponse tees the upstream SSE body through the Token Counter (C9)
// while re-emitting each chunk translated for the client, per spec §4.9/§9.
func (p *Pipeline) streamResponse(c *gin.Context, m *meta.Meta, a adaptor.Adaptor, channel model.ChannelType, resp *http.Response, passthrough bool) tokencount.Usage {
	w := newSSEWriter(c.Writer)
	acc := tokencount.NewStreamAccumulator(channel)

	body := newIdleTimeoutReader(resp.Body, config.StreamIdleTimeout)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineBytes)

	_ = sseDataPayloads(scanner, func(payload []byte) error {
		acc.Observe(payload)

		out := payload
		if !passthrough {
			translated, err := a.TranslateStreamChunk(m, payload)
			if err == nil {
				out = translated
			}
		}
		if err := w.WriteData(out); err != nil {
			return err
		}
		return nil
	})
	_ = w.WriteDone()

	return acc.Final()
}

// finish builds and submits the LogRecord for one completed request (spec
// §4.8 step 5 / §3 LogRecord), non-blocking per the Log Sink's (C10)
// drop-on-full policy.
func (p *Pipeline) finish(c *gin.Context, reqID, upstreamID string, statusCode int, start time.Time, usage tokencount.Usage, userID int) {
	status := statusCode
	if c.Request.Context().Err() != nil && status != 499 {
		status = 499
	}
	p.Sink.Submit(logsink.LogRecord{
		RequestID:        reqID,
		UserID:           userID,
		Path:             c.Request.URL.Path,
		UpstreamID:       upstreamID,
		StatusCode:       status,
		LatencyMs:        time.Since(start).Milliseconds(),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TokensEstimated:  usage.Estimated,
		Timestamp:        start,
	})
}

func (p *Pipeline) writeError(c *gin.Context, kind ErrorKind, message string) {
	if c.Writer.Written() {
		return
	}
	c.JSON(kind.StatusCode(), newErrorBody(kind, message))
}

// outcomeLabel buckets a status code actually delivered to the client into
// a small Prometheus label cardinality (spec §8's scenarios care about
// success/failover/terminal-error, not individual codes).
func outcomeLabel(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "success"
	case status >= 400 && status < 500:
		return "client_error"
	default:
		return "upstream_error"
	}
}

func isRetryableStatus(status int) bool {
	return status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout
}

func isHopByHop(header string) bool {
	switch header {
	case "Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
		"Te", "Trailers", "Transfer-Encoding", "Upgrade", "Content-Length":
		return true
	default:
		return false
	}
}

// retryAfter parses an upstream 429's Retry-After header (seconds form),
// defaulting to a conservative cooldown when absent or unparsable (spec
// §4.6: "mark disabled_until = now + hint").
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 30 * time.Second
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 30 * time.Second
}

func principalFromContext(c *gin.Context) (userID int, key string) {
	userID = principalUserID(c)
	if tok, ok := c.Get(ctxkey.Token); ok {
		if t, ok := tok.(model.ApiToken); ok {
			return userID, t.Token
		}
	}
	return userID, c.ClientIP()
}

func principalUserID(c *gin.Context) int {
	if v, ok := c.Get(ctxkey.Principal); ok {
		if id, ok := v.(int); ok {
			return id
		}
	}
	return 0
}
