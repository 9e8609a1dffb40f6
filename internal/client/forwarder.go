// Package client provides the outbound HTTP client that performs forwarded calls.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"syncapp-erp-proxy/internal/config"
	"syncapp-erp-proxy/internal/metrics"
	"syncapp-erp-proxy/internal/model"
)

// callerHeaderKey carries the sanitized header set of one call to rawHeaders.
type callerHeaderKey struct{}

// errTimeout is the cancellation cause for a caller-requested deadline.
var errTimeout = errors.New("caller timeout elapsed")

// Forwarder performs exactly one upstream request per call and folds every
// outcome, including transport failures, into a ProxyResult.
type Forwarder struct {
	rc      *resty.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewForwarder creates a Forwarder whose connections are never reused, so each
// inbound call maps to its own outbound connection.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewForwarder(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Forwarder {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   time.Duration(cfg.Upstream.DialTimeoutSeconds) * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   time.Duration(cfg.Upstream.TLSHandshakeTimeoutSeconds) * time.Second,
		ResponseHeaderTimeout: time.Duration(cfg.Upstream.ResponseHeaderTimeoutSeconds) * time.Second,
		DisableKeepAlives:     true,
		DisableCompression:    true,
		ForceAttemptHTTP2:     true,
	}

	return NewForwarderWithTransport(transport, logger, m)
}

// NewForwarderWithTransport creates a Forwarder on top of rt. Tests use it to
// route allowed hostnames to local stub servers.
func NewForwarderWithTransport(rt http.RoundTripper, logger *slog.Logger, m *metrics.Metrics) *Forwarder {
	logger = logger.With("component", "forwarder")

	rc := resty.New().
		SetTransport(rt).
		SetRetryCount(0).
		SetCookieJar(nil).
		SetLogger(restyLogger{logger}).
		SetPreRequestHook(rawHeaders).
		// Redirects go back to the caller untouched; following them could
		// leave the allowed domain.
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))

	return &Forwarder{
		rc:      rc,
		logger:  logger,
		metrics: m,
	}
}

// Do sends req upstream and waits for the full response body. The context
// cancels the outbound call (client disconnect); req.Timeout, when positive,
// adds a deadline that surfaces as "Timeout after <ms>ms".
//
// The response body is read raw: resty would otherwise gunzip it while the
// relayed headers still say content-encoding: gzip.
func (f *Forwarder) Do(ctx context.Context, req *model.OutboundRequest) *model.ProxyResult {
	if req.Timeout.Enabled() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, req.Timeout.Duration(), errTimeout)
		defer cancel()
	}

	r := f.rc.R().
		SetContext(context.WithValue(ctx, callerHeaderKey{}, req.Header)).
		SetDoNotParseResponse(true)
	if req.Body != nil && req.Method != http.MethodGet && req.Method != http.MethodHead {
		r.SetBody(*req.Body).SetContentLength(true)
	}

	f.logger.Debug("upstream request",
		"method", req.Method,
		"host", req.Target.Host(),
	)

	start := time.Now()
	body, resp, err := f.execute(r, req)
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)
	if f.metrics != nil {
		f.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
	}

	if err != nil {
		outcome := metrics.OutcomeTransport
		msg := err.Error()
		if req.Timeout.Enabled() && errors.Is(context.Cause(ctx), errTimeout) {
			outcome = metrics.OutcomeTimeout
			msg = fmt.Sprintf("Timeout after %sms", req.Timeout)
		}
		f.record(method, outcome)
		f.logger.Warn("upstream request failed",
			"method", req.Method,
			"host", req.Target.Host(),
			"outcome", outcome,
			"err", msg,
		)
		return model.TransportFailure(msg)
	}

	result := model.UpstreamResult(resp.StatusCode(), resp.Header(), body)
	if result.OK {
		f.record(method, metrics.OutcomeOK)
	} else {
		f.record(method, metrics.OutcomeUpstreamError)
	}
	return result
}

// execute performs the call and drains the raw body.
func (f *Forwarder) execute(r *resty.Request, req *model.OutboundRequest) ([]byte, *resty.Response, error) {
	resp, err := r.Execute(req.Method, req.Target.String())
	if err != nil {
		return nil, nil, err
	}
	raw := resp.RawBody()
	if raw == nil {
		return nil, resp, nil
	}
	defer raw.Close()

	body, err := io.ReadAll(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("read upstream body: %w", err)
	}
	return body, resp, nil
}

func (f *Forwarder) record(method, outcome string) {
	if f.metrics != nil {
		f.metrics.ForwardOutcomes.WithLabelValues(method, outcome).Inc()
	}
}

// rawHeaders replaces the headers resty filled in (its User-Agent, a
// Content-Type guessed from the body) with exactly the caller's set.
func rawHeaders(_ *resty.Client, r *http.Request) error {
	want, _ := r.Context().Value(callerHeaderKey{}).(map[string]string)
	h := make(http.Header, len(want)+1)
	for k, v := range want {
		h.Set(k, v)
	}
	// Present but empty stops net/http from sending its default User-Agent.
	h["User-Agent"] = []string{""}
	r.Header = h
	return nil
}

// restyLogger routes resty's internal warnings into slog.
type restyLogger struct {
	l *slog.Logger
}

func (r restyLogger) Errorf(format string, v ...any) { r.l.Error(fmt.Sprintf(format, v...)) }
func (r restyLogger) Warnf(format string, v ...any)  { r.l.Warn(fmt.Sprintf(format, v...)) }
func (r restyLogger) Debugf(format string, v ...any) { r.l.Debug(fmt.Sprintf(format, v...)) }
