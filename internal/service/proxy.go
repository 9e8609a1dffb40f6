// Package service implements the data-plane pipeline behind POST /proxy.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"syncapp-erp-proxy/internal/metrics"
	"syncapp-erp-proxy/internal/model"
	"syncapp-erp-proxy/internal/policy"
)

// maxTimeout bounds caller timeouts to what time.Duration can hold.
const maxTimeout = model.Timeout(math.MaxInt64 / int64(time.Millisecond))

// Doer performs one outbound call. It never fails; failures are folded into
// the returned result.
type Doer interface {
	Do(ctx context.Context, req *model.OutboundRequest) *model.ProxyResult
}

// ProxyService turns a decoded payload into at most one outbound call.
type ProxyService struct {
	forwarder Doer
	validator *policy.TargetValidator
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewProxyService creates a ProxyService.
// The metrics parameter is optional; pass nil to disable rejection counting.
func NewProxyService(fwd Doer, v *policy.TargetValidator, logger *slog.Logger, m *metrics.Metrics) *ProxyService {
	return &ProxyService{
		forwarder: fwd,
		validator: v,
		logger:    logger.With("component", "proxy_service"),
		metrics:   m,
	}
}

// Forward validates pr and, if it passes, forwards it. A non-nil error is
// always a target policy error and means no outbound call was made.
func (s *ProxyService) Forward(ctx context.Context, pr *model.ProxyRequest) (*model.ProxyResult, error) {
	out, err := s.Prepare(pr)
	if err != nil {
		reason := rejectionReason(err)
		if s.metrics != nil {
			s.metrics.PolicyRejections.WithLabelValues(reason).Inc()
		}
		s.logger.Info("target rejected", "reason", reason, "err", err)
		return nil, err
	}

	s.logger.Debug("forwarding request",
		"method", out.Method,
		"host", out.Target.Host(),
		"timeout_ms", out.Timeout.String(),
	)

	return s.forwarder.Do(ctx, out), nil
}

// Prepare normalizes the payload into an OutboundRequest: method uppercased
// (default GET), headers sanitized, body and timeout coerced, target validated.
func (s *ProxyService) Prepare(pr *model.ProxyRequest) (*model.OutboundRequest, error) {
	method, _ := policy.Stringify(pr.Method)
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodGet
	}

	out := &model.OutboundRequest{
		Method:  method,
		Header:  policy.SanitizeHeaders(pr.Headers),
		Timeout: parseTimeout(pr.TimeoutMs),
	}
	if body, ok := policy.Stringify(pr.Body); ok {
		out.Body = &body
	}

	rawURL, _ := policy.Stringify(pr.URL)
	target, err := s.validator.Validate(rawURL)
	if err != nil {
		return nil, err
	}
	out.Target = target

	return out, nil
}

// parseTimeout accepts a JSON number or numeric string. Anything else, or a
// non-positive value, means no deadline.
func parseTimeout(v any) model.Timeout {
	var ms float64
	switch t := v.(type) {
	case float64:
		ms = t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		ms = f
	default:
		return 0
	}

	if math.IsNaN(ms) || ms <= 0 {
		return 0
	}
	return min(model.Timeout(ms), maxTimeout)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, policy.ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, policy.ErrSchemeNotAllowed):
		return "scheme"
	case errors.Is(err, policy.ErrHostNotAllowed):
		return "host"
	default:
		return "other"
	}
}
