// Package model defines shared types for the proxy.
package model

import (
	"net/url"
	"strconv"
	"time"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "syncapp-erp-api-proxy"

// Routes lists the public routes, reported on 404.
var Routes = []string{"/proxy", "/health"}

// ProxyRequest is the JSON payload of POST /proxy. Loosely typed fields are
// coerced to text by the service.
type ProxyRequest struct {
	URL       any            `json:"url"`
	Method    any            `json:"method"`
	Headers   map[string]any `json:"headers"`
	Body      any            `json:"body"`
	TimeoutMs any            `json:"timeoutMs"`
}

// ValidatedTarget is an outbound URL that passed target validation.
type ValidatedTarget struct {
	u url.URL
}

// NewValidatedTarget copies u. Only the policy package should call it.
func NewValidatedTarget(u *url.URL) *ValidatedTarget {
	t := &ValidatedTarget{u: *u}
	if u.User != nil {
		user := *u.User
		t.u.User = &user
	}
	return t
}

// URL returns a copy of the target URL.
func (t *ValidatedTarget) URL() *url.URL {
	u := t.u
	return &u
}

// Host returns the target hostname.
func (t *ValidatedTarget) Host() string {
	return t.u.Hostname()
}

func (t *ValidatedTarget) String() string {
	return t.u.String()
}

// OutboundRequest is everything the Forwarder needs for one upstream call.
type OutboundRequest struct {
	Target  *ValidatedTarget
	Method  string
	Header  map[string]string
	Body    *string
	Timeout Timeout
}

// Timeout is a caller-requested deadline in milliseconds. Zero or negative
// means no deadline.
type Timeout float64

// Enabled reports whether a deadline applies.
func (t Timeout) Enabled() bool {
	return t > 0
}

// Duration converts the timeout to a time.Duration.
func (t Timeout) Duration() time.Duration {
	return time.Duration(float64(t) * float64(time.Millisecond))
}

func (t Timeout) String() string {
	return strconv.FormatFloat(float64(t), 'f', -1, 64)
}
