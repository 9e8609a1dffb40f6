package model

import (
	"net/http"
	"strings"
)

// ProxyResult is the normalized outcome of one forwarded call. It is always
// serialized in full; Error appears only on transport failure.
type ProxyResult struct {
	OK       bool              `json:"ok"`
	Status   int               `json:"status"`
	Headers  map[string]string `json:"headers"`
	BodyText string            `json:"bodyText"`
	Error    string            `json:"error,omitempty"`
}

// UpstreamResult builds a result from a received upstream response.
func UpstreamResult(status int, header http.Header, body []byte) *ProxyResult {
	return &ProxyResult{
		OK:       status >= 200 && status < 300,
		Status:   status,
		Headers:  FlattenHeader(header),
		BodyText: string(body),
	}
}

// TransportFailure builds a result for a call that produced no response.
func TransportFailure(msg string) *ProxyResult {
	return &ProxyResult{
		Headers: map[string]string{},
		Error:   msg,
	}
}

// FlattenHeader lowercases header names and joins repeated values with ", ".
func FlattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vals := range h {
		key := strings.ToLower(k)
		if prev, ok := out[key]; ok {
			out[key] = prev + ", " + strings.Join(vals, ", ")
			continue
		}
		out[key] = strings.Join(vals, ", ")
	}
	return out
}

// ErrorResponse is the envelope for every non-forwarded outcome.
type ErrorResponse struct {
	OK     bool     `json:"ok"`
	Status *int     `json:"status,omitempty"`
	Error  string   `json:"error"`
	Routes []string `json:"routes,omitempty"`
}

// Failure reports a rejected or failed /proxy call: {ok:false,status:0,error}.
func Failure(msg string) *ErrorResponse {
	zero := 0
	return &ErrorResponse{Status: &zero, Error: msg}
}

// NotFound reports an unknown route.
func NotFound() *ErrorResponse {
	return &ErrorResponse{Error: "Not found", Routes: Routes}
}

// MethodNotAllowed reports a known route called with the wrong method.
func MethodNotAllowed() *ErrorResponse {
	return &ErrorResponse{Error: "Method not allowed"}
}

// Error messages shared by handlers and middleware.
const (
	MsgOriginNotAllowed = "Origin not allowed"
	MsgBodyTooLarge     = "Request body too large"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	OK                     bool     `json:"ok"`
	Service                string   `json:"service"`
	Version                string   `json:"version,omitempty"`
	OriginAllowlistEnabled bool     `json:"originAllowlistEnabled"`
	AllowedOrigins         []string `json:"allowedOrigins,omitempty"`
}
