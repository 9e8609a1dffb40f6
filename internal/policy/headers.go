package policy

import (
	"slices"
	"strconv"
	"strings"

	"syncapp-erp-proxy/internal/codec"
)

// forwardableHeaders are the only request headers sent upstream.
var forwardableHeaders = map[string]bool{
	"authorization": true,
	"accept":        true,
	"content-type":  true,
}

const defaultAccept = "application/json"

// SanitizeHeaders filters caller-supplied headers down to the forwardable set.
// Keys are trimmed and lowercased, nil values dropped, other values rendered
// as text. Unknown headers are dropped silently. The result always carries an
// accept header.
func SanitizeHeaders(in map[string]any) map[string]string {
	out := make(map[string]string, len(forwardableHeaders))

	// Sorted so that keys differing only in case resolve deterministically.
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" || !forwardableHeaders[key] {
			continue
		}
		v, ok := Stringify(in[k])
		if !ok {
			continue
		}
		out[key] = v
	}

	if out["accept"] == "" {
		out["accept"] = defaultAccept
	}
	return out
}

// Stringify renders a decoded JSON value as text. It reports false for nil.
func Stringify(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		b, err := codec.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}
