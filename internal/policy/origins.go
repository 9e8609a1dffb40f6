// Package policy holds the security rules the proxy enforces before any
// outbound I/O: which browser origins may call it, which targets it may
// reach, and which request headers it may forward.
package policy

import (
	"slices"
	"strings"
)

// Origins is an immutable set of exact browser origins allowed to call the
// proxy. An empty set allows any origin (development posture).
type Origins struct {
	set  map[string]struct{}
	list []string
}

// ParseOrigins splits a comma-separated allowlist, trimming blanks and
// dropping empty entries.
func ParseOrigins(raw string) *Origins {
	return NewOrigins(strings.Split(raw, ","))
}

// NewOrigins builds an allowlist from individual origin strings.
func NewOrigins(origins []string) *Origins {
	o := &Origins{set: make(map[string]struct{})}
	for _, s := range origins {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := o.set[s]; dup {
			continue
		}
		o.set[s] = struct{}{}
		o.list = append(o.list, s)
	}
	return o
}

// Enabled reports whether an allowlist is configured.
func (o *Origins) Enabled() bool {
	return o != nil && len(o.set) > 0
}

// Allowed reports whether a request carrying the given Origin header may
// proceed. Requests without an Origin (non-browser clients) are always allowed.
func (o *Origins) Allowed(origin string) bool {
	if origin == "" || !o.Enabled() {
		return true
	}
	_, ok := o.set[origin]
	return ok
}

// List returns the configured origins in configuration order, or nil when
// the allowlist is disabled.
func (o *Origins) List() []string {
	if !o.Enabled() {
		return nil
	}
	return slices.Clone(o.list)
}
