package policy

import (
	"errors"
	"net/url"
	"strings"

	"syncapp-erp-proxy/internal/model"
)

// TargetDomainSuffix is the only domain the proxy forwards to. It is fixed at
// build time (-ldflags "-X syncapp-erp-proxy/internal/policy.TargetDomainSuffix=...")
// and deliberately not configurable at runtime.
var TargetDomainSuffix = "tipalti.com"

// Target validation failures. The messages are returned verbatim to callers.
var (
	ErrInvalidURL       = errors.New("Invalid url")
	ErrSchemeNotAllowed = errors.New("Only https:// targets are allowed")
	ErrHostNotAllowed   = errors.New("target hostname outside the allowed domain")
)

// HostError reports a target hostname outside the allowed domain suffix.
type HostError struct {
	Suffix string
}

func (e *HostError) Error() string {
	return "Target hostname must end with ." + e.Suffix
}

// Is makes errors.Is(err, ErrHostNotAllowed) match any HostError.
func (e *HostError) Is(target error) bool {
	return target == ErrHostNotAllowed
}

// TargetValidator checks outbound URLs against the scheme and domain rules.
type TargetValidator struct {
	suffix string
}

// NewTargetValidator returns a validator for hostnames ending in "."+suffix.
// A leading dot in suffix is ignored.
func NewTargetValidator(suffix string) *TargetValidator {
	return &TargetValidator{suffix: strings.ToLower(strings.TrimPrefix(suffix, "."))}
}

// DefaultTargetValidator returns a validator for TargetDomainSuffix.
func DefaultTargetValidator() *TargetValidator {
	return NewTargetValidator(TargetDomainSuffix)
}

// Suffix returns the domain suffix without its leading dot.
func (v *TargetValidator) Suffix() string {
	return v.suffix
}

// Validate parses raw and checks, in order: absolute URL, https scheme,
// hostname suffix. The first failing rule determines the error.
func (v *TargetValidator) Validate(raw string) (*model.ValidatedTarget, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" {
		return nil, ErrInvalidURL
	}
	if u.Scheme != "https" {
		return nil, ErrSchemeNotAllowed
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, ErrInvalidURL
	}
	if !strings.HasSuffix(host, "."+v.suffix) {
		return nil, &HostError{Suffix: v.suffix}
	}

	return model.NewValidatedTarget(u), nil
}
