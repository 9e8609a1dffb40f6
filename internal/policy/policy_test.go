package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetValidator_Validate(t *testing.T) {
	v := NewTargetValidator("tipalti.com")

	tests := []struct {
		name    string
		raw     string
		wantErr error
		wantMsg string
	}{
		{"valid", "https://api.tipalti.com/v1/ping", nil, ""},
		{"valid nested with port", "https://a.b.tipalti.com:8443/x?y=1", nil, ""},
		{"uppercase host", "https://API.Tipalti.COM/v1", nil, ""},
		{"uppercase scheme", "HTTPS://api.tipalti.com/v1", nil, ""},
		{"empty", "", ErrInvalidURL, "Invalid url"},
		{"no scheme", "api.tipalti.com/v1", ErrInvalidURL, "Invalid url"},
		{"garbage", "://nope", ErrInvalidURL, "Invalid url"},
		{"https without host", "https:///path", ErrInvalidURL, "Invalid url"},
		{"http", "http://api.tipalti.com/v1", ErrSchemeNotAllowed, "Only https:// targets are allowed"},
		{"ws", "wss://api.tipalti.com/v1", ErrSchemeNotAllowed, "Only https:// targets are allowed"},
		{"javascript", "javascript:alert(1)", ErrSchemeNotAllowed, "Only https:// targets are allowed"},
		{"other domain", "https://example.com/v1", ErrHostNotAllowed, "Target hostname must end with .tipalti.com"},
		{"apex", "https://tipalti.com/v1", ErrHostNotAllowed, "Target hostname must end with .tipalti.com"},
		{"lookalike", "https://nottipalti.com/v1", ErrHostNotAllowed, "Target hostname must end with .tipalti.com"},
		{"suffix in path", "https://evil.com/x.tipalti.com", ErrHostNotAllowed, "Target hostname must end with .tipalti.com"},
		{"suffix in userinfo", "https://x.tipalti.com@evil.com/", ErrHostNotAllowed, "Target hostname must end with .tipalti.com"},
		{"trailing dot", "https://api.tipalti.com./v1", ErrHostNotAllowed, "Target hostname must end with .tipalti.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := v.Validate(tt.raw)
			if tt.wantErr == nil {
				require.NoError(t, err)
				require.NotNil(t, target)
				assert.Equal(t, "https", target.URL().Scheme)
				return
			}
			require.Error(t, err)
			assert.Nil(t, target)
			assert.True(t, errors.Is(err, tt.wantErr), "errors.Is(%v, %v)", err, tt.wantErr)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestTargetValidator_Suffix(t *testing.T) {
	assert.Equal(t, "example.org", NewTargetValidator(".Example.org").Suffix())
	assert.Equal(t, TargetDomainSuffix, DefaultTargetValidator().Suffix())

	_, err := NewTargetValidator("example.org").Validate("https://api.example.org/")
	assert.NoError(t, err)
	_, err = NewTargetValidator("example.org").Validate("https://api.tipalti.com/")
	assert.EqualError(t, err, "Target hostname must end with .example.org")
}

func TestValidatedTarget_URLIsCopy(t *testing.T) {
	target, err := NewTargetValidator("tipalti.com").Validate("https://api.tipalti.com/v1")
	require.NoError(t, err)

	u := target.URL()
	u.Host = "evil.com"
	assert.Equal(t, "api.tipalti.com", target.Host())
	assert.Equal(t, "https://api.tipalti.com/v1", target.String())
}

func TestSanitizeHeaders(t *testing.T) {
	got := SanitizeHeaders(map[string]any{
		" Authorization ": "Bearer abc",
		"Content-Type":    "application/json",
		"X-Api-Key":       "dropped",
		"Cookie":          "dropped",
		"Host":            "dropped",
		"":                "dropped",
		"   ":             "dropped",
	})

	assert.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"content-type":  "application/json",
		"accept":        "application/json",
	}, got)
}

func TestSanitizeHeaders_KeepsCallerAccept(t *testing.T) {
	got := SanitizeHeaders(map[string]any{"ACCEPT": "text/csv"})
	assert.Equal(t, map[string]string{"accept": "text/csv"}, got)
}

func TestSanitizeHeaders_CoercesValues(t *testing.T) {
	got := SanitizeHeaders(map[string]any{
		"authorization": float64(42),
		"content-type":  nil,
		"accept":        true,
	})
	assert.Equal(t, map[string]string{
		"authorization": "42",
		"accept":        "true",
	}, got)
}

func TestSanitizeHeaders_NilMap(t *testing.T) {
	assert.Equal(t, map[string]string{"accept": "application/json"}, SanitizeHeaders(nil))
}

func TestSanitizeHeaders_OnlyAllowlistSurvives(t *testing.T) {
	inputs := []map[string]any{
		{},
		{"x-forwarded-for": "1.2.3.4", "origin": "https://evil.com"},
		{"Accept": "", "Authorization": "x"},
		{"content-type": "a", "Content-Type": "b", "CONTENT-TYPE": "c"},
	}
	allowed := map[string]bool{"authorization": true, "accept": true, "content-type": true}

	for _, in := range inputs {
		got := SanitizeHeaders(in)
		for k := range got {
			assert.True(t, allowed[k], "unexpected header %q survived", k)
		}
		assert.NotEmpty(t, got["accept"])
	}

	// Case variants of one key resolve deterministically.
	got := SanitizeHeaders(inputs[3])
	assert.Equal(t, "a", got["content-type"])
}

func TestStringify(t *testing.T) {
	tests := []struct {
		in     any
		want   string
		wantOK bool
	}{
		{nil, "", false},
		{"s", "s", true},
		{float64(1.5), "1.5", true},
		{float64(1e21), "1000000000000000000000", true},
		{false, "false", true},
		{[]any{"a", float64(1)}, `["a",1]`, true},
	}
	for _, tt := range tests {
		got, ok := Stringify(tt.in)
		assert.Equal(t, tt.wantOK, ok, "Stringify(%v)", tt.in)
		assert.Equal(t, tt.want, got, "Stringify(%v)", tt.in)
	}
}

func TestOrigins(t *testing.T) {
	o := ParseOrigins(" https://a.example.org, ,https://b.example.org,https://a.example.org ")

	assert.True(t, o.Enabled())
	assert.Equal(t, []string{"https://a.example.org", "https://b.example.org"}, o.List())
	assert.True(t, o.Allowed("https://a.example.org"))
	assert.True(t, o.Allowed(""), "requests without Origin are always allowed")
	assert.False(t, o.Allowed("https://c.example.org"))
	assert.False(t, o.Allowed("https://a.example.org/"), "matching is exact")
}

func TestOrigins_EmptyAllowsAll(t *testing.T) {
	for _, o := range []*Origins{ParseOrigins(""), ParseOrigins(" , "), NewOrigins(nil), nil} {
		assert.False(t, o.Enabled())
		assert.Nil(t, o.List())
		assert.True(t, o.Allowed("https://anything.example"))
	}
}

func TestOrigins_ListIsCopy(t *testing.T) {
	o := NewOrigins([]string{"https://a.example.org"})
	l := o.List()
	l[0] = "https://evil.example"
	assert.True(t, o.Allowed("https://a.example.org"))
	assert.False(t, o.Allowed("https://evil.example"))
}
