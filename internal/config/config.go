// Package config handles configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	toml "github.com/pelletier/go-toml/v2"

	"syncapp-erp-proxy/internal/policy"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/syncapp-erp-proxy/config.toml",
	"configs/config.toml",
	"configs/config.yaml",
}

// PortUnset is the CLI port value meaning "not given on the command line".
const PortUnset = -1

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config         string `kong:"short='c',help='Path to TOML or YAML config file.',env='CONFIG_PATH'"`
	Host           string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port           int    `kong:"short='p',default='-1',help='Listen port (overrides config); 0 picks an ephemeral port.',env='PORT'"`
	AllowedOrigins string `kong:"help='Comma-separated browser origin allowlist (overrides config); empty allows any origin.',env='ALLOWED_ORIGINS'"`
	LogLevel       string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	LogFormat      string `kong:"help='Log format: json|text (overrides config).',env='LOG_FORMAT'"`
	BaseURLFile    string `kong:"help='Write the bound base URL to this file after startup.',env='BASE_URL_FILE'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server"`
	CORS     CORSConfig     `toml:"cors" yaml:"cors"`
	Upstream UpstreamConfig `toml:"upstream" yaml:"upstream"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	Metrics  MetricsConfig  `toml:"metrics" yaml:"metrics"`

	BaseURLFile string `toml:"-" yaml:"-"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host          string          `toml:"host" yaml:"host"`
	Port          *int            `toml:"port" yaml:"port"` // nil means default (8787); 0 means ephemeral
	BodyMaxBytes  int64           `toml:"body_max_bytes" yaml:"body_max_bytes"`
	HealthEnabled *bool           `toml:"health_enabled" yaml:"health_enabled"`
	RateLimit     RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second"`
}

// CORSConfig holds the browser origin allowlist.
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins" yaml:"allowed_origins"`
}

// UpstreamConfig holds outbound transport settings. Per-call deadlines come
// from the caller's timeoutMs, not from here.
type UpstreamConfig struct {
	DialTimeoutSeconds           int `toml:"dial_timeout_seconds" yaml:"dial_timeout_seconds"`
	TLSHandshakeTimeoutSeconds   int `toml:"tls_handshake_timeout_seconds" yaml:"tls_handshake_timeout_seconds"`
	ResponseHeaderTimeoutSeconds int `toml:"response_header_timeout_seconds" yaml:"response_header_timeout_seconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// Load reads the optional config file and applies CLI overrides.
// An explicit path (--config or CONFIG_PATH) must exist. Otherwise the
// search paths are tried and, if none exists, defaults are used.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// decodeFile picks the decoder from the file extension; TOML is the default.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// applyCLI overrides config values with CLI flags that were given.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != PortUnset {
		port := cli.Port
		c.Server.Port = &port
	}
	if strings.TrimSpace(cli.AllowedOrigins) != "" {
		c.CORS.AllowedOrigins = policy.ParseOrigins(cli.AllowedOrigins).List()
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		c.Log.Format = cli.LogFormat
	}
	if cli.BaseURLFile != "" {
		c.BaseURLFile = cli.BaseURLFile
	}
}

func (c *Config) validate() error {
	// Numeric bounds.
	if c.Server.Port != nil && (*c.Server.Port < 0 || *c.Server.Port > 65535) {
		return fmt.Errorf("server.port must be 0–65535; got %d", *c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.DialTimeoutSeconds < 0 {
		return fmt.Errorf("upstream.dial_timeout_seconds must be non-negative; got %d", c.Upstream.DialTimeoutSeconds)
	}
	if c.Upstream.TLSHandshakeTimeoutSeconds < 0 {
		return fmt.Errorf("upstream.tls_handshake_timeout_seconds must be non-negative; got %d", c.Upstream.TLSHandshakeTimeoutSeconds)
	}
	if c.Upstream.ResponseHeaderTimeoutSeconds < 0 {
		return fmt.Errorf("upstream.response_header_timeout_seconds must be non-negative; got %d", c.Upstream.ResponseHeaderTimeoutSeconds)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range []string{"/proxy", "/health"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// checkOrigin accepts scheme://host[:port] with nothing after the authority,
// which is the only form a browser sends in the Origin header.
func checkOrigin(o string) error {
	if o == "" {
		return nil
	}
	u, err := url.Parse(o)
	if err != nil {
		return fmt.Errorf("origin %q: %w", o, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("origin %q must be scheme://host[:port]", o)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return fmt.Errorf("origin %q must not contain a path, query, fragment or userinfo", o)
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == nil {
		port := 8787
		c.Server.Port = &port
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 2_000_000
	}
	if c.Server.HealthEnabled == nil {
		enabled := true
		c.Server.HealthEnabled = &enabled
	}
	if c.Upstream.DialTimeoutSeconds == 0 {
		c.Upstream.DialTimeoutSeconds = 30
	}
	if c.Upstream.TLSHandshakeTimeoutSeconds == 0 {
		c.Upstream.TLSHandshakeTimeoutSeconds = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	port := 0
	if c.Port != nil {
		port = *c.Port
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// Health reports whether GET /health is served.
func (c *ServerConfig) Health() bool {
	return c.HealthEnabled == nil || *c.HealthEnabled
}

// Origins builds the immutable origin allowlist from the configuration.
func (c *Config) Origins() *policy.Origins {
	return policy.NewOrigins(c.CORS.AllowedOrigins)
}

// FilePath returns the config file that was loaded, or empty when running on defaults.
func (c *Config) FilePath() string {
	return c.filePath
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}

// WarnOrigins logs every allowed origin that no browser could ever send.
// Such entries stay in the allowlist and simply never match.
func (c *Config) WarnOrigins(logger *slog.Logger) {
	for _, o := range c.CORS.AllowedOrigins {
		if err := checkOrigin(strings.TrimSpace(o)); err != nil {
			logger.Warn("allowed origin will never match", "origin", o, "err", err)
		}
	}
}

// WriteBaseURL records the bound base URL for wrappers that start the proxy
// on an ephemeral port.
func (c *Config) WriteBaseURL(addr net.Addr) error {
	if c.BaseURLFile == "" {
		return nil
	}
	if addr == nil {
		return errors.New("config: no bound address")
	}
	data := []byte("http://" + addr.String() + "\n")
	if err := os.WriteFile(c.BaseURLFile, data, 0o600); err != nil {
		return fmt.Errorf("config: write base url %s: %w", c.BaseURLFile, err)
	}
	return nil
}
