package server

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Environment variable names read by the loader.
const (
	EnvPort          = "CAMOUFOX_PORT"
	EnvWSPath        = "CAMOUFOX_WS_PATH"
	EnvHeadless      = "CAMOUFOX_HEADLESS"
	EnvGeoIP         = "CAMOUFOX_GEOIP"
	EnvProxyServer   = "CAMOUFOX_PROXY_SERVER"
	EnvProxyUsername = "CAMOUFOX_PROXY_USERNAME"
	EnvProxyPassword = "CAMOUFOX_PROXY_PASSWORD"

	EnvPython     = "CAMOUFOX_PYTHON"
	EnvHealthAddr = "CAMOUFOX_HEALTH_ADDR"
	EnvDebug      = "CAMOUFOX_DEBUG"
	EnvLogFormat  = "CAMOUFOX_LOG_FORMAT"
)

const (
	DefaultPort   = 3000
	DefaultWSPath = "connect"
	DefaultPython = "python3"
)

// Config is the configuration handed to the Camoufox server.
// It is built once at startup and passed by value.
type Config struct {
	// Port the WebSocket server listens on.
	Port int `json:"port" toml:"port"`

	// WSPath is the URL path segment of the WebSocket endpoint, without a leading slash.
	WSPath string `json:"ws_path" toml:"ws_path"`

	Headless bool `json:"headless" toml:"headless"`
	GeoIP    bool `json:"geoip" toml:"geoip"`

	// Proxy is nil unless CAMOUFOX_PROXY_SERVER is set.
	Proxy *ProxyConfig `json:"proxy" toml:"proxy,omitempty"`
}

// ProxyConfig is the upstream proxy the browser tunnels through.
type ProxyConfig struct {
	Server   string `json:"server" toml:"server"`
	Username string `json:"username,omitempty" toml:"username,omitempty"`
	Password string `json:"password,omitempty" toml:"password,omitempty"`
}

// RuntimeConfig holds settings for the launcher process itself.
type RuntimeConfig struct {
	Python     string
	HealthAddr string
	Debug      bool
	LogFormat  string
}

// ConfigError reports an environment variable that could not be parsed.
type ConfigError struct {
	Var   string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Var, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Env is a snapshot of environment variables.
type Env map[string]string

// EnvFromOS snapshots the process environment.
func EnvFromOS() Env {
	env := make(Env)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			env[k] = v
		}
	}
	return env
}

// Merge returns a copy of e with the keys of overlay that e does not already define.
// Variables set in the real environment always win over a .env file.
func (e Env) Merge(overlay Env) Env {
	out := make(Env, len(e)+len(overlay))
	for k, v := range overlay {
		out[k] = v
	}
	for k, v := range e {
		out[k] = v
	}
	return out
}

var (
	truthy = map[string]bool{"true": true, "1": true, "yes": true, "on": true}
	falsy  = map[string]bool{"false": true, "0": true, "no": true, "off": true}
)

// ParseBool returns def for an empty value, otherwise whether the lower-cased
// value is one of "true", "1", "yes" or "on". Any other value is false.
func ParseBool(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	return truthy[strings.ToLower(raw)]
}

// BuildProxyConfig returns nil when no proxy server is configured.
func BuildProxyConfig(env Env) *ProxyConfig {
	server := env[EnvProxyServer]
	if server == "" {
		return nil
	}

	proxy := &ProxyConfig{Server: server}
	if username := env[EnvProxyUsername]; username != "" {
		proxy.Username = username
	}
	if password := env[EnvProxyPassword]; password != "" {
		proxy.Password = password
	}
	return proxy
}

// LoadServerConfig builds the server configuration from env. Only a malformed
// port is an error, including one that is set but blank; every other field
// falls back to its default.
func LoadServerConfig(env Env) (Config, error) {
	raw, set := env[EnvPort]
	port, err := parsePort(raw, set)
	if err != nil {
		return Config{}, err
	}

	wsPath := env[EnvWSPath]
	if wsPath == "" {
		wsPath = DefaultWSPath
	}

	return Config{
		Port:     port,
		WSPath:   wsPath,
		Headless: ParseBool(env[EnvHeadless], true),
		GeoIP:    ParseBool(env[EnvGeoIP], false),
		Proxy:    BuildProxyConfig(env),
	}, nil
}

// parsePort only defaults an unset port. A set but blank value is malformed.
func parsePort(raw string, set bool) (int, error) {
	if !set {
		return DefaultPort, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, &ConfigError{Var: EnvPort, Value: raw, Err: errors.New("empty value")}
	}

	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ConfigError{Var: EnvPort, Value: raw, Err: err}
	}
	if port < 0 || port > 65535 {
		return 0, &ConfigError{Var: EnvPort, Value: raw, Err: errors.New("port out of range")}
	}
	return port, nil
}

// LoadRuntimeConfig reads the launcher's own settings.
func LoadRuntimeConfig(env Env) RuntimeConfig {
	python := env[EnvPython]
	if python == "" {
		python = DefaultPython
	}

	return RuntimeConfig{
		Python:     python,
		HealthAddr: env[EnvHealthAddr],
		Debug:      ParseBool(env[EnvDebug], false),
		LogFormat:  strings.ToLower(env[EnvLogFormat]),
	}
}

// Lint reports boolean variables whose value is neither a recognised true
// nor false spelling. ParseBool silently treats those as false.
func Lint(env Env) []string {
	var warnings []string
	for _, name := range []string{EnvHeadless, EnvGeoIP, EnvDebug} {
		raw := env[name]
		if raw == "" {
			continue
		}
		lower := strings.ToLower(raw)
		if !truthy[lower] && !falsy[lower] {
			warnings = append(warnings, fmt.Sprintf("%s=%q is not a recognised boolean and is treated as false", name, raw))
		}
	}
	sort.Strings(warnings)
	return warnings
}

// URL returns the WebSocket URL clients connect to on host.
func (c Config) URL(host string) string {
	return fmt.Sprintf("ws://%s:%d/%s", host, c.Port, strings.TrimPrefix(c.WSPath, "/"))
}

// Redacted returns a copy safe to log or expose, with the proxy password masked.
func (c Config) Redacted() Config {
	if c.Proxy == nil {
		return c
	}
	proxy := *c.Proxy
	if proxy.Password != "" {
		proxy.Password = "***"
	}
	c.Proxy = &proxy
	return c
}
