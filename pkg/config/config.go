// Package config loads settings for the client and server binaries.
//
// Values are layered: built-in defaults, then an optional YAML file, then a
// .env file, then NDTOOLS_* environment variables. Later layers win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ndtools/mcp-client/pkg/logging"
	"github.com/ndtools/mcp-client/pkg/observability"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "NDTOOLS_"

// Config is the combined configuration of both binaries
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Server    ServerConfig    `yaml:"server"`
}

// TransportConfig selects how the client reaches its peer
type TransportConfig struct {
	Type     string        `yaml:"type"`
	Command  string        `yaml:"command"`
	Args     []string      `yaml:"args"`
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LogConfig controls log output
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// TracingConfig controls span export
type TracingConfig struct {
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// ServerConfig configures the ND tools server
type ServerConfig struct {
	Name        string `yaml:"name"`
	Transport   string `yaml:"transport"`
	ContentRoot string `yaml:"content_root"`
	Addr        string `yaml:"addr"`
	EventStream bool   `yaml:"event_stream"`
	PageSize    int    `yaml:"page_size"`
	// APIKeys guards the http transport; each entry is key or id:key
	APIKeys []string `yaml:"api_keys"`
}

// Log formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Transport: TransportConfig{
			Type:    "command",
			Command: "ndtools-server",
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: FormatText,
		},
		Tracing: TracingConfig{
			Exporter: "none",
		},
		Server: ServerConfig{
			Name:        "NexusDashboardDeveloperTools",
			Transport:   "stdio",
			ContentRoot: "resources",
			Addr:        "127.0.0.1:9000",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// empty), the .env file at envFile (skipped when empty or missing) and the
// environment. The result is validated.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}

	str("TRANSPORT", &c.Transport.Type)
	str("COMMAND", &c.Transport.Command)
	str("ENDPOINT", &c.Transport.Endpoint)
	str("API_KEY", &c.Transport.APIKey)
	if v, ok := lookup(EnvPrefix + "ARGS"); ok && v != "" {
		c.Transport.Args = strings.Fields(v)
	}
	if v, ok := lookup(EnvPrefix + "TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err)
		}
		c.Transport.Timeout = d
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("METRICS_ADDR", &c.Metrics.Addr)
	str("TRACING_EXPORTER", &c.Tracing.Exporter)
	str("TRACING_ENDPOINT", &c.Tracing.Endpoint)

	str("SERVER_NAME", &c.Server.Name)
	str("SERVER_TRANSPORT", &c.Server.Transport)
	str("CONTENT_ROOT", &c.Server.ContentRoot)
	str("SERVER_ADDR", &c.Server.Addr)
	if v, ok := lookup(EnvPrefix + "EVENT_STREAM"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sEVENT_STREAM: %w", EnvPrefix, err)
		}
		c.Server.EventStream = b
	}
	if v, ok := lookup(EnvPrefix + "SERVER_API_KEYS"); ok && v != "" {
		c.Server.APIKeys = strings.Split(v, ",")
	}
	if v, ok := lookup(EnvPrefix + "PAGE_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPAGE_SIZE: %w", EnvPrefix, err)
		}
		c.Server.PageSize = n
	}
	return nil
}

// Validate checks the values that have a closed set of choices
func (c *Config) Validate() error {
	switch c.Transport.Type {
	case "command":
		if c.Transport.Command == "" {
			return fmt.Errorf("transport.command is required for the command transport")
		}
	case "http":
		if c.Transport.Endpoint == "" {
			return fmt.Errorf("transport.endpoint is required for the http transport")
		}
	default:
		return fmt.Errorf("transport.type must be one of: command, http")
	}
	if c.Transport.Timeout < 0 {
		return fmt.Errorf("transport.timeout must not be negative")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != FormatText && c.Log.Format != FormatJSON {
		return fmt.Errorf("log.format must be one of: text, json")
	}
	if _, err := observability.ParseExporterType(c.Tracing.Exporter); err != nil {
		return fmt.Errorf("tracing.exporter: %w", err)
	}

	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("server.transport must be one of: stdio, http")
	}
	if c.Server.ContentRoot == "" {
		return fmt.Errorf("server.content_root is required")
	}
	if c.Server.PageSize < 0 {
		return fmt.Errorf("server.page_size must not be negative")
	}
	return nil
}

// Setting is one effective configuration value
type Setting struct {
	Key   string
	Value string
}

// Settings lists every effective value in a stable order
func (c *Config) Settings() []Setting {
	return []Setting{
		{"transport.type", c.Transport.Type},
		{"transport.command", c.Transport.Command},
		{"transport.args", strings.Join(c.Transport.Args, " ")},
		{"transport.endpoint", c.Transport.Endpoint},
		{"transport.api_key", redact(c.Transport.APIKey)},
		{"transport.timeout", c.Transport.Timeout.String()},
		{"log.level", c.Log.Level},
		{"log.format", c.Log.Format},
		{"metrics.addr", c.Metrics.Addr},
		{"tracing.exporter", c.Tracing.Exporter},
		{"tracing.endpoint", c.Tracing.Endpoint},
		{"server.name", c.Server.Name},
		{"server.transport", c.Server.Transport},
		{"server.content_root", c.Server.ContentRoot},
		{"server.addr", c.Server.Addr},
		{"server.event_stream", strconv.FormatBool(c.Server.EventStream)},
		{"server.page_size", strconv.Itoa(c.Server.PageSize)},
		{"server.api_keys", strconv.Itoa(len(c.Server.APIKeys))},
	}
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
