// config.go — Process configuration.
// Loaded once at startup from YAML and read-only afterward. Malformed
// content — bad YAML, an invalid wildcard or regex in a policy rule, an
// unparseable duration — fails fast here, never at request time.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/beacon-devtools/beacon/internal/audit"
	"github.com/beacon-devtools/beacon/internal/capture"
	"github.com/beacon-devtools/beacon/internal/ratelimit"
	"github.com/beacon-devtools/beacon/internal/redaction"
	"github.com/beacon-devtools/beacon/internal/security"
	"github.com/beacon-devtools/beacon/internal/telemetry"
)

// Duration parses YAML scalars like "30s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full process configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Security  SecurityConfig  `yaml:"security"`
	Buffers   BufferConfig    `yaml:"buffers"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// LogConfig selects level and optional file output.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// TelemetryConfig selects OTLP export.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// RuleList is one allow/block pair.
type RuleList struct {
	Allow []string `yaml:"allow"`
	Block []string `yaml:"block"`
}

// SecurityConfig feeds the policy gate.
type SecurityConfig struct {
	Methods   RuleList        `yaml:"methods"`
	Tools     RuleList        `yaml:"tools"`
	Resources []string        `yaml:"resources"` // regex allow-list
	Sanitizer SanitizerConfig `yaml:"sanitizer"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	AuditSize int             `yaml:"audit_capacity"`
}

// SanitizerConfig tunes the output sanitizer.
type SanitizerConfig struct {
	MaxDepth      int      `yaml:"max_depth"`
	MaxStringLen  int      `yaml:"max_string_len"`
	SensitiveKeys []string `yaml:"sensitive_keys"` // appended to the built-in set
}

// RateLimitConfig is the per-identity budget.
type RateLimitConfig struct {
	MaxRequests int      `yaml:"max_requests"`
	Window      Duration `yaml:"window"`
}

// BufferConfig sets the captured-event ring capacities.
type BufferConfig struct {
	Console     int `yaml:"console"`
	Network     int `yaml:"network"`
	Performance int `yaml:"performance"`
}

// DiscoveryConfig sets the default probe matrix.
type DiscoveryConfig struct {
	Hosts   []string `yaml:"hosts"`
	Ports   []int    `yaml:"ports"`
	Timeout Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			ServiceName: "beacon",
			Insecure:    true,
		},
		Discovery: DiscoveryConfig{
			Hosts:   []string{"localhost"},
			Ports:   []int{9222, 9223, 9229},
			Timeout: Duration(2 * time.Second),
		},
	}
}

// Load reads and validates the configuration file. An empty path yields the
// defaults; a named file must exist and parse.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		// io.EOF means an empty file: all sections absent, defaults apply.
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Compile the policies once now so a bad rule aborts startup.
	if _, err := cfg.BuildGate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// BuildGate compiles the security configuration into a gate. Invalid
// wildcard or regex rules are construction errors.
func (c *Config) BuildGate() (*security.Gate, error) {
	methods, err := security.NewMethodPolicy(c.Security.Methods.Allow, c.Security.Methods.Block)
	if err != nil {
		return nil, fmt.Errorf("method policy: %w", err)
	}
	tools, err := security.NewToolPolicy(c.Security.Tools.Allow, c.Security.Tools.Block)
	if err != nil {
		return nil, fmt.Errorf("tool policy: %w", err)
	}
	resources, err := security.NewResourcePolicy(c.Security.Resources)
	if err != nil {
		return nil, fmt.Errorf("resource policy: %w", err)
	}

	var opts []redaction.Option
	if c.Security.Sanitizer.MaxDepth > 0 {
		opts = append(opts, redaction.WithMaxDepth(c.Security.Sanitizer.MaxDepth))
	}
	if c.Security.Sanitizer.MaxStringLen > 0 {
		opts = append(opts, redaction.WithMaxStringLen(c.Security.Sanitizer.MaxStringLen))
	}
	if len(c.Security.Sanitizer.SensitiveKeys) > 0 {
		opts = append(opts, redaction.WithSensitiveKeys(c.Security.Sanitizer.SensitiveKeys...))
	}

	return &security.Gate{
		Methods:   methods,
		Tools:     tools,
		Resources: resources,
		Sanitizer: redaction.NewSanitizer(opts...),
		Audit:     audit.NewLog(c.Security.AuditSize),
		Limiter:   ratelimit.NewLimiter(c.Security.RateLimit.MaxRequests, c.Security.RateLimit.Window.Std()),
	}, nil
}

// Capacities converts the buffer section for the capture store.
func (c *Config) Capacities() capture.Capacities {
	return capture.Capacities{
		Console:     c.Buffers.Console,
		Network:     c.Buffers.Network,
		Performance: c.Buffers.Performance,
	}
}

// TelemetrySetup converts the telemetry section.
func (c *Config) TelemetrySetup() telemetry.Config {
	return telemetry.Config{
		Endpoint:    c.Telemetry.Endpoint,
		Insecure:    c.Telemetry.Insecure,
		ServiceName: c.Telemetry.ServiceName,
	}
}
