package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beacon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadEmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"localhost"}, cfg.Discovery.Hosts)
	assert.Contains(t, cfg.Discovery.Ports, 9222)
	assert.Equal(t, 2*time.Second, cfg.Discovery.Timeout.Std())
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
telemetry:
  endpoint: localhost:4318
  insecure: true
  service_name: beacon-dev
security:
  methods:
    block: ["Debugger.*"]
  tools:
    allow: ["observe/*", "navigate"]
  resources:
    - '^https?://localhost(:\d+)?/'
  sanitizer:
    max_depth: 8
    sensitive_keys: ["internal_id"]
  rate_limit:
    max_requests: 30
    window: 30s
  audit_capacity: 2000
buffers:
  console: 50
discovery:
  hosts: ["localhost", "127.0.0.1"]
  ports: [9222]
  timeout: 500ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "localhost:4318", cfg.Telemetry.Endpoint)
	assert.Equal(t, 500*time.Millisecond, cfg.Discovery.Timeout.Std())
	assert.Equal(t, 50, cfg.Capacities().Console)

	gate, err := cfg.BuildGate()
	require.NoError(t, err)

	assert.False(t, gate.Methods.IsMethodAllowed("Debugger.enable"))
	assert.True(t, gate.Methods.IsMethodAllowed("Page.navigate"))
	assert.True(t, gate.Tools.IsToolAllowed("observe", "console_read"))
	assert.False(t, gate.Tools.IsToolAllowed("interact", "evaluate"))
	assert.True(t, gate.Resources.IsResourceAllowed("http://localhost:3000/app"))
	assert.False(t, gate.Resources.IsResourceAllowed("https://evil.example/"))
}

func TestLoadEmptyFileYieldsDefaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"localhost"}, cfg.Discovery.Hosts)

	gate, err := cfg.BuildGate()
	require.NoError(t, err)
	assert.True(t, gate.Methods.IsMethodAllowed("Page.navigate"))
}

func TestLoadCommentOnlyFileYieldsDefaults(t *testing.T) {
	path := writeConfig(t, "# all defaults\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Discovery.Timeout.Std())
}

func TestLoadMalformedYAMLFailsFast(t *testing.T) {
	path := writeConfig(t, "security: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadUnknownFieldFailsFast(t *testing.T) {
	path := writeConfig(t, "securty:\n  methods: {}\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadInvalidPolicyRuleFailsFast(t *testing.T) {
	path := writeConfig(t, `
security:
  resources:
    - '[invalid regex'
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resource policy")
}

func TestLoadInvalidDurationFailsFast(t *testing.T) {
	path := writeConfig(t, `
discovery:
  timeout: "soonish"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
