package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodPolicyEmptyAllowList(t *testing.T) {
	p, err := NewMethodPolicy(nil, []string{"Debugger.*", "Browser.close"})
	require.NoError(t, err)

	// Empty allow-list: everything not blocked is allowed.
	assert.True(t, p.IsMethodAllowed("Page.navigate"))
	assert.True(t, p.IsMethodAllowed("Runtime.evaluate"))

	// Explicit blocks win.
	assert.False(t, p.IsMethodAllowed("Browser.close"))
	assert.False(t, p.IsMethodAllowed("Debugger.pause"))
	assert.False(t, p.IsMethodAllowed("Debugger.resume"))
}

func TestMethodPolicyBlockWinsOverAllow(t *testing.T) {
	p, err := NewMethodPolicy([]string{"Runtime.*"}, []string{"Runtime.terminateExecution"})
	require.NoError(t, err)

	assert.True(t, p.IsMethodAllowed("Runtime.evaluate"))
	assert.False(t, p.IsMethodAllowed("Runtime.terminateExecution"))
	// Not in the allow-list at all.
	assert.False(t, p.IsMethodAllowed("Page.navigate"))
}

func TestMethodPolicyRejectsMalformedWildcard(t *testing.T) {
	_, err := NewMethodPolicy([]string{"Page.["}, nil)
	assert.Error(t, err)
}

func TestToolPolicyCategoryWildcard(t *testing.T) {
	p, err := NewToolPolicy(nil, []string{"interact/*", "audit_log"})
	require.NoError(t, err)

	assert.False(t, p.IsToolAllowed("interact", "navigate"))
	assert.False(t, p.IsToolAllowed("observe", "audit_log"))
	assert.True(t, p.IsToolAllowed("observe", "console_read"))
}

func TestToolPolicyAllowList(t *testing.T) {
	p, err := NewToolPolicy([]string{"observe/*"}, nil)
	require.NoError(t, err)

	assert.True(t, p.IsToolAllowed("observe", "console_read"))
	assert.False(t, p.IsToolAllowed("interact", "navigate"))
}

func TestResourcePolicy(t *testing.T) {
	empty, err := NewResourcePolicy(nil)
	require.NoError(t, err)
	assert.True(t, empty.IsResourceAllowed("https://anything.example"))

	p, err := NewResourcePolicy([]string{`^https?://localhost(:\d+)?/`, `^https://.*\.internal\.example/`})
	require.NoError(t, err)
	assert.True(t, p.IsResourceAllowed("http://localhost:3000/app"))
	assert.True(t, p.IsResourceAllowed("https://api.internal.example/v1"))
	assert.False(t, p.IsResourceAllowed("https://evil.example/"))

	_, err = NewResourcePolicy([]string{"("})
	assert.Error(t, err)
}
