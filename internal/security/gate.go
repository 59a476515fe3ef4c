// gate.go — Aggregate of the four policy sub-components.
// The gate holds no connection state and never mutates control flow itself:
// every check returns a boolean or a typed rejection, and callers (the
// provider wrapper, the wire-call layer) must consult it before acting.
package security

import (
	"github.com/beacon-devtools/beacon/internal/audit"
	"github.com/beacon-devtools/beacon/internal/ratelimit"
	"github.com/beacon-devtools/beacon/internal/redaction"
)

// Gate bundles the whitelist policies, output sanitizer, audit trail, and
// rate limiter for injection into providers and the session layer.
type Gate struct {
	Methods   *MethodPolicy
	Tools     *ToolPolicy
	Resources *ResourcePolicy
	Sanitizer *redaction.Sanitizer
	Audit     *audit.Log
	Limiter   *ratelimit.Limiter
}

// NewDefaultGate builds a permissive gate: empty allow-lists (allow all not
// blocked), built-in sanitizer battery, default audit and rate budgets.
// Production setups construct the gate from config instead.
func NewDefaultGate() *Gate {
	methods, _ := NewMethodPolicy(nil, nil)
	tools, _ := NewToolPolicy(nil, nil)
	resources, _ := NewResourcePolicy(nil)
	return &Gate{
		Methods:   methods,
		Tools:     tools,
		Resources: resources,
		Sanitizer: redaction.NewSanitizer(),
		Audit:     audit.NewLog(0),
		Limiter:   ratelimit.NewLimiter(0, 0),
	}
}
