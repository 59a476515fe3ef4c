// observe.go — Read-side capability provider over captured browser state.
// Exposes the buffered console/network/performance events and the audit
// trail as tools. Registered static: the buffers outlive any one connection,
// but reads still resolve a session so a disconnected browser yields the
// uniform connection error instead of silently stale data.
package observe

import (
	"context"
	"strings"

	"github.com/beacon-devtools/beacon/internal/audit"
	"github.com/beacon-devtools/beacon/internal/capture"
	"github.com/beacon-devtools/beacon/internal/registry"
	"github.com/beacon-devtools/beacon/internal/schema"
	"github.com/beacon-devtools/beacon/internal/security"
	"github.com/beacon-devtools/beacon/internal/tools/wire"
)

const category = "observe"

// Provider serves the observation tools. The store and gate are injected;
// the provider owns neither. Its one wire command (the browser-side console
// clear) goes through the same gate-enforced path the interact tools use.
type Provider struct {
	store *capture.Store
	trail *audit.Log
	wire  *wire.Sender
}

// NewProvider creates the observe provider over the given store and gate.
// The actor tags audit events for this client identity.
func NewProvider(store *capture.Store, gate *security.Gate, actor string) *Provider {
	return &Provider{
		store: store,
		trail: gate.Audit,
		wire:  wire.NewSender(gate, actor),
	}
}

func (p *Provider) Name() string { return "observe" }

func (p *Provider) Tools() ([]registry.ToolDefinition, error) {
	return []registry.ToolDefinition{
		{
			Name:        "console_read",
			Description: "Read buffered console messages, newest last. Optionally filter by level or substring.",
			Category:    category,
			Schema: &schema.ObjectSchema{
				Fields: map[string]schema.Field{
					"limit":    {Type: schema.Int, Description: "Maximum messages to return (default 100)"},
					"level":    {Type: schema.String, Description: "Only messages at this level", Enum: []string{"log", "info", "warn", "error"}},
					"contains": {Type: schema.String, Description: "Only messages containing this substring"},
				},
			},
			Handler: p.consoleRead,
		},
		{
			Name:        "console_clear",
			Description: "Discard all buffered console messages.",
			Category:    category,
			Schema:      &schema.ObjectSchema{},
			Handler:     p.consoleClear,
		},
		{
			Name:        "network_read",
			Description: "Read buffered network request summaries, newest last. Optionally filter by URL substring or failed status.",
			Category:    category,
			Schema: &schema.ObjectSchema{
				Fields: map[string]schema.Field{
					"limit":        {Type: schema.Int, Description: "Maximum entries to return (default 100)"},
					"url_contains": {Type: schema.String, Description: "Only requests whose URL contains this substring"},
					"failed_only":  {Type: schema.Bool, Description: "Only requests with status >= 400 or no response"},
				},
			},
			Handler: p.networkRead,
		},
		{
			Name:        "network_clear",
			Description: "Discard all buffered network entries.",
			Category:    category,
			Schema:      &schema.ObjectSchema{},
			Handler:     p.networkClear,
		},
		{
			Name:        "performance_read",
			Description: "Read buffered performance measurements, newest last.",
			Category:    category,
			Schema: &schema.ObjectSchema{
				Fields: map[string]schema.Field{
					"limit": {Type: schema.Int, Description: "Maximum measurements to return (default 50)"},
				},
			},
			Handler: p.performanceRead,
		},
		{
			Name:        "audit_read",
			Description: "Query the security audit trail, newest first.",
			Category:    category,
			Schema: &schema.ObjectSchema{
				Fields: map[string]schema.Field{
					"limit": {Type: schema.Int, Description: "Maximum events to return (default 100)"},
					"type": {Type: schema.String, Description: "Only events of this category",
						Enum: []string{"authentication", "resource_access", "tool_invocation", "wire_command", "policy_block", "rate_limit"}},
					"actor":       {Type: schema.String, Description: "Only events for this actor"},
					"failed_only": {Type: schema.Bool, Description: "Only failure or blocked outcomes"},
				},
			},
			Handler: p.auditRead,
		},
		{
			Name:        "audit_stats",
			Description: "Aggregate audit statistics: totals per category and outcome, recent failure count.",
			Category:    category,
			Schema:      &schema.ObjectSchema{},
			Handler:     p.auditStats,
		},
	}, nil
}

func intArg(args map[string]any, name string, fallback int) int {
	if v, ok := args[name].(int); ok && v > 0 {
		return v
	}
	return fallback
}

func (p *Provider) consoleRead(_ context.Context, _ *registry.ExecutionContext, args map[string]any) (any, error) {
	limit := intArg(args, "limit", 100)
	level, _ := args["level"].(string)
	contains, _ := args["contains"].(string)

	var entries []capture.ConsoleEntry
	for _, e := range p.store.Console.Snapshot() {
		if level != "" && e.Level != level {
			continue
		}
		if contains != "" && !strings.Contains(e.Message, contains) {
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return map[string]any{"entries": entries, "total": len(entries)}, nil
}

func (p *Provider) consoleClear(ctx context.Context, ec *registry.ExecutionContext, _ map[string]any) (any, error) {
	cleared := p.store.Console.Len()
	p.store.Console.Clear()

	// Clear the browser-side console too. The ring is the source of truth,
	// so a blocked or failed wire clear degrades to browser_cleared=false
	// instead of failing the tool.
	browserCleared := true
	if _, _, err := p.wire.Send(ctx, ec, "Console.clearMessages", nil); err != nil {
		ec.Log.WithError(err).Warn("browser-side console clear failed")
		browserCleared = false
	}

	ec.Log.WithField("cleared", cleared).Info("console buffer cleared")
	return map[string]any{"cleared": cleared, "browser_cleared": browserCleared}, nil
}

func (p *Provider) networkRead(_ context.Context, _ *registry.ExecutionContext, args map[string]any) (any, error) {
	limit := intArg(args, "limit", 100)
	urlContains, _ := args["url_contains"].(string)
	failedOnly, _ := args["failed_only"].(bool)

	var entries []capture.NetworkEntry
	for _, e := range p.store.Network.Snapshot() {
		if urlContains != "" && !strings.Contains(e.URL, urlContains) {
			continue
		}
		if failedOnly && e.Status != 0 && e.Status < 400 {
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return map[string]any{"entries": entries, "total": len(entries)}, nil
}

func (p *Provider) networkClear(_ context.Context, ec *registry.ExecutionContext, _ map[string]any) (any, error) {
	cleared := p.store.Network.Len()
	p.store.Network.Clear()
	ec.Log.WithField("cleared", cleared).Info("network buffer cleared")
	return map[string]any{"cleared": cleared}, nil
}

func (p *Provider) performanceRead(_ context.Context, _ *registry.ExecutionContext, args map[string]any) (any, error) {
	limit := intArg(args, "limit", 50)
	entries := p.store.Performance.Last(limit)
	return map[string]any{"entries": entries, "total": len(entries)}, nil
}

func (p *Provider) auditRead(_ context.Context, _ *registry.ExecutionContext, args map[string]any) (any, error) {
	limit := intArg(args, "limit", 100)

	var events []audit.Event
	switch {
	case args["failed_only"] == true:
		events = p.trail.Failed(limit)
	case args["type"] != nil:
		events = p.trail.ByType(audit.EventType(args["type"].(string)), limit)
	case args["actor"] != nil:
		events = p.trail.ByActor(args["actor"].(string), limit)
	default:
		events = p.trail.Recent(limit)
	}
	return map[string]any{"events": events, "total": len(events)}, nil
}

func (p *Provider) auditStats(_ context.Context, _ *registry.ExecutionContext, _ map[string]any) (any, error) {
	return p.trail.Statistics(), nil
}
