// provider.go — Capability provider contract and per-invocation context.
// A provider is a cohesive bundle of related tools registered as a unit.
// Handlers receive a fresh ExecutionContext per invocation and never mutate
// registry-wide state directly; their only side effects are possible session
// creation and structured logging.
package registry

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/beacon-devtools/beacon/internal/schema"
	"github.com/beacon-devtools/beacon/internal/session"
)

// HandlerFunc is a tool handler body: a function of validated input and the
// execution context. Any error (or panic) it produces is degraded to a
// failure envelope by the dispatch pipeline.
type HandlerFunc func(ctx context.Context, ec *ExecutionContext, args map[string]any) (any, error)

// ToolDefinition declares one named, schema-validated capability.
type ToolDefinition struct {
	Name        string
	Description string
	Category    string // provider category, matched by "category/*" policy rules
	Schema      *schema.ObjectSchema
	Handler     HandlerFunc
}

// Provider exposes a named bundle of tool definitions. Enumeration may fail
// (a misbehaving provider is skipped in listings, never fatal).
type Provider interface {
	Name() string
	Tools() ([]ToolDefinition, error)
}

// ExecutionContext carries per-invocation state: the resolved session, the
// broker over the physical connection, and a logger scoped to provider and
// tool. Created fresh for every invocation and never cached across
// invocations.
type ExecutionContext struct {
	SessionID string
	Broker    *session.Broker
	Log       *logrus.Entry
}

// Send issues one wire command on the invocation's session. All provider
// wire traffic goes through the broker so transport failures carry method
// context and a lost connection surfaces as ErrNotConnected.
func (ec *ExecutionContext) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return ec.Broker.Send(ctx, method, params, ec.SessionID)
}
