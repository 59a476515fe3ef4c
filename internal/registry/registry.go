// registry.go — Capability registry with connection-lifecycle-driven
// dynamic registration.
// Aggregates providers into a flat handler namespace, dispatches invocations
// through the fixed validation/session/execution pipeline, and tears down
// connection-bound providers synchronously on disconnect so no capability
// referencing a dead connection stays advertised. Nothing dispatched here
// ever escapes as an unhandled fault: every failure mode is representable as
// a result envelope.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/beacon-devtools/beacon/internal/audit"
	"github.com/beacon-devtools/beacon/internal/logging"
	"github.com/beacon-devtools/beacon/internal/mcp"
	"github.com/beacon-devtools/beacon/internal/security"
	"github.com/beacon-devtools/beacon/internal/session"
)

// Lifetime tags how long a registration lives. The tag makes an illegal
// transition (a disconnect tearing down a static provider) structurally
// impossible: the disconnect cascade only ever visits dynamic entries.
type Lifetime int

const (
	// LifetimeStatic providers live for the whole process.
	LifetimeStatic Lifetime = iota
	// LifetimeDynamic providers are bound to one physical connection.
	LifetimeDynamic
)

func (l Lifetime) String() string {
	if l == LifetimeDynamic {
		return "dynamic"
	}
	return "static"
}

// handlerEntry is one flat-namespace dispatch entry.
type handlerEntry struct {
	def      ToolDefinition
	provider string
}

// registration tracks one provider and the tool names it contributed.
type registration struct {
	provider Provider
	lifetime Lifetime
	tools    []string
}

// DynamicFactory builds a connection-scoped provider when the browser
// connects. The returned provider is registered dynamic and torn down on
// disconnect.
type DynamicFactory func(client session.Client) Provider

// Registry is the capability registry. Safe for concurrent use; the handler
// map, provider map, and dynamic set are its only shared mutable state.
type Registry struct {
	mu            sync.RWMutex
	registrations map[string]*registration
	handlers      map[string]handlerEntry
	factories     []DynamicFactory
	notify        func()
	actor         string

	broker *session.Broker
	gate   *security.Gate
	log    *logrus.Entry

	tracer      trace.Tracer
	invocations metric.Int64Counter
	failures    metric.Int64Counter
	blocks      metric.Int64Counter
}

// New creates a registry over the given broker and security gate.
func New(broker *session.Broker, gate *security.Gate) *Registry {
	meter := otel.Meter("beacon/registry")
	invocations, _ := meter.Int64Counter("beacon.tool.invocations",
		metric.WithDescription("Capability invocations dispatched"))
	failures, _ := meter.Int64Counter("beacon.tool.failures",
		metric.WithDescription("Capability invocations that resolved to a failure envelope"))
	blocks, _ := meter.Int64Counter("beacon.tool.blocks",
		metric.WithDescription("Capability invocations denied by policy or rate budget"))

	return &Registry{
		registrations: make(map[string]*registration),
		handlers:      make(map[string]handlerEntry),
		actor:         "unidentified",
		broker:        broker,
		gate:          gate,
		log:           logging.Named("registry"),
		tracer:        otel.Tracer("beacon/registry"),
		invocations:   invocations,
		failures:      failures,
		blocks:        blocks,
	}
}

// Notify attaches the capability-changed sink. The control-protocol adapter
// must re-query ListAllTools after each signal.
func (r *Registry) Notify(sink func()) {
	r.mu.Lock()
	r.notify = sink
	r.mu.Unlock()
}

// SetActor records the client identity used for audit and rate accounting.
func (r *Registry) SetActor(id string) {
	r.mu.Lock()
	if id != "" {
		r.actor = id
	}
	r.mu.Unlock()
}

func (r *Registry) currentActor() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.actor
}

// Register inserts a provider's tools into the flat handler namespace.
// A name collision overwrites the previous entry with a logged warning,
// never a silent merge. Dynamic registrations join the connection-bound set.
func (r *Registry) Register(p Provider, dynamic bool) {
	lifetime := LifetimeStatic
	if dynamic {
		lifetime = LifetimeDynamic
	}

	tools, err := p.Tools()
	if err != nil {
		r.log.WithField("provider", p.Name()).WithError(err).Error("provider enumeration failed at registration")
		tools = nil
	}

	r.mu.Lock()
	if prev, exists := r.registrations[p.Name()]; exists {
		r.log.WithFields(logrus.Fields{
			"provider": p.Name(),
			"lifetime": prev.lifetime.String(),
		}).Warn("re-registering provider, previous registration replaced")
		r.removeLocked(p.Name())
	}

	reg := &registration{provider: p, lifetime: lifetime}
	for _, def := range tools {
		if existing, collision := r.handlers[def.Name]; collision {
			r.log.WithFields(logrus.Fields{
				"tool":     def.Name,
				"previous": existing.provider,
				"new":      p.Name(),
			}).Warn("tool name collision, last registration wins")
			r.detachToolLocked(existing.provider, def.Name)
		}
		r.handlers[def.Name] = handlerEntry{def: def, provider: p.Name()}
		reg.tools = append(reg.tools, def.Name)
	}
	r.registrations[p.Name()] = reg
	sink := r.notify
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"provider": p.Name(),
		"lifetime": lifetime.String(),
		"tools":    len(reg.tools),
	}).Info("provider registered")

	if sink != nil {
		sink()
	}
}

// Unregister removes a provider and every tool name it contributed. Unknown
// names are a warning no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	_, exists := r.registrations[name]
	if !exists {
		r.mu.Unlock()
		r.log.WithField("provider", name).Warn("unregister of unknown provider ignored")
		return
	}
	r.removeLocked(name)
	sink := r.notify
	r.mu.Unlock()

	r.log.WithField("provider", name).Info("provider unregistered")
	if sink != nil {
		sink()
	}
}

// removeLocked deletes a registration and its handler entries. Caller holds mu.
func (r *Registry) removeLocked(name string) {
	reg := r.registrations[name]
	if reg == nil {
		return
	}
	for _, tool := range reg.tools {
		if entry, ok := r.handlers[tool]; ok && entry.provider == name {
			delete(r.handlers, tool)
		}
	}
	delete(r.registrations, name)
}

// detachToolLocked drops a tool name from the provider that previously owned
// it, keeping the registration's tool list accurate after a collision.
func (r *Registry) detachToolLocked(providerName, tool string) {
	reg := r.registrations[providerName]
	if reg == nil {
		return
	}
	kept := reg.tools[:0]
	for _, t := range reg.tools {
		if t != tool {
			kept = append(kept, t)
		}
	}
	reg.tools = kept
}

// BindDynamic registers a factory invoked on every connected event to build
// a connection-scoped provider.
func (r *Registry) BindDynamic(factory DynamicFactory) {
	r.mu.Lock()
	r.factories = append(r.factories, factory)
	r.mu.Unlock()
}

// OnConnected installs the physical connection and registers every bound
// dynamic provider. Connection events must be delivered in arrival order.
func (r *Registry) OnConnected(client session.Client) {
	r.broker.SetClient(client)

	r.mu.RLock()
	factories := append([]DynamicFactory(nil), r.factories...)
	r.mu.RUnlock()

	for _, factory := range factories {
		r.Register(factory(client), true)
	}
	r.log.WithField("dynamic_providers", len(factories)).Info("browser connected")
}

// OnDisconnected tears down every dynamic provider synchronously before
// returning, so no capability referencing the dead connection remains
// advertised in a subsequent listing.
func (r *Registry) OnDisconnected() {
	r.mu.RLock()
	var dynamic []string
	for name, reg := range r.registrations {
		if reg.lifetime == LifetimeDynamic {
			dynamic = append(dynamic, name)
		}
	}
	r.mu.RUnlock()

	for _, name := range dynamic {
		r.Unregister(name)
	}
	r.broker.ClearClient()
	r.log.WithField("dynamic_providers", len(dynamic)).Info("browser disconnected")
}

// GetHandler returns the dispatch entry for a tool name.
func (r *Registry) GetHandler(name string) (ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.handlers[name]
	return entry.def, ok
}

// ListAllTools aggregates every provider's declared tools. A provider whose
// enumeration fails is skipped and logged; partial failure never aborts the
// aggregate.
func (r *Registry) ListAllTools() []mcp.Tool {
	r.mu.RLock()
	providers := make([]Provider, 0, len(r.registrations))
	for _, reg := range r.registrations {
		providers = append(providers, reg.provider)
	}
	r.mu.RUnlock()

	var tools []mcp.Tool
	for _, p := range providers {
		defs, err := p.Tools()
		if err != nil {
			r.log.WithField("provider", p.Name()).WithError(err).Warn("provider enumeration failed, skipped in listing")
			continue
		}
		for _, def := range defs {
			tools = append(tools, mcp.Tool{
				Name:        def.Name,
				Description: def.Description,
				InputSchema: def.Schema.JSONSchema(),
			})
		}
	}
	return tools
}

// ExecuteTool dispatches one invocation through the fixed pipeline:
// policy gate → rate budget → schema validation → session resolution →
// handler execution → output sanitization → envelope. An unknown name and a
// handler panic both degrade to a failure envelope; this method never
// returns a fault any other way.
func (r *Registry) ExecuteTool(ctx context.Context, name string, rawArgs json.RawMessage) mcp.ToolResult {
	ctx, span := r.tracer.Start(ctx, "registry.execute_tool",
		trace.WithAttributes(attribute.String("beacon.tool", name)))
	defer span.End()

	actor := r.currentActor()
	r.invocations.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", name)))

	entry, ok := r.lookup(name)
	if !ok {
		// An ordinary client mistake, not a system fault.
		r.log.WithField("tool", name).Debug("unknown tool requested")
		return r.failed(ctx, name, mcp.Failf("Unknown tool: %s", name))
	}

	if !r.gate.Tools.IsToolAllowed(entry.def.Category, name) {
		r.gate.Audit.RecordPolicyBlock(actor, name, "tool blocked by capability policy")
		r.blocks.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", name)))
		return mcp.Failf("tool %q is blocked by policy", name)
	}

	if ok, rejection := r.gate.Limiter.Allow(actor); !ok {
		r.gate.Audit.RecordRateLimit(actor, rejection.Error())
		r.blocks.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", name)))
		return mcp.Fail(rejection.Error())
	}

	args := make(map[string]any)
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return r.failed(ctx, name, mcp.Fail("arguments must be a JSON object: "+err.Error()))
		}
	}

	// session_id is a reserved argument: callers echo it to reuse a session.
	suppliedSession, _ := args["session_id"].(string)
	delete(args, "session_id")

	args, warnings, verr := entry.def.Schema.ValidateMap(args)
	if verr != nil {
		return r.failed(ctx, name, mcp.Fail(verr.Error()))
	}

	sessionID, err := r.broker.Acquire(ctx, suppliedSession)
	if err != nil {
		if errors.Is(err, session.ErrNotConnected) {
			return r.failed(ctx, name, mcp.Fail("browser not connected: connect a browser before invoking this tool"))
		}
		return r.failed(ctx, name, mcp.Fail(err.Error()))
	}

	ec := &ExecutionContext{
		SessionID: sessionID,
		Broker:    r.broker,
		Log: r.log.WithFields(logrus.Fields{
			"provider": entry.provider,
			"tool":     name,
		}),
	}

	data, err := r.invoke(ctx, entry, ec, args)
	if err != nil {
		ec.Log.WithError(err).Error("tool handler failed")
		r.gate.Audit.RecordToolInvocation(actor, name, audit.OutcomeFailure, err.Error())
		return r.failed(ctx, name, mcp.Fail(err.Error()))
	}

	r.gate.Audit.RecordToolInvocation(actor, name, audit.OutcomeSuccess, "")
	return mcp.OKWithWarnings(r.echoSession(r.sanitizeOutput(data), sessionID), warnings)
}

// echoSession surfaces the resolved session id in the result so callers can
// pass it back for session reuse. Injected after sanitization; the id is
// this system's own correlation value, not page data.
func (r *Registry) echoSession(data any, sessionID string) any {
	switch out := data.(type) {
	case nil:
		return map[string]any{"session_id": sessionID}
	case map[string]any:
		out["session_id"] = sessionID
		return out
	default:
		return data
	}
}

// lookup fetches a dispatch entry under the read lock.
func (r *Registry) lookup(name string) (handlerEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.handlers[name]
	return entry, ok
}

// invoke runs the handler body with panic containment: a panicking handler
// is logged with its stack and degraded to an error.
func (r *Registry) invoke(ctx context.Context, entry handlerEntry, ec *ExecutionContext, args map[string]any) (data any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ec.Log.WithField("panic", rec).Error("tool handler panicked\n" + string(debug.Stack()))
			data = nil
			err = fmt.Errorf("internal error in tool %q: %v", entry.def.Name, rec)
		}
	}()
	return entry.def.Handler(ctx, ec, args)
}

// failed counts and returns a failure envelope.
func (r *Registry) failed(ctx context.Context, name string, result mcp.ToolResult) mcp.ToolResult {
	r.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", name)))
	return result
}

// sanitizeOutput runs handler output through the gate sanitizer. The value
// is round-tripped through JSON first so typed structs nested anywhere in
// the result become plain decoded values and every string the client will
// see gets scanned.
func (r *Registry) sanitizeOutput(data any) any {
	if data == nil {
		return nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return data
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return data
	}
	return r.gate.Sanitizer.Sanitize(decoded)
}
