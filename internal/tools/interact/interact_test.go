package interact

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-devtools/beacon/internal/audit"
	"github.com/beacon-devtools/beacon/internal/logging"
	"github.com/beacon-devtools/beacon/internal/registry"
	"github.com/beacon-devtools/beacon/internal/security"
	"github.com/beacon-devtools/beacon/internal/session"
)

// wireCall records one Send for assertion.
type wireCall struct {
	Method    string
	Params    map[string]any
	SessionID string
}

type fakeWire struct {
	calls   []wireCall
	reply   json.RawMessage
	sendErr error
}

func (w *fakeWire) Send(_ context.Context, method string, params any, sessionID string) (json.RawMessage, error) {
	asMap, _ := params.(map[string]any)
	w.calls = append(w.calls, wireCall{Method: method, Params: asMap, SessionID: sessionID})
	if w.sendErr != nil {
		return nil, w.sendErr
	}
	return w.reply, nil
}

func (w *fakeWire) CreateSession(context.Context, string) (string, error) {
	return "sess-1", nil
}

func execContext(wire *fakeWire) *registry.ExecutionContext {
	broker := session.NewBroker(logging.Named("interact-test"))
	broker.SetClient(wire)
	return &registry.ExecutionContext{
		SessionID: "sess-1",
		Broker:    broker,
		Log:       logging.Named("interact-test"),
	}
}

func TestToolsEnumeration(t *testing.T) {
	p := NewProvider(security.NewDefaultGate(), "client-1")
	tools, err := p.Tools()
	require.NoError(t, err)

	names := make([]string, len(tools))
	for i, d := range tools {
		names[i] = d.Name
		assert.Equal(t, "interact", d.Category)
	}
	assert.ElementsMatch(t, []string{"navigate", "evaluate", "set_headers", "screenshot", "reload"}, names)
}

func TestNavigateIssuesWireCall(t *testing.T) {
	gate := security.NewDefaultGate()
	p := NewProvider(gate, "client-1")
	wire := &fakeWire{reply: json.RawMessage(`{"frameId":"f1"}`)}

	data, err := p.navigate(context.Background(), execContext(wire), map[string]any{"url": "http://localhost:3000/"})
	require.NoError(t, err)

	require.Len(t, wire.calls, 1)
	assert.Equal(t, "Page.navigate", wire.calls[0].Method)
	assert.Equal(t, "sess-1", wire.calls[0].SessionID)

	result := data.(map[string]any)
	assert.Equal(t, "f1", result["frameId"])
	assert.Equal(t, "http://localhost:3000/", result["url"])
}

func TestNavigateBlockedByResourcePolicy(t *testing.T) {
	gate := security.NewDefaultGate()
	resources, err := security.NewResourcePolicy([]string{`^https?://localhost(:\d+)?/`})
	require.NoError(t, err)
	gate.Resources = resources

	p := NewProvider(gate, "client-1")
	wire := &fakeWire{}

	_, err = p.navigate(context.Background(), execContext(wire), map[string]any{"url": "https://evil.example/exfil"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resource policy")
	assert.Empty(t, wire.calls, "no wire call may happen after a denial")

	events := gate.Audit.ByType(audit.EventResourceAccess, 10)
	require.Len(t, events, 1)
	assert.Equal(t, audit.OutcomeBlocked, events[0].Outcome)
}

func TestEvaluateRejectsDangerousPayloadBeforeWire(t *testing.T) {
	gate := security.NewDefaultGate()
	p := NewProvider(gate, "client-1")
	wire := &fakeWire{}

	_, err := p.evaluate(context.Background(), execContext(wire), map[string]any{
		"expression": `require('fs').readFileSync('/etc/passwd')`,
	})
	require.Error(t, err)

	var rejection *security.Rejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "Runtime.evaluate", rejection.Method)
	assert.Empty(t, wire.calls, "rejected payload must never reach the wire")

	blocks := gate.Audit.ByType(audit.EventPolicyBlock, 10)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Runtime.evaluate", blocks[0].Resource)
}

func TestEvaluateBenignExpression(t *testing.T) {
	gate := security.NewDefaultGate()
	p := NewProvider(gate, "client-1")
	wire := &fakeWire{reply: json.RawMessage(`{"result":{"type":"number","value":4}}`)}

	data, err := p.evaluate(context.Background(), execContext(wire), map[string]any{
		"expression":    "2 + 2",
		"await_promise": true,
	})
	require.NoError(t, err)

	require.Len(t, wire.calls, 1)
	assert.Equal(t, "Runtime.evaluate", wire.calls[0].Method)
	assert.Equal(t, true, wire.calls[0].Params["awaitPromise"])
	assert.Equal(t, true, wire.calls[0].Params["returnByValue"])
	assert.NotNil(t, data)
}

func TestEvaluateBlockedByMethodPolicy(t *testing.T) {
	gate := security.NewDefaultGate()
	methods, err := security.NewMethodPolicy(nil, []string{"Runtime.*"})
	require.NoError(t, err)
	gate.Methods = methods

	p := NewProvider(gate, "client-1")
	wire := &fakeWire{}

	_, err = p.evaluate(context.Background(), execContext(wire), map[string]any{"expression": "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked by policy")
	assert.Empty(t, wire.calls)
}

func TestSetHeadersStripsSensitiveNames(t *testing.T) {
	gate := security.NewDefaultGate()
	p := NewProvider(gate, "client-1")
	wire := &fakeWire{}

	data, err := p.setHeaders(context.Background(), execContext(wire), map[string]any{
		"headers": map[string]any{
			"X-Trace-Id":    "abc",
			"Authorization": "Bearer topsecret",
			"Cookie":        "sid=1234",
		},
	})
	require.NoError(t, err)

	require.Len(t, wire.calls, 1)
	sent := wire.calls[0].Params["headers"].(map[string]any)
	assert.Equal(t, map[string]any{"X-Trace-Id": "abc"}, sent)

	result := data.(map[string]any)
	require.Len(t, result["stripped"], 2)
}

func TestWireFailureIsAudited(t *testing.T) {
	gate := security.NewDefaultGate()
	p := NewProvider(gate, "client-1")
	wire := &fakeWire{sendErr: errors.New("socket closed")}

	_, err := p.reload(context.Background(), execContext(wire), map[string]any{})
	require.Error(t, err)

	// Failures surface with method context from the session layer.
	var transportErr *session.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "Page.reload", transportErr.Method)
	assert.Contains(t, err.Error(), "socket closed")

	events := gate.Audit.ByType(audit.EventWireCommand, 10)
	require.Len(t, events, 1)
	assert.Equal(t, audit.OutcomeFailure, events[0].Outcome)
	assert.Equal(t, "Page.reload", events[0].Resource)
}

func TestScreenshotDefaultsToPNG(t *testing.T) {
	gate := security.NewDefaultGate()
	p := NewProvider(gate, "client-1")
	wire := &fakeWire{reply: json.RawMessage(`{"data":"iVBOR..."}`)}

	_, err := p.screenshot(context.Background(), execContext(wire), map[string]any{})
	require.NoError(t, err)
	require.Len(t, wire.calls, 1)
	assert.Equal(t, "png", wire.calls[0].Params["format"])
}
