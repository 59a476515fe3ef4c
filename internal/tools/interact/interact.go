// interact.go — Write-side capability provider over a live connection.
// Every tool here translates to one privileged wire command, so the provider
// is registered dynamic (torn down on disconnect) and consults the security
// gate before each send: method whitelist, parameter scrubbing, resource
// policy for navigation targets. Denials are surfaced in the envelope and
// always paired with an audit event.
package interact

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/beacon-devtools/beacon/internal/audit"
	"github.com/beacon-devtools/beacon/internal/registry"
	"github.com/beacon-devtools/beacon/internal/schema"
	"github.com/beacon-devtools/beacon/internal/security"
	"github.com/beacon-devtools/beacon/internal/tools/wire"
)

const category = "interact"

// Provider serves the interaction tools for one connection lifetime.
type Provider struct {
	gate  *security.Gate
	actor string
	wire  *wire.Sender
}

// NewProvider creates an interact provider consulting the given gate.
// The actor tags audit events for this connection's client identity.
func NewProvider(gate *security.Gate, actor string) *Provider {
	if actor == "" {
		actor = "unidentified"
	}
	return &Provider{gate: gate, actor: actor, wire: wire.NewSender(gate, actor)}
}

func (p *Provider) Name() string { return "interact" }

func (p *Provider) Tools() ([]registry.ToolDefinition, error) {
	return []registry.ToolDefinition{
		{
			Name:        "navigate",
			Description: "Navigate the page to a URL. The URL must pass the resource policy.",
			Category:    category,
			Schema: &schema.ObjectSchema{
				Fields: map[string]schema.Field{
					"url": {Type: schema.String, Description: "Absolute URL to navigate to"},
				},
				Required: []string{"url"},
			},
			Handler: p.navigate,
		},
		{
			Name:        "evaluate",
			Description: "Evaluate a JavaScript expression in the page. Payloads matching dangerous patterns are rejected.",
			Category:    category,
			Schema: &schema.ObjectSchema{
				Fields: map[string]schema.Field{
					"expression":    {Type: schema.String, Description: "Expression to evaluate"},
					"await_promise": {Type: schema.Bool, Description: "Resolve a returned promise before replying"},
				},
				Required: []string{"expression"},
			},
			Handler: p.evaluate,
		},
		{
			Name:        "set_headers",
			Description: "Set extra HTTP headers on page requests. Sensitive header names are stripped.",
			Category:    category,
			Schema: &schema.ObjectSchema{
				Fields: map[string]schema.Field{
					"headers": {Type: schema.Object, Description: "Header name to value map"},
				},
				Required: []string{"headers"},
			},
			Handler: p.setHeaders,
		},
		{
			Name:        "screenshot",
			Description: "Capture a screenshot of the current page.",
			Category:    category,
			Schema: &schema.ObjectSchema{
				Fields: map[string]schema.Field{
					"format": {Type: schema.String, Description: "Image format", Enum: []string{"png", "jpeg", "webp"}},
				},
			},
			Handler: p.screenshot,
		},
		{
			Name:        "reload",
			Description: "Reload the current page.",
			Category:    category,
			Schema: &schema.ObjectSchema{
				Fields: map[string]schema.Field{
					"ignore_cache": {Type: schema.Bool, Description: "Bypass the browser cache"},
				},
			},
			Handler: p.reload,
		},
	}, nil
}

func (p *Provider) navigate(ctx context.Context, ec *registry.ExecutionContext, args map[string]any) (any, error) {
	url := args["url"].(string)
	if !p.gate.Resources.IsResourceAllowed(url) {
		p.gate.Audit.RecordResourceAccess(p.actor, url, audit.OutcomeBlocked, "url outside resource policy")
		return nil, fmt.Errorf("navigation to %q is not permitted by resource policy", url)
	}
	p.gate.Audit.RecordResourceAccess(p.actor, url, audit.OutcomeSuccess, "")

	result, _, err := p.wire.Send(ctx, ec, "Page.navigate", map[string]any{"url": url})
	if err != nil {
		return nil, err
	}
	return decodeResult(result, map[string]any{"url": url}), nil
}

func (p *Provider) evaluate(ctx context.Context, ec *registry.ExecutionContext, args map[string]any) (any, error) {
	params := map[string]any{
		"expression":    args["expression"],
		"returnByValue": true,
	}
	if await, ok := args["await_promise"].(bool); ok {
		params["awaitPromise"] = await
	}

	result, _, err := p.wire.Send(ctx, ec, "Runtime.evaluate", params)
	if err != nil {
		return nil, err
	}
	return decodeResult(result, nil), nil
}

func (p *Provider) setHeaders(ctx context.Context, ec *registry.ExecutionContext, args map[string]any) (any, error) {
	headers := args["headers"].(map[string]any)

	_, warnings, err := p.wire.Send(ctx, ec, "Network.setExtraHTTPHeaders", map[string]any{"headers": headers})
	if err != nil {
		return nil, err
	}
	data := map[string]any{"applied": true}
	if len(warnings) > 0 {
		data["stripped"] = warnings
	}
	return data, nil
}

func (p *Provider) screenshot(ctx context.Context, ec *registry.ExecutionContext, args map[string]any) (any, error) {
	format, ok := args["format"].(string)
	if !ok {
		format = "png"
	}

	result, _, err := p.wire.Send(ctx, ec, "Page.captureScreenshot", map[string]any{"format": format})
	if err != nil {
		return nil, err
	}
	return decodeResult(result, map[string]any{"format": format}), nil
}

func (p *Provider) reload(ctx context.Context, ec *registry.ExecutionContext, args map[string]any) (any, error) {
	params := map[string]any{}
	if ignore, ok := args["ignore_cache"].(bool); ok {
		params["ignoreCache"] = ignore
	}

	_, _, err := p.wire.Send(ctx, ec, "Page.reload", params)
	if err != nil {
		return nil, err
	}
	return map[string]any{"reloaded": true}, nil
}

// decodeResult unpacks a wire reply into plain structured data, falling back
// to the given default when the reply is empty or not an object.
func decodeResult(raw json.RawMessage, fallback map[string]any) any {
	if len(raw) == 0 {
		return fallback
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fallback
	}
	if fallback != nil {
		for k, v := range fallback {
			if _, exists := decoded[k]; !exists {
				decoded[k] = v
			}
		}
	}
	return decoded
}
