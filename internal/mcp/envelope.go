// envelope.go — Uniform tool result envelope.
// Every capability invocation resolves to this shape; no failure mode below
// the control-protocol adapter is allowed to surface any other way.
package mcp

import "fmt"

// ToolResult is the only result shape that crosses the registry boundary.
type ToolResult struct {
	Success  bool     `json:"success"`
	Data     any      `json:"data,omitempty"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// OK wraps data in a success envelope.
func OK(data any) ToolResult {
	return ToolResult{Success: true, Data: data}
}

// OKWithWarnings wraps data in a success envelope carrying warnings
// (typically unknown-parameter notices from schema validation).
func OKWithWarnings(data any, warnings []string) ToolResult {
	return ToolResult{Success: true, Data: data, Warnings: warnings}
}

// Fail builds a failure envelope from a message.
func Fail(msg string) ToolResult {
	return ToolResult{Success: false, Error: msg}
}

// Failf builds a failure envelope from a format string.
func Failf(format string, args ...any) ToolResult {
	return ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}
