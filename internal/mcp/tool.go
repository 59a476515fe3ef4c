// tool.go — Wire descriptor for an advertised capability.
package mcp

// Tool is the listing shape the control-protocol adapter serializes in
// response to a capability-enumeration request.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"` // camelCase required by the control protocol
}
