// wire.go — Gate-enforced wire command path shared by capability providers.
// Every provider-originated wire command passes through here: method
// whitelist, parameter scrubbing, the broker send, and an audit record for
// both outcomes. Providers never talk to the connection any other way.
package wire

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/beacon-devtools/beacon/internal/audit"
	"github.com/beacon-devtools/beacon/internal/registry"
	"github.com/beacon-devtools/beacon/internal/security"
)

// Sender issues wire commands on behalf of one actor, consulting the gate
// before every send.
type Sender struct {
	gate  *security.Gate
	actor string
}

// NewSender creates a sender auditing under the given actor identity.
func NewSender(gate *security.Gate, actor string) *Sender {
	if actor == "" {
		actor = "unidentified"
	}
	return &Sender{gate: gate, actor: actor}
}

// Send runs the pre-flight for one wire command: method whitelist, parameter
// scrubbing, then the call on the invocation's session. Denials and transport
// failures are audited with the method as the resource. The returned warnings
// name any sensitive headers stripped from the parameters.
func (s *Sender) Send(ctx context.Context, ec *registry.ExecutionContext, method string, params map[string]any) (json.RawMessage, []string, error) {
	if !s.gate.Methods.IsMethodAllowed(method) {
		s.gate.Audit.RecordPolicyBlock(s.actor, method, "wire method blocked by policy")
		return nil, nil, fmt.Errorf("wire method %q is blocked by policy", method)
	}

	scrubbed, stripped, rejection := security.SanitizeParams(method, params)
	if rejection != nil {
		s.gate.Audit.RecordPolicyBlock(s.actor, method, rejection.Reason)
		return nil, nil, rejection
	}

	result, err := ec.Send(ctx, method, scrubbed)
	if err != nil {
		s.gate.Audit.RecordWireCommand(s.actor, method, audit.OutcomeFailure, err.Error())
		return nil, stripped, err
	}
	s.gate.Audit.RecordWireCommand(s.actor, method, audit.OutcomeSuccess, "")

	var warnings []string
	for _, name := range stripped {
		warnings = append(warnings, fmt.Sprintf("sensitive header %q stripped", name))
	}
	return result, warnings, nil
}
