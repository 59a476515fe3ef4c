// params.go — Method-specific parameter scrubbing before privileged calls.
// Arbitrary-code-execution entry points are rejected outright when the
// payload matches the dangerous-syntax battery; header-setting entry points
// get a fixed set of sensitive header names stripped. Runs before the wire
// call is attempted, never after.
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// Rejection is the typed denial returned by security checks. It is advisory:
// the caller decides what to do with it (the provider wrapper surfaces it in
// the result envelope and records a policy_block audit event).
type Rejection struct {
	Method string
	Rule   string
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("security policy rejected %s: %s", r.Method, r.Reason)
}

// codeExecutionMethods are the wire entry points that evaluate caller-
// supplied script in the page.
var codeExecutionMethods = map[string]bool{
	"Runtime.evaluate":                      true,
	"Runtime.callFunctionOn":                true,
	"Page.addScriptToEvaluateOnNewDocument": true,
	"Page.addScriptToEvaluateOnLoad":        true,
}

// headerMethods are the wire entry points that set request headers.
var headerMethods = map[string]bool{
	"Network.setExtraHTTPHeaders": true,
	"Fetch.continueRequest":       true,
}

// dangerousPattern is one deny-list rule for script payloads.
type dangerousPattern struct {
	name  string
	regex *regexp.Regexp
}

// dangerBattery rejects dynamic module loading, eval-style construction,
// process/filesystem access, and runtime-introspection globals.
var dangerBattery = []dangerousPattern{
	{"dynamic-require", regexp.MustCompile(`\brequire\s*\(`)},
	{"dynamic-import", regexp.MustCompile(`\bimport\s*\(`)},
	{"eval-call", regexp.MustCompile(`\beval\s*\(`)},
	{"function-constructor", regexp.MustCompile(`\bnew\s+Function\s*\(|\bFunction\s*\(\s*["'` + "`" + `]`)},
	{"constructor-escape", regexp.MustCompile(`\bconstructor\s*(\[|\.\s*constructor)`)},
	{"proto-escape", regexp.MustCompile(`__proto__`)},
	{"process-access", regexp.MustCompile(`\bprocess\s*[.\[]`)},
	{"child-process", regexp.MustCompile(`child_process`)},
	{"filesystem-access", regexp.MustCompile(`\bfs\s*\.\s*\w+\s*\(|\breadFileSync\b|\bwriteFileSync\b`)},
	{"global-introspection", regexp.MustCompile(`\bglobalThis\s*\[|\bglobal\s*\[|\bDeno\s*[.\[]`)},
}

// sensitiveHeaders are stripped from header-setting calls regardless of
// casing. Values the AI client should never be able to plant or exfiltrate.
var sensitiveHeaders = []string{
	"authorization",
	"proxy-authorization",
	"cookie",
	"set-cookie",
	"x-api-key",
	"x-auth-token",
	"x-csrf-token",
}

// SanitizeParams scrubs params for the given wire method. It returns the
// (possibly reduced) params, the names of any stripped fields, or a
// Rejection when the payload must not reach the wire at all.
func SanitizeParams(method string, params map[string]any) (map[string]any, []string, *Rejection) {
	if codeExecutionMethods[method] {
		if rej := scanForDangerousSyntax(method, params); rej != nil {
			return nil, nil, rej
		}
		return params, nil, nil
	}
	if headerMethods[method] {
		return stripSensitiveHeaders(params)
	}
	return params, nil, nil
}

// scanForDangerousSyntax walks every string value in the payload against
// the danger battery. Script payloads are flat in practice (expression,
// functionDeclaration, source) but nested maps are scanned too.
func scanForDangerousSyntax(method string, params map[string]any) *Rejection {
	var scan func(v any) *dangerousPattern
	scan = func(v any) *dangerousPattern {
		switch value := v.(type) {
		case string:
			for i := range dangerBattery {
				if dangerBattery[i].regex.MatchString(value) {
					return &dangerBattery[i]
				}
			}
		case map[string]any:
			for _, child := range value {
				if hit := scan(child); hit != nil {
					return hit
				}
			}
		case []any:
			for _, child := range value {
				if hit := scan(child); hit != nil {
					return hit
				}
			}
		}
		return nil
	}

	if hit := scan(params); hit != nil {
		return &Rejection{
			Method: method,
			Rule:   hit.name,
			Reason: fmt.Sprintf("payload matches dangerous pattern %q", hit.name),
		}
	}
	return nil
}

// stripSensitiveHeaders removes protected header names from a headers map,
// reporting what was dropped.
func stripSensitiveHeaders(params map[string]any) (map[string]any, []string, *Rejection) {
	headers, ok := params["headers"].(map[string]any)
	if !ok {
		return params, nil, nil
	}

	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	kept := make(map[string]any, len(headers))
	var stripped []string
	for name, value := range headers {
		if isSensitiveHeader(name) {
			stripped = append(stripped, name)
			continue
		}
		kept[name] = value
	}
	out["headers"] = kept
	return out, stripped, nil
}

func isSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)
	for _, h := range sensitiveHeaders {
		if lower == h {
			return true
		}
	}
	return false
}
