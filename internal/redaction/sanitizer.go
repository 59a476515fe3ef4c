// sanitizer.go — Structural output sanitizer.
// Recursively walks arbitrary decoded JSON before it reaches the AI client:
// values under sensitive keys are replaced wholesale, string scalars are
// scanned against a battery of secret-shaped patterns, over-long strings are
// truncated, and branches past the depth limit are cut. Uses RE2 regex
// (Go's regexp package) for guaranteed linear-time matching.
// Sanitization is idempotent: re-sanitizing produces identical output.
package redaction

import (
	"regexp"
	"strings"
)

const (
	// Placeholder replaces the value of any sensitive key.
	Placeholder = "[REDACTED]"
	// DepthMarker replaces branches nested past the depth limit.
	DepthMarker = "[REDACTED:depth-exceeded]"
	// TruncationMarker terminates strings cut at the length limit.
	TruncationMarker = "...[truncated]"

	defaultMaxDepth  = 16
	defaultMaxString = 8192
)

// compiledPattern is one secret-shaped regex with its replacement.
type compiledPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
	validate    func(match string) bool // optional post-match validation (e.g. Luhn)
}

// builtinPatterns defines the always-active string scanning rules.
// Replacements never re-match any pattern, which is what keeps the
// sanitizer idempotent.
var builtinPatterns = []struct {
	name     string
	pattern  string
	validate func(string) bool
}{
	{name: "bearer-token", pattern: `Bearer [A-Za-z0-9\-._~+/]+=*`},
	{name: "basic-auth", pattern: `Basic [A-Za-z0-9+/]+=*`},
	{name: "jwt", pattern: `eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]+`},
	{name: "aws-key", pattern: `AKIA[0-9A-Z]{16}`},
	{name: "github-pat", pattern: `(ghp_[A-Za-z0-9]{36,}|github_pat_[A-Za-z0-9_]{36,})`},
	{name: "private-key", pattern: `-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`},
	{name: "credit-card", pattern: `\b([0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4})\b`, validate: luhnValid},
	{name: "ssn", pattern: `\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`},
	{name: "api-key", pattern: `(?i)(api[_-]?key|apikey|secret[_-]?key)\s*[:=]\s*\S+`},
	{name: "session-cookie", pattern: `(?i)(session|sid|token)\s*=\s*[A-Za-z0-9+/=_-]{16,}`},
	{name: "email", pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`},
	{name: "opaque-token", pattern: `\b[A-Za-z0-9_-]{48,}\b`},
}

// defaultSensitiveKeys match object keys case-insensitively by substring.
// "session_id" is deliberately absent: it is this system's own correlation
// id and must round-trip to the caller for session reuse.
var defaultSensitiveKeys = []string{
	"password", "passwd", "secret", "token", "apikey", "api_key",
	"authorization", "credential", "cookie", "private_key",
}

// Sanitizer scrubs structured data. Safe for concurrent use after
// construction.
type Sanitizer struct {
	maxDepth      int
	maxString     int
	sensitiveKeys []string
	patterns      []compiledPattern
}

// Option adjusts sanitizer construction.
type Option func(*Sanitizer)

// WithMaxDepth caps recursion; deeper branches become DepthMarker.
func WithMaxDepth(depth int) Option {
	return func(s *Sanitizer) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// WithMaxStringLen caps string scalars; longer values are truncated.
func WithMaxStringLen(n int) Option {
	return func(s *Sanitizer) {
		if n > 0 {
			s.maxString = n
		}
	}
}

// WithSensitiveKeys appends extra key fragments to the built-in set.
func WithSensitiveKeys(keys ...string) Option {
	return func(s *Sanitizer) {
		for _, k := range keys {
			s.sensitiveKeys = append(s.sensitiveKeys, strings.ToLower(k))
		}
	}
}

// NewSanitizer compiles the built-in battery and applies options.
func NewSanitizer(opts ...Option) *Sanitizer {
	s := &Sanitizer{
		maxDepth:      defaultMaxDepth,
		maxString:     defaultMaxString,
		sensitiveKeys: append([]string(nil), defaultSensitiveKeys...),
	}
	for _, bp := range builtinPatterns {
		s.patterns = append(s.patterns, compiledPattern{
			name:        bp.name,
			regex:       regexp.MustCompile(bp.pattern),
			replacement: "[REDACTED:" + bp.name + "]",
			validate:    bp.validate,
		})
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sanitize returns a scrubbed copy of v. The input is never mutated.
// The root value sits at depth 1.
func (s *Sanitizer) Sanitize(v any) any {
	return s.walk(v, 1)
}

func (s *Sanitizer) walk(v any, depth int) any {
	if depth > s.maxDepth {
		return DepthMarker
	}
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, child := range value {
			if s.isSensitiveKey(k) {
				out[k] = Placeholder
				continue
			}
			out[k] = s.walk(child, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, child := range value {
			out[i] = s.walk(child, depth+1)
		}
		return out
	case string:
		return s.scrubString(value)
	default:
		// Numbers, bools, nil: nothing secret-shaped to scan.
		return value
	}
}

// isSensitiveKey reports whether the key matches the sensitive set by
// case-insensitive substring.
func (s *Sanitizer) isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range s.sensitiveKeys {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// scrubString applies the pattern battery, then length truncation. The
// battery runs unconditionally: a string is never trusted because it looks
// already processed (untrusted page output can carry any suffix). The
// truncation-marker check only prevents cutting the same string twice.
func (s *Sanitizer) scrubString(value string) string {
	for _, p := range s.patterns {
		if p.validate != nil {
			value = p.regex.ReplaceAllStringFunc(value, func(match string) string {
				if p.validate(match) {
					return p.replacement
				}
				return match
			})
			continue
		}
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	if !strings.HasSuffix(value, TruncationMarker) && len(value) > s.maxString {
		value = value[:s.maxString] + TruncationMarker
	}
	return value
}

// luhnValid checks a candidate card number with the Luhn algorithm, keeping
// the credit-card pattern from flagging arbitrary 16-digit sequences.
func luhnValid(number string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)

	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		n := int(digits[i] - '0')
		if alt {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		alt = !alt
	}
	return sum%10 == 0
}
