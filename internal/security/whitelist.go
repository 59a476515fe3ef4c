// whitelist.go — Allow/block policies for wire methods, tools, and resources.
// All three share one precedence rule: an explicit block always wins, and an
// empty allow-list means "allow everything not explicitly blocked". Policies
// are compiled once at startup from configuration and read-only afterward;
// evaluation is a pure function of (subject, policy).
package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// rule is one compiled allow/block entry. Entries containing a wildcard
// ("Debugger.*", "observe/*") compile to globs; the rest match exactly.
type rule struct {
	raw     string
	pattern glob.Glob // nil for exact entries
}

func compileRules(entries []string) ([]rule, error) {
	rules := make([]rule, 0, len(entries))
	for _, entry := range entries {
		r := rule{raw: entry}
		if strings.ContainsAny(entry, "*?[") {
			g, err := glob.Compile(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid wildcard rule %q: %w", entry, err)
			}
			r.pattern = g
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func (r rule) matches(subject string) bool {
	if r.pattern != nil {
		return r.pattern.Match(subject)
	}
	return r.raw == subject
}

func anyMatch(rules []rule, subjects ...string) bool {
	for _, r := range rules {
		for _, s := range subjects {
			if r.matches(s) {
				return true
			}
		}
	}
	return false
}

// MethodPolicy governs debugging-protocol methods. Entries are exact method
// names ("Page.navigate") or domain wildcards ("Debugger.*").
type MethodPolicy struct {
	allow []rule
	block []rule
}

// NewMethodPolicy compiles a method policy; malformed wildcards are a
// startup error.
func NewMethodPolicy(allow, block []string) (*MethodPolicy, error) {
	a, err := compileRules(allow)
	if err != nil {
		return nil, err
	}
	b, err := compileRules(block)
	if err != nil {
		return nil, err
	}
	return &MethodPolicy{allow: a, block: b}, nil
}

// IsMethodAllowed applies block-wins precedence to a wire method name.
func (p *MethodPolicy) IsMethodAllowed(method string) bool {
	if anyMatch(p.block, method) {
		return false
	}
	if len(p.allow) == 0 {
		return true
	}
	return anyMatch(p.allow, method)
}

// ToolPolicy governs capability names. Entries are exact tool names
// ("navigate") or category wildcards ("observe/*"), matched against both the
// bare name and the "category/name" form.
type ToolPolicy struct {
	allow []rule
	block []rule
}

// NewToolPolicy compiles a tool policy.
func NewToolPolicy(allow, block []string) (*ToolPolicy, error) {
	a, err := compileRules(allow)
	if err != nil {
		return nil, err
	}
	b, err := compileRules(block)
	if err != nil {
		return nil, err
	}
	return &ToolPolicy{allow: a, block: b}, nil
}

// IsToolAllowed applies block-wins precedence to a tool within a category.
func (p *ToolPolicy) IsToolAllowed(category, name string) bool {
	qualified := category + "/" + name
	if anyMatch(p.block, name, qualified) {
		return false
	}
	if len(p.allow) == 0 {
		return true
	}
	return anyMatch(p.allow, name, qualified)
}

// ResourcePolicy is a regex allow-list over resource identifiers (URLs,
// target ids). An empty list allows everything.
type ResourcePolicy struct {
	allow []*regexp.Regexp
}

// NewResourcePolicy compiles the allow patterns; an invalid regex is a
// startup error.
func NewResourcePolicy(allow []string) (*ResourcePolicy, error) {
	compiled := make([]*regexp.Regexp, 0, len(allow))
	for _, pattern := range allow {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid resource pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return &ResourcePolicy{allow: compiled}, nil
}

// IsResourceAllowed reports whether the identifier matches the allow-list
// (or the list is empty).
func (p *ResourcePolicy) IsResourceAllowed(id string) bool {
	if len(p.allow) == 0 {
		return true
	}
	for _, re := range p.allow {
		if re.MatchString(id) {
			return true
		}
	}
	return false
}
