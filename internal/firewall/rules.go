// Package firewall provides the client and rule model for the remote firewall
// service. Rules managed by this tool carry a single ip_address condition
// (optionally ANDed with a host condition) and are identified by name, never
// by inspecting their address contents.
package firewall

import (
	"fmt"
	"strings"
)

// MaxRuleAddresses is the hard upper bound on addresses in a single rule
// condition, imposed by the remote service.
const MaxRuleAddresses = 75

// Mode selects how the managed rule treats the address set. Each mode maps
// deterministically to a condition operator, a mitigation action, and a
// default rule name.
type Mode int

const (
	// ModeDeny denies requests whose source address is not in the set.
	ModeDeny Mode = iota
	// ModeBypass lets requests whose source address is in the set bypass the
	// firewall entirely.
	ModeBypass
)

// ParseMode parses a mode name from configuration or flags.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "deny":
		return ModeDeny, nil
	case "bypass":
		return ModeBypass, nil
	}
	return ModeDeny, fmt.Errorf("unknown rule mode %q (expected deny or bypass)", s)
}

func (m Mode) String() string {
	if m == ModeBypass {
		return "bypass"
	}
	return "deny"
}

// Operator returns the ip_address condition operator for the mode.
func (m Mode) Operator() string {
	if m == ModeBypass {
		return "in"
	}
	return "not_in"
}

// Action returns the mitigation action for the mode.
func (m Mode) Action() string {
	if m == ModeBypass {
		return "bypass"
	}
	return "deny"
}

// DefaultRuleName returns the base rule name used when none is configured.
func (m Mode) DefaultRuleName() string {
	if m == ModeBypass {
		return "Managed IP Allowlist (Bypass)"
	}
	return "Managed IP Allowlist"
}

// Condition is a single match condition inside a rule. All conditions in a
// rule are ANDed by the remote service.
type Condition struct {
	Type  string   `json:"type"`
	Op    string   `json:"op"`
	Value []string `json:"value"`
}

// RuleValue is the writable portion of a remote rule.
type RuleValue struct {
	Name       string      `json:"name"`
	Active     bool        `json:"active"`
	Conditions []Condition `json:"conditions"`
	Action     string      `json:"action"`
}

// Rule is a remote rule as reported by the service: an opaque server-assigned
// id plus its value.
type Rule struct {
	ID string `json:"id"`
	RuleValue
}

// NewRuleValue builds the rule value for one chunk of addresses. A non-empty
// hostname adds a host-equality condition ANDed with the address condition.
func NewRuleValue(mode Mode, name string, addresses []string, hostname string, active bool) RuleValue {
	conditions := []Condition{{
		Type:  "ip_address",
		Op:    mode.Operator(),
		Value: addresses,
	}}
	if hostname != "" {
		conditions = append(conditions, Condition{
			Type:  "host",
			Op:    "eq",
			Value: []string{hostname},
		})
	}
	return RuleValue{
		Name:       name,
		Active:     active,
		Conditions: conditions,
		Action:     mode.Action(),
	}
}

// PartName returns the name of chunk i of n for a chunked deployment.
func PartName(base string, i, n int) string {
	return fmt.Sprintf("%s (Part %d/%d)", base, i, n)
}

// MatchesManaged reports whether a remote rule name belongs to the managed
// rule family: the exact base name, or any of its part-suffixed variants.
func MatchesManaged(name, base string) bool {
	return name == base || strings.HasPrefix(name, base+" (Part ")
}

// Addresses returns the value of the rule's ip_address condition, or nil if
// the rule has none.
func (r Rule) Addresses() []string {
	for _, c := range r.Conditions {
		if c.Type == "ip_address" {
			return c.Value
		}
	}
	return nil
}
