// Package reconcile computes and executes the remote operations needed to
// move the firewall rule collection to the state implied by a desired chunk
// set. Planning is pure; execution is strictly sequential.
package reconcile

import (
	"fmt"

	"github.com/dean-jl/fwallow/internal/firewall"
)

// OpKind is the kind of a planned remote operation.
type OpKind int

const (
	OpInsert OpKind = iota
	OpUpdate
	OpRemove
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	default:
		return "remove"
	}
}

// Op is one planned remote mutation. RuleID is set for update and remove;
// Value is set for insert and update.
type Op struct {
	Kind   OpKind
	RuleID string
	Name   string
	Value  firewall.RuleValue
}

// Plan is an ordered sequence of operations: removes of stale rules first,
// then inserts of new chunks. The remove-then-insert ordering on growth into
// multi-chunk mode is inherited behavior: a crash between remove and insert
// leaves the rule family absent (fail-open), which is surfaced to the
// operator rather than silently changed.
type Plan struct {
	Ops     []Op
	Matched []firewall.Rule
}

// IsNoop reports whether the plan contains no mutations.
func (p Plan) IsNoop() bool { return len(p.Ops) == 0 }

// Counts returns the number of planned inserts, updates, and removes.
func (p Plan) Counts() (inserts, updates, removes int) {
	for _, op := range p.Ops {
		switch op.Kind {
		case OpInsert:
			inserts++
		case OpUpdate:
			updates++
		case OpRemove:
			removes++
		}
	}
	return
}

// Describe renders the plan for dry-run output.
func (p Plan) Describe() []string {
	out := make([]string, 0, len(p.Ops))
	for _, op := range p.Ops {
		switch op.Kind {
		case OpRemove:
			out = append(out, fmt.Sprintf("REMOVE %s (%s)", op.Name, op.RuleID))
		case OpUpdate:
			out = append(out, fmt.Sprintf("UPDATE %s (%s): %d addresses", op.Name, op.RuleID, len(op.Value.Conditions[0].Value)))
		default:
			out = append(out, fmt.Sprintf("INSERT %s: %d addresses", op.Name, len(op.Value.Conditions[0].Value)))
		}
	}
	return out
}

// BuildPlan classifies the existing remote rules against the desired chunks
// and produces the operation sequence:
//
//   - no match, single chunk: one insert under the base name
//   - one match, single chunk: one update preserving the remote id
//   - anything else (multiple chunks, or more than one match): remove every
//     match, then insert one rule per chunk
//
// Matching is name-based only, against the exact base name or its
// "(Part i/N)" variants.
func BuildPlan(existing []firewall.Rule, chunks [][]string, mode firewall.Mode, baseName, hostname string) Plan {
	if baseName == "" {
		baseName = mode.DefaultRuleName()
	}

	var matched []firewall.Rule
	for _, rule := range existing {
		if firewall.MatchesManaged(rule.Name, baseName) {
			matched = append(matched, rule)
		}
	}

	plan := Plan{Matched: matched}
	if len(chunks) == 0 {
		// Nothing desired: the managed family is removed entirely.
		for _, rule := range matched {
			plan.Ops = append(plan.Ops, Op{Kind: OpRemove, RuleID: rule.ID, Name: rule.Name})
		}
		return plan
	}

	if len(chunks) == 1 && len(matched) <= 1 {
		value := firewall.NewRuleValue(mode, baseName, chunks[0], hostname, true)
		if len(matched) == 0 {
			plan.Ops = append(plan.Ops, Op{Kind: OpInsert, Name: baseName, Value: value})
		} else {
			plan.Ops = append(plan.Ops, Op{Kind: OpUpdate, RuleID: matched[0].ID, Name: baseName, Value: value})
		}
		return plan
	}

	for _, rule := range matched {
		plan.Ops = append(plan.Ops, Op{Kind: OpRemove, RuleID: rule.ID, Name: rule.Name})
	}
	for i, chunk := range chunks {
		name := baseName
		if len(chunks) > 1 {
			name = firewall.PartName(baseName, i+1, len(chunks))
		}
		value := firewall.NewRuleValue(mode, name, chunk, hostname, true)
		plan.Ops = append(plan.Ops, Op{Kind: OpInsert, Name: name, Value: value})
	}
	return plan
}
