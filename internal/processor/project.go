// Package processor drives the sync pipeline for a single project: parse the
// address list, compact it when it overflows the per-rule capacity, split it
// into chunks, plan the remote operations, and execute them behind a
// confirmation gate.
package processor

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/dean-jl/fwallow/internal/firewall"
	"github.com/dean-jl/fwallow/internal/ipset"
	"github.com/dean-jl/fwallow/internal/reconcile"
)

// ConfirmFunc approves a destructive action. It receives a short summary of
// what is about to happen and returns whether to proceed. A nil ConfirmFunc
// approves everything (headless use).
type ConfirmFunc func(summary string) bool

// Options is the immutable configuration for a Processor. No ambient state:
// everything the pipeline needs is passed in at construction.
type Options struct {
	Mode     firewall.Mode
	RuleName string // base rule name; empty uses the mode's default
	Hostname string // optional host condition ANDed with the address match
	Capacity int    // max addresses per rule; 0 uses the service limit
	DryRun   bool
	Confirm  ConfirmFunc
}

// Processor composes parsing, compaction, chunking, and reconciliation for
// one project scope.
type Processor struct {
	api      firewall.RuleAPI
	logger   *slog.Logger
	mode     firewall.Mode
	baseName string
	hostname string
	capacity int
	dryRun   bool
	confirm  ConfirmFunc
}

func New(api firewall.RuleAPI, logger *slog.Logger, opts Options) *Processor {
	baseName := opts.RuleName
	if baseName == "" {
		baseName = opts.Mode.DefaultRuleName()
	}
	capacity := opts.Capacity
	if capacity <= 0 || capacity > firewall.MaxRuleAddresses {
		capacity = firewall.MaxRuleAddresses
	}
	return &Processor{
		api:      api,
		logger:   logger,
		mode:     opts.Mode,
		baseName: baseName,
		hostname: opts.Hostname,
		capacity: capacity,
		dryRun:   opts.DryRun,
		confirm:  opts.Confirm,
	}
}

// ApplyResult reports everything the operator needs to see after a sync:
// parse counts, whether compaction ran, the plan, and the execution outcome.
type ApplyResult struct {
	Parsed     int
	Rejected   int
	LineErrors []ipset.LineError
	Compacted  bool
	FinalCount int
	Chunks     int
	Plan       reconcile.Plan
	Executed   bool
	Declined   bool
	Result     reconcile.Result
}

// Apply reconciles the remote rule family with the address list read from
// src. Compaction runs only when the parsed set exceeds the capacity, so
// small lists keep their input ordering. If compaction still leaves the set
// over capacity, chunking proceeds regardless. In dry-run mode the plan is
// computed and returned without touching the remote.
func (p *Processor) Apply(ctx context.Context, src io.Reader) (ApplyResult, error) {
	parsed := ipset.ParseReader(src)
	result := ApplyResult{
		Parsed:     len(parsed.Entries),
		Rejected:   len(parsed.Errors),
		LineErrors: parsed.Errors,
	}

	entries := parsed.Entries
	if len(entries) == 0 {
		return result, fmt.Errorf("no valid addresses in input (%d lines rejected)", len(parsed.Errors))
	}

	if len(entries) > p.capacity {
		entries = ipset.Compact(entries)
		result.Compacted = true
		p.logger.Info("Compacted address set", "before", result.Parsed, "after", len(entries))
	}
	result.FinalCount = len(entries)

	chunks := ipset.Chunks(entries, p.capacity)
	result.Chunks = len(chunks)

	chunkValues := make([][]string, len(chunks))
	for i, chunk := range chunks {
		chunkValues[i] = ipset.Strings(chunk)
	}

	existing, err := p.api.ListRules(ctx)
	if err != nil {
		return result, err
	}

	result.Plan = reconcile.BuildPlan(existing, chunkValues, p.mode, p.baseName, p.hostname)
	if p.dryRun {
		return result, nil
	}

	if !p.approved(fmt.Sprintf("apply %d operation(s) to rule %q", len(result.Plan.Ops), p.baseName)) {
		result.Declined = true
		return result, nil
	}

	result.Result, err = reconcile.New(p.api, p.logger).Execute(ctx, result.Plan)
	result.Executed = true
	return result, err
}

// Show returns the remote rules currently belonging to the managed family.
func (p *Processor) Show(ctx context.Context) ([]firewall.Rule, error) {
	existing, err := p.api.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	var matched []firewall.Rule
	for _, rule := range existing {
		if firewall.MatchesManaged(rule.Name, p.baseName) {
			matched = append(matched, rule)
		}
	}
	return matched, nil
}

// Disable deactivates every managed rule in place, preserving ids and
// contents. Returns the number of rules disabled.
func (p *Processor) Disable(ctx context.Context) (int, error) {
	matched, err := p.Show(ctx)
	if err != nil {
		return 0, err
	}
	if len(matched) == 0 {
		return 0, nil
	}
	if p.dryRun {
		return 0, nil
	}
	if !p.approved(fmt.Sprintf("disable %d rule(s)", len(matched))) {
		return 0, nil
	}

	disabled := 0
	for _, rule := range matched {
		value := rule.RuleValue
		value.Active = false
		if err := p.api.UpdateRule(ctx, rule.ID, value); err != nil {
			return disabled, fmt.Errorf("disabling rule %q: %w", rule.Name, err)
		}
		p.logger.Info("Disabled rule", "rule", rule.Name, "id", rule.ID)
		disabled++
	}
	return disabled, nil
}

// Remove deletes the managed rule family from the remote collection.
func (p *Processor) Remove(ctx context.Context) (reconcile.Result, error) {
	existing, err := p.api.ListRules(ctx)
	if err != nil {
		return reconcile.Result{}, err
	}
	plan := reconcile.BuildPlan(existing, nil, p.mode, p.baseName, p.hostname)
	return p.executeGated(ctx, plan, fmt.Sprintf("remove %d managed rule(s)", len(plan.Ops)))
}

// Purge deletes every rule in the project scope, managed or not.
func (p *Processor) Purge(ctx context.Context) (reconcile.Result, error) {
	existing, err := p.api.ListRules(ctx)
	if err != nil {
		return reconcile.Result{}, err
	}
	var plan reconcile.Plan
	for _, rule := range existing {
		plan.Ops = append(plan.Ops, reconcile.Op{Kind: reconcile.OpRemove, RuleID: rule.ID, Name: rule.Name})
	}
	return p.executeGated(ctx, plan, fmt.Sprintf("remove ALL %d rule(s) in the project", len(plan.Ops)))
}

func (p *Processor) executeGated(ctx context.Context, plan reconcile.Plan, summary string) (reconcile.Result, error) {
	if plan.IsNoop() || p.dryRun {
		return reconcile.Result{}, nil
	}
	if !p.approved(summary) {
		return reconcile.Result{}, nil
	}
	return reconcile.New(p.api, p.logger).Execute(ctx, plan)
}

func (p *Processor) approved(summary string) bool {
	if p.confirm == nil {
		return true
	}
	return p.confirm(summary)
}
