package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dean-jl/fwallow/internal/firewall"
)

// ErrPartialFailure indicates that some planned operations succeeded while
// others exhausted their retries. The remote collection may hold duplicate or
// missing rules and needs operator attention.
var ErrPartialFailure = errors.New("some operations could not be applied")

// OpFailure records an operation that failed after retries.
type OpFailure struct {
	Op  Op
	Err error
}

// Result summarizes an executed plan.
type Result struct {
	Inserted int
	Updated  int
	Removed  int
	Failures []OpFailure
}

// Reconciler executes plans against the remote API, one operation at a time.
type Reconciler struct {
	api    firewall.RuleAPI
	logger *slog.Logger
}

func New(api firewall.RuleAPI, logger *slog.Logger) *Reconciler {
	return &Reconciler{api: api, logger: logger}
}

// Execute runs the plan's operations in order. Remove failures are recorded
// as warnings and execution continues, ending in ErrPartialFailure; a failed
// insert or update is fatal to the whole reconciliation because it leaves the
// desired state unreachable. The two outcomes are reported distinctly.
func (r *Reconciler) Execute(ctx context.Context, plan Plan) (Result, error) {
	var res Result

	for _, op := range plan.Ops {
		switch op.Kind {
		case OpRemove:
			if err := r.api.RemoveRule(ctx, op.RuleID); err != nil {
				r.logger.Error("Failed to remove stale rule", "rule", op.Name, "id", op.RuleID, "error", err)
				res.Failures = append(res.Failures, OpFailure{Op: op, Err: err})
				continue
			}
			r.logger.Info("Removed stale rule", "rule", op.Name, "id", op.RuleID)
			res.Removed++

		case OpUpdate:
			if err := r.api.UpdateRule(ctx, op.RuleID, op.Value); err != nil {
				return res, fmt.Errorf("updating rule %q: %w", op.Name, err)
			}
			r.logger.Info("Updated rule", "rule", op.Name, "id", op.RuleID)
			res.Updated++

		case OpInsert:
			id, err := r.api.InsertRule(ctx, op.Value)
			if err != nil {
				return res, fmt.Errorf("inserting rule %q: %w", op.Name, err)
			}
			r.logger.Info("Inserted rule", "rule", op.Name, "id", id)
			res.Inserted++
		}
	}

	if len(res.Failures) > 0 {
		return res, fmt.Errorf("%w: %d of %d operations failed - check the firewall dashboard",
			ErrPartialFailure, len(res.Failures), len(plan.Ops))
	}
	return res, nil
}
