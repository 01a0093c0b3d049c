// Package readiness decides whether inputs of job steps are available.
package readiness

import (
	"context"

	"github.com/opst/prodplan/pkg/domain"
	"github.com/opst/prodplan/pkg/domain/query"
)

// Evaluate re-evaluates unsatisfied queries of the job step.
//
// Queries once satisfied are not evaluated again.
// Evaluating a step repeatedly without changes in the catalog gives the same update.
//
// Args
//
// - context.Context
//
// - *query.Engine: engine reading the catalog
//
// - domain.JobStep: step to be evaluated
//
// Returns
//
// - domain.JobStepUpdate: READY if all queries are satisfied, WAITING_INPUT otherwise.
// Satisfied has queries newly satisfied, and InputProducts has all inputs of the step.
//
// - error: errors from the engine. The step should not be updated on errors.
func Evaluate(ctx context.Context, engine *query.Engine, step domain.JobStep) (domain.JobStepUpdate, error) {
	update := domain.JobStepUpdate{
		State:         domain.StepReady,
		Satisfied:     []domain.ProductQuery{},
		InputProducts: append([]string{}, step.InputProducts...),
	}

	for _, q := range step.Queries {
		if q.Satisfied {
			continue
		}
		satisfied, err := engine.Satisfy(ctx, q)
		if err != nil {
			return domain.JobStepUpdate{}, err
		}
		if !satisfied.Satisfied {
			update.State = domain.StepWaitingInput
			continue
		}
		update.Satisfied = append(update.Satisfied, satisfied)
		for _, p := range satisfied.SatisfyingProducts {
			if !contains(update.InputProducts, p) {
				update.InputProducts = append(update.InputProducts, p)
			}
		}
	}
	return update, nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
