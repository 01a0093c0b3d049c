package db

import (
	"slices"

	"github.com/opst/prodplan/pkg/domain"
)

// Apply returns the step updated.
//
// Satisfied queries are never turned unsatisfied, and input products are never removed.
//
// Returns
//
// - domain.JobStep: updated step
//
// - bool: true if anything is changed
//
// - error: ErrInvalidStateChanging when the state is not next of current one.
func Apply(step domain.JobStep, update domain.JobStepUpdate) (domain.JobStep, bool, error) {
	if err := step.State.Transit(update.State); err != nil {
		return step, false, err
	}
	changed := step.State != update.State
	step.State = update.State

	satisfied := map[string]domain.ProductQuery{}
	for _, q := range update.Satisfied {
		if q.Satisfied {
			satisfied[q.Id] = q
		}
	}
	queries := make([]domain.ProductQuery, 0, len(step.Queries))
	for _, q := range step.Queries {
		if s, ok := satisfied[q.Id]; ok && !q.Satisfied {
			q.Satisfied = true
			q.SatisfyingProducts = append([]string{}, s.SatisfyingProducts...)
			changed = true
		}
		queries = append(queries, q)
	}
	step.Queries = queries

	inputs := append([]string{}, step.InputProducts...)
	for _, p := range update.InputProducts {
		if !slices.Contains(inputs, p) {
			inputs = append(inputs, p)
			changed = true
		}
	}
	step.InputProducts = inputs

	return step, changed, nil
}
