package db_test

import (
	"errors"
	"testing"

	"github.com/opst/prodplan/pkg/cmp"
	"github.com/opst/prodplan/pkg/domain"
	jobstepdb "github.com/opst/prodplan/pkg/domain/jobstep/db"
)

func TestApply(t *testing.T) {
	query := func(id string, satisfiedBy ...string) domain.ProductQuery {
		return domain.ProductQuery{
			Id:                 id,
			JobStep:            "step-1",
			Satisfied:          0 < len(satisfiedBy),
			SatisfyingProducts: satisfiedBy,
		}
	}

	type then struct {
		state     domain.JobStepState
		satisfied map[string][]string
		inputs    []string
		changed   bool
	}
	theory := func(step domain.JobStep, update domain.JobStepUpdate, then then) func(*testing.T) {
		return func(t *testing.T) {
			actual, changed, err := jobstepdb.Apply(step, update)
			if err != nil {
				t.Fatalf("unexpected error: %+v", err)
			}
			if changed != then.changed {
				t.Errorf("changed: actual %v, expected %v", changed, then.changed)
			}
			if actual.State != then.state {
				t.Errorf("state: actual %s, expected %s", actual.State, then.state)
			}
			satisfied := map[string][]string{}
			for _, q := range actual.Queries {
				if q.Satisfied {
					satisfied[q.Id] = q.SatisfyingProducts
				}
			}
			if !cmp.MapEqWith(satisfied, then.satisfied, cmp.SliceEq[string]) {
				t.Errorf("satisfied: actual %v, expected %v", satisfied, then.satisfied)
			}
			if !cmp.SliceEq(actual.InputProducts, then.inputs) {
				t.Errorf("inputs: actual %v, expected %v", actual.InputProducts, then.inputs)
			}
		}
	}

	t.Run("queries get satisfied and inputs are appended", theory(
		domain.JobStep{
			Id:      "step-1",
			State:   domain.StepInitial,
			Queries: []domain.ProductQuery{query("q-1"), query("q-2")},
		},
		domain.JobStepUpdate{
			State:         domain.StepWaitingInput,
			Satisfied:     []domain.ProductQuery{query("q-1", "p-1")},
			InputProducts: []string{"p-1"},
		},
		then{
			state:     domain.StepWaitingInput,
			satisfied: map[string][]string{"q-1": {"p-1"}},
			inputs:    []string{"p-1"},
			changed:   true,
		},
	))

	t.Run("satisfied queries are kept as they are", theory(
		domain.JobStep{
			Id:            "step-1",
			State:         domain.StepWaitingInput,
			Queries:       []domain.ProductQuery{query("q-1", "p-1"), query("q-2")},
			InputProducts: []string{"p-1"},
		},
		domain.JobStepUpdate{
			State:         domain.StepReady,
			Satisfied:     []domain.ProductQuery{query("q-1", "p-9"), query("q-2", "p-2")},
			InputProducts: []string{"p-1", "p-2"},
		},
		then{
			state:     domain.StepReady,
			satisfied: map[string][]string{"q-1": {"p-1"}, "q-2": {"p-2"}},
			inputs:    []string{"p-1", "p-2"},
			changed:   true,
		},
	))

	t.Run("nothing new is not a change", theory(
		domain.JobStep{
			Id:            "step-1",
			State:         domain.StepWaitingInput,
			Queries:       []domain.ProductQuery{query("q-1", "p-1"), query("q-2")},
			InputProducts: []string{"p-1"},
		},
		domain.JobStepUpdate{
			State:         domain.StepWaitingInput,
			Satisfied:     []domain.ProductQuery{query("q-2")},
			InputProducts: []string{"p-1"},
		},
		then{
			state:     domain.StepWaitingInput,
			satisfied: map[string][]string{"q-1": {"p-1"}},
			inputs:    []string{"p-1"},
			changed:   false,
		},
	))

	t.Run("the given step is not modified", func(t *testing.T) {
		step := domain.JobStep{
			Id:            "step-1",
			State:         domain.StepInitial,
			Queries:       []domain.ProductQuery{query("q-1")},
			InputProducts: []string{},
		}
		_, _, err := jobstepdb.Apply(step, domain.JobStepUpdate{
			State:         domain.StepReady,
			Satisfied:     []domain.ProductQuery{query("q-1", "p-1")},
			InputProducts: []string{"p-1"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}
		if step.Queries[0].Satisfied || len(step.InputProducts) != 0 || step.State != domain.StepInitial {
			t.Errorf("step is modified: %+v", step)
		}
	})

	t.Run("an illegal transition is refused", func(t *testing.T) {
		step := domain.JobStep{Id: "step-1", State: domain.StepCompleted}
		actual, changed, err := jobstepdb.Apply(step, domain.JobStepUpdate{State: domain.StepReady})
		if !errors.Is(err, domain.ErrInvalidStateChanging) {
			t.Errorf("expected ErrInvalidStateChanging, but %+v", err)
		}
		if changed || actual.State != domain.StepCompleted {
			t.Errorf("step is changed: %+v (changed = %v)", actual, changed)
		}
	})
}
