package db

import (
	"context"

	"github.com/opst/prodplan/pkg/domain"
	catalogdb "github.com/opst/prodplan/pkg/domain/catalog/db"
)

type Interface interface {
	// pick a job step pointed by the cursor, and update it with the result of fn.
	//
	// Picked job steps are locked while fn runs, so job steps are picked by one worker at a time.
	// fn runs in the same transaction as updating the job step,
	// so the reader passed to fn is consistent with the update.
	//
	// Args
	//
	// - context.Context
	//
	// - domain.JobStepCursor: cursor. Job steps which are in .States and not picked in last .Debounce are picked.
	//
	// - func(context.Context, catalogdb.Reader, domain.JobStep) (domain.JobStepUpdate, error):
	// evaluation of the step. Queries in its return value are marked as satisfied,
	// its input products are added to the step, and its state is set to the step.
	//
	// Returns
	//
	// - domain.JobStepCursor: cursor pointing the picked job step.
	// If no job steps are picked, it is the cursor passed.
	//
	// - bool: true if the job step is updated.
	//
	// - error: error returned by fn, or ErrInvalidStateChanging when fn returns a state not next of the step.
	// When fn returns error, the step is not updated but postponed until the debounce passes.
	// If the postponement fails too, its error is joined.
	PickAndSetState(
		ctx context.Context, cursor domain.JobStepCursor,
		fn func(context.Context, catalogdb.Reader, domain.JobStep) (domain.JobStepUpdate, error),
	) (domain.JobStepCursor, bool, error)

	// get job steps by ids.
	//
	// Returns
	//
	// - map[string]domain.JobStep: mapping id -> job step. Missing ids are not contained.
	//
	// - error
	Get(ctx context.Context, ids []string) (map[string]domain.JobStep, error)

	// job steps ready to run.
	//
	// Args
	//
	// - context.Context
	//
	// - string: facility. Empty means all facilities.
	//
	// - int: max number of job steps. 0 or less means unlimited.
	//
	// Returns
	//
	// - []domain.JobStepDetail: READY job steps of RELEASED or STARTED jobs, in order of their creation.
	//
	// - error
	Ready(ctx context.Context, facility string, limit int) ([]domain.JobStepDetail, error)

	// change state of the job step.
	//
	// To complete job steps, use Complete.
	//
	// Returns
	//
	// - error: ErrMissing when no such job step, ErrInvalidStateChanging when the state is not next of current one.
	SetState(ctx context.Context, id string, state domain.JobStepState, message string) error

	// complete a RUNNING job step.
	//
	// Along with this, the output product is updated with the completion,
	// and states of the job and the order are rolled up.
	//
	// Returns
	//
	// - error: ErrMissing when no such job step, ErrInvalidStateChanging when it is not RUNNING.
	Complete(ctx context.Context, id string, completion domain.Completion) error
}
