package db

import (
	"context"

	"github.com/opst/prodplan/pkg/domain"
)

type Interface interface {
	// register a new order as INITIAL.
	//
	// Id of the order is assigned.
	//
	// Returns
	//
	// - error: ErrConflict when the identifier is used.
	Register(ctx context.Context, order *domain.ProcessingOrder) error

	// get an order.
	//
	// Returns
	//
	// - domain.ProcessingOrder
	//
	// - error: ErrMissing when no such order
	Get(ctx context.Context, id string) (domain.ProcessingOrder, error)

	// change state of the order.
	//
	// Releasing an order releases its PLANNED jobs.
	// Suspending an order returns its RELEASED jobs (and STARTED jobs without RUNNING steps) to PLANNED,
	// and the order gets PLANNED when no jobs are running.
	//
	// Returns
	//
	// - error: ErrMissing when no such order, ErrInvalidStateChanging when the state is not next of current one.
	SetState(ctx context.Context, id string, state domain.OrderState, message string) error

	// pick an order pointed by the cursor, and change its state to the return value of fn.
	//
	// Args
	//
	// - context.Context
	//
	// - domain.OrderCursor: cursor. Orders which are in .States and not picked in last .Debounce are picked.
	//
	// - func(domain.ProcessingOrder) (domain.OrderState, string, error):
	// task for the order. It returns the next state and its message.
	// When the state is the same as current one, the order is just postponed.
	//
	// Returns
	//
	// - domain.OrderCursor: cursor pointing the picked order.
	// If no orders are picked, it is the cursor passed.
	//
	// - bool: true if the state is changed.
	//
	// - error: error returned by fn, or ErrInvalidStateChanging.
	PickAndSetState(
		ctx context.Context, cursor domain.OrderCursor,
		fn func(context.Context, domain.ProcessingOrder) (domain.OrderState, string, error),
	) (domain.OrderCursor, bool, error)
}
