package planning

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/opst/prodplan/cmd/loops/hook"
	"github.com/opst/prodplan/cmd/loops/recurring"
	apiorders "github.com/opst/prodplan/pkg/api/types/orders"
	"github.com/opst/prodplan/pkg/domain"
	orderdb "github.com/opst/prodplan/pkg/domain/order/db"
	"github.com/opst/prodplan/pkg/domain/order/decompose"
	"github.com/opst/prodplan/pkg/metrics"
)

const loopName = "planning"

// Decomposer plans jobs of an order.
type Decomposer interface {
	Decompose(ctx context.Context, order domain.ProcessingOrder, facility string) (decompose.Plan, error)
}

// initial value for task
func Seed(debounce time.Duration) domain.OrderCursor {
	return domain.OrderCursor{
		States:   []domain.OrderState{domain.OrderApproved},
		Debounce: debounce,
	}
}

// Task for planning approved orders.
//
// # Params
//
// - logger
//
// - orders: orders in the database
//
// - decomposer: planner of jobs
//
// - facility: facility for orders which do not tell their facility
//
// - hook: called around an order gets PLANNED
//
// - m: metrics. It can be nil.
//
// # Return
//
// - task: picks an APPROVED order and decomposes it.
// The order gets PLANNED when jobs are planned, and FAILED when it is invalid.
// When all windows of the order are failed, it keeps APPROVED and is retried after the debounce.
func Task(
	logger *log.Logger,
	orders orderdb.Interface,
	decomposer Decomposer,
	facility string,
	hook hook.Hook[apiorders.Order],
	m *metrics.Metrics,
) recurring.Task[domain.OrderCursor] {
	return func(ctx context.Context, value domain.OrderCursor) (domain.OrderCursor, bool, error) {
		started := time.Now()
		defer func() { m.Cycle(loopName, time.Since(started)) }()

		nextCursor, changed, err := orders.PickAndSetState(
			ctx, value,
			func(ctx context.Context, order domain.ProcessingOrder) (domain.OrderState, string, error) {
				if err := hook.Before(ctx, apiorders.Compose(order)); err != nil {
					return order.State, "", err
				}

				plan, err := decomposer.Decompose(ctx, order, facility)
				if errors.Is(err, domain.ErrValidation) {
					logger.Printf("order %s (%s) is rejected: %s", order.Id, order.Identifier, err)
					return domain.OrderFailed, err.Error(), nil
				}
				if err != nil {
					return order.State, "", err
				}

				logger.Printf("order %s (%s): %d jobs are planned", order.Id, order.Identifier, len(plan.Jobs))
				return domain.OrderPlanned, failureMessage(plan), nil
			},
		)

		if err != nil {
			m.Failed(loopName)
			m.Planned("postponed")
			logger.Printf("order %s is postponed: %s", nextCursor.Head, err)
		} else if changed {
			if order, gerr := orders.Get(ctx, nextCursor.Head); gerr == nil {
				m.Planned(string(order.State))
				if order.State == domain.OrderPlanned {
					if herr := hook.After(ctx, apiorders.Compose(order)); herr != nil {
						logger.Printf("order %s: after hook: %s", order.Id, herr)
					}
				}
			}
		}

		cursorMoved := !value.Equal(nextCursor)
		// Context cancelled/deadline exceeded are okay. It will be retried.
		if err != nil && !(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return nextCursor, cursorMoved, err
		}
		return nextCursor, cursorMoved, nil
	}
}

// failureMessage tells windows which could not be planned.
func failureMessage(plan decompose.Plan) string {
	if len(plan.Failures) == 0 {
		return ""
	}
	lines := make([]string, 0, len(plan.Failures))
	for _, f := range plan.Failures {
		lines = append(lines, f.Error())
	}
	return fmt.Sprintf(
		"%d windows are not planned: %s",
		len(plan.Failures), strings.Join(lines, "; "),
	)
}
