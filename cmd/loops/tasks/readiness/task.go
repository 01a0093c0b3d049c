package readiness

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opst/prodplan/cmd/loops/hook"
	"github.com/opst/prodplan/cmd/loops/recurring"
	apijobsteps "github.com/opst/prodplan/pkg/api/types/jobsteps"
	"github.com/opst/prodplan/pkg/domain"
	catalogdb "github.com/opst/prodplan/pkg/domain/catalog/db"
	jobstepdb "github.com/opst/prodplan/pkg/domain/jobstep/db"
	"github.com/opst/prodplan/pkg/domain/jobstep/readiness"
	"github.com/opst/prodplan/pkg/domain/query"
	"github.com/opst/prodplan/pkg/metrics"
)

const loopName = "readiness"

// initial value for task
func Seed(facility string, debounce time.Duration) domain.JobStepCursor {
	return domain.JobStepCursor{
		States:   []domain.JobStepState{domain.StepInitial, domain.StepWaitingInput},
		Facility: facility,
		Debounce: debounce,
	}
}

type Options struct {
	// number of job steps evaluated concurrently. 0 or less means 1.
	Workers int

	// max number of job steps evaluated in a cycle. 0 or less means unlimited.
	Batch int
}

// Task evaluates inputs of pending job steps.
//
// One call of the task is one scan: workers pick and evaluate job steps
// until nothing is left, ctx is done, or the batch is up.
// Errors on each job step are logged and counted, and do not stop the scan.
//
// # Params
//
// - logger
//
// - steps: job steps in the database
//
// - engine: query engine. It is bound to the reader of each transaction.
//
// - options
//
// - hook: called around a job step gets READY.
// When the before hook fails, the step is postponed.
//
// - m: metrics. It can be nil.
//
// # Return
//
// - task: it reports true when any job step is updated in the scan.
func Task(
	logger *log.Logger,
	steps jobstepdb.Interface,
	engine *query.Engine,
	options Options,
	hook hook.Hook[apijobsteps.Summary],
	m *metrics.Metrics,
) recurring.Task[domain.JobStepCursor] {
	workers := options.Workers
	if workers < 1 {
		workers = 1
	}

	return func(ctx context.Context, value domain.JobStepCursor) (domain.JobStepCursor, bool, error) {
		started := time.Now()
		defer func() { m.Cycle(loopName, time.Since(started)) }()

		s := &scan{
			cursor: value,
			seen:   map[string]struct{}{},
			batch:  options.Batch,
		}
		if value.Head != "" {
			s.seen[value.Head] = struct{}{}
		}

		eg, ctx := errgroup.WithContext(ctx)
		eg.SetLimit(workers)
		for range workers {
			eg.Go(func() error {
				for {
					if ctx.Err() != nil {
						return nil
					}
					cursor, ok := s.take()
					if !ok {
						return nil
					}
					done, err := evaluate(ctx, logger, steps, engine, hook, m, s, cursor)
					if err != nil {
						return err
					}
					if done {
						return nil
					}
				}
			})
		}
		err := eg.Wait()

		next, updated := s.result()
		if err != nil && !(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			m.Failed(loopName)
			return next, updated, err
		}
		return next, updated, nil
	}
}

// scan is a state shared by workers in a cycle.
type scan struct {
	mu      sync.Mutex
	cursor  domain.JobStepCursor
	seen    map[string]struct{}
	taken   int
	batch   int
	updated bool
}

// take reserves an evaluation in the batch.
func (s *scan) take() (domain.JobStepCursor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if 0 < s.batch && s.batch <= s.taken {
		return s.cursor, false
	}
	s.taken++
	return s.cursor, true
}

// picked records the job step picked. It returns false when it has been picked in this scan.
func (s *scan) picked(next domain.JobStepCursor, updated bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = s.updated || updated
	if next.Head == "" {
		return false
	}
	if _, ok := s.seen[next.Head]; ok {
		return false
	}
	s.seen[next.Head] = struct{}{}
	s.cursor = next
	return true
}

func (s *scan) result() (domain.JobStepCursor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, s.updated
}

// evaluate one job step.
//
// Returns
//
// - bool: true when there are no more job steps to be picked in this scan.
//
// - error: error not caused by the job step itself.
func evaluate(
	ctx context.Context,
	logger *log.Logger,
	steps jobstepdb.Interface,
	engine *query.Engine,
	hook hook.Hook[apijobsteps.Summary],
	m *metrics.Metrics,
	s *scan,
	cursor domain.JobStepCursor,
) (bool, error) {
	var before, after domain.JobStep
	called := false

	next, updated, err := steps.PickAndSetState(
		ctx, cursor,
		func(ctx context.Context, reader catalogdb.Reader, step domain.JobStep) (domain.JobStepUpdate, error) {
			called = true
			before = step

			update, err := readiness.Evaluate(ctx, engine.On(reader), step)
			if err != nil {
				return update, err
			}

			after = step
			after.State = update.State
			after.InputProducts = update.InputProducts
			if update.State == domain.StepReady {
				if err := hook.Before(ctx, apijobsteps.ComposeSummary(after)); err != nil {
					return update, err
				}
			}
			return update, nil
		},
	)

	fresh := s.picked(next, updated)
	if !called {
		return true, err
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return true, nil
		}
		m.Failed(loopName)
		logger.Printf("job step %s is postponed: %s", before.Id, err)
		return !fresh, nil
	}

	m.Evaluated(string(before.State), string(after.State))
	if updated && after.State == domain.StepReady && before.State != domain.StepReady {
		if err := hook.After(ctx, apijobsteps.ComposeSummary(after)); err != nil {
			logger.Printf("job step %s: after hook: %s", after.Id, err)
		}
	}
	return !fresh, nil
}
