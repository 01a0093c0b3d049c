package main

import (
	"context"
	"log"
	"time"

	"github.com/opst/prodplan/cmd/loops/hook"
	"github.com/opst/prodplan/cmd/loops/recurring"
	"github.com/opst/prodplan/cmd/loops/tasks/planning"
	"github.com/opst/prodplan/cmd/loops/tasks/readiness"
	apijobsteps "github.com/opst/prodplan/pkg/api/types/jobsteps"
	apiorders "github.com/opst/prodplan/pkg/api/types/orders"
	cfg_hook "github.com/opst/prodplan/pkg/configs/hook"
	configs "github.com/opst/prodplan/pkg/configs/planner"
	"github.com/opst/prodplan/pkg/domain/order/decompose"
	plannerdb "github.com/opst/prodplan/pkg/domain/planner/db"
	"github.com/opst/prodplan/pkg/domain/query"
	"github.com/opst/prodplan/pkg/loop"
	"github.com/opst/prodplan/pkg/metrics"
)

type LoggerOptions func(*log.Logger) *log.Logger

func byLogger(l *log.Logger, opt ...LoggerOptions) *log.Logger {
	for _, o := range opt {
		l = o(l)
	}
	return l
}

func Copied() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		return log.New(l.Writer(), l.Prefix(), l.Flags())
	}
}

func WithPrefix(pre string) LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetPrefix(pre)
		return l
	}
}

func WithTimestamp() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetFlags(l.Flags() | log.Ldate | log.Ltime | log.Lmicroseconds)
		return l
	}
}

// Wrapper for monitoring loop tasks
//
// Log the start and end of each time a task is executed.
func monitor[T any](logger *log.Logger, task loop.Task[T]) loop.Task[T] {
	var counter uint64
	return func(ctx context.Context, t T) (ret T, next loop.Next) {
		counter += 1
		timestamp := time.Now()

		logger.Printf("task start: #0x%X: ", counter)

		defer func() {
			logger.Printf(
				"task end: #0x%X (takes %s): %s\n with value = %#v",
				counter, time.Since(timestamp), next, ret,
			)
		}()

		ret, next = task(ctx, t)
		return
	}
}

// Manifest for starting a loop, which determines how the loop should behave.
type LoopManifest struct {
	// Policy for the looping
	Policy recurring.Policy

	// Hooks for the looping
	Hooks cfg_hook.Config
}

// StartPlanningLoop runs the loop decomposing processing orders into jobs.
//
// Args:
//
// - ctx
//
// - logger : logger for monitoring loop.
//
// - db : planner database
//
// - conf : planner configuration. Facility and loop settings are read.
//
// - m : metrics. nil is okay.
//
// - manifest
func StartPlanningLoop(
	ctx context.Context,
	logger *log.Logger,
	db plannerdb.PlannerDatabase,
	conf *configs.PlannerConfig,
	m *metrics.Metrics,
	manifest LoopManifest,
) error {
	l := byLogger(logger, Copied(), WithPrefix("[planning loop]"))
	lconf := conf.Loops().Planning()

	options := []loop.Option{}
	if 0 < lconf.Timeout() {
		options = append(options, loop.WithTimeout(lconf.Timeout()))
	}

	_, err := loop.Start(
		ctx, planning.Seed(lconf.Debounce()),
		monitor(
			l,
			planning.Task(
				l,
				db.Order(),
				decompose.New(db.Catalog(), decompose.WithLogger(l)),
				conf.Facility(),
				hook.Build[apiorders.Order](manifest.Hooks.OrderPlanned),
				m,
			).Applied(manifest.Policy),
		),
		options...,
	)
	return err
}

// StartReadinessLoop runs the loop evaluating inputs of job steps.
//
// Args are same as StartPlanningLoop.
func StartReadinessLoop(
	ctx context.Context,
	logger *log.Logger,
	db plannerdb.PlannerDatabase,
	conf *configs.PlannerConfig,
	m *metrics.Metrics,
	manifest LoopManifest,
) error {
	l := byLogger(logger, Copied(), WithPrefix("[readiness loop]"))
	lconf := conf.Loops().Readiness()

	_, err := loop.Start(
		ctx, readiness.Seed(conf.Facility(), lconf.Debounce()),
		monitor(
			l,
			readiness.Task(
				l,
				db.JobStep(),
				query.New(db.Catalog(), l),
				readiness.Options{Workers: lconf.Workers(), Batch: lconf.Batch()},
				hook.Build[apijobsteps.Summary](manifest.Hooks.JobStepReady),
				m,
			).Applied(manifest.Policy),
		),
	)
	return err
}
