package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/prodplan/pkg/conn/db/postgres/pool"
	"github.com/opst/prodplan/pkg/domain"
)

// JobSteps loads job steps matching the condition, with their queries.
//
// condition is a where clause on "job_step". Steps are ordered in their creation.
func (r Reader) JobSteps(ctx context.Context, condition string, args ...any) ([]domain.JobStep, error) {
	rows, err := r.Q.Query(
		ctx,
		`
		select
			"id", "job_id", "state", "mode", "processor", "output_product", "input_products",
			"window_start", "window_stop", "processing_start", "processing_stop", "message"
		from "job_step"
		where `+condition+`
		order by "seq"
		`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	steps := []domain.JobStep{}
	index := map[string]int{}
	ids := []string{}
	if err := func() error {
		defer rows.Close()
		for rows.Next() {
			var s domain.JobStep
			var start, stop pgtype.Timestamptz
			if err := rows.Scan(
				&s.Id, &s.Job, &s.State, &s.Mode, &s.Processor, &s.OutputProduct, &s.InputProducts,
				&s.Window.Start, &s.Window.Stop, &start, &stop, &s.Message,
			); err != nil {
				return err
			}
			s.ProcessingStart = TimeOf(start)
			s.ProcessingStop = TimeOf(stop)
			s.Queries = []domain.ProductQuery{}
			index[s.Id] = len(steps)
			ids = append(ids, s.Id)
			steps = append(steps, s)
		}
		return rows.Err()
	}(); err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return steps, nil
	}

	qrows, err := r.Q.Query(
		ctx,
		`
		select "id", "job_step", "rule", "window_start", "window_stop", "satisfied", "satisfying_products"
		from "product_query"
		where "job_step" = any($1::varchar[])
		order by "seq"
		`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer qrows.Close()
	for qrows.Next() {
		var q domain.ProductQuery
		var rule pgtype.JSONB
		if err := qrows.Scan(
			&q.Id, &q.JobStep, &rule, &q.Window.Start, &q.Window.Stop, &q.Satisfied, &q.SatisfyingProducts,
		); err != nil {
			return nil, err
		}
		if q.Rule, err = RuleOf(rule); err != nil {
			return nil, err
		}
		i := index[q.JobStep]
		steps[i].Queries = append(steps[i].Queries, q)
	}
	if err := qrows.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}

// RollUpJob updates states of the job and its order from states of its steps.
func RollUpJob(ctx context.Context, q kpool.Queryer, jobId string) error {
	var current domain.JobState
	var order string
	var steps []string
	if err := q.QueryRow(
		ctx,
		`
		select
			"j"."state", "j"."order_id",
			array(select "s"."state" from "job_step" as "s" where "s"."job_id" = "j"."id" order by "s"."seq")
		from "job" as "j"
		where "j"."id" = $1
		for no key update
		`,
		jobId,
	).Scan(&current, &order, &steps); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.Missing{Table: "job", Identity: jobId}
		}
		return err
	}

	states := make([]domain.JobStepState, 0, len(steps))
	for _, s := range steps {
		states = append(states, domain.JobStepState(s))
	}
	if next := domain.RollUpJob(current, states); next != current {
		if _, err := q.Exec(
			ctx, `update "job" set "state" = $2 where "id" = $1`, jobId, string(next),
		); err != nil {
			return err
		}
	}
	return RollUpOrder(ctx, q, order)
}

// RollUpOrder updates the state of the order from states of its jobs.
func RollUpOrder(ctx context.Context, q kpool.Queryer, orderId string) error {
	var current domain.OrderState
	var jobs []string
	if err := q.QueryRow(
		ctx,
		`
		select
			"o"."state",
			array(select "j"."state" from "job" as "j" where "j"."order_id" = "o"."id" order by "j"."seq")
		from "processing_order" as "o"
		where "o"."id" = $1
		for no key update
		`,
		orderId,
	).Scan(&current, &jobs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.Missing{Table: "processing order", Identity: orderId}
		}
		return err
	}

	states := make([]domain.JobState, 0, len(jobs))
	for _, j := range jobs {
		states = append(states, domain.JobState(j))
	}
	next := domain.RollUpOrder(current, states)
	if next == current {
		return nil
	}
	_, err := q.Exec(
		ctx, `update "processing_order" set "state" = $2 where "id" = $1`, orderId, string(next),
	)
	return err
}

// SetOrderState changes the state of the order, and jobs of the order along with it.
//
// Releasing makes PLANNED jobs RELEASED.
// Suspending makes RELEASED jobs, and STARTED jobs without RUNNING steps, PLANNED.
func SetOrderState(ctx context.Context, q kpool.Queryer, id string, to domain.OrderState, message string) error {
	var current domain.OrderState
	if err := q.QueryRow(
		ctx,
		`select "state" from "processing_order" where "id" = $1 for no key update`,
		id,
	).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.Missing{Table: "processing order", Identity: id}
		}
		return err
	}
	if err := current.Transit(to); err != nil {
		return err
	}
	if _, err := q.Exec(
		ctx,
		`update "processing_order" set "state" = $2, "state_message" = $3 where "id" = $1`,
		id, string(to), message,
	); err != nil {
		return err
	}

	switch to {
	case domain.OrderReleased:
		_, err := q.Exec(
			ctx,
			`update "job" set "state" = $2 where "order_id" = $1 and "state" = $3`,
			id, string(domain.JobReleased), string(domain.JobPlanned),
		)
		return err
	case domain.OrderSuspending:
		if _, err := q.Exec(
			ctx,
			`
			update "job" as "j" set "state" = $2
			where
				"j"."order_id" = $1
				and (
					"j"."state" = $3
					or (
						"j"."state" = $4
						and not exists (
							select 1 from "job_step" as "s"
							where "s"."job_id" = "j"."id" and "s"."state" = $5
						)
					)
				)
			`,
			id, string(domain.JobPlanned), string(domain.JobReleased),
			string(domain.JobStarted), string(domain.StepRunning),
		); err != nil {
			return err
		}
		return RollUpOrder(ctx, q, id)
	}
	return nil
}
