package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	kpgerr "github.com/opst/prodplan/pkg/conn/db/postgres/errors"
	kpool "github.com/opst/prodplan/pkg/conn/db/postgres/pool"
	"github.com/opst/prodplan/pkg/domain"
	catalogdb "github.com/opst/prodplan/pkg/domain/catalog/db"
	kpgintr "github.com/opst/prodplan/pkg/domain/internal/db/postgres"
	jobstepdb "github.com/opst/prodplan/pkg/domain/jobstep/db"
	xe "github.com/opst/prodplan/pkg/errors"
	"github.com/opst/prodplan/pkg/utils/retry"
)

type jobStepPG struct {
	pool  kpool.Pool
	retry kpgintr.Retry
}

var _ jobstepdb.Interface = &jobStepPG{}

type Option func(*jobStepPG) *jobStepPG

// WithRetry sets how transactions are retried on concurrent modification.
func WithRetry(r kpgintr.Retry) Option {
	return func(j *jobStepPG) *jobStepPG {
		j.retry = r
		return j
	}
}

func New(pool kpool.Pool, options ...Option) jobstepdb.Interface {
	j := &jobStepPG{pool: pool, retry: kpgintr.DefaultRetry()}
	for _, opt := range options {
		j = opt(j)
	}
	return j
}

func states[T ~string](ss []T) []string {
	ret := make([]string, 0, len(ss))
	for _, s := range ss {
		ret = append(ret, string(s))
	}
	return ret
}

type picked struct {
	next    domain.JobStepCursor
	changed bool

	// failure of fn or of applying its update. They are not retried.
	err error
}

func (j *jobStepPG) PickAndSetState(
	ctx context.Context, cursor domain.JobStepCursor,
	fn func(context.Context, catalogdb.Reader, domain.JobStep) (domain.JobStepUpdate, error),
) (domain.JobStepCursor, bool, error) {
	result, err := retry.Do(
		ctx, j.retry.Backoff, j.retry.MaxRetry, kpgerr.Retryable,
		func(ctx context.Context) (picked, error) {
			return j.pickAndSetState(ctx, cursor, fn)
		},
	)
	if err != nil {
		return result.next, false, err
	}
	return result.next, result.changed, result.err
}

func (j *jobStepPG) pickAndSetState(
	ctx context.Context, cursor domain.JobStepCursor,
	fn func(context.Context, catalogdb.Reader, domain.JobStep) (domain.JobStepUpdate, error),
) (picked, error) {
	tx, err := j.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return picked{next: cursor}, xe.Wrap(kpgerr.Translate(err))
	}
	defer tx.Rollback(ctx)

	var id string
	if err := tx.QueryRow(
		ctx,
		`
		with "head" as (
			select coalesce(max("seq"), -1) as "seq" from "job_step" where "id" = $1
		)
		select "s"."id"
		from "job_step" as "s"
		inner join "job" as "j" on "j"."id" = "s"."job_id"
		cross join "head"
		where
			"s"."state" = any($2::varchar[])
			and "s"."next_check" <= now()
			and ($3::varchar = '' or "j"."facility" = $3)
		order by "s"."seq" <= "head"."seq", "s"."seq"
		limit 1
		for no key update of "s" skip locked
		`,
		cursor.Head, states(cursor.States), cursor.Facility,
	).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return picked{next: cursor}, nil
		}
		return picked{next: cursor}, xe.Wrap(kpgerr.Translate(err))
	}

	next := cursor
	next.Head = id

	reader := kpgintr.Reader{Q: tx}
	found, err := reader.JobSteps(ctx, `"id" = $1`, id)
	if err != nil {
		return picked{next: cursor}, xe.Wrap(kpgerr.Translate(err))
	}
	if len(found) == 0 {
		return picked{next: cursor}, xe.Wrap(&domain.Missing{Table: "job step", Identity: id})
	}
	current := found[0]

	postpone := func() error {
		_, err := tx.Exec(
			ctx,
			`update "job_step" set "next_check" = now() + make_interval(secs => $2) where "id" = $1`,
			id, cursor.Debounce.Seconds(),
		)
		if err != nil {
			return xe.Wrap(kpgerr.Translate(err))
		}
		return xe.Wrap(kpgerr.Translate(tx.Commit(ctx)))
	}

	update, fnErr := fn(ctx, reader, current)
	if fnErr != nil {
		return failed(next, fnErr, postpone())
	}

	step, changed, err := jobstepdb.Apply(current, update)
	if err != nil {
		return failed(next, err, postpone())
	}

	if changed {
		if err := saveUpdate(ctx, tx, step); err != nil {
			return picked{next: next}, xe.Wrap(kpgerr.Translate(err))
		}
	}
	if err := postpone(); err != nil {
		return picked{next: next}, err
	}
	return picked{next: next, changed: changed}, nil
}

// failed reports cause of a step which could not be updated.
//
// When the postponement is also lost, both errors are returned as an error of the transaction,
// so it can be retried if the postponement failed by concurrent modification.
func failed(next domain.JobStepCursor, cause error, postponement error) (picked, error) {
	if postponement != nil {
		return picked{next: next}, errors.Join(cause, postponement)
	}
	return picked{next: next, err: cause}, nil
}

// saveUpdate writes state, inputs and satisfied queries of the step.
func saveUpdate(ctx context.Context, tx kpool.Tx, step domain.JobStep) error {
	if _, err := tx.Exec(
		ctx,
		`update "job_step" set "state" = $2, "input_products" = $3 where "id" = $1`,
		step.Id, string(step.State), step.InputProducts,
	); err != nil {
		return err
	}
	for _, q := range step.Queries {
		if !q.Satisfied {
			continue
		}
		satisfying := q.SatisfyingProducts
		if satisfying == nil {
			satisfying = []string{}
		}
		if _, err := tx.Exec(
			ctx,
			`
			update "product_query" set "satisfied" = true, "satisfying_products" = $2
			where "id" = $1 and not "satisfied"
			`,
			q.Id, satisfying,
		); err != nil {
			return err
		}
	}
	return nil
}

func (j *jobStepPG) Get(ctx context.Context, ids []string) (map[string]domain.JobStep, error) {
	steps, err := kpgintr.Reader{Q: j.pool}.JobSteps(ctx, `"id" = any($1::varchar[])`, ids)
	if err != nil {
		return nil, xe.Wrap(kpgerr.Translate(err))
	}
	ret := map[string]domain.JobStep{}
	for _, s := range steps {
		ret[s.Id] = s
	}
	return ret, nil
}

func (j *jobStepPG) Ready(ctx context.Context, facility string, limit int) ([]domain.JobStepDetail, error) {
	var lim pgtype.Int8
	if 0 < limit {
		lim = pgtype.Int8{Int: int64(limit), Status: pgtype.Present}
	} else {
		lim = pgtype.Int8{Status: pgtype.Null}
	}

	var ret []domain.JobStepDetail
	err := kpgintr.Transact(ctx, j.pool, j.retry, func(ctx context.Context, tx kpool.Tx) error {
		type ofJob struct {
			order    string
			facility string
		}
		jobs := map[string]ofJob{}
		ids := []string{}

		rows, err := tx.Query(
			ctx,
			`
			select "s"."id", "j"."order_id", "j"."facility"
			from "job_step" as "s"
			inner join "job" as "j" on "j"."id" = "s"."job_id"
			where
				"s"."state" = $1
				and "j"."state" = any($2::varchar[])
				and ($3::varchar = '' or "j"."facility" = $3)
			order by "s"."seq"
			limit $4
			`,
			string(domain.StepReady),
			states([]domain.JobState{domain.JobReleased, domain.JobStarted}),
			facility, lim,
		)
		if err != nil {
			return err
		}
		if err := func() error {
			defer rows.Close()
			for rows.Next() {
				var id string
				var oj ofJob
				if err := rows.Scan(&id, &oj.order, &oj.facility); err != nil {
					return err
				}
				jobs[id] = oj
				ids = append(ids, id)
			}
			return rows.Err()
		}(); err != nil {
			return err
		}

		reader := kpgintr.Reader{Q: tx}
		steps, err := reader.JobSteps(ctx, `"id" = any($1::varchar[])`, ids)
		if err != nil {
			return err
		}

		productIds := []string{}
		processorIds := []string{}
		for _, s := range steps {
			productIds = append(productIds, s.OutputProduct)
			productIds = append(productIds, s.InputProducts...)
			processorIds = append(processorIds, s.Processor)
		}
		products, err := reader.Products(ctx, productIds)
		if err != nil {
			return err
		}
		processors, err := reader.ConfiguredProcessorsOf(ctx, processorIds)
		if err != nil {
			return err
		}

		ret = make([]domain.JobStepDetail, 0, len(steps))
		for _, s := range steps {
			detail := domain.JobStepDetail{
				JobStep:  s,
				Order:    jobs[s.Id].order,
				Facility: jobs[s.Id].facility,
				Output:   products[s.OutputProduct],
				Inputs:   []domain.Product{},
			}
			for _, in := range s.InputProducts {
				if p, ok := products[in]; ok {
					detail.Inputs = append(detail.Inputs, p)
				}
			}
			if p, ok := processors[s.Processor]; ok {
				detail.Processor = &p
			}
			ret = append(ret, detail)
		}
		return nil
	})
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return ret, nil
}

// lock locks the job step and returns its state and job.
func lock(ctx context.Context, tx kpool.Tx, id string) (domain.JobStepState, string, string, error) {
	var state domain.JobStepState
	var job, output string
	if err := tx.QueryRow(
		ctx,
		`select "state", "job_id", "output_product" from "job_step" where "id" = $1 for no key update`,
		id,
	).Scan(&state, &job, &output); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", "", &domain.Missing{Table: "job step", Identity: id}
		}
		return "", "", "", err
	}
	return state, job, output, nil
}

func (j *jobStepPG) SetState(ctx context.Context, id string, to domain.JobStepState, message string) error {
	if to == domain.StepCompleted {
		return &domain.StateChangingError{Entity: "job step", From: "(any)", To: string(to)}
	}
	err := kpgintr.Transact(ctx, j.pool, j.retry, func(ctx context.Context, tx kpool.Tx) error {
		current, job, _, err := lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := current.Transit(to); err != nil {
			return err
		}
		if _, err := tx.Exec(
			ctx,
			`
			update "job_step" set
				"state" = $2,
				"message" = $3,
				"processing_start" = case when $2::varchar = $4::varchar then now() else "processing_start" end,
				"processing_stop" = case when $2::varchar = $5::varchar then now() else "processing_stop" end
			where "id" = $1
			`,
			id, string(to), message, string(domain.StepRunning), string(domain.StepFailed),
		); err != nil {
			return err
		}
		return kpgintr.RollUpJob(ctx, tx, job)
	})
	if err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func (j *jobStepPG) Complete(ctx context.Context, id string, completion domain.Completion) error {
	params, err := kpgintr.ParametersJSON(completion.Parameters)
	if err != nil {
		return xe.Wrap(err)
	}
	err = kpgintr.Transact(ctx, j.pool, j.retry, func(ctx context.Context, tx kpool.Tx) error {
		current, job, output, err := lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := current.Transit(domain.StepCompleted); err != nil {
			return err
		}
		if _, err := tx.Exec(
			ctx,
			`update "job_step" set "state" = $2, "processing_stop" = now() where "id" = $1`,
			id, string(domain.StepCompleted),
		); err != nil {
			return err
		}
		if _, err := tx.Exec(
			ctx,
			`
			update "product" set
				"generation_time" = $2,
				"file_size" = $3,
				"checksum" = $4,
				"parameters" = "parameters" || $5::jsonb
			where "id" = $1
			`,
			output, completion.GenerationTime, completion.FileSize, completion.Checksum, params,
		); err != nil {
			return err
		}
		return kpgintr.RollUpJob(ctx, tx, job)
	})
	if err != nil {
		return xe.Wrap(err)
	}
	return nil
}
