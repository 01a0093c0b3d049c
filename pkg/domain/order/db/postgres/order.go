package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	kpgerr "github.com/opst/prodplan/pkg/conn/db/postgres/errors"
	kpool "github.com/opst/prodplan/pkg/conn/db/postgres/pool"
	"github.com/opst/prodplan/pkg/domain"
	kpgintr "github.com/opst/prodplan/pkg/domain/internal/db/postgres"
	orderdb "github.com/opst/prodplan/pkg/domain/order/db"
	xe "github.com/opst/prodplan/pkg/errors"
)

type orderPG struct {
	pool  kpool.Pool
	retry kpgintr.Retry
	newId func() string
}

var _ orderdb.Interface = &orderPG{}

type Option func(*orderPG) *orderPG

// WithRetry sets how transactions are retried on concurrent modification.
func WithRetry(r kpgintr.Retry) Option {
	return func(o *orderPG) *orderPG {
		o.retry = r
		return o
	}
}

// WithIdGenerator replaces the id generator. It generates UUIDs by default.
func WithIdGenerator(newId func() string) Option {
	return func(o *orderPG) *orderPG {
		o.newId = newId
		return o
	}
}

func New(pool kpool.Pool, options ...Option) orderdb.Interface {
	o := &orderPG{pool: pool, retry: kpgintr.DefaultRetry(), newId: uuid.NewString}
	for _, opt := range options {
		o = opt(o)
	}
	return o
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (o *orderPG) Register(ctx context.Context, order *domain.ProcessingOrder) error {
	orbits, err := kpgintr.OrbitsJSON(order.Orbits)
	if err != nil {
		return xe.Wrap(err)
	}
	filters, err := kpgintr.ParametersJSON(order.Filters)
	if err != nil {
		return xe.Wrap(err)
	}

	id := o.newId()
	err = kpgintr.Transact(ctx, o.pool, o.retry, func(ctx context.Context, tx kpool.Tx) error {
		_, err := tx.Exec(
			ctx,
			`
			insert into "processing_order"
				(
					"id", "identifier", "mission", "state", "state_message",
					"window_start", "window_stop", "orbits",
					"slicing", "slice_duration", "slice_overlap",
					"requested_classes", "input_classes", "requested_processors",
					"output_file_class", "processing_mode", "filters", "facility"
				)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			`,
			id, order.Identifier, order.Mission, string(domain.OrderInitial), order.StateMessage,
			kpgintr.OptionalTime(order.Window.Start), kpgintr.OptionalTime(order.Window.Stop), orbits,
			string(order.Slicing), int64(order.SliceDuration), int64(order.SliceOverlap),
			nonNil(order.RequestedClasses), nonNil(order.InputClasses), nonNil(order.RequestedProcessors),
			order.OutputFileClass, order.ProcessingMode, filters, order.Facility,
		)
		return err
	})
	if err != nil {
		return xe.Wrap(err)
	}
	order.Id = id
	order.State = domain.OrderInitial
	return nil
}

func get(ctx context.Context, q kpool.Queryer, id string) (domain.ProcessingOrder, error) {
	var order domain.ProcessingOrder
	var start, stop pgtype.Timestamptz
	var orbits, filters pgtype.JSONB
	var duration, overlap int64
	if err := q.QueryRow(
		ctx,
		`
		select
			"id", "identifier", "mission", "state", "state_message",
			"window_start", "window_stop", "orbits",
			"slicing", "slice_duration", "slice_overlap",
			"requested_classes", "input_classes", "requested_processors",
			"output_file_class", "processing_mode", "filters", "facility"
		from "processing_order"
		where "id" = $1
		`,
		id,
	).Scan(
		&order.Id, &order.Identifier, &order.Mission, &order.State, &order.StateMessage,
		&start, &stop, &orbits,
		&order.Slicing, &duration, &overlap,
		&order.RequestedClasses, &order.InputClasses, &order.RequestedProcessors,
		&order.OutputFileClass, &order.ProcessingMode, &filters, &order.Facility,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ProcessingOrder{}, &domain.Missing{Table: "processing order", Identity: id}
		}
		return domain.ProcessingOrder{}, err
	}

	if t := kpgintr.TimeOf(start); t != nil {
		order.Window.Start = *t
	}
	if t := kpgintr.TimeOf(stop); t != nil {
		order.Window.Stop = *t
	}
	order.SliceDuration = time.Duration(duration)
	order.SliceOverlap = time.Duration(overlap)

	var err error
	if order.Orbits, err = kpgintr.OrbitsOf(orbits); err != nil {
		return domain.ProcessingOrder{}, err
	}
	if order.Filters, err = kpgintr.ParametersOf(filters); err != nil {
		return domain.ProcessingOrder{}, err
	}
	if len(order.Filters) == 0 {
		order.Filters = nil
	}
	return order, nil
}

func (o *orderPG) Get(ctx context.Context, id string) (domain.ProcessingOrder, error) {
	order, err := get(ctx, o.pool, id)
	if err != nil {
		return domain.ProcessingOrder{}, xe.Wrap(kpgerr.Translate(err))
	}
	return order, nil
}

func (o *orderPG) SetState(ctx context.Context, id string, to domain.OrderState, message string) error {
	err := kpgintr.Transact(ctx, o.pool, o.retry, func(ctx context.Context, tx kpool.Tx) error {
		return kpgintr.SetOrderState(ctx, tx, id, to, message)
	})
	if err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func (o *orderPG) PickAndSetState(
	ctx context.Context, cursor domain.OrderCursor,
	fn func(context.Context, domain.ProcessingOrder) (domain.OrderState, string, error),
) (domain.OrderCursor, bool, error) {
	states := make([]string, 0, len(cursor.States))
	for _, s := range cursor.States {
		states = append(states, string(s))
	}

	// READ COMMITTED, so that jobs which fn saves are seen by cascades of the state changing.
	tx, err := o.pool.Begin(ctx)
	if err != nil {
		return cursor, false, xe.Wrap(kpgerr.Translate(err))
	}
	defer tx.Rollback(ctx)

	var id string
	if err := tx.QueryRow(
		ctx,
		`
		with "head" as (
			select coalesce(max("seq"), -1) as "seq" from "processing_order" where "id" = $1
		)
		select "o"."id"
		from "processing_order" as "o"
		cross join "head"
		where "o"."state" = any($2::varchar[]) and "o"."next_check" <= now()
		order by "o"."seq" <= "head"."seq", "o"."seq"
		limit 1
		for no key update of "o" skip locked
		`,
		cursor.Head, states,
	).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cursor, false, nil
		}
		return cursor, false, xe.Wrap(kpgerr.Translate(err))
	}

	next := cursor
	next.Head = id

	order, err := get(ctx, tx, id)
	if err != nil {
		return cursor, false, xe.Wrap(kpgerr.Translate(err))
	}

	to, message, fnErr := fn(ctx, order)

	if _, err := tx.Exec(
		ctx,
		`update "processing_order" set "next_check" = now() + make_interval(secs => $2) where "id" = $1`,
		id, cursor.Debounce.Seconds(),
	); err != nil {
		return next, false, xe.Wrap(kpgerr.Translate(err))
	}

	changed := false
	var setErr error
	if fnErr == nil && to != order.State {
		if setErr = kpgintr.SetOrderState(ctx, tx, id, to, message); setErr == nil {
			changed = true
		}
	}
	if setErr != nil {
		// keep the postponement.
		tx.Rollback(ctx)
		if _, err := o.pool.Exec(
			ctx,
			`update "processing_order" set "next_check" = now() + make_interval(secs => $2) where "id" = $1`,
			id, cursor.Debounce.Seconds(),
		); err != nil {
			return next, false, xe.Wrap(kpgerr.Translate(err))
		}
		return next, false, xe.Wrap(kpgerr.Translate(setErr))
	}
	if err := tx.Commit(ctx); err != nil {
		return next, false, xe.Wrap(kpgerr.Translate(err))
	}
	if fnErr != nil {
		return next, false, fnErr
	}
	return next, changed, nil
}
