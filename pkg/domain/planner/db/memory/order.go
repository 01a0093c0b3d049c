package memory

import (
	"context"

	"github.com/opst/prodplan/pkg/domain"
	orderdb "github.com/opst/prodplan/pkg/domain/order/db"
)

type orders struct {
	store *Store
}

var _ orderdb.Interface = &orders{}

func (o *orders) Register(_ context.Context, order *domain.ProcessingOrder) error {
	return o.store.write(func(st *state) error {
		for _, rec := range st.orders {
			if rec.value.Identifier == order.Identifier {
				return &conflict{what: "order " + order.Identifier}
			}
		}
		order.Id = o.store.newId()
		order.State = domain.OrderInitial
		st.orders[order.Id] = record[domain.ProcessingOrder]{value: *order, seq: st.next()}
		return nil
	})
}

func (o *orders) Get(_ context.Context, id string) (domain.ProcessingOrder, error) {
	var ret domain.ProcessingOrder
	err := o.store.read(func(st *state) error {
		rec, ok := st.orders[id]
		if !ok {
			return &domain.Missing{Table: "processing order", Identity: id}
		}
		ret = rec.value
		return nil
	})
	return ret, err
}

func (o *orders) SetState(_ context.Context, id string, to domain.OrderState, message string) error {
	return o.store.write(func(st *state) error {
		return setOrderState(st, id, to, message)
	})
}

func setOrderState(st *state, id string, to domain.OrderState, message string) error {
	rec, ok := st.orders[id]
	if !ok {
		return &domain.Missing{Table: "processing order", Identity: id}
	}
	if err := rec.value.State.Transit(to); err != nil {
		return err
	}
	rec.value.State = to
	rec.value.StateMessage = message
	st.orders[id] = rec

	switch to {
	case domain.OrderReleased:
		for jid, jrec := range st.jobs {
			if jrec.value.job.Order == id && jrec.value.job.State == domain.JobPlanned {
				jrec.value.job.State = domain.JobReleased
				st.jobs[jid] = jrec
			}
		}
	case domain.OrderSuspending:
		for jid, jrec := range st.jobs {
			if jrec.value.job.Order != id {
				continue
			}
			if jrec.value.job.State == domain.JobReleased ||
				(jrec.value.job.State == domain.JobStarted && !running(st, jrec.value)) {
				jrec.value.job.State = domain.JobPlanned
				st.jobs[jid] = jrec
			}
		}
		return rollUpOrder(st, id)
	}
	return nil
}

func running(st *state, jr jobRecord) bool {
	for _, sid := range jr.steps {
		if st.steps[sid].value.State == domain.StepRunning {
			return true
		}
	}
	return false
}

func (o *orders) PickAndSetState(
	ctx context.Context, cursor domain.OrderCursor,
	fn func(context.Context, domain.ProcessingOrder) (domain.OrderState, string, error),
) (domain.OrderCursor, bool, error) {
	s := o.store

	s.mu.Lock()
	now := s.clock()
	id, ok := pickNext(s.st.orders, cursor.Head, func(_ string, r record[domain.ProcessingOrder]) bool {
		return contains(cursor.States, r.value.State) && !now.Before(r.nextCheck)
	})
	if !ok {
		s.mu.Unlock()
		return cursor, false, nil
	}
	rec := s.st.orders[id]
	rec.locked = true
	s.st.orders[id] = rec
	s.mu.Unlock()

	// fn may use the store by itself. The store must not be locked here.
	to, message, fnErr := fn(ctx, rec.value)

	next := cursor
	next.Head = id

	var changed bool
	var setErr error
	s.write(func(st *state) error {
		rec := st.orders[id]
		rec.locked = false
		rec.nextCheck = now.Add(cursor.Debounce)
		st.orders[id] = rec
		if fnErr != nil || to == rec.value.State {
			return nil
		}
		if err := setOrderState(st, id, to, message); err != nil {
			setErr = err
			return nil
		}
		changed = true
		return nil
	})
	if fnErr != nil {
		return next, false, fnErr
	}
	if setErr != nil {
		return next, false, setErr
	}
	return next, changed, nil
}
