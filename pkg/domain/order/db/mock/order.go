package mock

import (
	"context"
	"errors"

	"github.com/opst/prodplan/pkg/domain"
	dbmock "github.com/opst/prodplan/pkg/domain/internal/db/mock"
	orderdb "github.com/opst/prodplan/pkg/domain/order/db"
)

// Orders is a mock of orderdb.Interface. Methods without Impl panic.
type Orders struct {
	Impl struct {
		Register        func(ctx context.Context, order *domain.ProcessingOrder) error
		Get             func(ctx context.Context, id string) (domain.ProcessingOrder, error)
		SetState        func(ctx context.Context, id string, state domain.OrderState, message string) error
		PickAndSetState func(
			ctx context.Context, cursor domain.OrderCursor,
			fn func(context.Context, domain.ProcessingOrder) (domain.OrderState, string, error),
		) (domain.OrderCursor, bool, error)
	}

	Calls struct {
		Register dbmock.CallLog[domain.ProcessingOrder]
		Get      dbmock.CallLog[string]
		SetState dbmock.CallLog[struct {
			Id      string
			State   domain.OrderState
			Message string
		}]
		PickAndSetState dbmock.CallLog[domain.OrderCursor]
	}
}

func New() *Orders {
	return &Orders{}
}

var _ orderdb.Interface = &Orders{}

func (m *Orders) Register(ctx context.Context, order *domain.ProcessingOrder) error {
	m.Calls.Register = append(m.Calls.Register, *order)
	if m.Impl.Register != nil {
		return m.Impl.Register(ctx, order)
	}
	panic(errors.New("it should not be called"))
}

func (m *Orders) Get(ctx context.Context, id string) (domain.ProcessingOrder, error) {
	m.Calls.Get = append(m.Calls.Get, id)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, id)
	}
	panic(errors.New("it should not be called"))
}

func (m *Orders) SetState(ctx context.Context, id string, state domain.OrderState, message string) error {
	m.Calls.SetState = append(m.Calls.SetState, struct {
		Id      string
		State   domain.OrderState
		Message string
	}{Id: id, State: state, Message: message})
	if m.Impl.SetState != nil {
		return m.Impl.SetState(ctx, id, state, message)
	}
	panic(errors.New("it should not be called"))
}

func (m *Orders) PickAndSetState(
	ctx context.Context, cursor domain.OrderCursor,
	fn func(context.Context, domain.ProcessingOrder) (domain.OrderState, string, error),
) (domain.OrderCursor, bool, error) {
	m.Calls.PickAndSetState = append(m.Calls.PickAndSetState, cursor)
	if m.Impl.PickAndSetState != nil {
		return m.Impl.PickAndSetState(ctx, cursor, fn)
	}
	panic(errors.New("it should not be called"))
}
