package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/opst/prodplan/pkg/domain"
	catalogdb "github.com/opst/prodplan/pkg/domain/catalog/db"
	dbmock "github.com/opst/prodplan/pkg/domain/internal/db/mock"
	jobstepdb "github.com/opst/prodplan/pkg/domain/jobstep/db"
)

// JobSteps is a mock of jobstepdb.Interface. Methods without Impl panic.
//
// Calls are recorded under a lock, so it can be used from concurrent workers.
type JobSteps struct {
	Impl struct {
		PickAndSetState func(
			ctx context.Context, cursor domain.JobStepCursor,
			fn func(context.Context, catalogdb.Reader, domain.JobStep) (domain.JobStepUpdate, error),
		) (domain.JobStepCursor, bool, error)
		Get      func(ctx context.Context, ids []string) (map[string]domain.JobStep, error)
		Ready    func(ctx context.Context, facility string, limit int) ([]domain.JobStepDetail, error)
		SetState func(ctx context.Context, id string, state domain.JobStepState, message string) error
		Complete func(ctx context.Context, id string, completion domain.Completion) error
	}

	Calls struct {
		PickAndSetState dbmock.CallLog[domain.JobStepCursor]
		Get             dbmock.CallLog[[]string]
		Ready           dbmock.CallLog[struct {
			Facility string
			Limit    int
		}]
		SetState dbmock.CallLog[struct {
			Id      string
			State   domain.JobStepState
			Message string
		}]
		Complete dbmock.CallLog[struct {
			Id         string
			Completion domain.Completion
		}]
	}

	mu sync.Mutex
}

func New() *JobSteps {
	return &JobSteps{}
}

var _ jobstepdb.Interface = &JobSteps{}

func (m *JobSteps) PickAndSetState(
	ctx context.Context, cursor domain.JobStepCursor,
	fn func(context.Context, catalogdb.Reader, domain.JobStep) (domain.JobStepUpdate, error),
) (domain.JobStepCursor, bool, error) {
	m.mu.Lock()
	m.Calls.PickAndSetState = append(m.Calls.PickAndSetState, cursor)
	m.mu.Unlock()
	if m.Impl.PickAndSetState != nil {
		return m.Impl.PickAndSetState(ctx, cursor, fn)
	}
	panic(errors.New("it should not be called"))
}

func (m *JobSteps) Get(ctx context.Context, ids []string) (map[string]domain.JobStep, error) {
	m.mu.Lock()
	m.Calls.Get = append(m.Calls.Get, ids)
	m.mu.Unlock()
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, ids)
	}
	panic(errors.New("it should not be called"))
}

func (m *JobSteps) Ready(ctx context.Context, facility string, limit int) ([]domain.JobStepDetail, error) {
	m.mu.Lock()
	m.Calls.Ready = append(m.Calls.Ready, struct {
		Facility string
		Limit    int
	}{Facility: facility, Limit: limit})
	m.mu.Unlock()
	if m.Impl.Ready != nil {
		return m.Impl.Ready(ctx, facility, limit)
	}
	panic(errors.New("it should not be called"))
}

func (m *JobSteps) SetState(ctx context.Context, id string, state domain.JobStepState, message string) error {
	m.mu.Lock()
	m.Calls.SetState = append(m.Calls.SetState, struct {
		Id      string
		State   domain.JobStepState
		Message string
	}{Id: id, State: state, Message: message})
	m.mu.Unlock()
	if m.Impl.SetState != nil {
		return m.Impl.SetState(ctx, id, state, message)
	}
	panic(errors.New("it should not be called"))
}

func (m *JobSteps) Complete(ctx context.Context, id string, completion domain.Completion) error {
	m.mu.Lock()
	m.Calls.Complete = append(m.Calls.Complete, struct {
		Id         string
		Completion domain.Completion
	}{Id: id, Completion: completion})
	m.mu.Unlock()
	if m.Impl.Complete != nil {
		return m.Impl.Complete(ctx, id, completion)
	}
	panic(errors.New("it should not be called"))
}
