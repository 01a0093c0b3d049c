package memory

import (
	"context"
	"sort"

	"github.com/opst/prodplan/pkg/domain"
	catalogdb "github.com/opst/prodplan/pkg/domain/catalog/db"
	jobstepdb "github.com/opst/prodplan/pkg/domain/jobstep/db"
)

type jobSteps struct {
	store *Store
}

var _ jobstepdb.Interface = &jobSteps{}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// pickNext finds a record next of head in registration order, wrapping around.
func pickNext[T any](m map[string]record[T], head string, pred func(id string, r record[T]) bool) (string, bool) {
	type candidate struct {
		id  string
		seq int
	}
	candidates := []candidate{}
	for id, r := range m {
		if !r.locked && pred(id, r) {
			candidates = append(candidates, candidate{id: id, seq: r.seq})
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].seq < candidates[j].seq })

	headSeq := -1
	if h, ok := m[head]; ok {
		headSeq = h.seq
	}
	for _, c := range candidates {
		if headSeq < c.seq {
			return c.id, true
		}
	}
	return candidates[0].id, true
}

func (j *jobSteps) PickAndSetState(
	ctx context.Context, cursor domain.JobStepCursor,
	fn func(context.Context, catalogdb.Reader, domain.JobStep) (domain.JobStepUpdate, error),
) (domain.JobStepCursor, bool, error) {
	s := j.store

	s.mu.Lock()
	now := s.clock()
	id, ok := pickNext(s.st.steps, cursor.Head, func(_ string, r record[domain.JobStep]) bool {
		if !contains(cursor.States, r.value.State) || now.Before(r.nextCheck) {
			return false
		}
		if cursor.Facility == "" {
			return true
		}
		job, ok := s.st.jobs[r.value.Job]
		return ok && job.value.job.Facility == cursor.Facility
	})
	if !ok {
		s.mu.Unlock()
		return cursor, false, nil
	}
	rec := s.st.steps[id]
	rec.locked = true
	s.st.steps[id] = rec
	snapshot := s.st.clone()
	s.mu.Unlock()

	update, fnErr := fn(ctx, reader{st: snapshot}, rec.value)

	next := cursor
	next.Head = id

	var changed bool
	var applyErr error
	s.write(func(st *state) error {
		rec := st.steps[id]
		rec.locked = false
		rec.nextCheck = now.Add(cursor.Debounce)
		if fnErr == nil {
			if step, c, err := jobstepdb.Apply(rec.value, update); err != nil {
				applyErr = err
			} else {
				rec.value = step
				changed = c
			}
		}
		st.steps[id] = rec
		return nil
	})
	if fnErr != nil {
		return next, false, fnErr
	}
	if applyErr != nil {
		return next, false, applyErr
	}
	return next, changed, nil
}

func (j *jobSteps) Get(_ context.Context, ids []string) (map[string]domain.JobStep, error) {
	ret := map[string]domain.JobStep{}
	err := j.store.read(func(st *state) error {
		for _, id := range ids {
			if rec, ok := st.steps[id]; ok {
				ret[id] = rec.value
			}
		}
		return nil
	})
	return ret, err
}

func (j *jobSteps) Ready(_ context.Context, facility string, limit int) ([]domain.JobStepDetail, error) {
	ret := []domain.JobStepDetail{}
	err := j.store.read(func(st *state) error {
		ready := sorted(st.steps, func(step domain.JobStep) bool {
			if step.State != domain.StepReady {
				return false
			}
			job := st.jobs[step.Job].value.job
			if job.State != domain.JobReleased && job.State != domain.JobStarted {
				return false
			}
			return facility == "" || job.Facility == facility
		})
		for _, step := range ready {
			if 0 < limit && limit <= len(ret) {
				break
			}
			ret = append(ret, detailOf(st, step))
		}
		return nil
	})
	return ret, err
}

func detailOf(st *state, step domain.JobStep) domain.JobStepDetail {
	job := st.jobs[step.Job].value.job
	detail := domain.JobStepDetail{
		JobStep:  step,
		Order:    job.Order,
		Facility: job.Facility,
		Output:   st.products[step.OutputProduct].value,
		Inputs:   []domain.Product{},
	}
	for _, in := range step.InputProducts {
		if p, ok := st.products[in]; ok {
			detail.Inputs = append(detail.Inputs, p.value)
		}
	}
	if p, ok := st.processors[step.Processor]; ok {
		processor := p.value
		detail.Processor = &processor
	}
	return detail
}

func (j *jobSteps) SetState(_ context.Context, id string, to domain.JobStepState, message string) error {
	if to == domain.StepCompleted {
		return &domain.StateChangingError{Entity: "job step", From: "(any)", To: string(to)}
	}
	return j.store.write(func(st *state) error {
		rec, ok := st.steps[id]
		if !ok {
			return &domain.Missing{Table: "job step", Identity: id}
		}
		if err := rec.value.State.Transit(to); err != nil {
			return err
		}
		now := j.store.clock()
		step := rec.value
		step.State = to
		step.Message = message
		switch to {
		case domain.StepRunning:
			step.ProcessingStart = &now
		case domain.StepFailed:
			step.ProcessingStop = &now
		}
		rec.value = step
		st.steps[id] = rec
		return rollUp(st, step.Job)
	})
}

func (j *jobSteps) Complete(_ context.Context, id string, completion domain.Completion) error {
	return j.store.write(func(st *state) error {
		rec, ok := st.steps[id]
		if !ok {
			return &domain.Missing{Table: "job step", Identity: id}
		}
		if err := rec.value.State.Transit(domain.StepCompleted); err != nil {
			return err
		}
		now := j.store.clock()
		step := rec.value
		step.State = domain.StepCompleted
		step.ProcessingStop = &now
		rec.value = step
		st.steps[id] = rec

		if out, ok := st.products[step.OutputProduct]; ok {
			out.value = completed(out.value, completion)
			st.products[step.OutputProduct] = out
		}
		return rollUp(st, step.Job)
	})
}

// completed returns the product updated with the completion.
func completed(p domain.Product, c domain.Completion) domain.Product {
	generated := c.GenerationTime
	p.GenerationTime = &generated
	p.FileSize = c.FileSize
	p.Checksum = c.Checksum
	params := p.Parameters.Clone()
	if params == nil {
		params = domain.Parameters{}
	}
	for k, v := range c.Parameters {
		params[k] = v
	}
	p.Parameters = params
	return p
}

// rollUp updates states of the job and its order.
func rollUp(st *state, jobId string) error {
	jrec, ok := st.jobs[jobId]
	if !ok {
		return &domain.Missing{Table: "job", Identity: jobId}
	}
	stepStates := []domain.JobStepState{}
	for _, sid := range jrec.value.steps {
		stepStates = append(stepStates, st.steps[sid].value.State)
	}
	jrec.value.job.State = domain.RollUpJob(jrec.value.job.State, stepStates)
	st.jobs[jobId] = jrec

	return rollUpOrder(st, jrec.value.job.Order)
}

func rollUpOrder(st *state, orderId string) error {
	orec, ok := st.orders[orderId]
	if !ok {
		return nil // jobs without orders are allowed in tests.
	}
	jobStates := []domain.JobState{}
	for _, jr := range sorted(st.jobs, func(jr jobRecord) bool { return jr.job.Order == orderId }) {
		jobStates = append(jobStates, jr.job.State)
	}
	orec.value.State = domain.RollUpOrder(orec.value.State, jobStates)
	st.orders[orderId] = orec
	return nil
}
