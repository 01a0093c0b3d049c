package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opst/prodplan/pkg/cmp"
)

type JobState string

const (
	JobPlanned   JobState = "PLANNED"
	JobReleased  JobState = "RELEASED"
	JobStarted   JobState = "STARTED"
	JobCompleted JobState = "COMPLETED"
	JobFailed    JobState = "FAILED"
)

var jobTransitions = map[JobState][]JobState{
	JobPlanned:  {JobReleased},
	JobReleased: {JobStarted, JobPlanned, JobCompleted, JobFailed},
	JobStarted:  {JobCompleted, JobFailed, JobPlanned},
}

func (s JobState) String() string {
	return string(s)
}

func (s JobState) CanTransitTo(to JobState) bool {
	for _, t := range jobTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

func (s JobState) Transit(to JobState) error {
	if s.CanTransitTo(to) {
		return nil
	}
	return &StateChangingError{Entity: "job", From: string(s), To: string(to)}
}

func (s JobState) Finished() bool {
	return s == JobCompleted || s == JobFailed
}

func AsJobState(s string) (JobState, error) {
	switch st := JobState(s); st {
	case JobPlanned, JobReleased, JobStarted, JobCompleted, JobFailed:
		return st, nil
	}
	return "", fmt.Errorf(`"%s" is not a job state`, s)
}

// Job is a unit of work for one slice of an order.
type Job struct {
	Id       string
	Order    string
	Window   TimeWindow
	State    JobState
	Facility string

	// orbit of this job. nil if the order is not sliced by orbits.
	Orbit *OrbitRef

	Steps []JobStep
}

type JobStepState string

const (
	StepInitial      JobStepState = "INITIAL"
	StepWaitingInput JobStepState = "WAITING_INPUT"
	StepReady        JobStepState = "READY"
	StepRunning      JobStepState = "RUNNING"
	StepCompleted    JobStepState = "COMPLETED"
	StepFailed       JobStepState = "FAILED"
)

var jobStepTransitions = map[JobStepState][]JobStepState{
	StepInitial:      {StepWaitingInput, StepReady},
	StepWaitingInput: {StepWaitingInput, StepReady},
	StepReady:        {StepRunning},
	StepRunning:      {StepCompleted, StepFailed},
}

func (s JobStepState) String() string {
	return string(s)
}

// CanTransitTo reports whether s -> to is a legal transition.
//
// WAITING_INPUT -> WAITING_INPUT is legal (and means nothing).
func (s JobStepState) CanTransitTo(to JobStepState) bool {
	for _, t := range jobStepTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

func (s JobStepState) Transit(to JobStepState) error {
	if s.CanTransitTo(to) {
		return nil
	}
	return &StateChangingError{Entity: "job step", From: string(s), To: string(to)}
}

func (s JobStepState) Terminal() bool {
	return s == StepCompleted || s == StepFailed
}

// Pending reports whether readiness of the step is to be evaluated.
func (s JobStepState) Pending() bool {
	return s == StepInitial || s == StepWaitingInput
}

func AsJobStepState(s string) (JobStepState, error) {
	switch st := JobStepState(s); st {
	case StepInitial, StepWaitingInput, StepReady, StepRunning, StepCompleted, StepFailed:
		return st, nil
	}
	return "", fmt.Errorf(`"%s" is not a job step state`, s)
}

// ProductQuery is a SimpleSelectionRule bound to the window of a job step.
type ProductQuery struct {
	Id      string
	JobStep string

	// rule as it was when the query is created.
	Rule SimpleSelectionRule

	Window TimeWindow

	Satisfied bool

	// ids of products satisfying this query.
	SatisfyingProducts []string
}

// JobStep is a unit of work generating exactly one product.
type JobStep struct {
	Id    string
	Job   string
	State JobStepState
	Mode  string

	// identifier of the configured processor which runs this step.
	Processor string

	// id of the product generated by this step.
	OutputProduct string

	Queries []ProductQuery

	// ids of products bound by satisfied queries.
	InputProducts []string

	Window TimeWindow

	ProcessingStart *time.Time
	ProcessingStop  *time.Time

	Message string
}

// Unsatisfied returns queries not satisfied yet.
func (js JobStep) Unsatisfied() []ProductQuery {
	ret := []ProductQuery{}
	for _, q := range js.Queries {
		if !q.Satisfied {
			ret = append(ret, q)
		}
	}
	return ret
}

// JobStepCursor is a cursor for picking job steps one by one.
type JobStepCursor struct {
	// id of job step which is picked at last time
	Head string

	// states of job steps to be picked
	States []JobStepState

	// if not empty, pick only job steps of jobs on this facility.
	Facility string

	// interval to pick the same job step again.
	Debounce time.Duration
}

func (c JobStepCursor) Equal(other JobStepCursor) bool {
	return c.Head == other.Head &&
		c.Facility == other.Facility &&
		c.Debounce == other.Debounce &&
		cmp.SliceContentEq(c.States, other.States)
}

// JobStepUpdate is a result of evaluating a job step.
type JobStepUpdate struct {
	// state to be
	State JobStepState

	// queries which have become satisfied, with their satisfying products.
	Satisfied []ProductQuery

	// products to be added to inputs of the job step.
	InputProducts []string
}

// JobStepDetail is a job step with things an execution backend needs.
type JobStepDetail struct {
	JobStep
	Order     string
	Facility  string
	Output    Product
	Inputs    []Product
	Processor *ConfiguredProcessor
}

const temporaryIdPrefix = "tmp:"

// TemporaryId is an id of not persisted entity.
//
// Entities created in a plan refer each other with temporary ids,
// until they are persisted and get real ids.
func TemporaryId(kind string, n int) string {
	return temporaryIdPrefix + kind + ":" + strconv.Itoa(n)
}

func IsTemporaryId(id string) bool {
	return strings.HasPrefix(id, temporaryIdPrefix)
}

// RollUpJob decides the state of a job from states of its steps.
//
// A job fails when any of its steps fails, and completes when all steps complete.
// A released job starts when any step starts running.
func RollUpJob(current JobState, steps []JobStepState) JobState {
	if current.Finished() || current == JobPlanned {
		return current
	}

	completed, started := 0, false
	for _, s := range steps {
		switch s {
		case StepFailed:
			return JobFailed
		case StepCompleted:
			completed++
			started = true
		case StepRunning:
			started = true
		}
	}
	if 0 < len(steps) && completed == len(steps) {
		return JobCompleted
	}
	if started && current == JobReleased {
		return JobStarted
	}
	return current
}
