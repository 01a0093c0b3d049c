package domain

import (
	"fmt"
	"time"

	"github.com/opst/prodplan/pkg/cmp"
)

type OrderState string

const (
	OrderInitial    OrderState = "INITIAL"
	OrderApproved   OrderState = "APPROVED"
	OrderPlanned    OrderState = "PLANNED"
	OrderReleased   OrderState = "RELEASED"
	OrderRunning    OrderState = "RUNNING"
	OrderSuspending OrderState = "SUSPENDING"
	OrderCompleted  OrderState = "COMPLETED"
	OrderFailed     OrderState = "FAILED"
	OrderClosed     OrderState = "CLOSED"
)

var orderTransitions = map[OrderState][]OrderState{
	OrderInitial:    {OrderApproved},
	OrderApproved:   {OrderPlanned, OrderFailed},
	OrderPlanned:    {OrderReleased},
	OrderReleased:   {OrderRunning, OrderSuspending, OrderCompleted, OrderFailed},
	OrderRunning:    {OrderSuspending, OrderCompleted, OrderFailed},
	OrderSuspending: {OrderPlanned},
	OrderCompleted:  {OrderClosed},
	OrderFailed:     {OrderClosed},
}

func (s OrderState) String() string {
	return string(s)
}

// CanTransitTo reports whether s -> to is a legal transition.
func (s OrderState) CanTransitTo(to OrderState) bool {
	for _, t := range orderTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// Transit returns an error unless s -> to is legal.
func (s OrderState) Transit(to OrderState) error {
	if s.CanTransitTo(to) {
		return nil
	}
	return &StateChangingError{Entity: "processing order", From: string(s), To: string(to)}
}

func (s OrderState) Terminal() bool {
	return s == OrderClosed
}

func AsOrderState(s string) (OrderState, error) {
	switch st := OrderState(s); st {
	case OrderInitial, OrderApproved, OrderPlanned, OrderReleased, OrderRunning,
		OrderSuspending, OrderCompleted, OrderFailed, OrderClosed:
		return st, nil
	}
	return "", fmt.Errorf(`"%s" is not an order state`, s)
}

// SlicingType tells how an order is divided into jobs.
type SlicingType string

const (
	SliceByOrbit SlicingType = "ORBIT"
	SliceByDay   SlicingType = "CALENDAR_DAY"
	SliceByMonth SlicingType = "CALENDAR_MONTH"
	SliceByYear  SlicingType = "CALENDAR_YEAR"
	SliceByTime  SlicingType = "TIME_SLICE"
	SliceNone    SlicingType = "NONE"
)

func AsSlicingType(s string) (SlicingType, error) {
	switch st := SlicingType(s); st {
	case SliceByOrbit, SliceByDay, SliceByMonth, SliceByYear, SliceByTime, SliceNone:
		return st, nil
	}
	return "", fmt.Errorf(`"%s" is not a slicing type`, s)
}

type ProcessingOrder struct {
	Id         string
	Identifier string
	Mission    string
	State      OrderState

	// requested time range. It can be zero when orbits are requested.
	Window TimeWindow

	Orbits []OrbitRef

	Slicing       SlicingType
	SliceDuration time.Duration
	SliceOverlap  time.Duration

	// ids of product classes to be generated
	RequestedClasses []string

	// ids of product classes which are given as inputs, and not to be generated
	InputClasses []string

	// identifiers of configured processors to be used
	RequestedProcessors []string

	OutputFileClass string
	ProcessingMode  string

	// parameters set to products generated for this order
	Filters Parameters

	Facility string

	// reason of the last state changing, if any
	StateMessage string
}

// IsInputClass reports whether the product class is given to the order as an input.
func (o ProcessingOrder) IsInputClass(classId string) bool {
	for _, c := range o.InputClasses {
		if c == classId {
			return true
		}
	}
	return false
}

// OrderCursor is a cursor for picking orders one by one.
type OrderCursor struct {
	// id of order which is picked at last time
	Head string

	// states of orders to be picked
	States []OrderState

	// interval to pick the same order without changing state.
	Debounce time.Duration
}

func (c OrderCursor) Equal(other OrderCursor) bool {
	return c.Head == other.Head &&
		c.Debounce == other.Debounce &&
		cmp.SliceContentEq(c.States, other.States)
}

// RollUpOrder decides the state of an order from states of its jobs.
//
// A running order finishes when all jobs finish: FAILED if any job fails, COMPLETED otherwise.
// A released order gets running when any job starts.
// A suspending order gets planned when no jobs are running.
func RollUpOrder(current OrderState, jobs []JobState) OrderState {
	finished, failed, started := 0, false, false
	for _, j := range jobs {
		switch j {
		case JobFailed:
			failed = true
			finished++
		case JobCompleted:
			finished++
		case JobStarted:
			started = true
		}
	}

	switch current {
	case OrderReleased, OrderRunning:
		if 0 < len(jobs) && finished == len(jobs) {
			if failed {
				return OrderFailed
			}
			return OrderCompleted
		}
		if current == OrderReleased && (started || 0 < finished) {
			return OrderRunning
		}
	case OrderSuspending:
		if !started {
			return OrderPlanned
		}
	}
	return current
}
