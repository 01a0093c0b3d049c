// Package memory is an in-process implementation of planner databases.
//
// It keeps everything in memory, and is for tests and trials.
// Transactions are serialized, and a failed transaction leaves nothing.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opst/prodplan/pkg/domain"
	catalogdb "github.com/opst/prodplan/pkg/domain/catalog/db"
	jobstepdb "github.com/opst/prodplan/pkg/domain/jobstep/db"
	orderdb "github.com/opst/prodplan/pkg/domain/order/db"
	plannerdb "github.com/opst/prodplan/pkg/domain/planner/db"
)

type record[T any] struct {
	value T

	// registration order
	seq int

	// when the record can be picked next
	nextCheck time.Time

	// the record is picked by a worker
	locked bool
}

type jobRecord struct {
	job   domain.Job // without steps
	steps []string
}

type state struct {
	seq int

	missions         map[string]record[domain.Mission]
	facilities       map[string]record[domain.ProcessingFacility]
	classes          map[string]record[domain.ProductClass]
	processorClasses map[string]record[domain.ProcessorClass]
	processors       map[string]record[domain.ConfiguredProcessor]
	rules            map[string]record[domain.SimpleSelectionRule]
	orbits           map[string]record[domain.Orbit]
	products         map[string]record[domain.Product]
	orders           map[string]record[domain.ProcessingOrder]
	jobs             map[string]record[jobRecord]
	steps            map[string]record[domain.JobStep]
}

func newState() *state {
	return &state{
		missions:         map[string]record[domain.Mission]{},
		facilities:       map[string]record[domain.ProcessingFacility]{},
		classes:          map[string]record[domain.ProductClass]{},
		processorClasses: map[string]record[domain.ProcessorClass]{},
		processors:       map[string]record[domain.ConfiguredProcessor]{},
		rules:            map[string]record[domain.SimpleSelectionRule]{},
		orbits:           map[string]record[domain.Orbit]{},
		products:         map[string]record[domain.Product]{},
		orders:           map[string]record[domain.ProcessingOrder]{},
		jobs:             map[string]record[jobRecord]{},
		steps:            map[string]record[domain.JobStep]{},
	}
}

func cloneMap[T any](m map[string]record[T]) map[string]record[T] {
	c := make(map[string]record[T], len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// clone copies maps of the state.
//
// Values in records are not deep-copied. Slices in values should be replaced, not modified.
func (s *state) clone() *state {
	return &state{
		seq:              s.seq,
		missions:         cloneMap(s.missions),
		facilities:       cloneMap(s.facilities),
		classes:          cloneMap(s.classes),
		processorClasses: cloneMap(s.processorClasses),
		processors:       cloneMap(s.processors),
		rules:            cloneMap(s.rules),
		orbits:           cloneMap(s.orbits),
		products:         cloneMap(s.products),
		orders:           cloneMap(s.orders),
		jobs:             cloneMap(s.jobs),
		steps:            cloneMap(s.steps),
	}
}

func (s *state) next() int {
	s.seq += 1
	return s.seq
}

// sorted returns values in registration order.
func sorted[T any](m map[string]record[T], pred func(T) bool) []T {
	recs := make([]record[T], 0, len(m))
	for _, r := range m {
		if pred == nil || pred(r.value) {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	ret := make([]T, 0, len(recs))
	for _, r := range recs {
		ret = append(ret, r.value)
	}
	return ret
}

// Store is a planner database in memory.
type Store struct {
	mu    sync.Mutex
	st    *state
	clock func() time.Time
	newId func() string
}

type Option func(*Store) *Store

// WithClock replaces the clock of Store. It is time.Now by default.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) *Store {
		s.clock = clock
		return s
	}
}

// WithIdGenerator replaces the id generator of Store. It generates UUIDs by default.
func WithIdGenerator(newId func() string) Option {
	return func(s *Store) *Store {
		s.newId = newId
		return s
	}
}

func New(options ...Option) *Store {
	s := &Store{
		st:    newState(),
		clock: time.Now,
		newId: uuid.NewString,
	}
	for _, opt := range options {
		s = opt(s)
	}
	return s
}

var _ plannerdb.PlannerDatabase = &Store{}

func (s *Store) Catalog() catalogdb.Interface {
	return &catalog{store: s}
}

func (s *Store) JobStep() jobstepdb.Interface {
	return &jobSteps{store: s}
}

func (s *Store) Order() orderdb.Interface {
	return &orders{store: s}
}

func (s *Store) Close() error {
	return nil
}

// read runs fn with the current state.
func (s *Store) read(fn func(*state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// write runs fn with a copy of the current state, and keeps the copy only when fn succeeds.
func (s *Store) write(fn func(*state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft := s.st.clone()
	if err := fn(draft); err != nil {
		return err
	}
	s.st = draft
	return nil
}
