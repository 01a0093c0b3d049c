package orders_test

import (
	"errors"
	"testing"
	"time"

	apiorders "github.com/opst/prodplan/pkg/api/types/orders"
	apiproducts "github.com/opst/prodplan/pkg/api/types/products"
	"github.com/opst/prodplan/pkg/cmp"
	"github.com/opst/prodplan/pkg/domain"
)

func TestOrder_Parse(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("a valid order is parsed", func(t *testing.T) {
		order := apiorders.Order{
			Id:                  "ignored",
			State:               "RUNNING",
			Identifier:          "order-1",
			Mission:             "PTM",
			Window:              &apiproducts.Window{Start: start, Stop: start.Add(24 * time.Hour)},
			Slicing:             "TIME_SLICE",
			SliceDuration:       "1h30m",
			SliceOverlap:        "10m",
			RequestedClasses:    []string{"class-l2"},
			RequestedProcessors: []string{"PTML2_1.0"},
			Filters:             map[string]apiproducts.Parameter{"revision": {Type: "INTEGER", Value: "2"}},
		}
		actual, err := order.Parse()
		if err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}
		if actual.Id != "" || actual.State != "" {
			t.Errorf("id and state should be ignored: %+v", actual)
		}
		if actual.Slicing != domain.SliceByTime || actual.SliceDuration != 90*time.Minute || actual.SliceOverlap != 10*time.Minute {
			t.Errorf("slicing: %s %s %s", actual.Slicing, actual.SliceDuration, actual.SliceOverlap)
		}
		if !actual.Window.Equal(domain.Window(start, start.Add(24*time.Hour))) {
			t.Errorf("window: %s", actual.Window)
		}
		if f := actual.Filters["revision"]; f.Type != domain.IntegerParameter || f.Value != "2" {
			t.Errorf("filters: %+v", actual.Filters)
		}
	})

	t.Run("problems are listed at once", func(t *testing.T) {
		order := apiorders.Order{
			Slicing:       "WEEKLY",
			SliceDuration: "an hour",
			Filters:       map[string]apiproducts.Parameter{"x": {Type: "COMPLEX", Value: "1+i"}},
		}
		_, err := order.Parse()
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, but %+v", err)
		}
		// slicing, duration, filter and identifier
		if len(verr.Problems) != 4 {
			t.Errorf("problems: %v", verr.Problems)
		}
	})

	t.Run("Compose is reversed by Parse", func(t *testing.T) {
		o := domain.ProcessingOrder{
			Identifier:          "order-1",
			Mission:             "PTM",
			Slicing:             domain.SliceByOrbit,
			Orbits:              []domain.OrbitRef{{Spacecraft: "A", Number: 3}},
			RequestedClasses:    []string{"class-l2"},
			RequestedProcessors: []string{},
		}
		actual, err := apiorders.Compose(o).Parse()
		if err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}
		if actual.Identifier != o.Identifier || actual.Slicing != o.Slicing ||
			!cmp.SliceEq(actual.Orbits, o.Orbits) || !cmp.SliceEq(actual.RequestedClasses, o.RequestedClasses) {
			t.Errorf("actual %+v, expected %+v", actual, o)
		}
	})
}

func TestStateChange_Parse(t *testing.T) {
	for state, accepted := range map[string]bool{
		"APPROVED":   true,
		"RELEASED":   true,
		"SUSPENDING": true,
		"CLOSED":     true,
		"PLANNED":    false,
		"RUNNING":    false,
		"COMPLETED":  false,
		"garbage":    false,
	} {
		t.Run(state, func(t *testing.T) {
			actual, err := apiorders.StateChange{State: state}.Parse()
			if accepted {
				if err != nil || string(actual) != state {
					t.Errorf("unexpected result: (%s, %+v)", actual, err)
				}
				return
			}
			if err == nil {
				t.Errorf("%s is accepted", actual)
			}
		})
	}

	if _, err := (apiorders.StateChange{State: "RUNNING"}).Parse(); !errors.Is(err, apiorders.ErrUnchangeableState) {
		t.Errorf("expected ErrUnchangeableState, but %+v", err)
	}
}
