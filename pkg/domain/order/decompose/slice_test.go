package decompose_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opst/prodplan/pkg/domain"
	"github.com/opst/prodplan/pkg/domain/catalog/db/mock"
	"github.com/opst/prodplan/pkg/domain/order/decompose"
)

func TestSlice(t *testing.T) {
	date := func(y int, m time.Month, d int, h int) time.Time {
		return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
	}

	type then struct {
		windows []domain.TimeWindow
	}
	theory := func(order domain.ProcessingOrder, then then) func(*testing.T) {
		return func(t *testing.T) {
			actual, err := decompose.Slice(context.Background(), mock.New(), order)
			if err != nil {
				t.Fatalf("unexpected error: %+v", err)
			}
			if len(actual) != len(then.windows) {
				t.Fatalf("windows: actual %v, expected %v", actual, then.windows)
			}
			for i := range actual {
				if !actual[i].TimeWindow.Equal(then.windows[i]) {
					t.Errorf("windows[%d]: actual %s, expected %s", i, actual[i].TimeWindow, then.windows[i])
				}
			}
		}
	}

	t.Run("NONE makes one window", theory(
		domain.ProcessingOrder{
			Slicing: domain.SliceNone,
			Window:  domain.Window(date(2024, 1, 1, 3), date(2024, 1, 5, 0)),
		},
		then{windows: []domain.TimeWindow{domain.Window(date(2024, 1, 1, 3), date(2024, 1, 5, 0))}},
	))

	t.Run("CALENDAR_DAY makes windows of whole days", theory(
		domain.ProcessingOrder{
			Slicing: domain.SliceByDay,
			Window:  domain.Window(date(2024, 1, 1, 3), date(2024, 1, 3, 1)),
		},
		then{windows: []domain.TimeWindow{
			domain.Window(date(2024, 1, 1, 0), date(2024, 1, 2, 0)),
			domain.Window(date(2024, 1, 2, 0), date(2024, 1, 3, 0)),
			domain.Window(date(2024, 1, 3, 0), date(2024, 1, 4, 0)),
		}},
	))

	t.Run("CALENDAR_MONTH makes windows of whole months", theory(
		domain.ProcessingOrder{
			Slicing: domain.SliceByMonth,
			Window:  domain.Window(date(2024, 1, 20, 0), date(2024, 2, 10, 0)),
		},
		then{windows: []domain.TimeWindow{
			domain.Window(date(2024, 1, 1, 0), date(2024, 2, 1, 0)),
			domain.Window(date(2024, 2, 1, 0), date(2024, 3, 1, 0)),
		}},
	))

	t.Run("CALENDAR_YEAR makes windows of whole years", theory(
		domain.ProcessingOrder{
			Slicing: domain.SliceByYear,
			Window:  domain.Window(date(2024, 6, 1, 0), date(2024, 7, 1, 0)),
		},
		then{windows: []domain.TimeWindow{
			domain.Window(date(2024, 1, 1, 0), date(2025, 1, 1, 0)),
		}},
	))

	t.Run("TIME_SLICE makes windows of the duration, widened by the overlap", theory(
		domain.ProcessingOrder{
			Slicing:       domain.SliceByTime,
			Window:        domain.Window(date(2024, 1, 1, 0), date(2024, 1, 1, 5)),
			SliceDuration: 2 * time.Hour,
			SliceOverlap:  time.Hour,
		},
		then{windows: []domain.TimeWindow{
			domain.Window(date(2024, 1, 1, 0).Add(-30*time.Minute), date(2024, 1, 1, 2).Add(30*time.Minute)),
			domain.Window(date(2024, 1, 1, 2).Add(-30*time.Minute), date(2024, 1, 1, 4).Add(30*time.Minute)),
			domain.Window(date(2024, 1, 1, 4).Add(-30*time.Minute), date(2024, 1, 1, 6).Add(30*time.Minute)),
		}},
	))

	t.Run("an empty window makes one window", theory(
		domain.ProcessingOrder{
			Slicing:       domain.SliceByTime,
			Window:        domain.Window(date(2024, 1, 1, 0), date(2024, 1, 1, 0)),
			SliceDuration: time.Hour,
		},
		then{windows: []domain.TimeWindow{domain.Window(date(2024, 1, 1, 0), date(2024, 1, 1, 1))}},
	))
}

func TestSlice_Orbits(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	orbit := func(sc string, n int) domain.Orbit {
		return domain.Orbit{
			Spacecraft: sc,
			Number:     n,
			Start:      start.Add(time.Duration(n) * time.Hour),
			Stop:       start.Add(time.Duration(n+1) * time.Hour),
		}
	}

	cat := mock.New()
	cat.Impl.Orbits = func(_ context.Context, spacecraft string, numbers []int) ([]domain.Orbit, error) {
		ret := []domain.Orbit{}
		for _, n := range numbers {
			if n == 99 {
				return nil, &domain.Missing{Table: "orbit", Identity: spacecraft}
			}
			ret = append(ret, orbit(spacecraft, n))
		}
		return ret, nil
	}

	t.Run("windows of orbits are ordered by their start", func(t *testing.T) {
		order := domain.ProcessingOrder{
			Slicing: domain.SliceByOrbit,
			Orbits:  []domain.OrbitRef{{Spacecraft: "A", Number: 3}, {Spacecraft: "B", Number: 1}, {Spacecraft: "A", Number: 2}},
		}
		actual, err := decompose.Slice(context.Background(), cat, order)
		if err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}
		expected := []domain.OrbitRef{{Spacecraft: "B", Number: 1}, {Spacecraft: "A", Number: 2}, {Spacecraft: "A", Number: 3}}
		if len(actual) != len(expected) {
			t.Fatalf("windows: %+v", actual)
		}
		for i := range actual {
			if *actual[i].Orbit != expected[i] {
				t.Errorf("windows[%d]: orbit %+v, expected %+v", i, *actual[i].Orbit, expected[i])
			}
		}
	})

	t.Run("windows are clipped by the window of the order", func(t *testing.T) {
		order := domain.ProcessingOrder{
			Slicing: domain.SliceByOrbit,
			Orbits:  []domain.OrbitRef{{Spacecraft: "A", Number: 1}, {Spacecraft: "A", Number: 2}, {Spacecraft: "A", Number: 5}},
			Window:  domain.Window(start.Add(90*time.Minute), start.Add(4*time.Hour)),
		}
		actual, err := decompose.Slice(context.Background(), cat, order)
		if err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}
		if len(actual) != 2 {
			t.Fatalf("windows: %+v", actual)
		}
		if expected := domain.Window(start.Add(90*time.Minute), start.Add(2*time.Hour)); !actual[0].TimeWindow.Equal(expected) {
			t.Errorf("windows[0]: actual %s, expected %s", actual[0].TimeWindow, expected)
		}
		if expected := orbit("A", 2).Window(); !actual[1].TimeWindow.Equal(expected) {
			t.Errorf("windows[1]: actual %s, expected %s", actual[1].TimeWindow, expected)
		}
	})

	t.Run("orbits only touching the window of the order are skipped", func(t *testing.T) {
		order := domain.ProcessingOrder{
			Slicing: domain.SliceByOrbit,
			Orbits:  []domain.OrbitRef{{Spacecraft: "A", Number: 1}, {Spacecraft: "A", Number: 2}, {Spacecraft: "A", Number: 3}},
			Window:  orbit("A", 2).Window(),
		}
		actual, err := decompose.Slice(context.Background(), cat, order)
		if err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}
		if len(actual) != 1 {
			t.Fatalf("windows: %+v", actual)
		}
		if expected := (domain.OrbitRef{Spacecraft: "A", Number: 2}); *actual[0].Orbit != expected {
			t.Errorf("orbit: actual %+v, expected %+v", *actual[0].Orbit, expected)
		}
		if expected := orbit("A", 2).Window(); !actual[0].TimeWindow.Equal(expected) {
			t.Errorf("window: actual %s, expected %s", actual[0].TimeWindow, expected)
		}
	})

	t.Run("unknown orbits are errors", func(t *testing.T) {
		order := domain.ProcessingOrder{
			Slicing: domain.SliceByOrbit,
			Orbits:  []domain.OrbitRef{{Spacecraft: "A", Number: 99}},
		}
		if _, err := decompose.Slice(context.Background(), cat, order); !errors.Is(err, domain.ErrMissing) {
			t.Errorf("expected ErrMissing, but %+v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() domain.ProcessingOrder {
		return domain.ProcessingOrder{
			Identifier:          "order-1",
			Mission:             "PTM",
			RequestedClasses:    []string{"class-l2"},
			RequestedProcessors: []string{"PTML2_1.0"},
			Slicing:             domain.SliceByTime,
			SliceDuration:       time.Hour,
			Window:              domain.Window(base, base.Add(time.Hour)),
		}
	}

	t.Run("valid order", func(t *testing.T) {
		if err := decompose.Validate(valid()); err != nil {
			t.Errorf("unexpected error: %+v", err)
		}
	})

	for name, testcase := range map[string]struct {
		modify   func(*domain.ProcessingOrder)
		problems int
	}{
		"no mission": {
			modify:   func(o *domain.ProcessingOrder) { o.Mission = "" },
			problems: 1,
		},
		"nothing requested": {
			modify: func(o *domain.ProcessingOrder) {
				o.RequestedClasses = nil
				o.RequestedProcessors = nil
			},
			problems: 2,
		},
		"reversed window": {
			modify:   func(o *domain.ProcessingOrder) { o.Window = domain.Window(base.Add(time.Hour), base) },
			problems: 1,
		},
		"TIME_SLICE without duration": {
			modify:   func(o *domain.ProcessingOrder) { o.SliceDuration = 0 },
			problems: 1,
		},
		"calendar slicing without window": {
			modify: func(o *domain.ProcessingOrder) {
				o.Slicing = domain.SliceByDay
				o.Window = domain.TimeWindow{}
			},
			problems: 1,
		},
		"ORBIT slicing without orbits": {
			modify:   func(o *domain.ProcessingOrder) { o.Slicing = domain.SliceByOrbit },
			problems: 1,
		},
		"unknown slicing": {
			modify:   func(o *domain.ProcessingOrder) { o.Slicing = "WEEKLY" },
			problems: 1,
		},
		"negative overlap": {
			modify:   func(o *domain.ProcessingOrder) { o.SliceOverlap = -time.Minute },
			problems: 1,
		},
	} {
		t.Run(name, func(t *testing.T) {
			order := valid()
			testcase.modify(&order)
			err := decompose.Validate(order)

			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, but %+v", err)
			}
			if len(verr.Problems) != testcase.problems {
				t.Errorf("problems: actual %v, expected %d", verr.Problems, testcase.problems)
			}
		})
	}
}
