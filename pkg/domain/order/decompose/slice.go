package decompose

import (
	"context"
	"sort"
	"time"

	"github.com/opst/prodplan/pkg/domain"
	catalogdb "github.com/opst/prodplan/pkg/domain/catalog/db"
	xe "github.com/opst/prodplan/pkg/errors"
)

// Window is a time range which one job works on.
type Window struct {
	domain.TimeWindow

	// orbit of the window. nil unless the order is sliced by orbits.
	Orbit *domain.OrbitRef
}

// Slice divides the order into windows of jobs.
//
// Windows are ordered by their start, and cover the whole window of the order.
// For calendar slicing, the first and last windows may be beyond the window of the order.
//
// Args
//
// - context.Context
//
// - catalogdb.Reader: catalog to read orbits
//
// - domain.ProcessingOrder: order to be sliced. It should be validated.
//
// Returns
//
// - []Window
//
// - error: errors from the catalog (ErrMissing for unknown orbits, for example).
func Slice(ctx context.Context, reader catalogdb.Reader, order domain.ProcessingOrder) ([]Window, error) {
	w := order.Window

	switch order.Slicing {
	case domain.SliceByOrbit:
		return sliceByOrbits(ctx, reader, order)
	case domain.SliceByDay:
		start := time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, time.UTC)
		return sliceBy(start, w.Stop, func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }, 0), nil
	case domain.SliceByMonth:
		start := time.Date(w.Start.Year(), w.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
		return sliceBy(start, w.Stop, func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }, 0), nil
	case domain.SliceByYear:
		start := time.Date(w.Start.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return sliceBy(start, w.Stop, func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }, 0), nil
	case domain.SliceByTime:
		d := order.SliceDuration
		if d <= 0 {
			return []Window{{TimeWindow: w}}, nil
		}
		return sliceBy(w.Start, w.Stop, func(t time.Time) time.Time { return t.Add(d) }, order.SliceOverlap), nil
	default:
		return []Window{{TimeWindow: w}}, nil
	}
}

// sliceBy makes windows [t, next(t)] from start while t < stop.
//
// At least one window is made, even when start == stop.
// Each window is widened by overlap/2.
func sliceBy(start time.Time, stop time.Time, next func(time.Time) time.Time, overlap time.Duration) []Window {
	start, stop = start.UTC(), stop.UTC()
	half := overlap / 2

	ret := []Window{}
	for t := start; len(ret) == 0 || t.Before(stop); t = next(t) {
		ret = append(ret, Window{
			TimeWindow: domain.Window(t.Add(-half), next(t).Add(half)),
		})
	}
	return ret
}

func sliceByOrbits(ctx context.Context, reader catalogdb.Reader, order domain.ProcessingOrder) ([]Window, error) {
	numbers := map[string][]int{}
	spacecrafts := []string{}
	for _, o := range order.Orbits {
		if _, ok := numbers[o.Spacecraft]; !ok {
			spacecrafts = append(spacecrafts, o.Spacecraft)
		}
		numbers[o.Spacecraft] = append(numbers[o.Spacecraft], o.Number)
	}

	clip := !order.Window.Start.IsZero() || !order.Window.Stop.IsZero()

	ret := []Window{}
	for _, sc := range spacecrafts {
		orbits, err := reader.Orbits(ctx, sc, numbers[sc])
		if err != nil {
			return nil, xe.Wrap(err)
		}
		for _, o := range orbits {
			w := o.Window()
			if clip {
				clipped, ok := w.Clip(order.Window)
				// orbits only touching the window have nothing to process.
				if !ok || (0 < w.Duration() && clipped.Duration() <= 0) {
					continue
				}
				w = clipped
			}
			ret = append(ret, Window{
				TimeWindow: w,
				Orbit:      &domain.OrbitRef{Spacecraft: o.Spacecraft, Number: o.Number},
			})
		}
	}
	sort.SliceStable(ret, func(i, j int) bool { return ret[i].Start.Before(ret[j].Start) })
	return ret, nil
}
