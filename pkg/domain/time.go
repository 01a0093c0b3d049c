package domain

import (
	"fmt"
	"time"
)

// TimeUnit is a unit of DeltaTime.
//
// Smaller units have smaller values.
type TimeUnit int

const (
	Seconds TimeUnit = iota
	Minutes
	Hours
	Days
)

func (u TimeUnit) Duration() time.Duration {
	switch u {
	case Seconds:
		return time.Second
	case Minutes:
		return time.Minute
	case Hours:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// Symbol returns a letter for the unit used in rule texts.
func (u TimeUnit) Symbol() string {
	switch u {
	case Seconds:
		return "S"
	case Minutes:
		return "M"
	case Hours:
		return "H"
	default:
		return "D"
	}
}

func (u TimeUnit) String() string {
	switch u {
	case Seconds:
		return "seconds"
	case Minutes:
		return "minutes"
	case Hours:
		return "hours"
	default:
		return "days"
	}
}

// DeltaTime is a length of time written as "duration unit", like "2 H".
type DeltaTime struct {
	Duration int64
	Unit     TimeUnit
}

// Delta creates DeltaTime.
func Delta(duration int64, unit TimeUnit) DeltaTime {
	return DeltaTime{Duration: duration, Unit: unit}
}

func (d DeltaTime) ToDuration() time.Duration {
	return time.Duration(d.Duration) * d.Unit.Duration()
}

func (d DeltaTime) Seconds() int64 {
	return int64(d.ToDuration() / time.Second)
}

// Merge returns a DeltaTime with the smaller unit of both and the larger duration of both.
func (d DeltaTime) Merge(other DeltaTime) DeltaTime {
	unit := d.Unit
	if other.Unit < unit {
		unit = other.Unit
	}
	longer := d.ToDuration()
	if o := other.ToDuration(); longer < o {
		longer = o
	}
	return DeltaTime{Duration: int64(longer / unit.Duration()), Unit: unit}
}

// Equal reports whether d and other are the same length of time.
func (d DeltaTime) Equal(other DeltaTime) bool {
	return d.ToDuration() == other.ToDuration()
}

func (d DeltaTime) String() string {
	return fmt.Sprintf("%d %s", d.Duration, d.Unit.Symbol())
}

// TimeWindow is a closed time interval [Start, Stop].
type TimeWindow struct {
	Start time.Time
	Stop  time.Time
}

func Window(start, stop time.Time) TimeWindow {
	return TimeWindow{Start: start, Stop: stop}
}

// Widen returns [Start - t0, Stop + t1].
func (w TimeWindow) Widen(t0, t1 DeltaTime) TimeWindow {
	return TimeWindow{
		Start: w.Start.Add(-t0.ToDuration()),
		Stop:  w.Stop.Add(t1.ToDuration()),
	}
}

func (w TimeWindow) Duration() time.Duration {
	return w.Stop.Sub(w.Start)
}

// Midpoint of the window.
func (w TimeWindow) Midpoint() time.Time {
	return w.Start.Add(w.Duration() / 2)
}

// Clip returns the intersection of w and other.
//
// When they do not overlap, ok is false.
func (w TimeWindow) Clip(other TimeWindow) (clipped TimeWindow, ok bool) {
	start := w.Start
	if other.Start.After(start) {
		start = other.Start
	}
	stop := w.Stop
	if other.Stop.Before(stop) {
		stop = other.Stop
	}
	if stop.Before(start) {
		return TimeWindow{}, false
	}
	return TimeWindow{Start: start, Stop: stop}, true
}

func (w TimeWindow) Equal(other TimeWindow) bool {
	return w.Start.Equal(other.Start) && w.Stop.Equal(other.Stop)
}

// Key is a comparable representation of the window.
func (w TimeWindow) Key() string {
	return w.Start.UTC().Format(time.RFC3339Nano) + "/" + w.Stop.UTC().Format(time.RFC3339Nano)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%s, %s]", w.Start.UTC().Format(time.RFC3339), w.Stop.UTC().Format(time.RFC3339))
}
