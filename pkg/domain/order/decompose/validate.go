package decompose

import (
	"github.com/opst/prodplan/pkg/domain"
)

// Validate checks the order can be decomposed.
//
// Returns
//
// - error: *domain.ValidationError listing all problems found. nil if the order is valid.
func Validate(order domain.ProcessingOrder) error {
	problems := []string{}

	if order.Mission == "" {
		problems = append(problems, "mission is not set")
	}
	if len(order.RequestedProcessors) == 0 {
		problems = append(problems, "no configured processors are requested")
	}
	if len(order.RequestedClasses) == 0 {
		problems = append(problems, "no product classes are requested")
	}

	hasWindow := !order.Window.Start.IsZero() || !order.Window.Stop.IsZero()
	if hasWindow && order.Window.Stop.Before(order.Window.Start) {
		problems = append(problems, "stop of the window is before its start")
	}

	switch order.Slicing {
	case domain.SliceByOrbit:
		if len(order.Orbits) == 0 {
			problems = append(problems, "no orbits are requested for ORBIT slicing")
		}
	case domain.SliceByDay, domain.SliceByMonth, domain.SliceByYear, domain.SliceNone:
		if !hasWindow {
			problems = append(problems, "window is not set")
		}
	case domain.SliceByTime:
		if !hasWindow {
			problems = append(problems, "window is not set")
		}
		if order.SliceDuration <= 0 {
			problems = append(problems, "slice duration should be positive for TIME_SLICE slicing")
		}
	default:
		problems = append(problems, "unknown slicing type: "+string(order.Slicing))
	}
	if order.SliceOverlap < 0 {
		problems = append(problems, "slice overlap should not be negative")
	}

	if len(problems) == 0 {
		return nil
	}
	subject := "processing order " + order.Identifier
	return &domain.ValidationError{Subject: subject, Problems: problems}
}
