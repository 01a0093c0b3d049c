package orders

import (
	"errors"
	"fmt"
	"time"

	apiproducts "github.com/opst/prodplan/pkg/api/types/products"
	"github.com/opst/prodplan/pkg/domain"
)

type Orbit struct {
	Spacecraft string `json:"spacecraft"`
	Number     int    `json:"number"`
}

// Order is a processing order.
//
// Durations are written as Go duration texts, like "1h30m".
type Order struct {
	Id                  string                           `json:"id,omitempty"`
	Identifier          string                           `json:"identifier"`
	Mission             string                           `json:"mission"`
	State               string                           `json:"state,omitempty"`
	Window              *apiproducts.Window              `json:"window,omitempty"`
	Orbits              []Orbit                          `json:"orbits,omitempty"`
	Slicing             string                           `json:"slicing"`
	SliceDuration       string                           `json:"sliceDuration,omitempty"`
	SliceOverlap        string                           `json:"sliceOverlap,omitempty"`
	RequestedClasses    []string                         `json:"requestedClasses"`
	InputClasses        []string                         `json:"inputClasses,omitempty"`
	RequestedProcessors []string                         `json:"requestedProcessors"`
	OutputFileClass     string                           `json:"outputFileClass,omitempty"`
	ProcessingMode      string                           `json:"processingMode,omitempty"`
	Filters             map[string]apiproducts.Parameter `json:"filters,omitempty"`
	Facility            string                           `json:"facility,omitempty"`
	Message             string                           `json:"message,omitempty"`
}

func Compose(o domain.ProcessingOrder) Order {
	var window *apiproducts.Window
	if !o.Window.Start.IsZero() || !o.Window.Stop.IsZero() {
		w := apiproducts.ComposeWindow(o.Window)
		window = &w
	}
	orbits := make([]Orbit, 0, len(o.Orbits))
	for _, ob := range o.Orbits {
		orbits = append(orbits, Orbit{Spacecraft: ob.Spacecraft, Number: ob.Number})
	}
	duration := func(d time.Duration) string {
		if d == 0 {
			return ""
		}
		return d.String()
	}
	return Order{
		Id:                  o.Id,
		Identifier:          o.Identifier,
		Mission:             o.Mission,
		State:               string(o.State),
		Window:              window,
		Orbits:              orbits,
		Slicing:             string(o.Slicing),
		SliceDuration:       duration(o.SliceDuration),
		SliceOverlap:        duration(o.SliceOverlap),
		RequestedClasses:    o.RequestedClasses,
		InputClasses:        o.InputClasses,
		RequestedProcessors: o.RequestedProcessors,
		OutputFileClass:     o.OutputFileClass,
		ProcessingMode:      o.ProcessingMode,
		Filters:             apiproducts.ComposeParameters(o.Filters),
		Facility:            o.Facility,
		Message:             o.StateMessage,
	}
}

// Parse the order for intake. Id and State are ignored.
//
// Returns
//
// - domain.ProcessingOrder
//
// - error: *domain.ValidationError listing problems in the payload.
func (o Order) Parse() (domain.ProcessingOrder, error) {
	problems := []string{}
	slicing, err := domain.AsSlicingType(o.Slicing)
	if err != nil {
		problems = append(problems, err.Error())
	}
	duration := func(name string, s string) time.Duration {
		if s == "" {
			return 0
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %s", name, err))
		}
		return d
	}
	sliceDuration := duration("sliceDuration", o.SliceDuration)
	sliceOverlap := duration("sliceOverlap", o.SliceOverlap)

	filters, err := apiproducts.ParseParameters(o.Filters)
	if err != nil {
		problems = append(problems, err.Error())
	}

	var window domain.TimeWindow
	if o.Window != nil {
		window = o.Window.Parse()
	}
	orbits := make([]domain.OrbitRef, 0, len(o.Orbits))
	for _, ob := range o.Orbits {
		orbits = append(orbits, domain.OrbitRef{Spacecraft: ob.Spacecraft, Number: ob.Number})
	}

	if o.Identifier == "" {
		problems = append(problems, "identifier is required")
	}
	if len(problems) != 0 {
		return domain.ProcessingOrder{}, &domain.ValidationError{Subject: "order " + o.Identifier, Problems: problems}
	}

	return domain.ProcessingOrder{
		Identifier:          o.Identifier,
		Mission:             o.Mission,
		Window:              window,
		Orbits:              orbits,
		Slicing:             slicing,
		SliceDuration:       sliceDuration,
		SliceOverlap:        sliceOverlap,
		RequestedClasses:    o.RequestedClasses,
		InputClasses:        o.InputClasses,
		RequestedProcessors: o.RequestedProcessors,
		OutputFileClass:     o.OutputFileClass,
		ProcessingMode:      o.ProcessingMode,
		Filters:             filters,
		Facility:            o.Facility,
	}, nil
}

// StateChange is a request to change the state of an order.
type StateChange struct {
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

var ErrUnchangeableState = errors.New("the state can not be requested")

// Parse the request. Only states an operator can request are accepted.
func (s StateChange) Parse() (domain.OrderState, error) {
	st, err := domain.AsOrderState(s.State)
	if err != nil {
		return "", err
	}
	switch st {
	case domain.OrderApproved, domain.OrderReleased, domain.OrderSuspending, domain.OrderClosed:
		return st, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnchangeableState, st)
}
