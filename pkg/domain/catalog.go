package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Mission struct {
	Code       string
	Name       string
	Spacecraft []string
}

type Orbit struct {
	Spacecraft string
	Number     int
	Start      time.Time
	Stop       time.Time
}

func (o Orbit) Window() TimeWindow {
	return TimeWindow{Start: o.Start, Stop: o.Stop}
}

// OrbitRef identifies an orbit of a spacecraft.
type OrbitRef struct {
	Spacecraft string
	Number     int
}

type ProcessingFacility struct {
	Name        string
	Description string
}

// ProductClass is a type of products in a mission.
//
// ProductClasses make whole/part trees: a class may enclose component classes.
// The enclosing relation is acyclic.
type ProductClass struct {
	Id          string
	Mission     string
	ProductType string

	// name of processor class which generates products of this class.
	//
	// Empty if products of this class are not generated by this system (= input only).
	ProcessorClass string

	// id of the enclosing class. Empty for top level classes.
	EnclosingClass string

	// ids of component classes.
	ComponentClasses []string
}

func (pc ProductClass) Produced() bool {
	return pc.ProcessorClass != ""
}

type ProcessorClass struct {
	Mission string
	Name    string

	// ids of product classes which this processor class can generate.
	ProductClasses []string
}

// ConfiguredProcessor is a version of a processor with a configuration.
type ConfiguredProcessor struct {
	Identifier           string
	Mission              string
	ProcessorClass       string
	ProcessorVersion     string
	ConfigurationVersion string

	// processing mode this processor is configured for. Empty means any mode.
	Mode string

	// container image reference of the processor
	Image string

	Enabled bool
}

// ParameterType is a type of product parameters.
type ParameterType string

const (
	StringParameter  ParameterType = "STRING"
	IntegerParameter ParameterType = "INTEGER"
	BooleanParameter ParameterType = "BOOLEAN"
	DoubleParameter  ParameterType = "DOUBLE"
	InstantParameter ParameterType = "INSTANT"
)

func AsParameterType(s string) (ParameterType, error) {
	switch t := ParameterType(strings.ToUpper(s)); t {
	case StringParameter, IntegerParameter, BooleanParameter, DoubleParameter, InstantParameter:
		return t, nil
	}
	return "", fmt.Errorf(`"%s" is not a parameter type`, s)
}

// Parameter is a typed value. Values are written as texts.
type Parameter struct {
	Type  ParameterType
	Value string
}

func StringParam(v string) Parameter {
	return Parameter{Type: StringParameter, Value: v}
}

func IntegerParam(v int64) Parameter {
	return Parameter{Type: IntegerParameter, Value: strconv.FormatInt(v, 10)}
}

// Equal compares a and other as typed values.
//
// When types are different, other is read as the type of p.
// So, filter conditions written as STRING match with typed product parameters.
func (p Parameter) Equal(other Parameter) bool {
	a, b := strings.TrimSpace(p.Value), strings.TrimSpace(other.Value)
	typ := p.Type
	if typ == StringParameter && other.Type != StringParameter && other.Type != "" {
		typ = other.Type
	}
	switch typ {
	case IntegerParameter:
		x, errx := strconv.ParseInt(a, 10, 64)
		y, erry := strconv.ParseInt(b, 10, 64)
		return errx == nil && erry == nil && x == y
	case DoubleParameter:
		x, errx := strconv.ParseFloat(a, 64)
		y, erry := strconv.ParseFloat(b, 64)
		return errx == nil && erry == nil && x == y
	case BooleanParameter:
		x, errx := strconv.ParseBool(a)
		y, erry := strconv.ParseBool(b)
		return errx == nil && erry == nil && x == y
	case InstantParameter:
		x, errx := time.Parse(time.RFC3339Nano, a)
		y, erry := time.Parse(time.RFC3339Nano, b)
		return errx == nil && erry == nil && x.Equal(y)
	default:
		return p.Value == other.Value
	}
}

func (p Parameter) String() string {
	return fmt.Sprintf("%s(%s)", p.Type, p.Value)
}

// Parameters is a set of named parameters.
type Parameters map[string]Parameter

// Match reports whether ps has all of filters with equal values.
func (ps Parameters) Match(filters Parameters) bool {
	for k, f := range filters {
		v, ok := ps[k]
		if !ok || !v.Equal(f) {
			return false
		}
	}
	return true
}

func (ps Parameters) Clone() Parameters {
	if ps == nil {
		return nil
	}
	c := make(Parameters, len(ps))
	for k, v := range ps {
		c[k] = v
	}
	return c
}

// Product is an instance of ProductClass.
type Product struct {
	Id           string
	ProductClass string
	Mode         string
	FileClass    string
	SensingStart time.Time
	SensingStop  time.Time

	// time when the product has been generated.
	//
	// nil if the product is planned, but not generated yet.
	GenerationTime *time.Time

	Parameters Parameters

	// id of the enclosing product. Empty for top level products.
	EnclosingProduct string

	ComponentProducts []string

	// id of the job step which generates this product. Empty for input products.
	JobStep string

	Facility string
	FileSize int64
	Checksum string
}

func (p Product) Validity() TimeWindow {
	return TimeWindow{Start: p.SensingStart, Stop: p.SensingStop}
}

func (p Product) Generated() bool {
	return p.GenerationTime != nil
}

// ProductFind is a condition to find products.
type ProductFind struct {
	// id of product class. Required.
	ProductClass string

	// match products in this mode. Empty means any mode.
	Mode string

	// match products having all of these parameters.
	Filters Parameters

	// match products whose validity intersects or touches Span.
	//
	// nil means any time.
	Span *TimeWindow

	// match products whose sensing start is at or before this.
	//
	// nil means no limit.
	StartNotAfter *time.Time

	// when true, products not generated yet are also matched.
	IncludePlanned bool
}

// Completion is what an execution backend reports for a finished job step.
type Completion struct {
	FileSize       int64
	Checksum       string
	GenerationTime time.Time
	Parameters     Parameters
}
