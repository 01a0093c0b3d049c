package planner

import (
	"fmt"
	"time"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
//
// All types named `pkg/configs/planner.XxxMarshall` are `Marshalled[*Xxx]` .
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

const (
	defaultMaxRetry = 3
	defaultPolicy   = "forever:10s"
	defaultDebounce = time.Minute
)

// PlannerConfigMarshall is mutable, marshalling form of PlannerConfig.
type PlannerConfigMarshall struct {
	Port     int32                  `yaml:"port"`
	Database string                 `yaml:"database"`
	Facility string                 `yaml:"facility,omitempty"`
	MaxRetry *int                   `yaml:"maxRetry,omitempty"`
	Metrics  *MetricsConfigMarshall `yaml:"metrics,omitempty"`
	Loops    *LoopsConfigMarshall   `yaml:"loops,omitempty"`
}

var _ Marshalled[*PlannerConfig] = &PlannerConfigMarshall{}

func (p *PlannerConfigMarshall) trySeal(path string) *PlannerConfig {
	maxRetry := defaultMaxRetry
	if p.MaxRetry != nil {
		maxRetry = *p.MaxRetry
	}
	if maxRetry < 0 {
		panic(path + ".maxRetry should not be negative")
	}

	metrics := p.Metrics
	if metrics == nil {
		metrics = &MetricsConfigMarshall{}
	}
	loops := p.Loops
	if loops == nil {
		loops = &LoopsConfigMarshall{}
	}

	return &PlannerConfig{
		port:     required(p.Port, path+".port"),
		database: required(p.Database, path+".database"),
		facility: p.Facility,
		maxRetry: maxRetry,
		metrics:  metrics.trySeal(path + ".metrics"),
		loops:    loops.trySeal(path + ".loops"),
	}
}

type MetricsConfigMarshall struct {
	Port int32 `yaml:"port,omitempty"`
}

func (m *MetricsConfigMarshall) trySeal(path string) *MetricsConfig {
	if m.Port < 0 {
		panic(path + ".port should not be negative")
	}
	return &MetricsConfig{port: m.Port}
}

type LoopsConfigMarshall struct {
	Planning  *PlanningLoopConfigMarshall  `yaml:"planning,omitempty"`
	Readiness *ReadinessLoopConfigMarshall `yaml:"readiness,omitempty"`
}

func (l *LoopsConfigMarshall) trySeal(path string) *LoopsConfig {
	planning := l.Planning
	if planning == nil {
		planning = &PlanningLoopConfigMarshall{}
	}
	readiness := l.Readiness
	if readiness == nil {
		readiness = &ReadinessLoopConfigMarshall{}
	}
	return &LoopsConfig{
		planning:  planning.trySeal(path + ".planning"),
		readiness: readiness.trySeal(path + ".readiness"),
	}
}

type PlanningLoopConfigMarshall struct {
	Policy   string `yaml:"policy,omitempty"`
	Debounce string `yaml:"debounce,omitempty"`
	Timeout  string `yaml:"timeout,omitempty"`
}

func (p *PlanningLoopConfigMarshall) trySeal(path string) *PlanningLoopConfig {
	return &PlanningLoopConfig{
		policy:   orDefault(p.Policy, defaultPolicy),
		debounce: duration(p.Debounce, defaultDebounce, path+".debounce"),
		timeout:  duration(p.Timeout, 0, path+".timeout"),
	}
}

type ReadinessLoopConfigMarshall struct {
	Policy   string `yaml:"policy,omitempty"`
	Debounce string `yaml:"debounce,omitempty"`
	Workers  int    `yaml:"workers,omitempty"`
	Batch    int    `yaml:"batch,omitempty"`
}

func (r *ReadinessLoopConfigMarshall) trySeal(path string) *ReadinessLoopConfig {
	if r.Workers < 0 {
		panic(path + ".workers should not be negative")
	}
	if r.Batch < 0 {
		panic(path + ".batch should not be negative")
	}
	return &ReadinessLoopConfig{
		policy:   orDefault(r.Policy, defaultPolicy),
		debounce: duration(r.Debounce, defaultDebounce, path+".debounce"),
		workers:  orDefault(r.Workers, 1),
		batch:    r.Batch,
	}
}

func duration(s string, d time.Duration, path string) time.Duration {
	if s == "" {
		return d
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Errorf("%s can not be parsed: %w", path, err))
	}
	if v < 0 {
		panic(path + " should not be negative")
	}
	return v
}

func orDefault[T comparable](v T, d T) T {
	if v == *new(T) {
		return d
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}
