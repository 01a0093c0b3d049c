package planner

import "time"

// PlannerConfig is a sealed configuration of the planner.
//
// To get an instance, use `TrySeal(*PlannerConfigMarshall)` or `Unmarshal`.
type PlannerConfig struct {
	port     int32
	database string
	facility string
	maxRetry int
	metrics  *MetricsConfig
	loops    *LoopsConfig
}

// port for the execution backend API.
func (c *PlannerConfig) Port() int32 {
	return c.port
}

// connection string of the database.
func (c *PlannerConfig) Database() string {
	return c.database
}

// facility which jobs are planned for, when orders do not tell.
func (c *PlannerConfig) Facility() string {
	return c.facility
}

// how many times a transaction is retried on concurrent modification.
func (c *PlannerConfig) MaxRetry() int {
	return c.maxRetry
}

func (c *PlannerConfig) Metrics() *MetricsConfig {
	return c.metrics
}

func (c *PlannerConfig) Loops() *LoopsConfig {
	return c.loops
}

type MetricsConfig struct {
	port int32
}

// port serving /metrics. 0 means disabled.
func (m *MetricsConfig) Port() int32 {
	return m.port
}

type LoopsConfig struct {
	planning  *PlanningLoopConfig
	readiness *ReadinessLoopConfig
}

func (l *LoopsConfig) Planning() *PlanningLoopConfig {
	return l.planning
}

func (l *LoopsConfig) Readiness() *ReadinessLoopConfig {
	return l.readiness
}

type PlanningLoopConfig struct {
	policy   string
	debounce time.Duration
	timeout  time.Duration
}

// recurring policy, like "forever:10s" or "backlog".
func (p *PlanningLoopConfig) Policy() string {
	return p.policy
}

// interval to pick the same order again.
func (p *PlanningLoopConfig) Debounce() time.Duration {
	return p.debounce
}

// timeout for planning an order. 0 means no timeout.
func (p *PlanningLoopConfig) Timeout() time.Duration {
	return p.timeout
}

type ReadinessLoopConfig struct {
	policy   string
	debounce time.Duration
	workers  int
	batch    int
}

func (r *ReadinessLoopConfig) Policy() string {
	return r.policy
}

// interval to evaluate the same job step again.
func (r *ReadinessLoopConfig) Debounce() time.Duration {
	return r.debounce
}

// number of job steps evaluated concurrently.
func (r *ReadinessLoopConfig) Workers() int {
	return r.workers
}

// max number of job steps evaluated in a cycle. 0 means unlimited.
func (r *ReadinessLoopConfig) Batch() int {
	return r.batch
}
