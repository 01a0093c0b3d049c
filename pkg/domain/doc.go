// Package domain contains the domain models of the production planner.
//
// `domain/ENTITY.go` has high-level entities and functions.
// For example, `domain/order.go` contains the ProcessingOrder and its state machine.
//
// `domain/ENTITY` directories contain the behaviour around the entity and its
// "physical" representation in the database (`domain/ENTITY/db`).
//
// # Entities
//
// - catalog: Missions, Orbits, ProductClasses, ConfiguredProcessors and Products.
// Products are instances of ProductClasses with sensing times, generation time and typed parameters.
// ProductClasses own selection rules which tell how to find their input products.
//
// - rule: Selection rules. A rule text is compiled into SimpleSelectionRules,
// each of which has SimplePolicies (temporal matching) and attribute filters.
//
// - order: A ProcessingOrder requests products of some classes for a time range or orbits.
// Planning decomposes an order into Jobs (one per slice) and JobSteps (one per product to be generated).
//
// - jobstep: A JobStep waits for its input ProductQueries to be satisfied.
// The "readiness loop" re-evaluates them and promotes the step to READY.
// After that, an execution backend runs the step and reports back.
//
// - loop: recurring tasks. Implementations are in `cmd/loops/tasks/`.
package domain
