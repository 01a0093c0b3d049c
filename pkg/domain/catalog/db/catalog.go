package db

import (
	"context"

	"github.com/opst/prodplan/pkg/domain"
)

// Reader reads the product catalog and its configurations.
//
// Entities are returned fully materialized. Nothing is fetched lazily.
type Reader interface {
	// find products which match the condition.
	//
	// Returns
	//
	// - []domain.Product: found products. Order is not specified.
	//
	// - error
	FindProducts(ctx context.Context, query domain.ProductFind) ([]domain.Product, error)

	// get a product.
	//
	// Returns
	//
	// - domain.Product
	//
	// - error: ErrMissing when no such product
	Product(ctx context.Context, id string) (domain.Product, error)

	// get a product class.
	//
	// Returns
	//
	// - domain.ProductClass
	//
	// - error: ErrMissing when no such class
	ProductClass(ctx context.Context, id string) (domain.ProductClass, error)

	// find a product class by its product type in the mission.
	//
	// Returns
	//
	// - domain.ProductClass
	//
	// - error: ErrMissing when no such class
	ProductClassByType(ctx context.Context, mission string, productType string) (domain.ProductClass, error)

	// all product classes of the mission.
	ProductClasses(ctx context.Context, mission string) ([]domain.ProductClass, error)

	// simple selection rules whose target is the class.
	//
	// Returns rules in registration order.
	SelectionRules(ctx context.Context, targetClass string) ([]domain.SimpleSelectionRule, error)

	// configured processors of the mission, including disabled ones.
	ConfiguredProcessors(ctx context.Context, mission string) ([]domain.ConfiguredProcessor, error)

	// get a processor class.
	//
	// Returns
	//
	// - domain.ProcessorClass
	//
	// - error: ErrMissing when no such class
	ProcessorClass(ctx context.Context, mission string, name string) (domain.ProcessorClass, error)

	// orbits of the spacecraft with given numbers.
	//
	// Returns
	//
	// - []domain.Orbit: found orbits, ordered by their start.
	//
	// - error: ErrMissing when some of orbits are not found
	Orbits(ctx context.Context, spacecraft string, numbers []int) ([]domain.Orbit, error)

	// jobs (with their steps) created for the order.
	JobsOfOrder(ctx context.Context, order string) ([]domain.Job, error)
}

// Tx is a catalog in a transaction.
type Tx interface {
	Reader

	// persist a new job with its steps, queries and products.
	//
	// Ids of the job, steps, queries and products are assigned
	// and written back to job and products.
	// Products refer each other and job steps by their index based temporary ids
	// (see domain.TemporaryId), which are replaced with assigned ids.
	//
	// Args
	//
	// - context.Context
	//
	// - *domain.Job: job to be persisted. Its Id should be empty.
	//
	// - []domain.Product: products generated by the job.
	//
	// Returns
	//
	// - error
	SaveJob(ctx context.Context, job *domain.Job, products []domain.Product) error

	// persist a product. When Id is empty, a new product is created and Id is assigned.
	SaveProduct(ctx context.Context, product *domain.Product) error

	// claim the key for this transaction.
	//
	// Of transactions claiming the same key concurrently, only one can be committed.
	// Others fail with ErrConcurrentModification, and Transact retries them.
	// Claim a key before checking what is planned for it, and planning it.
	Claim(ctx context.Context, key string) error
}

// Interface is the product catalog.
type Interface interface {
	Reader

	// run fn in a REPEATABLE READ transaction.
	//
	// When fn returns error, the transaction is rolled back.
	// When the transaction conflicts with others, it is retried from fn.
	//
	// Returns
	//
	// - error: error from fn, or ErrConcurrentModification when retries are exhausted.
	Transact(ctx context.Context, fn func(context.Context, Tx) error) error

	RegisterMission(ctx context.Context, mission domain.Mission) error

	// register a product class.
	//
	// Returns
	//
	// - error: *domain.ValidationError when the enclosing class makes a cycle or is missing.
	RegisterProductClass(ctx context.Context, class *domain.ProductClass) error

	RegisterProcessorClass(ctx context.Context, class domain.ProcessorClass) error

	// register a configured processor.
	//
	// Returns
	//
	// - error: *domain.ValidationError when the image is not a valid reference.
	RegisterConfiguredProcessor(ctx context.Context, processor domain.ConfiguredProcessor) error

	// compile and register selection rules.
	//
	// Args
	//
	// - context.Context
	//
	// - string: id of the target product class
	//
	// - string: rule text
	//
	// - string: processing mode. Empty means any mode.
	//
	// - []string: identifiers of configured processors which the rule is applied for. Empty means all.
	//
	// Returns
	//
	// - domain.SelectionRule: registered rules, with ids.
	//
	// - error: *domain.RuleSyntaxError when the text is malformed.
	RegisterSelectionRule(ctx context.Context, target string, text string, mode string, processors []string) (domain.SelectionRule, error)

	RegisterOrbit(ctx context.Context, orbit domain.Orbit) error

	RegisterFacility(ctx context.Context, facility domain.ProcessingFacility) error

	// register a product which is generated out of this system.
	RegisterProduct(ctx context.Context, product *domain.Product) error
}
