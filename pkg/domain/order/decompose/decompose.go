// Package decompose expands processing orders into jobs and job steps.
package decompose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/opst/prodplan/pkg/domain"
	catalogdb "github.com/opst/prodplan/pkg/domain/catalog/db"
	"github.com/opst/prodplan/pkg/domain/query"
	xe "github.com/opst/prodplan/pkg/errors"
)

// Plan is a result of decomposing an order.
type Plan struct {
	// persisted jobs.
	Jobs []domain.Job

	// windows which could not be planned.
	Failures []WindowFailure
}

type WindowFailure struct {
	Window Window
	Err    error
}

func (wf WindowFailure) Error() string {
	return fmt.Sprintf("window %s: %s", wf.Window.TimeWindow, wf.Err)
}

func (wf WindowFailure) Unwrap() error {
	return wf.Err
}

type Decomposer struct {
	catalog catalogdb.Interface
	engine  *query.Engine
	logger  *log.Logger
	clock   func() time.Time
}

type Option func(*Decomposer) *Decomposer

func WithLogger(logger *log.Logger) Option {
	return func(d *Decomposer) *Decomposer {
		d.logger = logger
		return d
	}
}

func WithClock(clock func() time.Time) Option {
	return func(d *Decomposer) *Decomposer {
		d.clock = clock
		return d
	}
}

func New(catalog catalogdb.Interface, options ...Option) *Decomposer {
	d := &Decomposer{
		catalog: catalog,
		logger:  log.New(io.Discard, "", 0),
		clock:   time.Now,
	}
	for _, opt := range options {
		d = opt(d)
	}
	d.engine = query.New(catalog, d.logger)
	return d
}

// Decompose plans jobs of the order on the facility.
//
// Each window of the order is planned in its own transaction.
// When a window fails, nothing is persisted for the window, and other windows are still planned.
// Windows which already have jobs of the order are skipped.
//
// Args
//
// - context.Context
//
// - domain.ProcessingOrder: order to be planned
//
// - string: processing facility. When empty, the facility of the order is used.
//
// Returns
//
// - Plan: persisted jobs and failed windows.
//
// - error: *domain.ValidationError if the order is invalid, errors on slicing,
// or an error wrapping all failures when every window fails.
func (d *Decomposer) Decompose(ctx context.Context, order domain.ProcessingOrder, facility string) (Plan, error) {
	if err := Validate(order); err != nil {
		return Plan{}, err
	}
	if facility == "" {
		facility = order.Facility
	}

	windows, err := Slice(ctx, d.catalog, order)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{Jobs: []domain.Job{}, Failures: []WindowFailure{}}
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return plan, err
		}

		var job *domain.Job
		err := d.catalog.Transact(ctx, func(ctx context.Context, tx catalogdb.Tx) error {
			job = nil
			if err := tx.Claim(ctx, jobClaim(order.Id, w)); err != nil {
				return err
			}
			planned, err := hasJobFor(ctx, tx, order.Id, w)
			if err != nil {
				return err
			}
			if planned {
				return nil
			}

			b, err := d.newBuilder(ctx, tx, order, facility, w)
			if err != nil {
				return err
			}
			j, products, err := b.build(ctx)
			if err != nil {
				return err
			}
			if err := tx.SaveJob(ctx, &j, products); err != nil {
				return err
			}
			job = &j
			return nil
		})
		if err != nil {
			d.logger.Printf("order %s: window %s is not planned: %s", order.Identifier, w.TimeWindow, err)
			plan.Failures = append(plan.Failures, WindowFailure{Window: w, Err: err})
			continue
		}
		if job == nil {
			d.logger.Printf("order %s: window %s is already planned", order.Identifier, w.TimeWindow)
			continue
		}
		plan.Jobs = append(plan.Jobs, *job)
	}

	if 0 < len(plan.Failures) && len(plan.Jobs) == 0 {
		errs := make([]error, 0, len(plan.Failures))
		for _, f := range plan.Failures {
			errs = append(errs, f)
		}
		return plan, xe.Wrap(fmt.Errorf("all windows are failed: %w", errors.Join(errs...)))
	}
	return plan, nil
}

// jobClaim is the key claimed to plan the job for the window of the order.
func jobClaim(order string, w Window) string {
	return "job:" + order + "@" + w.Key()
}

// productClaim is the key claimed to plan products of the class for the window.
func productClaim(class string, w Window) string {
	return "product:" + class + "@" + w.Key()
}

func hasJobFor(ctx context.Context, tx catalogdb.Tx, order string, w Window) (bool, error) {
	jobs, err := tx.JobsOfOrder(ctx, order)
	if err != nil {
		return false, err
	}
	for _, j := range jobs {
		if j.Window.Equal(w.TimeWindow) {
			return true, nil
		}
	}
	return false, nil
}

// workItem is a product class to be generated in a job.
type workItem struct {
	class domain.ProductClass

	// the class is requested by the order (true), or required by another step (false).
	requested bool
}

// builder builds a job for a window.
type builder struct {
	tx         catalogdb.Tx
	engine     *query.Engine
	logger     *log.Logger
	order      domain.ProcessingOrder
	facility   string
	window     Window
	processors []domain.ConfiguredProcessor

	products []domain.Product
	steps    []domain.JobStep
	visited  map[string]struct{}
	queried  map[string]struct{}

	// count of products created, including ones in progress.
	created int
}

func (d *Decomposer) newBuilder(
	ctx context.Context, tx catalogdb.Tx, order domain.ProcessingOrder, facility string, w Window,
) (*builder, error) {
	processors, err := tx.ConfiguredProcessors(ctx, order.Mission)
	if err != nil {
		return nil, err
	}
	return &builder{
		tx:         tx,
		engine:     d.engine.On(tx),
		logger:     d.logger,
		order:      order,
		facility:   facility,
		window:     w,
		processors: processors,
		visited:    map[string]struct{}{},
		queried:    map[string]struct{}{},
	}, nil
}

// build makes a job with steps for requested classes and the classes they require.
//
// Requested classes are processed first, and then required classes are processed in first-in first-out order.
// Each class is processed once in a job.
func (b *builder) build(ctx context.Context) (domain.Job, []domain.Product, error) {
	worklist := []workItem{}
	for _, id := range b.order.RequestedClasses {
		class, err := b.tx.ProductClass(ctx, id)
		if err != nil {
			return domain.Job{}, nil, err
		}
		root, err := b.rootOf(ctx, class)
		if err != nil {
			return domain.Job{}, nil, err
		}
		if b.order.IsInputClass(root.Id) || b.order.IsInputClass(class.Id) {
			continue
		}
		worklist = append(worklist, workItem{class: root, requested: true})
	}

	for len(worklist) != 0 {
		item := worklist[0]
		worklist = worklist[1:]

		key := item.class.Id + "@" + b.window.Key()
		if _, ok := b.visited[key]; ok {
			continue
		}
		b.visited[key] = struct{}{}

		required, err := b.expand(ctx, item)
		if err != nil {
			return domain.Job{}, nil, err
		}
		worklist = append(worklist, required...)
	}

	if len(b.steps) == 0 {
		return domain.Job{}, nil, fmt.Errorf("no job steps are planned")
	}

	job := domain.Job{
		Order:    b.order.Id,
		Window:   b.window.TimeWindow,
		State:    domain.JobPlanned,
		Facility: b.facility,
		Orbit:    b.window.Orbit,
		Steps:    b.steps,
	}
	return job, b.products, nil
}

// rootOf finds the top-most class generated by a processor, from the class toward enclosing classes.
func (b *builder) rootOf(ctx context.Context, class domain.ProductClass) (domain.ProductClass, error) {
	root := class
	for cur := class; cur.EnclosingClass != ""; {
		enclosing, err := b.tx.ProductClass(ctx, cur.EnclosingClass)
		if err != nil {
			return domain.ProductClass{}, err
		}
		if enclosing.Produced() {
			root = enclosing
		}
		cur = enclosing
	}
	return root, nil
}

// expand makes a job step for the item, and returns classes to be generated for its inputs.
func (b *builder) expand(ctx context.Context, item workItem) ([]workItem, error) {
	class := item.class
	if !class.Produced() {
		if item.requested {
			return nil, fmt.Errorf("product class %s is not generated by any processors", class.ProductType)
		}
		b.logger.Printf("product class %s is not generated by any processors. inputs of the class are left unresolved", class.ProductType)
		return nil, nil
	}

	processor, ok := selectProcessor(class, b.processors, b.order)
	if !ok {
		if item.requested {
			return nil, fmt.Errorf("no configured processors are available for %s", class.ProductType)
		}
		b.logger.Printf("no configured processors are available for %s. inputs of the class are left unresolved", class.ProductType)
		return nil, nil
	}

	// requested products are claimed too, for concurrent plans which would share them.
	if err := b.tx.Claim(ctx, productClaim(class.Id, b.window)); err != nil {
		return nil, err
	}
	if !item.requested {
		planned, err := b.plannedElsewhere(ctx, class)
		if err != nil {
			return nil, err
		}
		if planned {
			return nil, nil
		}
	}

	stepId := domain.TemporaryId("step", len(b.steps))
	step := domain.JobStep{
		Id:        stepId,
		State:     domain.StepInitial,
		Mode:      b.order.ProcessingMode,
		Processor: processor.Identifier,
		Window:    b.window.TimeWindow,
		Queries:   []domain.ProductQuery{},

		InputProducts: []string{},
	}

	tree, err := b.createProducts(ctx, class, stepId, "")
	if err != nil {
		return nil, err
	}
	step.OutputProduct = tree[0].Id

	required := []workItem{}
	for _, p := range tree {
		rules, err := b.tx.SelectionRules(ctx, p.ProductClass)
		if err != nil {
			return nil, err
		}
		for _, r := range applicableRules(rules, b.order.ProcessingMode, processor.Identifier) {
			key := r.Id + "@" + b.window.Key()
			if _, ok := b.queried[key]; ok {
				continue
			}
			b.queried[key] = struct{}{}

			q, err := b.engine.Satisfy(ctx, domain.ProductQuery{
				Id:      domain.TemporaryId("query", len(b.queried)),
				JobStep: stepId,
				Rule:    r,
				Window:  b.window.TimeWindow,
			})
			if err != nil {
				return nil, err
			}
			step.Queries = append(step.Queries, q)
			if q.Satisfied {
				step.InputProducts = appendUnique(step.InputProducts, q.SatisfyingProducts...)
				continue
			}
			if b.order.IsInputClass(r.SourceClass) {
				continue
			}
			source, err := b.tx.ProductClass(ctx, r.SourceClass)
			if err != nil {
				return nil, err
			}
			root, err := b.rootOf(ctx, source)
			if err != nil {
				return nil, err
			}
			required = append(required, workItem{class: root})
		}
	}

	b.steps = append(b.steps, step)
	b.products = append(b.products, tree...)
	return required, nil
}

// plannedElsewhere reports whether a product of the class for the window is already planned, but not generated.
func (b *builder) plannedElsewhere(ctx context.Context, class domain.ProductClass) (bool, error) {
	w := b.window.TimeWindow
	found, err := b.tx.FindProducts(ctx, domain.ProductFind{
		ProductClass:   class.Id,
		Span:           &w,
		IncludePlanned: true,
	})
	if err != nil {
		return false, err
	}
	for _, p := range found {
		if !p.Generated() && p.JobStep != "" && p.Validity().Equal(w) {
			b.logger.Printf("product class %s for %s is planned by job step %s", class.ProductType, w, p.JobStep)
			return true, nil
		}
	}
	return false, nil
}

// createProducts makes a product of the class and its components, generated by the step.
//
// The first element of the result is the product of the class.
func (b *builder) createProducts(ctx context.Context, class domain.ProductClass, step string, enclosing string) ([]domain.Product, error) {
	product := domain.Product{
		Id:                domain.TemporaryId("product", b.created),
		ProductClass:      class.Id,
		Mode:              b.order.ProcessingMode,
		FileClass:         b.order.OutputFileClass,
		SensingStart:      b.window.Start,
		SensingStop:       b.window.Stop,
		Parameters:        b.order.Filters.Clone(),
		EnclosingProduct:  enclosing,
		ComponentProducts: []string{},
		JobStep:           step,
		Facility:          b.facility,
	}
	b.created++
	tree := []domain.Product{product}

	for _, cid := range class.ComponentClasses {
		component, err := b.tx.ProductClass(ctx, cid)
		if err != nil {
			return nil, err
		}
		if component.Produced() && component.ProcessorClass != class.ProcessorClass {
			continue
		}
		sub, err := b.createProducts(ctx, component, step, product.Id)
		if err != nil {
			return nil, err
		}
		tree[0].ComponentProducts = append(tree[0].ComponentProducts, sub[0].Id)
		tree = append(tree, sub...)
	}
	return tree, nil
}

// applicableRules picks rules for the mode and the processor.
//
// Rules for the mode are preferred. When there are no such rules, rules for any mode are used.
func applicableRules(rules []domain.SimpleSelectionRule, mode string, processor string) []domain.SimpleSelectionRule {
	specific, general := []domain.SimpleSelectionRule{}, []domain.SimpleSelectionRule{}
	for _, r := range rules {
		if !r.AppliesTo(processor) {
			continue
		}
		switch r.Mode {
		case "":
			general = append(general, r)
		case mode:
			specific = append(specific, r)
		}
	}
	if mode != "" && 0 < len(specific) {
		return specific
	}
	return general
}

func appendUnique(s []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, e := range s {
			if e == item {
				found = true
				break
			}
		}
		if !found {
			s = append(s, item)
		}
	}
	return s
}
