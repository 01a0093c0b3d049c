package memory

import (
	"context"
	"sort"
	"strconv"

	"github.com/opst/prodplan/pkg/domain"
	kcatalog "github.com/opst/prodplan/pkg/domain/catalog"
	catalogdb "github.com/opst/prodplan/pkg/domain/catalog/db"
	"github.com/opst/prodplan/pkg/domain/rule"
)

// reader reads a state. It does not lock.
type reader struct {
	st *state
}

var _ catalogdb.Reader = reader{}

func productMatches(p domain.Product, q domain.ProductFind) bool {
	if p.ProductClass != q.ProductClass {
		return false
	}
	if q.Mode != "" && p.Mode != q.Mode {
		return false
	}
	if !q.IncludePlanned && !p.Generated() {
		return false
	}
	if q.Span != nil && (p.SensingStart.After(q.Span.Stop) || p.SensingStop.Before(q.Span.Start)) {
		return false
	}
	if q.StartNotAfter != nil && p.SensingStart.After(*q.StartNotAfter) {
		return false
	}
	return p.Parameters.Match(q.Filters)
}

func (r reader) FindProducts(_ context.Context, q domain.ProductFind) ([]domain.Product, error) {
	return sorted(r.st.products, func(p domain.Product) bool { return productMatches(p, q) }), nil
}

func (r reader) Product(_ context.Context, id string) (domain.Product, error) {
	rec, ok := r.st.products[id]
	if !ok {
		return domain.Product{}, &domain.Missing{Table: "product", Identity: id}
	}
	return rec.value, nil
}

// withComponents fills ComponentClasses of the class.
func (r reader) withComponents(class domain.ProductClass) domain.ProductClass {
	class.ComponentClasses = []string{}
	for _, c := range sorted(r.st.classes, func(c domain.ProductClass) bool { return c.EnclosingClass == class.Id }) {
		class.ComponentClasses = append(class.ComponentClasses, c.Id)
	}
	return class
}

func (r reader) productClass(id string) (domain.ProductClass, bool) {
	rec, ok := r.st.classes[id]
	if !ok {
		return domain.ProductClass{}, false
	}
	return r.withComponents(rec.value), true
}

func (r reader) ProductClass(_ context.Context, id string) (domain.ProductClass, error) {
	c, ok := r.productClass(id)
	if !ok {
		return domain.ProductClass{}, &domain.Missing{Table: "product class", Identity: id}
	}
	return c, nil
}

func (r reader) productClassByType(mission string, productType string) (domain.ProductClass, bool) {
	for _, rec := range r.st.classes {
		if rec.value.Mission == mission && rec.value.ProductType == productType {
			return r.withComponents(rec.value), true
		}
	}
	return domain.ProductClass{}, false
}

func (r reader) ProductClassByType(_ context.Context, mission string, productType string) (domain.ProductClass, error) {
	c, ok := r.productClassByType(mission, productType)
	if !ok {
		return domain.ProductClass{}, &domain.Missing{Table: "product class", Identity: mission + "/" + productType}
	}
	return c, nil
}

func (r reader) ProductClasses(_ context.Context, mission string) ([]domain.ProductClass, error) {
	ret := []domain.ProductClass{}
	for _, c := range sorted(r.st.classes, func(c domain.ProductClass) bool { return c.Mission == mission }) {
		ret = append(ret, r.withComponents(c))
	}
	return ret, nil
}

func (r reader) SelectionRules(_ context.Context, target string) ([]domain.SimpleSelectionRule, error) {
	return sorted(r.st.rules, func(sr domain.SimpleSelectionRule) bool { return sr.TargetClass == target }), nil
}

func (r reader) ConfiguredProcessors(_ context.Context, mission string) ([]domain.ConfiguredProcessor, error) {
	return sorted(r.st.processors, func(p domain.ConfiguredProcessor) bool { return p.Mission == mission }), nil
}

func (r reader) ProcessorClass(_ context.Context, mission string, name string) (domain.ProcessorClass, error) {
	rec, ok := r.st.processorClasses[mission+"/"+name]
	if !ok {
		return domain.ProcessorClass{}, &domain.Missing{Table: "processor class", Identity: mission + "/" + name}
	}
	pc := rec.value
	pc.ProductClasses = []string{}
	for _, c := range sorted(r.st.classes, func(c domain.ProductClass) bool {
		return c.Mission == mission && c.ProcessorClass == name
	}) {
		pc.ProductClasses = append(pc.ProductClasses, c.Id)
	}
	return pc, nil
}

func orbitKey(spacecraft string, number int) string {
	return spacecraft + "/" + strconv.Itoa(number)
}

func (r reader) Orbits(_ context.Context, spacecraft string, numbers []int) ([]domain.Orbit, error) {
	ret := make([]domain.Orbit, 0, len(numbers))
	for _, n := range numbers {
		rec, ok := r.st.orbits[orbitKey(spacecraft, n)]
		if !ok {
			return nil, &domain.Missing{Table: "orbit", Identity: orbitKey(spacecraft, n)}
		}
		ret = append(ret, rec.value)
	}
	sort.SliceStable(ret, func(i, j int) bool { return ret[i].Start.Before(ret[j].Start) })
	return ret, nil
}

func (r reader) job(id string) (domain.Job, bool) {
	rec, ok := r.st.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	job := rec.value.job
	job.Steps = make([]domain.JobStep, 0, len(rec.value.steps))
	for _, sid := range rec.value.steps {
		job.Steps = append(job.Steps, r.st.steps[sid].value)
	}
	return job, true
}

func (r reader) JobsOfOrder(_ context.Context, order string) ([]domain.Job, error) {
	ret := []domain.Job{}
	for _, jr := range sorted(r.st.jobs, func(jr jobRecord) bool { return jr.job.Order == order }) {
		job, _ := r.job(jr.job.Id)
		ret = append(ret, job)
	}
	return ret, nil
}

// writer is a catalog in a transaction.
type writer struct {
	reader
	newId func() string
}

var _ catalogdb.Tx = writer{}

func (w writer) SaveJob(_ context.Context, job *domain.Job, products []domain.Product) error {
	catalogdb.AssignIds(job, products, w.newId)

	for _, p := range products {
		if _, ok := w.st.classes[p.ProductClass]; !ok {
			return &domain.ValidationError{
				Subject:  "product " + p.Id,
				Problems: []string{"product class is not found: " + p.ProductClass},
			}
		}
		w.st.products[p.Id] = record[domain.Product]{value: p, seq: w.st.next()}
	}

	stepIds := make([]string, 0, len(job.Steps))
	for _, step := range job.Steps {
		w.st.steps[step.Id] = record[domain.JobStep]{value: step, seq: w.st.next()}
		stepIds = append(stepIds, step.Id)
	}
	bare := *job
	bare.Steps = nil
	w.st.jobs[job.Id] = record[jobRecord]{value: jobRecord{job: bare, steps: stepIds}, seq: w.st.next()}
	return nil
}

func (w writer) SaveProduct(_ context.Context, product *domain.Product) error {
	if _, ok := w.st.classes[product.ProductClass]; !ok {
		return &domain.ValidationError{
			Subject:  "product " + product.Id,
			Problems: []string{"product class is not found: " + product.ProductClass},
		}
	}
	if product.Id == "" {
		product.Id = w.newId()
	}
	rec, ok := w.st.products[product.Id]
	if !ok {
		rec.seq = w.st.next()
	}
	rec.value = *product
	w.st.products[product.Id] = rec
	return nil
}

// Claim always succeeds, since writes on the store do not run concurrently.
func (w writer) Claim(context.Context, string) error {
	return nil
}

// catalog is catalogdb.Interface on Store.
type catalog struct {
	store *Store
}

var _ catalogdb.Interface = &catalog{}

func (c *catalog) FindProducts(ctx context.Context, q domain.ProductFind) ([]domain.Product, error) {
	var ret []domain.Product
	err := c.store.read(func(st *state) (err error) {
		ret, err = reader{st: st}.FindProducts(ctx, q)
		return
	})
	return ret, err
}

func (c *catalog) Product(ctx context.Context, id string) (domain.Product, error) {
	var ret domain.Product
	err := c.store.read(func(st *state) (err error) {
		ret, err = reader{st: st}.Product(ctx, id)
		return
	})
	return ret, err
}

func (c *catalog) ProductClass(ctx context.Context, id string) (domain.ProductClass, error) {
	var ret domain.ProductClass
	err := c.store.read(func(st *state) (err error) {
		ret, err = reader{st: st}.ProductClass(ctx, id)
		return
	})
	return ret, err
}

func (c *catalog) ProductClassByType(ctx context.Context, mission string, productType string) (domain.ProductClass, error) {
	var ret domain.ProductClass
	err := c.store.read(func(st *state) (err error) {
		ret, err = reader{st: st}.ProductClassByType(ctx, mission, productType)
		return
	})
	return ret, err
}

func (c *catalog) ProductClasses(ctx context.Context, mission string) ([]domain.ProductClass, error) {
	var ret []domain.ProductClass
	err := c.store.read(func(st *state) (err error) {
		ret, err = reader{st: st}.ProductClasses(ctx, mission)
		return
	})
	return ret, err
}

func (c *catalog) SelectionRules(ctx context.Context, target string) ([]domain.SimpleSelectionRule, error) {
	var ret []domain.SimpleSelectionRule
	err := c.store.read(func(st *state) (err error) {
		ret, err = reader{st: st}.SelectionRules(ctx, target)
		return
	})
	return ret, err
}

func (c *catalog) ConfiguredProcessors(ctx context.Context, mission string) ([]domain.ConfiguredProcessor, error) {
	var ret []domain.ConfiguredProcessor
	err := c.store.read(func(st *state) (err error) {
		ret, err = reader{st: st}.ConfiguredProcessors(ctx, mission)
		return
	})
	return ret, err
}

func (c *catalog) ProcessorClass(ctx context.Context, mission string, name string) (domain.ProcessorClass, error) {
	var ret domain.ProcessorClass
	err := c.store.read(func(st *state) (err error) {
		ret, err = reader{st: st}.ProcessorClass(ctx, mission, name)
		return
	})
	return ret, err
}

func (c *catalog) Orbits(ctx context.Context, spacecraft string, numbers []int) ([]domain.Orbit, error) {
	var ret []domain.Orbit
	err := c.store.read(func(st *state) (err error) {
		ret, err = reader{st: st}.Orbits(ctx, spacecraft, numbers)
		return
	})
	return ret, err
}

func (c *catalog) JobsOfOrder(ctx context.Context, order string) ([]domain.Job, error) {
	var ret []domain.Job
	err := c.store.read(func(st *state) (err error) {
		ret, err = reader{st: st}.JobsOfOrder(ctx, order)
		return
	})
	return ret, err
}

func (c *catalog) Transact(ctx context.Context, fn func(context.Context, catalogdb.Tx) error) error {
	return c.store.write(func(st *state) error {
		return fn(ctx, writer{reader: reader{st: st}, newId: c.store.newId})
	})
}

func (c *catalog) RegisterMission(_ context.Context, mission domain.Mission) error {
	return c.store.write(func(st *state) error {
		if _, ok := st.missions[mission.Code]; ok {
			return &conflict{what: "mission " + mission.Code}
		}
		st.missions[mission.Code] = record[domain.Mission]{value: mission, seq: st.next()}
		return nil
	})
}

func (c *catalog) RegisterFacility(_ context.Context, facility domain.ProcessingFacility) error {
	return c.store.write(func(st *state) error {
		if _, ok := st.facilities[facility.Name]; ok {
			return &conflict{what: "facility " + facility.Name}
		}
		st.facilities[facility.Name] = record[domain.ProcessingFacility]{value: facility, seq: st.next()}
		return nil
	})
}

func (c *catalog) RegisterProductClass(_ context.Context, class *domain.ProductClass) error {
	return c.store.write(func(st *state) error {
		r := reader{st: st}
		if _, ok := st.missions[class.Mission]; !ok {
			return &domain.ValidationError{
				Subject:  "product class " + class.ProductType,
				Problems: []string{"mission is not found: " + class.Mission},
			}
		}
		if err := kcatalog.ValidateProductClass(*class, r.productClass); err != nil {
			return err
		}
		if existing, ok := r.productClassByType(class.Mission, class.ProductType); ok && existing.Id != class.Id {
			return &conflict{what: "product class " + class.Mission + "/" + class.ProductType}
		}

		rec, ok := st.classes[class.Id]
		if class.Id == "" || !ok {
			if class.Id == "" {
				class.Id = c.store.newId()
			}
			rec.seq = st.next()
		}
		stored := *class
		stored.ComponentClasses = nil
		rec.value = stored
		st.classes[class.Id] = rec
		*class = r.withComponents(stored)
		return nil
	})
}

func (c *catalog) RegisterProcessorClass(_ context.Context, pc domain.ProcessorClass) error {
	return c.store.write(func(st *state) error {
		key := pc.Mission + "/" + pc.Name
		if _, ok := st.processorClasses[key]; ok {
			return &conflict{what: "processor class " + key}
		}
		problems := []string{}
		if _, ok := st.missions[pc.Mission]; !ok {
			problems = append(problems, "mission is not found: "+pc.Mission)
		}
		for _, id := range pc.ProductClasses {
			rec, ok := st.classes[id]
			if !ok || rec.value.Mission != pc.Mission {
				problems = append(problems, "product class is not found in the mission: "+id)
				continue
			}
			rec.value.ProcessorClass = pc.Name
			st.classes[id] = rec
		}
		if len(problems) != 0 {
			return &domain.ValidationError{Subject: "processor class " + key, Problems: problems}
		}
		st.processorClasses[key] = record[domain.ProcessorClass]{
			value: domain.ProcessorClass{Mission: pc.Mission, Name: pc.Name},
			seq:   st.next(),
		}
		return nil
	})
}

func (c *catalog) RegisterConfiguredProcessor(_ context.Context, p domain.ConfiguredProcessor) error {
	if err := kcatalog.ValidateConfiguredProcessor(p); err != nil {
		return err
	}
	return c.store.write(func(st *state) error {
		if _, ok := st.processors[p.Identifier]; ok {
			return &conflict{what: "configured processor " + p.Identifier}
		}
		if _, ok := st.processorClasses[p.Mission+"/"+p.ProcessorClass]; !ok {
			return &domain.ValidationError{
				Subject:  "configured processor " + p.Identifier,
				Problems: []string{"processor class is not found: " + p.ProcessorClass},
			}
		}
		st.processors[p.Identifier] = record[domain.ConfiguredProcessor]{value: p, seq: st.next()}
		return nil
	})
}

func (c *catalog) RegisterSelectionRule(_ context.Context, target string, text string, mode string, processors []string) (domain.SelectionRule, error) {
	var registered domain.SelectionRule
	err := c.store.write(func(st *state) error {
		r := reader{st: st}
		targetClass, ok := r.productClass(target)
		if !ok {
			return &domain.Missing{Table: "product class", Identity: target}
		}
		for _, p := range processors {
			if _, ok := st.processors[p]; !ok {
				return &domain.ValidationError{
					Subject:  "selection rule",
					Problems: []string{"configured processor is not found: " + p},
				}
			}
		}

		compiled, err := rule.Compile(targetClass, text, mode, func(productType string) (domain.ProductClass, bool) {
			return r.productClassByType(targetClass.Mission, productType)
		})
		if err != nil {
			return err
		}

		existing, _ := r.SelectionRules(context.Background(), target)
		registered = domain.SelectionRule{TargetClass: target}
		for _, simple := range compiled.Rules {
			simple.ApplicableProcessors = append([]string{}, processors...)
			saved, err := mergeOrAdd(st, existing, simple, c.store.newId)
			if err != nil {
				return err
			}
			registered.Rules = append(registered.Rules, saved)
		}
		return nil
	})
	if err != nil {
		return domain.SelectionRule{}, err
	}
	return registered, nil
}

// mergeOrAdd merges the rule into an existing one for the same source, or adds it as a new rule.
func mergeOrAdd(st *state, existing []domain.SimpleSelectionRule, simple domain.SimpleSelectionRule, newId func() string) (domain.SimpleSelectionRule, error) {
	for _, e := range existing {
		if e.FilteredSourceType != simple.FilteredSourceType || e.Mode != simple.Mode {
			continue
		}
		if !sameSet(e.ApplicableProcessors, simple.ApplicableProcessors) {
			continue
		}
		merged, err := rule.Merge(e, simple)
		if err != nil {
			return domain.SimpleSelectionRule{}, &domain.RuleSyntaxError{Rule: rule.FormatSimple(simple), Reason: err.Error()}
		}
		rec := st.rules[e.Id]
		rec.value = merged
		st.rules[e.Id] = rec
		return merged, nil
	}
	simple.Id = newId()
	st.rules[simple.Id] = record[domain.SimpleSelectionRule]{value: simple, seq: st.next()}
	return simple, nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := map[string]struct{}{}
	for _, x := range a {
		set[x] = struct{}{}
	}
	for _, y := range b {
		if _, ok := set[y]; !ok {
			return false
		}
	}
	return true
}

func (c *catalog) RegisterOrbit(_ context.Context, orbit domain.Orbit) error {
	return c.store.write(func(st *state) error {
		key := orbitKey(orbit.Spacecraft, orbit.Number)
		if _, ok := st.orbits[key]; ok {
			return &conflict{what: "orbit " + key}
		}
		if orbit.Stop.Before(orbit.Start) {
			return &domain.ValidationError{Subject: "orbit " + key, Problems: []string{"stop is before start"}}
		}
		st.orbits[key] = record[domain.Orbit]{value: orbit, seq: st.next()}
		return nil
	})
}

func (c *catalog) RegisterProduct(ctx context.Context, product *domain.Product) error {
	return c.store.write(func(st *state) error {
		w := writer{reader: reader{st: st}, newId: c.store.newId}
		if product.Id != "" {
			if _, ok := st.products[product.Id]; ok {
				return &conflict{what: "product " + product.Id}
			}
		}
		if product.EnclosingProduct != "" {
			enclosing, ok := st.products[product.EnclosingProduct]
			if !ok {
				return &domain.ValidationError{
					Subject:  "product " + product.Id,
					Problems: []string{"enclosing product is not found: " + product.EnclosingProduct},
				}
			}
			if err := w.SaveProduct(ctx, product); err != nil {
				return err
			}
			enclosing.value.ComponentProducts = append(
				append([]string{}, enclosing.value.ComponentProducts...), product.Id,
			)
			st.products[enclosing.value.Id] = enclosing
			return nil
		}
		return w.SaveProduct(ctx, product)
	})
}

// conflict is ErrConflict with what is conflicted.
type conflict struct {
	what string
}

func (c *conflict) Error() string {
	return c.what + " is already registered"
}

func (c *conflict) Unwrap() error {
	return domain.ErrConflict
}
