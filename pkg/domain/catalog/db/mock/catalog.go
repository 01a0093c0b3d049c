package mock

import (
	"context"
	"errors"

	"github.com/opst/prodplan/pkg/domain"
	catalogdb "github.com/opst/prodplan/pkg/domain/catalog/db"
	dbmock "github.com/opst/prodplan/pkg/domain/internal/db/mock"
)

// Catalog is a mock of catalogdb.Interface. It is also a catalogdb.Tx.
//
// Methods without Impl panic, except Transact which calls fn with the mock itself,
// and Claim which succeeds.
type Catalog struct {
	Impl struct {
		FindProducts         func(ctx context.Context, query domain.ProductFind) ([]domain.Product, error)
		Product              func(ctx context.Context, id string) (domain.Product, error)
		ProductClass         func(ctx context.Context, id string) (domain.ProductClass, error)
		ProductClassByType   func(ctx context.Context, mission string, productType string) (domain.ProductClass, error)
		ProductClasses       func(ctx context.Context, mission string) ([]domain.ProductClass, error)
		SelectionRules       func(ctx context.Context, targetClass string) ([]domain.SimpleSelectionRule, error)
		ConfiguredProcessors func(ctx context.Context, mission string) ([]domain.ConfiguredProcessor, error)
		ProcessorClass       func(ctx context.Context, mission string, name string) (domain.ProcessorClass, error)
		Orbits               func(ctx context.Context, spacecraft string, numbers []int) ([]domain.Orbit, error)
		JobsOfOrder          func(ctx context.Context, order string) ([]domain.Job, error)

		SaveJob     func(ctx context.Context, job *domain.Job, products []domain.Product) error
		SaveProduct func(ctx context.Context, product *domain.Product) error
		Claim       func(ctx context.Context, key string) error

		Transact                    func(ctx context.Context, fn func(context.Context, catalogdb.Tx) error) error
		RegisterMission             func(ctx context.Context, mission domain.Mission) error
		RegisterProductClass        func(ctx context.Context, class *domain.ProductClass) error
		RegisterProcessorClass      func(ctx context.Context, class domain.ProcessorClass) error
		RegisterConfiguredProcessor func(ctx context.Context, processor domain.ConfiguredProcessor) error
		RegisterSelectionRule       func(ctx context.Context, target string, text string, mode string, processors []string) (domain.SelectionRule, error)
		RegisterOrbit               func(ctx context.Context, orbit domain.Orbit) error
		RegisterFacility            func(ctx context.Context, facility domain.ProcessingFacility) error
		RegisterProduct             func(ctx context.Context, product *domain.Product) error
	}

	Calls struct {
		FindProducts   dbmock.CallLog[domain.ProductFind]
		SelectionRules dbmock.CallLog[string]
		SaveJob        dbmock.CallLog[struct {
			Job      domain.Job
			Products []domain.Product
		}]
		Claim                 dbmock.CallLog[string]
		Transact              dbmock.CallLog[struct{}]
		RegisterSelectionRule dbmock.CallLog[struct {
			Target     string
			Text       string
			Mode       string
			Processors []string
		}]
	}
}

func New() *Catalog {
	return &Catalog{}
}

var _ catalogdb.Interface = &Catalog{}
var _ catalogdb.Tx = &Catalog{}

func (m *Catalog) FindProducts(ctx context.Context, query domain.ProductFind) ([]domain.Product, error) {
	m.Calls.FindProducts = append(m.Calls.FindProducts, query)
	if m.Impl.FindProducts != nil {
		return m.Impl.FindProducts(ctx, query)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) Product(ctx context.Context, id string) (domain.Product, error) {
	if m.Impl.Product != nil {
		return m.Impl.Product(ctx, id)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) ProductClass(ctx context.Context, id string) (domain.ProductClass, error) {
	if m.Impl.ProductClass != nil {
		return m.Impl.ProductClass(ctx, id)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) ProductClassByType(ctx context.Context, mission string, productType string) (domain.ProductClass, error) {
	if m.Impl.ProductClassByType != nil {
		return m.Impl.ProductClassByType(ctx, mission, productType)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) ProductClasses(ctx context.Context, mission string) ([]domain.ProductClass, error) {
	if m.Impl.ProductClasses != nil {
		return m.Impl.ProductClasses(ctx, mission)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) SelectionRules(ctx context.Context, targetClass string) ([]domain.SimpleSelectionRule, error) {
	m.Calls.SelectionRules = append(m.Calls.SelectionRules, targetClass)
	if m.Impl.SelectionRules != nil {
		return m.Impl.SelectionRules(ctx, targetClass)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) ConfiguredProcessors(ctx context.Context, mission string) ([]domain.ConfiguredProcessor, error) {
	if m.Impl.ConfiguredProcessors != nil {
		return m.Impl.ConfiguredProcessors(ctx, mission)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) ProcessorClass(ctx context.Context, mission string, name string) (domain.ProcessorClass, error) {
	if m.Impl.ProcessorClass != nil {
		return m.Impl.ProcessorClass(ctx, mission, name)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) Orbits(ctx context.Context, spacecraft string, numbers []int) ([]domain.Orbit, error) {
	if m.Impl.Orbits != nil {
		return m.Impl.Orbits(ctx, spacecraft, numbers)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) JobsOfOrder(ctx context.Context, order string) ([]domain.Job, error) {
	if m.Impl.JobsOfOrder != nil {
		return m.Impl.JobsOfOrder(ctx, order)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) SaveJob(ctx context.Context, job *domain.Job, products []domain.Product) error {
	m.Calls.SaveJob = append(m.Calls.SaveJob, struct {
		Job      domain.Job
		Products []domain.Product
	}{Job: *job, Products: products})
	if m.Impl.SaveJob != nil {
		return m.Impl.SaveJob(ctx, job, products)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) SaveProduct(ctx context.Context, product *domain.Product) error {
	if m.Impl.SaveProduct != nil {
		return m.Impl.SaveProduct(ctx, product)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) Claim(ctx context.Context, key string) error {
	m.Calls.Claim = append(m.Calls.Claim, key)
	if m.Impl.Claim != nil {
		return m.Impl.Claim(ctx, key)
	}
	return nil
}

func (m *Catalog) Transact(ctx context.Context, fn func(context.Context, catalogdb.Tx) error) error {
	m.Calls.Transact = append(m.Calls.Transact, struct{}{})
	if m.Impl.Transact != nil {
		return m.Impl.Transact(ctx, fn)
	}
	return fn(ctx, m)
}

func (m *Catalog) RegisterMission(ctx context.Context, mission domain.Mission) error {
	if m.Impl.RegisterMission != nil {
		return m.Impl.RegisterMission(ctx, mission)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) RegisterProductClass(ctx context.Context, class *domain.ProductClass) error {
	if m.Impl.RegisterProductClass != nil {
		return m.Impl.RegisterProductClass(ctx, class)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) RegisterProcessorClass(ctx context.Context, class domain.ProcessorClass) error {
	if m.Impl.RegisterProcessorClass != nil {
		return m.Impl.RegisterProcessorClass(ctx, class)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) RegisterConfiguredProcessor(ctx context.Context, processor domain.ConfiguredProcessor) error {
	if m.Impl.RegisterConfiguredProcessor != nil {
		return m.Impl.RegisterConfiguredProcessor(ctx, processor)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) RegisterSelectionRule(ctx context.Context, target string, text string, mode string, processors []string) (domain.SelectionRule, error) {
	m.Calls.RegisterSelectionRule = append(m.Calls.RegisterSelectionRule, struct {
		Target     string
		Text       string
		Mode       string
		Processors []string
	}{Target: target, Text: text, Mode: mode, Processors: processors})
	if m.Impl.RegisterSelectionRule != nil {
		return m.Impl.RegisterSelectionRule(ctx, target, text, mode, processors)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) RegisterOrbit(ctx context.Context, orbit domain.Orbit) error {
	if m.Impl.RegisterOrbit != nil {
		return m.Impl.RegisterOrbit(ctx, orbit)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) RegisterFacility(ctx context.Context, facility domain.ProcessingFacility) error {
	if m.Impl.RegisterFacility != nil {
		return m.Impl.RegisterFacility(ctx, facility)
	}
	panic(errors.New("it should not be called"))
}

func (m *Catalog) RegisterProduct(ctx context.Context, product *domain.Product) error {
	if m.Impl.RegisterProduct != nil {
		return m.Impl.RegisterProduct(ctx, product)
	}
	panic(errors.New("it should not be called"))
}
