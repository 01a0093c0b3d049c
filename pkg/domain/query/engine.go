// Package query evaluates selection rules against the product catalog.
package query

import (
	"context"
	"io"
	"log"

	"github.com/opst/prodplan/pkg/domain"
	catalogdb "github.com/opst/prodplan/pkg/domain/catalog/db"
)

// Result of evaluating a simple selection rule.
type Result struct {
	Satisfied bool

	// selected products. Empty when not satisfied, or satisfied by an optional rule without products.
	Products []domain.Product

	// the policy which selects Products. nil if no policy selects products.
	Policy *domain.SimplePolicy

	// coverage of the window by Products, in percentage.
	Coverage float64
}

// ProductIds returns ids of selected products.
func (r Result) ProductIds() []string {
	ids := make([]string, 0, len(r.Products))
	for _, p := range r.Products {
		ids = append(ids, p.Id)
	}
	return ids
}

type Engine struct {
	catalog catalogdb.Reader
	logger  *log.Logger
}

// New creates an Engine reading the catalog.
//
// When logger is nil, Engine logs nothing.
func New(catalog catalogdb.Reader, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{catalog: catalog, logger: logger}
}

// On returns an Engine reading another catalog, typically one in a transaction.
func (e *Engine) On(catalog catalogdb.Reader) *Engine {
	return &Engine{catalog: catalog, logger: e.logger}
}

// Evaluate finds products satisfying the rule for the window.
//
// Policies of the rule are tried in order, and the first policy
// which selects products (with enough coverage, when the rule requires) wins.
//
// Not finding products is not an error. It is reported as Result.Satisfied = false.
// Optional rules are always satisfied.
//
// Returns
//
// - Result
//
// - error: errors caused by reading catalog
func (e *Engine) Evaluate(ctx context.Context, rule domain.SimpleSelectionRule, window domain.TimeWindow) (Result, error) {
	candidates, err := e.catalog.FindProducts(ctx, candidatesOf(rule, window))
	if err != nil {
		return Result{}, err
	}

	bestCoverage := 0.0
	for i := range rule.Policies {
		policy := rule.Policies[i]
		selected := SelectPolicy(policy, candidates, window)
		if len(selected) == 0 {
			continue
		}
		coverage := Coverage(selected, window)
		if 0 < rule.MinimumCoverage && coverage < float64(rule.MinimumCoverage) {
			e.logger.Printf(
				"%s for %s: %d product(s) selected by %s, but coverage %.1f%% < %d%%",
				rule.FilteredSourceType, window, len(selected), policy, coverage, rule.MinimumCoverage,
			)
			if bestCoverage < coverage {
				bestCoverage = coverage
			}
			continue
		}
		return Result{Satisfied: true, Products: selected, Policy: &policy, Coverage: coverage}, nil
	}

	return Result{Satisfied: !rule.Mandatory, Products: []domain.Product{}, Coverage: bestCoverage}, nil
}

// Satisfy evaluates the query, and returns it updated.
//
// Satisfied queries are returned as they are, without evaluation.
func (e *Engine) Satisfy(ctx context.Context, q domain.ProductQuery) (domain.ProductQuery, error) {
	if q.Satisfied {
		return q, nil
	}
	result, err := e.Evaluate(ctx, q.Rule, q.Window)
	if err != nil {
		return q, err
	}
	if result.Satisfied {
		q.Satisfied = true
		q.SatisfyingProducts = result.ProductIds()
	}
	return q, nil
}

// candidatesOf builds a condition finding all products any of policies can select.
func candidatesOf(rule domain.SimpleSelectionRule, window domain.TimeWindow) domain.ProductFind {
	find := domain.ProductFind{
		ProductClass: rule.SourceClass,
		Filters:      rule.Filters,
	}

	var span *domain.TimeWindow
	unbounded := false
	for _, p := range rule.Policies {
		if !p.Type.HasDeltaTimes() {
			// LatestValidity looks back unboundedly.
			unbounded = true
			continue
		}
		w := window.Widen(p.T0, p.T1)
		if span == nil {
			span = &w
			continue
		}
		if w.Start.Before(span.Start) {
			span.Start = w.Start
		}
		if span.Stop.Before(w.Stop) {
			span.Stop = w.Stop
		}
	}

	if !unbounded {
		find.Span = span
		return find
	}
	notAfter := window.Stop
	if span != nil && notAfter.Before(span.Stop) {
		notAfter = span.Stop
	}
	find.StartNotAfter = &notAfter
	return find
}
