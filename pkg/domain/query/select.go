package query

import (
	"sort"
	"time"

	"github.com/opst/prodplan/pkg/domain"
)

// SelectPolicy selects products from candidates by the policy for the window.
//
// Returned products are ordered by preference: newer generation time first, and larger id first for ties.
// ValIntersect may select many products, and other policies select at most one.
//
// Candidates should be products of the same class which are already filtered by conditions of the rule.
func SelectPolicy(policy domain.SimplePolicy, candidates []domain.Product, window domain.TimeWindow) []domain.Product {
	widened := window.Widen(policy.T0, policy.T1)

	switch policy.Type {
	case domain.ValIntersect:
		return prefer(filter(candidates, intersects(widened)))

	case domain.LatestValIntersect:
		return latestGenerated(filter(candidates, intersects(widened)))

	case domain.LatestValCover:
		return latestGenerated(filter(candidates, covers(widened)))

	case domain.LatestValidity:
		return latestValidity(candidates, window)

	case domain.LatestValidityClosest:
		return closest(candidates, widened)
	}
	return nil
}

// Coverage is the percentage of window covered by union of validities of products.
//
// A window of zero length is covered 100% when any product contains the instant, and 0% otherwise.
func Coverage(products []domain.Product, window domain.TimeWindow) float64 {
	if window.Duration() <= 0 {
		for _, p := range products {
			if !p.SensingStart.After(window.Start) && !p.SensingStop.Before(window.Start) {
				return 100
			}
		}
		return 0
	}

	clipped := make([]domain.TimeWindow, 0, len(products))
	for _, p := range products {
		if c, ok := p.Validity().Clip(window); ok {
			clipped = append(clipped, c)
		}
	}
	sort.Slice(clipped, func(i, j int) bool { return clipped[i].Start.Before(clipped[j].Start) })

	var covered time.Duration
	var reach time.Time
	for i, c := range clipped {
		if i == 0 || reach.Before(c.Start) {
			covered += c.Duration()
			reach = c.Stop
			continue
		}
		if reach.Before(c.Stop) {
			covered += c.Stop.Sub(reach)
			reach = c.Stop
		}
	}
	return float64(covered) * 100 / float64(window.Duration())
}

func filter(products []domain.Product, pred func(domain.Product) bool) []domain.Product {
	ret := []domain.Product{}
	for _, p := range products {
		if pred(p) {
			ret = append(ret, p)
		}
	}
	return ret
}

func intersects(w domain.TimeWindow) func(domain.Product) bool {
	return func(p domain.Product) bool {
		return p.SensingStart.Before(w.Stop) && p.SensingStop.After(w.Start)
	}
}

func covers(w domain.TimeWindow) func(domain.Product) bool {
	return func(p domain.Product) bool {
		return !p.SensingStart.After(w.Start) && !p.SensingStop.Before(w.Stop)
	}
}

// moreRecent reports whether a is preferred to b.
func moreRecent(a, b domain.Product) bool {
	switch {
	case a.GenerationTime == nil && b.GenerationTime == nil:
	case b.GenerationTime == nil:
		return true
	case a.GenerationTime == nil:
		return false
	case !a.GenerationTime.Equal(*b.GenerationTime):
		return a.GenerationTime.After(*b.GenerationTime)
	}
	return a.Id > b.Id
}

func prefer(products []domain.Product) []domain.Product {
	sort.SliceStable(products, func(i, j int) bool { return moreRecent(products[i], products[j]) })
	return products
}

func first(products []domain.Product) []domain.Product {
	if len(products) == 0 {
		return []domain.Product{}
	}
	return products[:1]
}

func latestGenerated(products []domain.Product) []domain.Product {
	return first(prefer(products))
}

// latestValidity selects the product starting at last, not after the end of window.
func latestValidity(candidates []domain.Product, window domain.TimeWindow) []domain.Product {
	var best *domain.Product
	for i := range candidates {
		p := &candidates[i]
		if p.SensingStart.After(window.Stop) {
			continue
		}
		if best == nil ||
			p.SensingStart.After(best.SensingStart) ||
			(p.SensingStart.Equal(best.SensingStart) && moreRecent(*p, *best)) {
			best = p
		}
	}
	if best == nil {
		return []domain.Product{}
	}
	return []domain.Product{*best}
}

// closest selects the product starting in the window whose start is the nearest to the middle of window.
//
// When two products are at the same distance, the earlier one is selected.
func closest(candidates []domain.Product, window domain.TimeWindow) []domain.Product {
	mid := window.Midpoint()
	distance := func(p domain.Product) time.Duration {
		d := p.SensingStart.Sub(mid)
		if d < 0 {
			return -d
		}
		return d
	}

	var best *domain.Product
	for i := range candidates {
		p := &candidates[i]
		if p.SensingStart.Before(window.Start) || p.SensingStart.After(window.Stop) {
			continue
		}
		if best == nil {
			best = p
			continue
		}
		dp, db := distance(*p), distance(*best)
		switch {
		case dp < db:
			best = p
		case dp > db:
		case p.SensingStart.Before(best.SensingStart):
			best = p
		case p.SensingStart.Equal(best.SensingStart) && moreRecent(*p, *best):
			best = p
		}
	}
	if best == nil {
		return []domain.Product{}
	}
	return []domain.Product{*best}
}
