package rule_test

import (
	"errors"
	"testing"

	"github.com/opst/prodplan/pkg/domain"
	"github.com/opst/prodplan/pkg/domain/rule"
)

var (
	target = domain.ProductClass{Id: "class-l2", Mission: "PTM", ProductType: "L2", ProcessorClass: "PTML2"}
	l1b    = domain.ProductClass{Id: "class-l1b", Mission: "PTM", ProductType: "L1B", ProcessorClass: "PTML1B"}
	aux    = domain.ProductClass{Id: "class-aux", Mission: "PTM", ProductType: "AUX_CF"}
)

func resolver(classes ...domain.ProductClass) rule.ClassResolver {
	return func(productType string) (domain.ProductClass, bool) {
		for _, c := range classes {
			if c.ProductType == productType {
				return c, true
			}
		}
		return domain.ProductClass{}, false
	}
}

func TestCompile(t *testing.T) {
	theory := func(text string, expected domain.SelectionRule) func(*testing.T) {
		return func(t *testing.T) {
			actual, err := rule.Compile(target, text, "NRTI", resolver(l1b, aux))
			if err != nil {
				t.Fatalf("unexpected error: %+v", err)
			}
			if !actual.Equal(expected) {
				t.Errorf("unmatch:\n===actual===\n%+v\n===expected===\n%+v", actual, expected)
			}
		}
	}

	t.Run("a rule with one policy", theory(
		"FOR L1B SELECT ValIntersect(1H,1H)",
		domain.SelectionRule{
			TargetClass: target.Id,
			Rules: []domain.SimpleSelectionRule{
				{
					TargetClass:        target.Id,
					SourceClass:        l1b.Id,
					FilteredSourceType: "L1B",
					Mode:               "NRTI",
					Mandatory:          true,
					Policies: []domain.SimplePolicy{
						{
							Type: domain.ValIntersect,
							T0:   domain.Delta(1, domain.Hours),
							T1:   domain.Delta(1, domain.Hours),
						},
					},
				},
			},
		},
	))

	t.Run("keywords are case insensitive, and unit defaults to days", theory(
		"for L1B select latestvalcover(2, 30 m) optional mincover(70)",
		domain.SelectionRule{
			TargetClass: target.Id,
			Rules: []domain.SimpleSelectionRule{
				{
					TargetClass:        target.Id,
					SourceClass:        l1b.Id,
					FilteredSourceType: "L1B",
					Mode:               "NRTI",
					Mandatory:          false,
					MinimumCoverage:    70,
					Policies: []domain.SimplePolicy{
						{
							Type: domain.LatestValCover,
							T0:   domain.Delta(2, domain.Days),
							T1:   domain.Delta(30, domain.Minutes),
						},
					},
				},
			},
		},
	))

	t.Run("alternatives are kept in order, and the same policies are merged", theory(
		"FOR AUX_CF SELECT LatestValidityClosest(1 H, 1 H) OR LatestValidity OR ValIntersect(1 d, 0) OR ValIntersect(30 M, 2 D)",
		domain.SelectionRule{
			TargetClass: target.Id,
			Rules: []domain.SimpleSelectionRule{
				{
					TargetClass:        target.Id,
					SourceClass:        aux.Id,
					FilteredSourceType: "AUX_CF",
					Mode:               "NRTI",
					Mandatory:          true,
					Policies: []domain.SimplePolicy{
						{
							Type: domain.LatestValidityClosest,
							T0:   domain.Delta(1, domain.Hours),
							T1:   domain.Delta(1, domain.Hours),
						},
						{Type: domain.LatestValidity},
						{
							Type: domain.ValIntersect,
							T0:   domain.Delta(1440, domain.Minutes),
							T1:   domain.Delta(2, domain.Days),
						},
					},
				},
			},
		},
	))

	t.Run("filters are included to source type, and simple rules for the same source are merged", theory(
		"FOR L1B/revision:1,quality:nominal SELECT ValIntersect(0, 0) OPTIONAL MINCOVER(50); "+
			"FOR AUX_CF SELECT LatestValidity; "+
			"FOR L1B/quality:nominal,revision:1 SELECT ValIntersect(1 H, 0) OR LatestValIntersect(0, 0) MANDATORY MINCOVER(20)",
		domain.SelectionRule{
			TargetClass: target.Id,
			Rules: []domain.SimpleSelectionRule{
				{
					TargetClass:        target.Id,
					SourceClass:        l1b.Id,
					FilteredSourceType: "L1B/quality:nominal,revision:1",
					Mode:               "NRTI",
					Mandatory:          true,
					MinimumCoverage:    50,
					Filters: domain.Parameters{
						"revision": domain.StringParam("1"),
						"quality":  domain.StringParam("nominal"),
					},
					Policies: []domain.SimplePolicy{
						{
							Type: domain.ValIntersect,
							T0:   domain.Delta(1, domain.Hours),
							T1:   domain.Delta(0, domain.Days),
						},
						{
							Type: domain.LatestValIntersect,
							T0:   domain.Delta(0, domain.Days),
							T1:   domain.Delta(0, domain.Days),
						},
					},
				},
				{
					TargetClass:        target.Id,
					SourceClass:        aux.Id,
					FilteredSourceType: "AUX_CF",
					Mode:               "NRTI",
					Mandatory:          true,
					Policies:           []domain.SimplePolicy{{Type: domain.LatestValidity}},
				},
			},
		},
	))

	t.Run("surrounding spaces are ignored", theory(
		"  FOR L1B SELECT LatestValidity  ",
		domain.SelectionRule{
			TargetClass: target.Id,
			Rules: []domain.SimpleSelectionRule{
				{
					TargetClass:        target.Id,
					SourceClass:        l1b.Id,
					FilteredSourceType: "L1B",
					Mode:               "NRTI",
					Mandatory:          true,
					Policies:           []domain.SimplePolicy{{Type: domain.LatestValidity}},
				},
			},
		},
	))
}

func TestCompile_SyntaxError(t *testing.T) {
	theory := func(text string, offset int) func(*testing.T) {
		return func(t *testing.T) {
			_, err := rule.Compile(target, text, "", resolver(l1b, aux))
			if !errors.Is(err, domain.ErrRuleSyntax) {
				t.Fatalf("error is not ErrRuleSyntax: %+v", err)
			}
			var rse *domain.RuleSyntaxError
			if !errors.As(err, &rse) {
				t.Fatalf("error is not RuleSyntaxError: %+v", err)
			}
			if rse.Rule != text {
				t.Errorf("rule text: actual = %s, expected = %s", rse.Rule, text)
			}
			if 0 <= offset && rse.Offset != offset {
				t.Errorf("offset: actual = %d, expected = %d (%s)", rse.Offset, offset, rse.Reason)
			}
		}
	}

	for name, testcase := range map[string]struct {
		text   string
		offset int
	}{
		"empty text":                    {text: "", offset: 0},
		"empty simple rule":             {text: "FOR L1B SELECT LatestValidity;;", offset: 30},
		"trailing separator":            {text: "FOR L1B SELECT LatestValidity;", offset: 30},
		"missing FOR":                   {text: "L1B SELECT LatestValidity", offset: 0},
		"missing product type":          {text: "FOR SELECT LatestValidity", offset: 4},
		"unknown product type":          {text: "FOR L0 SELECT LatestValidity", offset: 4},
		"missing SELECT":                {text: "FOR L1B LatestValidity", offset: 7},
		"unknown policy":                {text: "FOR L1B SELECT Newest(1 H, 1 H)", offset: 15},
		"missing arguments":             {text: "FOR L1B SELECT ValIntersect", offset: 27},
		"arguments to validity":         {text: "FOR L1B SELECT LatestValidity(1 H, 1 H)", offset: 29},
		"one argument":                  {text: "FOR L1B SELECT ValIntersect(1 H)", offset: 28},
		"three arguments":               {text: "FOR L1B SELECT ValIntersect(1 H, 1 H, 1 H)", offset: 28},
		"bad unit":                      {text: "FOR L1B SELECT ValIntersect(1 W, 1 H)", offset: 28},
		"negative delta":                {text: "FOR L1B SELECT ValIntersect(-1 H, 1 H)", offset: 28},
		"overflowing delta":             {text: "FOR L1B SELECT ValIntersect(200000D, 0)", offset: 28},
		"overflowing second delta":      {text: "FOR L1B SELECT ValIntersect(0, 9223372037 S)", offset: 30},
		"unclosed parenthesis":          {text: "FOR L1B SELECT ValIntersect(1 H, 1 H", offset: 27},
		"two slashes":                   {text: "FOR L1B/a:1/b:2 SELECT LatestValidity", offset: 4},
		"empty filter":                  {text: "FOR L1B/ SELECT LatestValidity", offset: 4},
		"malformed filter":              {text: "FOR L1B/revision SELECT LatestValidity", offset: 4},
		"conflicting filter":            {text: "FOR L1B/a:1,a:2 SELECT LatestValidity", offset: 4},
		"mincover over 100":             {text: "FOR L1B SELECT LatestValidity MINCOVER(101)", offset: 39},
		"mincover not a number":         {text: "FOR L1B SELECT LatestValidity MINCOVER(x)", offset: 39},
		"mandatory twice":               {text: "FOR L1B SELECT LatestValidity MANDATORY OPTIONAL", offset: 40},
		"mandatory after mincover":      {text: "FOR L1B SELECT LatestValidity MINCOVER(1) OPTIONAL", offset: 42},
		"dangling OR":                   {text: "FOR L1B SELECT LatestValidity OR", offset: 32},
		"garbage after rule":            {text: "FOR L1B SELECT LatestValidity 42", offset: 30},
		"closest with different deltas": {text: "FOR L1B SELECT LatestValidityClosest(1 H, 1 H) OR LatestValidityClosest(2 H, 1 H)", offset: -1},
	} {
		t.Run(name, theory(testcase.text, testcase.offset))
	}
}

func TestCompile_IsDeterministic(t *testing.T) {
	text := "FOR L1B/b:2,a:1 SELECT ValIntersect(1 H, 1 H) OR LatestValCover(0, 0); FOR AUX_CF SELECT LatestValidity OPTIONAL"
	first, err := rule.Compile(target, text, "", resolver(l1b, aux))
	if err != nil {
		t.Fatal(err)
	}
	for range 10 {
		again, err := rule.Compile(target, text, "", resolver(l1b, aux))
		if err != nil {
			t.Fatal(err)
		}
		if !again.Equal(first) {
			t.Fatalf("compiled differently:\n%+v\n%+v", first, again)
		}
	}
}

func TestFormat(t *testing.T) {
	for name, text := range map[string]string{
		"single policy": "FOR L1B SELECT ValIntersect(1H,1H)",
		"full":          "for L1B/revision:1 select LatestValidityClosest(1 H, 1 H) or LatestValidity optional mincover(30); FOR AUX_CF SELECT LatestValCover(1, 1)",
	} {
		t.Run(name+": formatted text is compiled into the equal rule", func(t *testing.T) {
			compiled, err := rule.Compile(target, text, "OFFL", resolver(l1b, aux))
			if err != nil {
				t.Fatal(err)
			}
			canonical := rule.Format(compiled)
			recompiled, err := rule.Compile(target, canonical, "OFFL", resolver(l1b, aux))
			if err != nil {
				t.Fatalf("canonical text is not compiled: %s: %+v", canonical, err)
			}
			if !recompiled.Equal(compiled) {
				t.Errorf("unmatch:\n- text      : %s\n- canonical : %s", text, canonical)
			}
			if again := rule.Format(recompiled); again != canonical {
				t.Errorf("canonical text is not stable: %s, %s", canonical, again)
			}
		})
	}

	t.Run("canonical text", func(t *testing.T) {
		compiled, err := rule.Compile(
			target,
			"for L1B/revision:1 select LatestValidity or ValIntersect(1h, 2) mincover(30)",
			"", resolver(l1b, aux),
		)
		if err != nil {
			t.Fatal(err)
		}
		expected := "FOR L1B/revision:1 SELECT LATESTVALIDITY OR VALINTERSECT(1 H, 2 D) MANDATORY MINCOVER(30)"
		if actual := rule.Format(compiled); actual != expected {
			t.Errorf("actual = %s, expected = %s", actual, expected)
		}
	})
}
