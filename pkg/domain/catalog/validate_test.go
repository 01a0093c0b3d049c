package catalog_test

import (
	"errors"
	"testing"

	"github.com/opst/prodplan/pkg/domain"
	"github.com/opst/prodplan/pkg/domain/catalog"
)

func TestValidateConfiguredProcessor(t *testing.T) {
	valid := domain.ConfiguredProcessor{
		Identifier:           "PTML2 1.0.0 2024-01",
		Mission:              "PTM",
		ProcessorClass:       "PTML2",
		ProcessorVersion:     "1.0.0",
		ConfigurationVersion: "2024-01",
		Image:                "registry.invalid/ptm/l2:1.0.0",
		Enabled:              true,
	}

	t.Run("valid processor passes", func(t *testing.T) {
		if err := catalog.ValidateConfiguredProcessor(valid); err != nil {
			t.Errorf("unexpected error: %+v", err)
		}
	})

	t.Run("malformed image is reported", func(t *testing.T) {
		p := valid
		p.Image = "registry.invalid/PTM/L2:1.0.0:latest"
		err := catalog.ValidateConfiguredProcessor(p)
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("unexpected error: %+v", err)
		}
		if len(verr.Problems) != 1 {
			t.Errorf("problems: %v", verr.Problems)
		}
	})

	t.Run("all problems are reported", func(t *testing.T) {
		err := catalog.ValidateConfiguredProcessor(domain.ConfiguredProcessor{})
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("unexpected error: %+v", err)
		}
		if len(verr.Problems) != 5 {
			t.Errorf("problems: %v", verr.Problems)
		}
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("error is not ErrValidation")
		}
	})
}

func TestValidateProductClass(t *testing.T) {
	registered := map[string]domain.ProductClass{
		"top":    {Id: "top", Mission: "PTM", ProductType: "TOP"},
		"middle": {Id: "middle", Mission: "PTM", ProductType: "MIDDLE", EnclosingClass: "top"},
		"other":  {Id: "other", Mission: "XYZ", ProductType: "OTHER"},
	}
	lookup := func(id string) (domain.ProductClass, bool) {
		c, ok := registered[id]
		return c, ok
	}

	for name, testcase := range map[string]struct {
		class domain.ProductClass
		valid bool
	}{
		"new class under middle": {
			class: domain.ProductClass{Mission: "PTM", ProductType: "LEAF", EnclosingClass: "middle"}, valid: true,
		},
		"top is moved under middle": {
			class: domain.ProductClass{Id: "top", Mission: "PTM", ProductType: "TOP", EnclosingClass: "middle"}, valid: false,
		},
		"class encloses itself": {
			class: domain.ProductClass{Id: "self", Mission: "PTM", ProductType: "SELF", EnclosingClass: "self"}, valid: false,
		},
		"missing enclosing class": {
			class: domain.ProductClass{Mission: "PTM", ProductType: "LEAF", EnclosingClass: "nowhere"}, valid: false,
		},
		"enclosing class in another mission": {
			class: domain.ProductClass{Mission: "PTM", ProductType: "LEAF", EnclosingClass: "other"}, valid: false,
		},
		"empty product type": {
			class: domain.ProductClass{Mission: "PTM"}, valid: false,
		},
	} {
		t.Run(name, func(t *testing.T) {
			err := catalog.ValidateProductClass(testcase.class, lookup)
			if testcase.valid {
				if err != nil {
					t.Errorf("unexpected error: %+v", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("unexpected error: %+v", err)
			}
		})
	}
}
