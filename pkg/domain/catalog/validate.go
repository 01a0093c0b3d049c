// Package catalog has rules to be kept by entities registered to the product catalog.
package catalog

import (
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/opst/prodplan/pkg/domain"
)

// ValidateConfiguredProcessor checks fields of a configured processor.
//
// Returns
//
// - error: *domain.ValidationError listing all problems found.
func ValidateConfiguredProcessor(p domain.ConfiguredProcessor) error {
	problems := []string{}
	if p.Identifier == "" {
		problems = append(problems, "identifier is empty")
	}
	if p.Mission == "" {
		problems = append(problems, "mission is empty")
	}
	if p.ProcessorClass == "" {
		problems = append(problems, "processor class is empty")
	}
	if p.ProcessorVersion == "" {
		problems = append(problems, "processor version is empty")
	}
	if _, err := name.ParseReference(p.Image); err != nil {
		problems = append(problems, "image is not a valid reference: "+err.Error())
	}

	if len(problems) == 0 {
		return nil
	}
	return &domain.ValidationError{Subject: "configured processor " + p.Identifier, Problems: problems}
}

// ValidateProductClass checks fields of a product class and its enclosing relation.
//
// Args
//
// - domain.ProductClass: class to be registered
//
// - func(string) (domain.ProductClass, bool): lookup of registered classes by id
//
// Returns
//
// - error: *domain.ValidationError listing all problems found.
func ValidateProductClass(class domain.ProductClass, lookup func(id string) (domain.ProductClass, bool)) error {
	problems := []string{}
	if class.Mission == "" {
		problems = append(problems, "mission is empty")
	}
	if class.ProductType == "" {
		problems = append(problems, "product type is empty")
	}

	// walk up enclosing classes.
	seen := map[string]struct{}{}
	if class.Id != "" {
		seen[class.Id] = struct{}{}
	}
	for next := class.EnclosingClass; next != ""; {
		if _, ok := seen[next]; ok {
			problems = append(problems, "enclosing classes make a cycle")
			break
		}
		seen[next] = struct{}{}
		enclosing, ok := lookup(next)
		if !ok {
			problems = append(problems, "enclosing class is not found: "+next)
			break
		}
		if enclosing.Mission != class.Mission {
			problems = append(problems, "enclosing class is in another mission: "+next)
			break
		}
		next = enclosing.EnclosingClass
	}

	if len(problems) == 0 {
		return nil
	}
	return &domain.ValidationError{Subject: "product class " + class.ProductType, Problems: problems}
}
