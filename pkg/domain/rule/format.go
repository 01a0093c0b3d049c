package rule

import (
	"fmt"
	"strings"

	"github.com/opst/prodplan/pkg/domain"
)

// Format renders the canonical text of the rule.
//
// Compiling the text with the same target and mode gives an equal rule.
func Format(r domain.SelectionRule) string {
	simples := make([]string, 0, len(r.Rules))
	for _, s := range r.Rules {
		simples = append(simples, FormatSimple(s))
	}
	return strings.Join(simples, "; ")
}

// FormatSimple renders the canonical text of a simple rule.
func FormatSimple(r domain.SimpleSelectionRule) string {
	policies := make([]string, 0, len(r.Policies))
	for _, p := range r.Policies {
		policies = append(policies, p.String())
	}

	mandatory := "OPTIONAL"
	if r.Mandatory {
		mandatory = "MANDATORY"
	}

	text := fmt.Sprintf("FOR %s SELECT %s %s", r.FilteredSourceType, strings.Join(policies, " OR "), mandatory)
	if 0 < r.MinimumCoverage {
		text += fmt.Sprintf(" MINCOVER(%d)", r.MinimumCoverage)
	}
	return text
}
