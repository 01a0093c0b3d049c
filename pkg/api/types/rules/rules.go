package rules

import (
	"github.com/opst/prodplan/pkg/domain"
	"github.com/opst/prodplan/pkg/domain/rule"
	"github.com/opst/prodplan/pkg/utils"
)

// Request is a selection rule text for a target product class.
type Request struct {
	// id of the target product class
	Target string `json:"target"`

	// processing mode. Empty means any mode.
	Mode string `json:"mode,omitempty"`

	Rule string `json:"rule"`

	// identifiers of configured processors the rule is applied for. Empty means all.
	Processors []string `json:"processors,omitempty"`
}

type SimpleRule struct {
	Id              string   `json:"id,omitempty"`
	Source          string   `json:"source"`
	Mode            string   `json:"mode,omitempty"`
	Mandatory       bool     `json:"mandatory"`
	MinimumCoverage int      `json:"minimumCoverage,omitempty"`
	Policies        []string `json:"policies"`
	Processors      []string `json:"processors,omitempty"`

	// canonical text of this simple rule
	Text string `json:"text"`
}

// Rule is a compiled selection rule.
type Rule struct {
	Target string       `json:"target"`
	Text   string       `json:"text"`
	Rules  []SimpleRule `json:"rules"`
}

func Compose(r domain.SelectionRule) Rule {
	simples := make([]SimpleRule, 0, len(r.Rules))
	for _, s := range r.Rules {
		simples = append(simples, SimpleRule{
			Id:              s.Id,
			Source:          s.FilteredSourceType,
			Mode:            s.Mode,
			Mandatory:       s.Mandatory,
			MinimumCoverage: s.MinimumCoverage,
			Policies:        utils.Map(s.Policies, domain.SimplePolicy.String),
			Processors:      s.ApplicableProcessors,
			Text:            rule.FormatSimple(s),
		})
	}
	return Rule{Target: r.TargetClass, Text: rule.Format(r), Rules: simples}
}
