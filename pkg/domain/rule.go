package domain

import (
	"fmt"
	"strings"

	"github.com/opst/prodplan/pkg/cmp"
)

// PolicyType is a temporal matching algorithm of selection rules.
type PolicyType string

const (
	// any product intersecting the widened window.
	ValIntersect PolicyType = "ValIntersect"

	// the latest generated product intersecting the widened window.
	LatestValIntersect PolicyType = "LatestValIntersect"

	// the product with the latest sensing start.
	LatestValidity PolicyType = "LatestValidity"

	// the product whose sensing start is the closest to the middle of the widened window.
	LatestValidityClosest PolicyType = "LatestValidityClosest"

	// the latest generated product covering the widened window.
	LatestValCover PolicyType = "LatestValCover"
)

func (pt PolicyType) String() string {
	return string(pt)
}

// Keyword is the policy name in rule texts.
func (pt PolicyType) Keyword() string {
	return strings.ToUpper(string(pt))
}

// HasDeltaTimes reports whether the policy takes (T0, T1).
func (pt PolicyType) HasDeltaTimes() bool {
	return pt != LatestValidity
}

func PolicyTypes() []PolicyType {
	return []PolicyType{ValIntersect, LatestValIntersect, LatestValidity, LatestValidityClosest, LatestValCover}
}

// AsPolicyType reads a policy name case-insensitively.
func AsPolicyType(s string) (PolicyType, error) {
	for _, pt := range PolicyTypes() {
		if strings.EqualFold(s, string(pt)) {
			return pt, nil
		}
	}
	return "", fmt.Errorf(`"%s" is not a policy`, s)
}

// SimplePolicy is a policy with times widening requested windows.
type SimplePolicy struct {
	Type PolicyType

	// widening backward
	T0 DeltaTime

	// widening forward
	T1 DeltaTime
}

func (sp SimplePolicy) Equal(other SimplePolicy) bool {
	return sp.Type == other.Type && sp.T0.Equal(other.T0) && sp.T1.Equal(other.T1)
}

func (sp SimplePolicy) String() string {
	if !sp.Type.HasDeltaTimes() {
		return sp.Type.Keyword()
	}
	return fmt.Sprintf("%s(%s, %s)", sp.Type.Keyword(), sp.T0, sp.T1)
}

// SimpleSelectionRule is how to find inputs of the target class from one source class.
type SimpleSelectionRule struct {
	Id string

	// id of the product class which requires inputs
	TargetClass string

	// id of the product class of inputs
	SourceClass string

	// source product type with filter conditions, as written in the rule text (like "AUX/revision:1")
	FilteredSourceType string

	// processing mode this rule is applied for. Empty means any mode.
	Mode string

	Mandatory bool

	// percentage of requested window to be covered by products found. 0 means "no requirement".
	MinimumCoverage int

	Filters Parameters

	// alternatives. Tried in this order.
	Policies []SimplePolicy

	// identifiers of configured processors this rule is applied for. Empty means all processors.
	ApplicableProcessors []string
}

// AppliesTo reports whether this rule is applicable for the configured processor.
func (r SimpleSelectionRule) AppliesTo(processor string) bool {
	if len(r.ApplicableProcessors) == 0 {
		return true
	}
	for _, p := range r.ApplicableProcessors {
		if p == processor {
			return true
		}
	}
	return false
}

func (r SimpleSelectionRule) Equal(other SimpleSelectionRule) bool {
	return r.Id == other.Id &&
		r.TargetClass == other.TargetClass &&
		r.SourceClass == other.SourceClass &&
		r.FilteredSourceType == other.FilteredSourceType &&
		r.Mode == other.Mode &&
		r.Mandatory == other.Mandatory &&
		r.MinimumCoverage == other.MinimumCoverage &&
		cmp.MapEq(r.Filters, other.Filters) &&
		cmp.SliceEqWith(r.Policies, other.Policies, SimplePolicy.Equal) &&
		cmp.SliceContentEq(r.ApplicableProcessors, other.ApplicableProcessors)
}

// SelectionRule is a set of SimpleSelectionRules for one target class.
type SelectionRule struct {
	TargetClass string
	Rules       []SimpleSelectionRule
}

func (r SelectionRule) Equal(other SelectionRule) bool {
	return r.TargetClass == other.TargetClass &&
		cmp.SliceEqWith(r.Rules, other.Rules, SimpleSelectionRule.Equal)
}
