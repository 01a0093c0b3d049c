// Package rule compiles selection rule texts into domain.SelectionRule.
//
// A rule text is one or more simple rules separated by ";":
//
//	FOR <productType>[/key:value[,key:value]...] SELECT <policy>[ OR <policy>]... [MANDATORY|OPTIONAL] [MINCOVER(n)]
//
// where <policy> is one of
//
//	VALINTERSECT(T0, T1)
//	LATESTVALINTERSECT(T0, T1)
//	LATESTVALIDITY
//	LATESTVALIDITYCLOSEST(T0, T1)
//	LATESTVALCOVER(T0, T1)
//
// and delta times T0, T1 are written as "<digits>[ ][D|H|M|S]" (days, when unit is omitted).
//
// Keywords are case-insensitive.
package rule

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/opst/prodplan/pkg/domain"
	"github.com/opst/prodplan/pkg/utils"
)

// ClassResolver finds a product class by its product type.
//
// It should be scoped to the mission of the target class.
type ClassResolver func(productType string) (domain.ProductClass, bool)

// AmongClasses resolves product types among classes.
func AmongClasses(classes []domain.ProductClass) ClassResolver {
	return func(productType string) (domain.ProductClass, bool) {
		return utils.First(classes, func(c domain.ProductClass) bool { return c.ProductType == productType })
	}
}

// Compile parses a rule text for the target class.
//
// Simple rules for the same filtered source type are merged into one.
// The result keeps the order of first occurrences.
//
// Args
//
// - target: product class which requires inputs
//
// - text: rule text
//
// - mode: processing mode the rule is applied for. Empty means any mode.
//
// - classes: resolver of source product types
//
// Returns
//
// - domain.SelectionRule: compiled rule. TargetClass and SourceClass of simple rules are ids of product classes.
//
// - error: *domain.RuleSyntaxError when text is malformed or refers unknown product types.
func Compile(target domain.ProductClass, text string, mode string, classes ClassResolver) (domain.SelectionRule, error) {
	s := &scanner{text: text}
	result := domain.SelectionRule{TargetClass: target.Id}

	index := map[string]int{}
	for {
		simple, err := s.simpleRule(classes)
		if err != nil {
			return domain.SelectionRule{}, err
		}
		simple.TargetClass = target.Id
		simple.Mode = mode

		if i, ok := index[simple.FilteredSourceType]; ok {
			merged, err := Merge(result.Rules[i], simple)
			if err != nil {
				return domain.SelectionRule{}, s.fail(s.pos, "%v", err)
			}
			result.Rules[i] = merged
		} else {
			index[simple.FilteredSourceType] = len(result.Rules)
			result.Rules = append(result.Rules, simple)
		}

		s.skipSpace()
		if s.eof() {
			break
		}
		if s.peek() != ';' {
			return domain.SelectionRule{}, s.fail(s.pos, "unexpected text")
		}
		s.pos++
	}
	return result, nil
}

// Merge unites two simple rules for the same source.
//
// Policies of the same type are merged (see MergePolicy), others are appended.
// The merged rule is mandatory if either is mandatory, and requires the larger coverage.
func Merge(a, b domain.SimpleSelectionRule) (domain.SimpleSelectionRule, error) {
	if a.TargetClass != b.TargetClass ||
		a.FilteredSourceType != b.FilteredSourceType ||
		a.Mode != b.Mode {
		return domain.SimpleSelectionRule{}, fmt.Errorf(
			"cannot merge rules for different sources: %s, %s", a.FilteredSourceType, b.FilteredSourceType,
		)
	}
	merged := a
	merged.Policies = append([]domain.SimplePolicy{}, a.Policies...)
	for _, p := range b.Policies {
		var err error
		if merged.Policies, err = addPolicy(merged.Policies, p); err != nil {
			return domain.SimpleSelectionRule{}, err
		}
	}
	merged.Mandatory = a.Mandatory || b.Mandatory
	if merged.MinimumCoverage < b.MinimumCoverage {
		merged.MinimumCoverage = b.MinimumCoverage
	}
	return merged, nil
}

// MergePolicy unites two policies of the same type.
//
// Delta times are merged with domain.DeltaTime.Merge.
// LatestValidityClosest policies can be merged only when they are equal,
// since the middle of windows would be moved otherwise.
func MergePolicy(a, b domain.SimplePolicy) (domain.SimplePolicy, error) {
	if a.Type != b.Type {
		return domain.SimplePolicy{}, fmt.Errorf("cannot merge different policies: %s, %s", a.Type, b.Type)
	}
	switch a.Type {
	case domain.LatestValidity:
		return a, nil
	case domain.LatestValidityClosest:
		if !a.Equal(b) {
			return domain.SimplePolicy{}, fmt.Errorf("cannot merge %s with different delta times: %s, %s", a.Type, a, b)
		}
		return a, nil
	}
	return domain.SimplePolicy{Type: a.Type, T0: a.T0.Merge(b.T0), T1: a.T1.Merge(b.T1)}, nil
}

func addPolicy(policies []domain.SimplePolicy, p domain.SimplePolicy) ([]domain.SimplePolicy, error) {
	for i := range policies {
		if policies[i].Type != p.Type {
			continue
		}
		merged, err := MergePolicy(policies[i], p)
		if err != nil {
			return nil, err
		}
		policies[i] = merged
		return policies, nil
	}
	return append(policies, p), nil
}

type scanner struct {
	text string
	pos  int
}

func (s *scanner) fail(offset int, format string, args ...any) error {
	return &domain.RuleSyntaxError{Rule: s.text, Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

func (s *scanner) eof() bool {
	return len(s.text) <= s.pos
}

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.text[s.pos]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isLetter(b byte) bool {
	return ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func (s *scanner) skipSpace() {
	for !s.eof() && isSpace(s.peek()) {
		s.pos++
	}
}

// word reads letters.
func (s *scanner) word() (string, int) {
	s.skipSpace()
	begin := s.pos
	for !s.eof() && isLetter(s.peek()) {
		s.pos++
	}
	return s.text[begin:s.pos], begin
}

// token reads until a space or ";".
func (s *scanner) token() (string, int) {
	s.skipSpace()
	begin := s.pos
	for !s.eof() && !isSpace(s.peek()) && s.peek() != ';' {
		s.pos++
	}
	return s.text[begin:s.pos], begin
}

// keyword reads a word if it is kw. When it is not, the scanner does not move.
func (s *scanner) keyword(kw string) bool {
	save := s.pos
	if w, _ := s.word(); strings.EqualFold(w, kw) {
		return true
	}
	s.pos = save
	return false
}

// enclosed reads "(...)" and returns its content.
func (s *scanner) enclosed() (string, int, error) {
	s.skipSpace()
	if s.peek() != '(' {
		return "", s.pos, s.fail(s.pos, `"(" is expected`)
	}
	begin := s.pos + 1
	end := strings.IndexAny(s.text[begin:], ");")
	if end < 0 || s.text[begin+end] != ')' {
		return "", s.pos, s.fail(s.pos, `")" is missing`)
	}
	s.pos = begin + end + 1
	return s.text[begin : begin+end], begin, nil
}

func (s *scanner) simpleRule(classes ClassResolver) (domain.SimpleSelectionRule, error) {
	s.skipSpace()
	if s.eof() || s.peek() == ';' {
		return domain.SimpleSelectionRule{}, s.fail(s.pos, "empty rule")
	}
	if !s.keyword("FOR") {
		return domain.SimpleSelectionRule{}, s.fail(s.pos, `"FOR" is expected`)
	}

	typ, at := s.token()
	if typ == "" || strings.EqualFold(typ, "SELECT") {
		return domain.SimpleSelectionRule{}, s.fail(at, "product type is expected")
	}
	productType, filters, err := filteredType(typ)
	if err != nil {
		return domain.SimpleSelectionRule{}, s.fail(at, "%v", err)
	}
	source, ok := classes(productType)
	if !ok {
		return domain.SimpleSelectionRule{}, s.fail(at, `unknown product type "%s"`, productType)
	}

	if !s.keyword("SELECT") {
		return domain.SimpleSelectionRule{}, s.fail(s.pos, `"SELECT" is expected`)
	}

	rule := domain.SimpleSelectionRule{
		SourceClass:        source.Id,
		FilteredSourceType: formatFilteredType(productType, filters),
		Filters:            filters,
		Mandatory:          true,
	}

	for {
		p, err := s.policy()
		if err != nil {
			return domain.SimpleSelectionRule{}, err
		}
		at := s.pos
		if rule.Policies, err = addPolicy(rule.Policies, p); err != nil {
			return domain.SimpleSelectionRule{}, s.fail(at, "%v", err)
		}
		if !s.keyword("OR") {
			break
		}
	}

	modeSeen, coverSeen := false, false
	for {
		s.skipSpace()
		if s.eof() || s.peek() == ';' {
			break
		}
		w, at := s.word()
		switch strings.ToUpper(w) {
		case "MANDATORY", "OPTIONAL":
			if modeSeen {
				return domain.SimpleSelectionRule{}, s.fail(at, "MANDATORY or OPTIONAL is written twice")
			}
			if coverSeen {
				return domain.SimpleSelectionRule{}, s.fail(at, "MANDATORY or OPTIONAL should precede MINCOVER")
			}
			modeSeen = true
			rule.Mandatory = strings.EqualFold(w, "MANDATORY")
		case "MINCOVER":
			if coverSeen {
				return domain.SimpleSelectionRule{}, s.fail(at, "MINCOVER is written twice")
			}
			coverSeen = true
			arg, argAt, err := s.enclosed()
			if err != nil {
				return domain.SimpleSelectionRule{}, err
			}
			n, err := strconv.Atoi(strings.TrimSpace(arg))
			if err != nil || n < 0 || 100 < n {
				return domain.SimpleSelectionRule{}, s.fail(argAt, "MINCOVER should be an integer in 0..100: %s", arg)
			}
			rule.MinimumCoverage = n
		default:
			return domain.SimpleSelectionRule{}, s.fail(at, "unexpected text")
		}
	}

	return rule, nil
}

func (s *scanner) policy() (domain.SimplePolicy, error) {
	name, at := s.word()
	if name == "" {
		return domain.SimplePolicy{}, s.fail(at, "policy is expected")
	}
	pt, err := domain.AsPolicyType(name)
	if err != nil {
		return domain.SimplePolicy{}, s.fail(at, "unknown policy: %s", name)
	}

	if !pt.HasDeltaTimes() {
		s.skipSpace()
		if s.peek() == '(' {
			return domain.SimplePolicy{}, s.fail(s.pos, "%s takes no arguments", pt)
		}
		return domain.SimplePolicy{Type: pt}, nil
	}

	args, argAt, err := s.enclosed()
	if err != nil {
		return domain.SimplePolicy{}, err
	}
	t0, t1, ok := strings.Cut(args, ",")
	if !ok || strings.Contains(t1, ",") {
		return domain.SimplePolicy{}, s.fail(argAt, "%s takes 2 delta times: (%s)", pt, args)
	}
	d0, err := ParseDeltaTime(t0)
	if err != nil {
		return domain.SimplePolicy{}, s.fail(argAt, "%v", err)
	}
	d1, err := ParseDeltaTime(t1)
	if err != nil {
		return domain.SimplePolicy{}, s.fail(argAt+len(t0)+1, "%v", err)
	}
	return domain.SimplePolicy{Type: pt, T0: d0, T1: d1}, nil
}

var deltaPattern = regexp.MustCompile(`^(\d+)\s*([DHMS])?$`)

// ParseDeltaTime reads "<digits>[ ][D|H|M|S]". Unit is days when omitted.
func ParseDeltaTime(s string) (domain.DeltaTime, error) {
	m := deltaPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return domain.DeltaTime{}, fmt.Errorf("malformed delta time: %s", s)
	}
	d, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return domain.DeltaTime{}, fmt.Errorf("delta time out of range: %s", s)
	}
	unit := domain.Days
	switch m[2] {
	case "H":
		unit = domain.Hours
	case "M":
		unit = domain.Minutes
	case "S":
		unit = domain.Seconds
	}
	if math.MaxInt64/int64(unit.Duration()) < d {
		return domain.DeltaTime{}, fmt.Errorf("delta time out of range: %s", s)
	}
	return domain.Delta(d, unit), nil
}

// filteredType splits "TYPE/k:v,k:v".
func filteredType(token string) (string, domain.Parameters, error) {
	productType, conditions, hasFilter := strings.Cut(token, "/")
	if productType == "" {
		return "", nil, fmt.Errorf("product type is empty")
	}
	if !hasFilter {
		return productType, nil, nil
	}
	if strings.Contains(conditions, "/") {
		return "", nil, fmt.Errorf(`"/" appears more than once: %s`, token)
	}
	if conditions == "" {
		return "", nil, fmt.Errorf("filter conditions are empty: %s", token)
	}

	filters := domain.Parameters{}
	for _, cond := range strings.Split(conditions, ",") {
		k, v, ok := strings.Cut(cond, ":")
		if !ok || k == "" || v == "" || strings.Contains(v, ":") {
			return "", nil, fmt.Errorf(`filter condition should be "key:value": "%s"`, cond)
		}
		if prev, ok := filters[k]; ok && prev.Value != v {
			return "", nil, fmt.Errorf(`filter "%s" has conflicting values: %s, %s`, k, prev.Value, v)
		}
		filters[k] = domain.StringParam(v)
	}
	return productType, filters, nil
}

// formatFilteredType is the canonical form of product type with filters. Filters are sorted by key.
func formatFilteredType(productType string, filters domain.Parameters) string {
	if len(filters) == 0 {
		return productType
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	conds := make([]string, 0, len(keys))
	for _, k := range keys {
		conds = append(conds, k+":"+filters[k].Value)
	}
	return productType + "/" + strings.Join(conds, ",")
}
