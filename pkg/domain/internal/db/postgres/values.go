package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgtype"
	"github.com/opst/prodplan/pkg/domain"
	"github.com/opst/prodplan/pkg/domain/rule"
)

// Timestamptz is a nullable timestamp. nil is NULL.
func Timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Status: pgtype.Null}
	}
	return pgtype.Timestamptz{Time: *t, Status: pgtype.Present}
}

// TimeOf is the reverse of Timestamptz.
func TimeOf(ts pgtype.Timestamptz) *time.Time {
	if ts.Status != pgtype.Present {
		return nil
	}
	t := ts.Time
	return &t
}

// OptionalTime is a timestamp which is NULL for zero time.
func OptionalTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{Status: pgtype.Null}
	}
	return pgtype.Timestamptz{Time: t, Status: pgtype.Present}
}

// Text is a nullable text. Empty string is NULL.
func Text(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Status: pgtype.Null}
	}
	return pgtype.Text{String: s, Status: pgtype.Present}
}

// StringOf is the reverse of Text.
func StringOf(t pgtype.Text) string {
	if t.Status != pgtype.Present {
		return ""
	}
	return t.String
}

type parameterJSON struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ParametersJSON encodes parameters into jsonb.
func ParametersJSON(ps domain.Parameters) (pgtype.JSONB, error) {
	j := pgtype.JSONB{}
	if err := j.Set(parametersJSON(ps)); err != nil {
		return pgtype.JSONB{}, err
	}
	return j, nil
}

// ParametersOf decodes parameters from jsonb.
func ParametersOf(j pgtype.JSONB) (domain.Parameters, error) {
	m := map[string]parameterJSON{}
	if j.Status == pgtype.Present {
		if err := j.AssignTo(&m); err != nil {
			return nil, err
		}
	}
	return parametersOf(m), nil
}

type policyJSON struct {
	Type string `json:"type"`
	T0   string `json:"t0,omitempty"`
	T1   string `json:"t1,omitempty"`
}

// PoliciesJSON encodes policies into jsonb.
func PoliciesJSON(policies []domain.SimplePolicy) (pgtype.JSONB, error) {
	j := pgtype.JSONB{}
	if err := j.Set(policiesJSON(policies)); err != nil {
		return pgtype.JSONB{}, err
	}
	return j, nil
}

// PoliciesOf decodes policies from jsonb.
func PoliciesOf(j pgtype.JSONB) ([]domain.SimplePolicy, error) {
	rows := []policyJSON{}
	if j.Status == pgtype.Present {
		if err := j.AssignTo(&rows); err != nil {
			return nil, err
		}
	}
	return policiesOf(rows)
}

func policiesJSON(policies []domain.SimplePolicy) []policyJSON {
	rows := make([]policyJSON, 0, len(policies))
	for _, p := range policies {
		rows = append(rows, policyJSON{Type: string(p.Type), T0: p.T0.String(), T1: p.T1.String()})
	}
	return rows
}

func policiesOf(rows []policyJSON) ([]domain.SimplePolicy, error) {
	policies := make([]domain.SimplePolicy, 0, len(rows))
	for _, r := range rows {
		typ, err := domain.AsPolicyType(r.Type)
		if err != nil {
			return nil, err
		}
		p := domain.SimplePolicy{Type: typ}
		if r.T0 != "" {
			if p.T0, err = rule.ParseDeltaTime(r.T0); err != nil {
				return nil, err
			}
		}
		if r.T1 != "" {
			if p.T1, err = rule.ParseDeltaTime(r.T1); err != nil {
				return nil, err
			}
		}
		policies = append(policies, p)
	}
	return policies, nil
}

func parametersJSON(ps domain.Parameters) map[string]parameterJSON {
	m := map[string]parameterJSON{}
	for k, p := range ps {
		m[k] = parameterJSON{Type: string(p.Type), Value: p.Value}
	}
	return m
}

func parametersOf(m map[string]parameterJSON) domain.Parameters {
	ps := domain.Parameters{}
	for k, p := range m {
		typ, err := domain.AsParameterType(p.Type)
		if err != nil {
			typ = domain.StringParameter
		}
		ps[k] = domain.Parameter{Type: typ, Value: p.Value}
	}
	return ps
}

type ruleJSON struct {
	Id                   string                   `json:"id"`
	TargetClass          string                   `json:"targetClass"`
	SourceClass          string                   `json:"sourceClass"`
	FilteredSourceType   string                   `json:"filteredSourceType"`
	Mode                 string                   `json:"mode,omitempty"`
	Mandatory            bool                     `json:"mandatory"`
	MinimumCoverage      int                      `json:"minimumCoverage,omitempty"`
	Filters              map[string]parameterJSON `json:"filters,omitempty"`
	Policies             []policyJSON             `json:"policies"`
	ApplicableProcessors []string                 `json:"applicableProcessors,omitempty"`
}

// RuleJSON encodes a simple selection rule into jsonb, as a snapshot in product queries.
func RuleJSON(r domain.SimpleSelectionRule) (pgtype.JSONB, error) {
	row := ruleJSON{
		Id:                   r.Id,
		TargetClass:          r.TargetClass,
		SourceClass:          r.SourceClass,
		FilteredSourceType:   r.FilteredSourceType,
		Mode:                 r.Mode,
		Mandatory:            r.Mandatory,
		MinimumCoverage:      r.MinimumCoverage,
		Filters:              parametersJSON(r.Filters),
		Policies:             policiesJSON(r.Policies),
		ApplicableProcessors: r.ApplicableProcessors,
	}
	j := pgtype.JSONB{}
	if err := j.Set(row); err != nil {
		return pgtype.JSONB{}, err
	}
	return j, nil
}

// RuleOf decodes a simple selection rule from jsonb.
func RuleOf(j pgtype.JSONB) (domain.SimpleSelectionRule, error) {
	row := ruleJSON{}
	if j.Status != pgtype.Present {
		return domain.SimpleSelectionRule{}, fmt.Errorf("rule is null")
	}
	if err := j.AssignTo(&row); err != nil {
		return domain.SimpleSelectionRule{}, err
	}

	r := domain.SimpleSelectionRule{
		Id:                   row.Id,
		TargetClass:          row.TargetClass,
		SourceClass:          row.SourceClass,
		FilteredSourceType:   row.FilteredSourceType,
		Mode:                 row.Mode,
		Mandatory:            row.Mandatory,
		MinimumCoverage:      row.MinimumCoverage,
		ApplicableProcessors: row.ApplicableProcessors,
	}
	if len(row.Filters) != 0 {
		r.Filters = parametersOf(row.Filters)
	}
	policies, err := policiesOf(row.Policies)
	if err != nil {
		return domain.SimpleSelectionRule{}, err
	}
	r.Policies = policies
	return r, nil
}

type orbitRefJSON struct {
	Spacecraft string `json:"spacecraft"`
	Number     int    `json:"number"`
}

// OrbitsJSON encodes orbit references into jsonb.
func OrbitsJSON(orbits []domain.OrbitRef) (pgtype.JSONB, error) {
	rows := make([]orbitRefJSON, 0, len(orbits))
	for _, o := range orbits {
		rows = append(rows, orbitRefJSON{Spacecraft: o.Spacecraft, Number: o.Number})
	}
	j := pgtype.JSONB{}
	if err := j.Set(rows); err != nil {
		return pgtype.JSONB{}, err
	}
	return j, nil
}

// OrbitsOf decodes orbit references from jsonb.
func OrbitsOf(j pgtype.JSONB) ([]domain.OrbitRef, error) {
	rows := []orbitRefJSON{}
	if j.Status == pgtype.Present {
		if err := j.AssignTo(&rows); err != nil {
			return nil, err
		}
	}
	orbits := make([]domain.OrbitRef, 0, len(rows))
	for _, r := range rows {
		orbits = append(orbits, domain.OrbitRef{Spacecraft: r.Spacecraft, Number: r.Number})
	}
	return orbits, nil
}
