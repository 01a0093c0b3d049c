package planner_test

import (
	"testing"
	"time"

	"github.com/opst/prodplan/pkg/configs/planner"
)

func TestUnmarshal(t *testing.T) {
	t.Run("it loads config from yaml", func(t *testing.T) {
		result, err := planner.Unmarshal([]byte(`
port: 8080
database: postgres://prodplan@db.example.com/prodplan
facility: site-a
maxRetry: 5
metrics:
  port: 9090
loops:
  planning:
    policy: backlog
    debounce: 30s
    timeout: 5m
  readiness:
    policy: forever:1m
    debounce: 2m
    workers: 4
    batch: 100
`))
		if err != nil {
			t.Fatalf("failed to parse config: %v", err)
		}

		for name, testcase := range map[string]struct {
			actual   any
			expected any
		}{
			".port":                     {actual: result.Port(), expected: int32(8080)},
			".database":                 {actual: result.Database(), expected: "postgres://prodplan@db.example.com/prodplan"},
			".facility":                 {actual: result.Facility(), expected: "site-a"},
			".maxRetry":                 {actual: result.MaxRetry(), expected: 5},
			".metrics.port":             {actual: result.Metrics().Port(), expected: int32(9090)},
			".loops.planning.policy":    {actual: result.Loops().Planning().Policy(), expected: "backlog"},
			".loops.planning.debounce":  {actual: result.Loops().Planning().Debounce(), expected: 30 * time.Second},
			".loops.planning.timeout":   {actual: result.Loops().Planning().Timeout(), expected: 5 * time.Minute},
			".loops.readiness.policy":   {actual: result.Loops().Readiness().Policy(), expected: "forever:1m"},
			".loops.readiness.debounce": {actual: result.Loops().Readiness().Debounce(), expected: 2 * time.Minute},
			".loops.readiness.workers":  {actual: result.Loops().Readiness().Workers(), expected: 4},
			".loops.readiness.batch":    {actual: result.Loops().Readiness().Batch(), expected: 100},
		} {
			t.Run(name, func(t *testing.T) {
				if testcase.actual != testcase.expected {
					t.Errorf("mismatch. (actual, expected) = (%v, %v)", testcase.actual, testcase.expected)
				}
			})
		}
	})

	t.Run("it fills defaults", func(t *testing.T) {
		result, err := planner.Unmarshal([]byte(`
port: 8080
database: postgres://prodplan@db.example.com/prodplan
`))
		if err != nil {
			t.Fatalf("failed to parse config: %v", err)
		}

		for name, testcase := range map[string]struct {
			actual   any
			expected any
		}{
			".facility":                 {actual: result.Facility(), expected: ""},
			".maxRetry":                 {actual: result.MaxRetry(), expected: 3},
			".metrics.port":             {actual: result.Metrics().Port(), expected: int32(0)},
			".loops.planning.policy":    {actual: result.Loops().Planning().Policy(), expected: "forever:10s"},
			".loops.planning.debounce":  {actual: result.Loops().Planning().Debounce(), expected: time.Minute},
			".loops.planning.timeout":   {actual: result.Loops().Planning().Timeout(), expected: time.Duration(0)},
			".loops.readiness.workers":  {actual: result.Loops().Readiness().Workers(), expected: 1},
			".loops.readiness.batch":    {actual: result.Loops().Readiness().Batch(), expected: 0},
			".loops.readiness.debounce": {actual: result.Loops().Readiness().Debounce(), expected: time.Minute},
		} {
			t.Run(name, func(t *testing.T) {
				if testcase.actual != testcase.expected {
					t.Errorf("mismatch. (actual, expected) = (%v, %v)", testcase.actual, testcase.expected)
				}
			})
		}
	})

	for name, content := range map[string]string{
		"empty":            ``,
		"port is missing":  `database: postgres://db`,
		"database missing": `port: 8080`,
		"broken duration": `
port: 8080
database: postgres://db
loops:
  planning:
    debounce: a while
`,
		"negative workers": `
port: 8080
database: postgres://db
loops:
  readiness:
    workers: -1
`,
		"negative maxRetry": `
port: 8080
database: postgres://db
maxRetry: -1
`,
	} {
		t.Run("it rejects misconfiguration: "+name, func(t *testing.T) {
			if _, err := planner.Unmarshal([]byte(content)); err == nil {
				t.Error("expected error is not returned")
			}
		})
	}
}
