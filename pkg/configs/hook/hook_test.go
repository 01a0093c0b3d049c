package hook_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opst/prodplan/pkg/cmp"
	"github.com/opst/prodplan/pkg/configs/hook"
)

func TestLoad(t *testing.T) {
	urls := func(wh hook.WebHook) ([]string, []string) {
		before, after := []string{}, []string{}
		for _, u := range wh.Before {
			before = append(before, u.String())
		}
		for _, u := range wh.After {
			after = append(after, u.String())
		}
		return before, after
	}

	t.Run("it loads hooks", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hooks.yaml")
		if err := os.WriteFile(path, []byte(`
jobstep-ready:
  before:
    - http://hook.example.com/before
  after:
    - http://hook.example.com/after/1
    - https://hook.example.com/after/2
`), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg, err := hook.Load(path)
		if err != nil {
			t.Fatal(err)
		}

		before, after := urls(cfg.JobStepReady)
		if !cmp.SliceEq(before, []string{"http://hook.example.com/before"}) {
			t.Errorf("jobstep-ready.before: %v", before)
		}
		if !cmp.SliceEq(after, []string{"http://hook.example.com/after/1", "https://hook.example.com/after/2"}) {
			t.Errorf("jobstep-ready.after: %v", after)
		}

		before, after = urls(cfg.OrderPlanned)
		if len(before) != 0 || len(after) != 0 {
			t.Errorf("order-planned: (%v, %v)", before, after)
		}
	})

	t.Run("it rejects non-http URLs", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hooks.yaml")
		if err := os.WriteFile(path, []byte(`
order-planned:
  after:
    - ftp://hook.example.com/after
`), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := hook.Load(path); err == nil {
			t.Error("expected error is not returned")
		}
	})

	t.Run("it returns error when the file is missing", func(t *testing.T) {
		if _, err := hook.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("expected error is not returned")
		}
	})
}
