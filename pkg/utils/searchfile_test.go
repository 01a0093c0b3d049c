package utils_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opst/prodplan/pkg/utils"
)

func TestFindUpward(t *testing.T) {
	touch := func(t *testing.T, path string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	type when struct {
		files []string
		start string
	}
	theory := func(when when, then string) func(*testing.T) {
		return func(t *testing.T) {
			root := t.TempDir()
			for _, f := range when.files {
				touch(t, filepath.Join(root, f))
			}
			start := filepath.Join(root, when.start)
			if err := os.MkdirAll(start, 0755); err != nil {
				t.Fatal(err)
			}

			actual, err := utils.FindUpward(start, "go.mod")
			if err != nil {
				t.Fatalf("unexpected error: %+v", err)
			}
			if expected := filepath.Join(root, then); actual != expected {
				t.Errorf("unmatch path: actual %s, expected %s", actual, expected)
			}
		}
	}

	t.Run("in the starting directory", theory(
		when{files: []string{"go.mod"}, start: "."},
		"go.mod",
	))
	t.Run("some levels up", theory(
		when{files: []string{"go.mod"}, start: filepath.Join("schema", "postgres", "1")},
		"go.mod",
	))
	t.Run("the nearest one wins", theory(
		when{files: []string{"go.mod", filepath.Join("schema", "go.mod")}, start: filepath.Join("schema", "postgres")},
		filepath.Join("schema", "go.mod"),
	))
	t.Run("directories having the name are skipped", theory(
		when{files: []string{"go.mod", filepath.Join("schema", "go.mod", "x")}, start: "schema"},
		"go.mod",
	))

	t.Run("not found", func(t *testing.T) {
		_, err := utils.FindUpward(t.TempDir(), "no-such-file.prodplan")
		if !errors.Is(err, utils.ErrFileNotFound) {
			t.Errorf("expected ErrFileNotFound, but %+v", err)
		}
	})
}
