package io

import (
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestCreateAll(t *testing.T) {
	type when struct {
		name string
		fmod fs.FileMode
		dmod fs.FileMode
	}
	type then struct {
		// directories created, relative to root
		dirs []string
	}
	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			umask := syscall.Umask(0)
			defer syscall.Umask(umask)

			root := t.TempDir()
			f, err := CreateAll(filepath.Join(root, when.name), when.fmod, when.dmod)
			if err != nil {
				t.Fatalf("unexpected error: %+v", err)
			}
			f.Close()

			for _, d := range then.dirs {
				s, err := os.Stat(filepath.Join(root, d))
				if err != nil || !s.IsDir() {
					t.Fatalf("%s is not a directory: (%v, %v)", d, s, err)
				}
				if s.Mode().Perm() != when.dmod {
					t.Errorf("%s: mode %s, expected %s", d, s.Mode().Perm(), when.dmod)
				}
			}
			s, err := os.Stat(filepath.Join(root, when.name))
			if err != nil || !s.Mode().IsRegular() {
				t.Fatalf("%s is not a file: (%v, %v)", when.name, s, err)
			}
			if s.Mode().Perm() != when.fmod {
				t.Errorf("%s: mode %s, expected %s", when.name, s.Mode().Perm(), when.fmod)
			}
		}
	}

	t.Run("parent directories are created", theory(
		when{name: filepath.Join("1", "sql", "10_catalog.sql"), fmod: 0600, dmod: 0705},
		then{dirs: []string{"1", filepath.Join("1", "sql")}},
	))
	t.Run("a file directly under the root", theory(
		when{name: "00_schema_version.sql", fmod: 0644, dmod: 0700},
		then{},
	))

	t.Run("existing files are truncated", func(t *testing.T) {
		name := filepath.Join(t.TempDir(), "a.sql")
		if err := os.WriteFile(name, []byte("old content"), 0644); err != nil {
			t.Fatal(err)
		}
		f, err := CreateAll(name, 0644, 0755)
		if err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}
		f.Close()
		if content, _ := os.ReadFile(name); len(content) != 0 {
			t.Errorf("not truncated: %q", content)
		}
	})
}

func TestDirCopy(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "copied")

	files := map[string]string{
		filepath.Join("1", "001.sql"): "create table a();",
		filepath.Join("1", "002.sql"): "create table b();",
		filepath.Join("2", "001.sql"): "create table c();",
	}
	for name, content := range files {
		f, err := CreateAll(filepath.Join(src, name), 0644, 0755)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.WriteString(content); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}

	if err := DirCopy(src, dest); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}

	for name, content := range files {
		actual, err := os.ReadFile(filepath.Join(dest, name))
		if err != nil {
			t.Fatalf("%s is not copied: %s", name, err)
		}
		if string(actual) != content {
			t.Errorf("%s: actual %q, expected %q", name, actual, content)
		}
	}
}
