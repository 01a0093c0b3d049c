// Package postgres applies versioned SQL directories to the planner database.
//
// A schema repository is a directory which has subdirectories named by version numbers ("1", "2", ...).
// SQL files in a version directory are executed in lexical order of their paths.
package postgres

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	kpool "github.com/opst/prodplan/pkg/conn/db/postgres/pool"
	schemadb "github.com/opst/prodplan/pkg/domain/schema/db"
	xe "github.com/opst/prodplan/pkg/errors"
)

// key of advisory lock taken while upgrading.
const upgradeLock = 0x70726f64

type pgSchema struct {
	pool       kpool.Pool
	repository string
}

var _ schemadb.SchemaInterface = &pgSchema{}

// New creates a schema on the database.
//
// # Args
//
// - pool: connections to the database
//
// - repository: path to the schema repository directory
func New(pool kpool.Pool, repository string) schemadb.SchemaInterface {
	return &pgSchema{pool: pool, repository: repository}
}

type version struct {
	Number int
	Root   string
}

func (v version) apply(ctx context.Context, q kpool.Queryer) error {
	files := []string{}
	if err := filepath.WalkDir(v.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".sql") {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return err
	}
	slices.Sort(files)

	for _, f := range files {
		query, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, string(query)); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
	}
	return nil
}

func current(ctx context.Context, q kpool.Queryer) (int, error) {
	var v *int
	if err := q.QueryRow(ctx, `select max("version") from "schema_version"`).Scan(&v); err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UndefinedTable {
			return 0, nil
		}
		return -1, err
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}

func (s *pgSchema) Version(ctx context.Context) (int, error) {
	v, err := current(ctx, s.pool)
	if err != nil {
		return -1, xe.Wrap(err)
	}
	return v, nil
}

func (s *pgSchema) Pending(ctx context.Context) ([]int, error) {
	vs, err := s.versions()
	if err != nil {
		return nil, xe.Wrap(err)
	}
	applied, err := s.Version(ctx)
	if err != nil {
		return nil, err
	}
	ret := []int{}
	for _, v := range vs {
		if applied < v.Number {
			ret = append(ret, v.Number)
		}
	}
	return ret, nil
}

func (s *pgSchema) Upgrade(ctx context.Context) error {
	vs, err := s.versions()
	if err != nil {
		return xe.Wrap(err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `select pg_advisory_xact_lock($1)`, int64(upgradeLock)); err != nil {
		return xe.Wrap(err)
	}

	applied, err := current(ctx, tx)
	if err != nil {
		return xe.Wrap(err)
	}
	for _, v := range vs {
		if v.Number <= applied {
			continue
		}
		if err := v.apply(ctx, tx); err != nil {
			return xe.Wrap(fmt.Errorf("schema version %d: %w", v.Number, err))
		}
		if _, err := tx.Exec(ctx, `delete from "schema_version"`); err != nil {
			return xe.Wrap(err)
		}
		if _, err := tx.Exec(
			ctx, `insert into "schema_version" ("version") values ($1)`, v.Number,
		); err != nil {
			return xe.Wrap(err)
		}
	}
	return xe.Wrap(tx.Commit(ctx))
}

// ErrOutdated is the cause of contexts from Context when the database is older than the repository.
var ErrOutdated = errors.New("schema is outdated")

func (s *pgSchema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancelCause(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		cancel(err)
		return cctx, func() {}
	}
	if err := w.Add(s.repository); err != nil {
		w.Close()
		cancel(err)
		return cctx, func() {}
	}

	check := func() {
		pending, err := s.Pending(cctx)
		if err != nil {
			cancel(fmt.Errorf("failed to check schema: %w", err))
			return
		}
		if len(pending) != 0 {
			cancel(fmt.Errorf("%w: versions %v are not applied", ErrOutdated, pending))
		}
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(err)
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if filepath.Dir(ev.Name) != filepath.Clean(s.repository) {
					continue
				}
				check()
			}
		}
	}()

	check()
	return cctx, func() { cancel(nil) }
}

// versions lists version directories in the repository, in ascending order.
func (s *pgSchema) versions() ([]version, error) {
	entries, err := os.ReadDir(s.repository)
	if err != nil {
		return nil, err
	}

	ret := make([]version, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		ret = append(ret, version{Number: n, Root: filepath.Join(s.repository, e.Name())})
	}
	slices.SortFunc(ret, func(a, b version) int { return cmp.Compare(a.Number, b.Number) })
	return ret, nil
}

// Null is a schema without repository. It cannot be upgraded.
func Null() schemadb.SchemaInterface {
	return nullSchema{}
}

type nullSchema struct{}

func (nullSchema) Upgrade(context.Context) error {
	return errors.New("no schema repository is given")
}

func (nullSchema) Version(context.Context) (int, error) {
	return -1, nil
}

func (nullSchema) Pending(context.Context) ([]int, error) {
	return []int{}, nil
}

func (nullSchema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	return ctx, func() {}
}
