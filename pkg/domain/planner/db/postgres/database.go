package postgres

import (
	"context"

	kpool "github.com/opst/prodplan/pkg/conn/db/postgres/pool"
	catalogdb "github.com/opst/prodplan/pkg/domain/catalog/db"
	kpgcatalog "github.com/opst/prodplan/pkg/domain/catalog/db/postgres"
	kpgintr "github.com/opst/prodplan/pkg/domain/internal/db/postgres"
	jobstepdb "github.com/opst/prodplan/pkg/domain/jobstep/db"
	kpgjobstep "github.com/opst/prodplan/pkg/domain/jobstep/db/postgres"
	orderdb "github.com/opst/prodplan/pkg/domain/order/db"
	kpgorder "github.com/opst/prodplan/pkg/domain/order/db/postgres"
	plannerdb "github.com/opst/prodplan/pkg/domain/planner/db"
	schemadb "github.com/opst/prodplan/pkg/domain/schema/db"
	kpgschema "github.com/opst/prodplan/pkg/domain/schema/db/postgres"
	xe "github.com/opst/prodplan/pkg/errors"
)

// Database is the planner database on postgres.
type Database interface {
	plannerdb.PlannerDatabase
	Schema() schemadb.SchemaInterface
}

type plannerPG struct {
	pool    kpool.Pool
	catalog catalogdb.Interface
	jobstep jobstepdb.Interface
	order   orderdb.Interface
	schema  schemadb.SchemaInterface
}

type Config struct {
	// how many times transactions are retried on concurrent modification.
	MaxRetry int

	SchemaRepository string
}

func DefaultConfig() Config {
	return Config{MaxRetry: kpgintr.DefaultRetry().MaxRetry}
}

type Option func(*Config) *Config

func WithMaxRetry(n int) Option {
	return func(c *Config) *Config {
		c.MaxRetry = n
		return c
	}
}

func WithSchemaRepository(repository string) Option {
	return func(c *Config) *Config {
		c.SchemaRepository = repository
		return c
	}
}

// New connects to the database, and builds repositories on it.
func New(ctx context.Context, url string, options ...Option) (Database, error) {
	pool, err := kpool.Connect(ctx, url)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return On(pool, options...), nil
}

// On builds repositories on the pool.
func On(pool kpool.Pool, options ...Option) Database {
	c := DefaultConfig()
	for _, opt := range options {
		c = *opt(&c)
	}

	r := kpgintr.DefaultRetry()
	r.MaxRetry = c.MaxRetry
	if r.MaxRetry < 0 {
		r.MaxRetry = 0
	}

	schema := kpgschema.Null()
	if c.SchemaRepository != "" {
		schema = kpgschema.New(pool, c.SchemaRepository)
	}

	return &plannerPG{
		pool:    pool,
		catalog: kpgcatalog.New(pool, kpgcatalog.WithRetry(r)),
		jobstep: kpgjobstep.New(pool, kpgjobstep.WithRetry(r)),
		order:   kpgorder.New(pool, kpgorder.WithRetry(r)),
		schema:  schema,
	}
}

func (p *plannerPG) Catalog() catalogdb.Interface {
	return p.catalog
}

func (p *plannerPG) JobStep() jobstepdb.Interface {
	return p.jobstep
}

func (p *plannerPG) Order() orderdb.Interface {
	return p.order
}

func (p *plannerPG) Schema() schemadb.SchemaInterface {
	return p.schema
}

func (p *plannerPG) Close() error {
	p.pool.Close()
	return nil
}
