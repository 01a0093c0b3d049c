package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	kpgerr "github.com/opst/prodplan/pkg/conn/db/postgres/errors"
	kpool "github.com/opst/prodplan/pkg/conn/db/postgres/pool"
	"github.com/opst/prodplan/pkg/domain"
	catalogdb "github.com/opst/prodplan/pkg/domain/catalog/db"
)

// Reader reads the product catalog with the queryer.
type Reader struct {
	Q kpool.Queryer
}

var _ catalogdb.Reader = Reader{}

const productColumns = `
	"p"."id", "p"."product_class", "p"."mode", "p"."file_class",
	"p"."sensing_start", "p"."sensing_stop", "p"."generation_time", "p"."parameters",
	"p"."enclosing_product", "p"."job_step", "p"."facility", "p"."file_size", "p"."checksum",
	array(
		select "c"."id" from "product" as "c"
		where "c"."enclosing_product" = "p"."id"
		order by "c"."seq"
	) as "components"
`

func scanProducts(rows pgx.Rows) ([]domain.Product, error) {
	defer rows.Close()

	ret := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		var generation pgtype.Timestamptz
		var params pgtype.JSONB
		var enclosing, step pgtype.Text
		if err := rows.Scan(
			&p.Id, &p.ProductClass, &p.Mode, &p.FileClass,
			&p.SensingStart, &p.SensingStop, &generation, &params,
			&enclosing, &step, &p.Facility, &p.FileSize, &p.Checksum,
			&p.ComponentProducts,
		); err != nil {
			return nil, err
		}
		p.GenerationTime = TimeOf(generation)
		p.EnclosingProduct = StringOf(enclosing)
		p.JobStep = StringOf(step)
		ps, err := ParametersOf(params)
		if err != nil {
			return nil, err
		}
		p.Parameters = ps
		ret = append(ret, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (r Reader) FindProducts(ctx context.Context, query domain.ProductFind) ([]domain.Product, error) {
	var spanStart, spanStop *pgtype.Timestamptz
	if query.Span != nil {
		start, stop := OptionalTime(query.Span.Start), OptionalTime(query.Span.Stop)
		spanStart, spanStop = &start, &stop
	} else {
		null := pgtype.Timestamptz{Status: pgtype.Null}
		spanStart, spanStop = &null, &null
	}

	rows, err := r.Q.Query(
		ctx,
		`
		select `+productColumns+`
		from "product" as "p"
		where
			"p"."product_class" = $1
			and ($2::varchar = '' or "p"."mode" = $2)
			and ($3 or "p"."generation_time" is not null)
			and ($4::timestamptz is null or $4 <= "p"."sensing_stop")
			and ($5::timestamptz is null or "p"."sensing_start" <= $5)
			and ($6::timestamptz is null or "p"."sensing_start" <= $6)
		order by "p"."seq"
		`,
		query.ProductClass, query.Mode, query.IncludePlanned,
		*spanStart, *spanStop, Timestamptz(query.StartNotAfter),
	)
	if err != nil {
		return nil, err
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}

	// parameters are compared with their types, so they are filtered here.
	ret := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Parameters.Match(query.Filters) {
			ret = append(ret, p)
		}
	}
	return ret, nil
}

// Products gets products by ids.
//
// Returns
//
// - map[string]domain.Product: mapping id -> product. Missing ids are not contained.
//
// - error
func (r Reader) Products(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	rows, err := r.Q.Query(
		ctx,
		`select `+productColumns+` from "product" as "p" where "p"."id" = any($1::varchar[])`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	ret := map[string]domain.Product{}
	for _, p := range products {
		ret[p.Id] = p
	}
	return ret, nil
}

func (r Reader) Product(ctx context.Context, id string) (domain.Product, error) {
	found, err := r.Products(ctx, []string{id})
	if err != nil {
		return domain.Product{}, err
	}
	p, ok := found[id]
	if !ok {
		return domain.Product{}, &domain.Missing{Table: "product", Identity: id}
	}
	return p, nil
}

const productClassColumns = `
	"pc"."id", "pc"."mission", "pc"."product_type", "pc"."processor_class", "pc"."enclosing_class",
	array(
		select "c"."id" from "product_class" as "c"
		where "c"."enclosing_class" = "pc"."id"
		order by "c"."seq"
	) as "components"
`

func (r Reader) productClasses(ctx context.Context, condition string, args ...any) ([]domain.ProductClass, error) {
	rows, err := r.Q.Query(
		ctx,
		`select `+productClassColumns+` from "product_class" as "pc" where `+condition+` order by "pc"."seq"`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := []domain.ProductClass{}
	for rows.Next() {
		var c domain.ProductClass
		var enclosing pgtype.Text
		if err := rows.Scan(
			&c.Id, &c.Mission, &c.ProductType, &c.ProcessorClass, &enclosing, &c.ComponentClasses,
		); err != nil {
			return nil, err
		}
		c.EnclosingClass = StringOf(enclosing)
		ret = append(ret, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (r Reader) ProductClass(ctx context.Context, id string) (domain.ProductClass, error) {
	found, err := r.productClasses(ctx, `"pc"."id" = $1`, id)
	if err != nil {
		return domain.ProductClass{}, err
	}
	if len(found) == 0 {
		return domain.ProductClass{}, &domain.Missing{Table: "product class", Identity: id}
	}
	return found[0], nil
}

func (r Reader) ProductClassByType(ctx context.Context, mission string, productType string) (domain.ProductClass, error) {
	found, err := r.productClasses(
		ctx, `"pc"."mission" = $1 and "pc"."product_type" = $2`, mission, productType,
	)
	if err != nil {
		return domain.ProductClass{}, err
	}
	if len(found) == 0 {
		return domain.ProductClass{}, &domain.Missing{Table: "product class", Identity: mission + "/" + productType}
	}
	return found[0], nil
}

func (r Reader) ProductClasses(ctx context.Context, mission string) ([]domain.ProductClass, error) {
	return r.productClasses(ctx, `"pc"."mission" = $1`, mission)
}

func (r Reader) SelectionRules(ctx context.Context, targetClass string) ([]domain.SimpleSelectionRule, error) {
	rows, err := r.Q.Query(
		ctx,
		`
		select
			"id", "target_class", "source_class", "filtered_source_type", "mode",
			"mandatory", "minimum_coverage", "filters", "policies", "applicable_processors"
		from "selection_rule"
		where "target_class" = $1
		order by "seq"
		`,
		targetClass,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := []domain.SimpleSelectionRule{}
	for rows.Next() {
		var sr domain.SimpleSelectionRule
		var filters, policies pgtype.JSONB
		if err := rows.Scan(
			&sr.Id, &sr.TargetClass, &sr.SourceClass, &sr.FilteredSourceType, &sr.Mode,
			&sr.Mandatory, &sr.MinimumCoverage, &filters, &policies, &sr.ApplicableProcessors,
		); err != nil {
			return nil, err
		}
		if sr.Filters, err = ParametersOf(filters); err != nil {
			return nil, err
		}
		if len(sr.Filters) == 0 {
			sr.Filters = nil
		}
		if sr.Policies, err = PoliciesOf(policies); err != nil {
			return nil, err
		}
		ret = append(ret, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (r Reader) ConfiguredProcessors(ctx context.Context, mission string) ([]domain.ConfiguredProcessor, error) {
	return r.configuredProcessors(ctx, `"mission" = $1`, mission)
}

// ConfiguredProcessorsOf gets configured processors by their identifiers.
func (r Reader) ConfiguredProcessorsOf(ctx context.Context, identifiers []string) (map[string]domain.ConfiguredProcessor, error) {
	found, err := r.configuredProcessors(ctx, `"identifier" = any($1::varchar[])`, identifiers)
	if err != nil {
		return nil, err
	}
	ret := map[string]domain.ConfiguredProcessor{}
	for _, p := range found {
		ret[p.Identifier] = p
	}
	return ret, nil
}

func (r Reader) configuredProcessors(ctx context.Context, condition string, args ...any) ([]domain.ConfiguredProcessor, error) {
	rows, err := r.Q.Query(
		ctx,
		`
		select
			"identifier", "mission", "processor_class", "processor_version",
			"configuration_version", "mode", "image", "enabled"
		from "configured_processor"
		where `+condition+`
		order by "seq"
		`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := []domain.ConfiguredProcessor{}
	for rows.Next() {
		var p domain.ConfiguredProcessor
		if err := rows.Scan(
			&p.Identifier, &p.Mission, &p.ProcessorClass, &p.ProcessorVersion,
			&p.ConfigurationVersion, &p.Mode, &p.Image, &p.Enabled,
		); err != nil {
			return nil, err
		}
		ret = append(ret, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (r Reader) ProcessorClass(ctx context.Context, mission string, name string) (domain.ProcessorClass, error) {
	pc := domain.ProcessorClass{}
	if err := r.Q.QueryRow(
		ctx,
		`
		select
			"pc"."mission", "pc"."name",
			array(
				select "c"."id" from "product_class" as "c"
				where "c"."mission" = "pc"."mission" and "c"."processor_class" = "pc"."name"
				order by "c"."seq"
			) as "classes"
		from "processor_class" as "pc"
		where "pc"."mission" = $1 and "pc"."name" = $2
		`,
		mission, name,
	).Scan(&pc.Mission, &pc.Name, &pc.ProductClasses); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ProcessorClass{}, &domain.Missing{Table: "processor class", Identity: mission + "/" + name}
		}
		return domain.ProcessorClass{}, err
	}
	return pc, nil
}

func (r Reader) Orbits(ctx context.Context, spacecraft string, numbers []int) ([]domain.Orbit, error) {
	rows, err := r.Q.Query(
		ctx,
		`
		select "spacecraft", "number", "start", "stop"
		from "orbit"
		where "spacecraft" = $1 and "number" = any($2::integer[])
		order by "start", "number"
		`,
		spacecraft, numbers,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := map[int]domain.Orbit{}
	sorted := []domain.Orbit{}
	for rows.Next() {
		var o domain.Orbit
		if err := rows.Scan(&o.Spacecraft, &o.Number, &o.Start, &o.Stop); err != nil {
			return nil, err
		}
		found[o.Number] = o
		sorted = append(sorted, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ret := make([]domain.Orbit, 0, len(numbers))
	for _, n := range numbers {
		if _, ok := found[n]; !ok {
			return nil, &domain.Missing{Table: "orbit", Identity: spacecraft + "/" + strconv.Itoa(n)}
		}
	}
	// duplicated numbers are returned as many as requested.
	count := map[int]int{}
	for _, n := range numbers {
		count[n]++
	}
	for _, o := range sorted {
		for i := 0; i < count[o.Number]; i++ {
			ret = append(ret, o)
		}
	}
	return ret, nil
}

func (r Reader) JobsOfOrder(ctx context.Context, order string) ([]domain.Job, error) {
	rows, err := r.Q.Query(
		ctx,
		`
		select
			"id", "order_id", "window_start", "window_stop", "state", "facility",
			"orbit_spacecraft", "orbit_number"
		from "job"
		where "order_id" = $1
		order by "seq"
		`,
		order,
	)
	if err != nil {
		return nil, err
	}
	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.Id)
	}
	steps, err := r.JobSteps(ctx, `"job_id" = any($1::varchar[])`, ids)
	if err != nil {
		return nil, err
	}
	for _, s := range steps {
		for i := range jobs {
			if jobs[i].Id == s.Job {
				jobs[i].Steps = append(jobs[i].Steps, s)
			}
		}
	}
	return jobs, nil
}

func scanJobs(rows pgx.Rows) ([]domain.Job, error) {
	defer rows.Close()

	ret := []domain.Job{}
	for rows.Next() {
		var j domain.Job
		var orbitSpacecraft pgtype.Text
		var orbitNumber pgtype.Int4
		if err := rows.Scan(
			&j.Id, &j.Order, &j.Window.Start, &j.Window.Stop, &j.State, &j.Facility,
			&orbitSpacecraft, &orbitNumber,
		); err != nil {
			return nil, err
		}
		if orbitSpacecraft.Status == pgtype.Present && orbitNumber.Status == pgtype.Present {
			j.Orbit = &domain.OrbitRef{Spacecraft: orbitSpacecraft.String, Number: int(orbitNumber.Int)}
		}
		j.Steps = []domain.JobStep{}
		ret = append(ret, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Writer is a catalog in a transaction.
type Writer struct {
	Reader
	NewId func() string
}

var _ catalogdb.Tx = Writer{}

func (w Writer) SaveJob(ctx context.Context, job *domain.Job, products []domain.Product) error {
	catalogdb.AssignIds(job, products, w.NewId)

	for i := range products {
		if err := w.insertProduct(ctx, products[i]); err != nil {
			return err
		}
	}

	var orbitSpacecraft pgtype.Text
	var orbitNumber pgtype.Int4
	if job.Orbit != nil {
		orbitSpacecraft = pgtype.Text{String: job.Orbit.Spacecraft, Status: pgtype.Present}
		orbitNumber = pgtype.Int4{Int: int32(job.Orbit.Number), Status: pgtype.Present}
	} else {
		orbitSpacecraft = pgtype.Text{Status: pgtype.Null}
		orbitNumber = pgtype.Int4{Status: pgtype.Null}
	}
	if _, err := w.Q.Exec(
		ctx,
		`
		insert into "job"
			("id", "order_id", "window_start", "window_stop", "state", "facility", "orbit_spacecraft", "orbit_number")
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
		job.Id, job.Order, job.Window.Start, job.Window.Stop, string(job.State), job.Facility,
		orbitSpacecraft, orbitNumber,
	); err != nil {
		// another transaction has planned the window. retry to see it.
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) &&
			pgerr.Code == pgerrcode.UniqueViolation && pgerr.ConstraintName == "job_order_window_key" {
			return &kpgerr.ConcurrentModification{Cause: pgerr}
		}
		return err
	}

	for _, step := range job.Steps {
		if _, err := w.Q.Exec(
			ctx,
			`
			insert into "job_step"
				(
					"id", "job_id", "state", "mode", "processor", "output_product", "input_products",
					"window_start", "window_stop", "processing_start", "processing_stop", "message"
				)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			`,
			step.Id, job.Id, string(step.State), step.Mode, step.Processor, step.OutputProduct,
			nonNil(step.InputProducts), step.Window.Start, step.Window.Stop,
			Timestamptz(step.ProcessingStart), Timestamptz(step.ProcessingStop), step.Message,
		); err != nil {
			return err
		}
		for _, q := range step.Queries {
			rule, err := RuleJSON(q.Rule)
			if err != nil {
				return err
			}
			if _, err := w.Q.Exec(
				ctx,
				`
				insert into "product_query"
					("id", "job_step", "rule", "window_start", "window_stop", "satisfied", "satisfying_products")
				values ($1, $2, $3, $4, $5, $6, $7)
				`,
				q.Id, step.Id, rule, q.Window.Start, q.Window.Stop, q.Satisfied, nonNil(q.SatisfyingProducts),
			); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w Writer) Claim(ctx context.Context, key string) error {
	_, err := w.Q.Exec(
		ctx,
		`
		insert into "planning_claim" ("key") values ($1)
		on conflict ("key") do update set "version" = "planning_claim"."version" + 1
		`,
		key,
	)
	return err
}

func (w Writer) insertProduct(ctx context.Context, p domain.Product) error {
	params, err := ParametersJSON(p.Parameters)
	if err != nil {
		return err
	}
	_, err = w.Q.Exec(
		ctx,
		`
		insert into "product"
			(
				"id", "product_class", "mode", "file_class", "sensing_start", "sensing_stop",
				"generation_time", "parameters", "enclosing_product", "job_step",
				"facility", "file_size", "checksum"
			)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		on conflict ("id") do update set
			"product_class" = excluded."product_class",
			"mode" = excluded."mode",
			"file_class" = excluded."file_class",
			"sensing_start" = excluded."sensing_start",
			"sensing_stop" = excluded."sensing_stop",
			"generation_time" = excluded."generation_time",
			"parameters" = excluded."parameters",
			"enclosing_product" = excluded."enclosing_product",
			"job_step" = excluded."job_step",
			"facility" = excluded."facility",
			"file_size" = excluded."file_size",
			"checksum" = excluded."checksum"
		`,
		p.Id, p.ProductClass, p.Mode, p.FileClass, p.SensingStart, p.SensingStop,
		Timestamptz(p.GenerationTime), params, Text(p.EnclosingProduct), Text(p.JobStep),
		p.Facility, p.FileSize, p.Checksum,
	)
	return err
}

func (w Writer) SaveProduct(ctx context.Context, product *domain.Product) error {
	if product.Id == "" {
		product.Id = w.NewId()
	}
	if err := w.insertProduct(ctx, *product); err != nil {
		return err
	}
	found, err := w.Products(ctx, []string{product.Id})
	if err != nil {
		return err
	}
	saved, ok := found[product.Id]
	if !ok {
		return fmt.Errorf("product %s is lost after saved", product.Id)
	}
	*product = saved
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
