package postgres

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/opst/prodplan/pkg/cmp"
	kpool "github.com/opst/prodplan/pkg/conn/db/postgres/pool"
	"github.com/opst/prodplan/pkg/domain"
	kcatalog "github.com/opst/prodplan/pkg/domain/catalog"
	catalogdb "github.com/opst/prodplan/pkg/domain/catalog/db"
	kpgintr "github.com/opst/prodplan/pkg/domain/internal/db/postgres"
	"github.com/opst/prodplan/pkg/domain/rule"
	xe "github.com/opst/prodplan/pkg/errors"
)

type catalogPG struct {
	kpgintr.Reader

	pool  kpool.Pool
	retry kpgintr.Retry
	newId func() string
}

var _ catalogdb.Interface = &catalogPG{}

type Option func(*catalogPG) *catalogPG

// WithRetry sets how transactions are retried on concurrent modification.
func WithRetry(r kpgintr.Retry) Option {
	return func(c *catalogPG) *catalogPG {
		c.retry = r
		return c
	}
}

// WithIdGenerator replaces the id generator. It generates UUIDs by default.
func WithIdGenerator(newId func() string) Option {
	return func(c *catalogPG) *catalogPG {
		c.newId = newId
		return c
	}
}

func New(pool kpool.Pool, options ...Option) catalogdb.Interface {
	c := &catalogPG{
		Reader: kpgintr.Reader{Q: pool},
		pool:   pool,
		retry:  kpgintr.DefaultRetry(),
		newId:  uuid.NewString,
	}
	for _, opt := range options {
		c = opt(c)
	}
	return c
}

func (c *catalogPG) writer(tx kpool.Tx) kpgintr.Writer {
	return kpgintr.Writer{Reader: kpgintr.Reader{Q: tx}, NewId: c.newId}
}

func (c *catalogPG) Transact(ctx context.Context, fn func(context.Context, catalogdb.Tx) error) error {
	return kpgintr.Transact(ctx, c.pool, c.retry, func(ctx context.Context, tx kpool.Tx) error {
		return fn(ctx, c.writer(tx))
	})
}

func (c *catalogPG) transact(ctx context.Context, fn func(context.Context, kpool.Tx) error) error {
	if err := kpgintr.Transact(ctx, c.pool, c.retry, fn); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func (c *catalogPG) RegisterMission(ctx context.Context, mission domain.Mission) error {
	return c.transact(ctx, func(ctx context.Context, tx kpool.Tx) error {
		spacecraft := mission.Spacecraft
		if spacecraft == nil {
			spacecraft = []string{}
		}
		_, err := tx.Exec(
			ctx,
			`insert into "mission" ("code", "name", "spacecraft") values ($1, $2, $3)`,
			mission.Code, mission.Name, spacecraft,
		)
		return err
	})
}

func (c *catalogPG) RegisterFacility(ctx context.Context, facility domain.ProcessingFacility) error {
	return c.transact(ctx, func(ctx context.Context, tx kpool.Tx) error {
		_, err := tx.Exec(
			ctx,
			`insert into "facility" ("name", "description") values ($1, $2)`,
			facility.Name, facility.Description,
		)
		return err
	})
}

func (c *catalogPG) RegisterProductClass(ctx context.Context, class *domain.ProductClass) error {
	return c.transact(ctx, func(ctx context.Context, tx kpool.Tx) error {
		r := kpgintr.Reader{Q: tx}

		var lookupErr error
		lookup := func(id string) (domain.ProductClass, bool) {
			found, err := r.ProductClass(ctx, id)
			if err != nil {
				if !errors.Is(err, domain.ErrMissing) {
					lookupErr = err
				}
				return domain.ProductClass{}, false
			}
			return found, true
		}
		verr := kcatalog.ValidateProductClass(*class, lookup)
		if lookupErr != nil {
			return lookupErr
		}
		if verr != nil {
			return verr
		}

		if class.Id == "" {
			class.Id = c.newId()
		}
		if _, err := tx.Exec(
			ctx,
			`
			insert into "product_class" ("id", "mission", "product_type", "processor_class", "enclosing_class")
			values ($1, $2, $3, $4, $5)
			on conflict ("id") do update set
				"product_type" = excluded."product_type",
				"processor_class" = excluded."processor_class",
				"enclosing_class" = excluded."enclosing_class"
			`,
			class.Id, class.Mission, class.ProductType, class.ProcessorClass,
			kpgintr.Text(class.EnclosingClass),
		); err != nil {
			return err
		}

		saved, err := r.ProductClass(ctx, class.Id)
		if err != nil {
			return err
		}
		*class = saved
		return nil
	})
}

func (c *catalogPG) RegisterProcessorClass(ctx context.Context, pc domain.ProcessorClass) error {
	return c.transact(ctx, func(ctx context.Context, tx kpool.Tx) error {
		if _, err := tx.Exec(
			ctx,
			`insert into "processor_class" ("mission", "name") values ($1, $2)`,
			pc.Mission, pc.Name,
		); err != nil {
			return err
		}
		if len(pc.ProductClasses) == 0 {
			return nil
		}

		var updated []string
		rows, err := tx.Query(
			ctx,
			`
			update "product_class" set "processor_class" = $2
			where "mission" = $1 and "id" = any($3::varchar[])
			returning "id"
			`,
			pc.Mission, pc.Name, pc.ProductClasses,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			updated = append(updated, id)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		problems := []string{}
		for _, id := range pc.ProductClasses {
			if !slices.Contains(updated, id) {
				problems = append(problems, "product class is not found in the mission: "+id)
			}
		}
		if len(problems) != 0 {
			return &domain.ValidationError{Subject: "processor class " + pc.Mission + "/" + pc.Name, Problems: problems}
		}
		return nil
	})
}

func (c *catalogPG) RegisterConfiguredProcessor(ctx context.Context, p domain.ConfiguredProcessor) error {
	if err := kcatalog.ValidateConfiguredProcessor(p); err != nil {
		return err
	}
	return c.transact(ctx, func(ctx context.Context, tx kpool.Tx) error {
		_, err := tx.Exec(
			ctx,
			`
			insert into "configured_processor"
				(
					"identifier", "mission", "processor_class", "processor_version",
					"configuration_version", "mode", "image", "enabled"
				)
			values ($1, $2, $3, $4, $5, $6, $7, $8)
			`,
			p.Identifier, p.Mission, p.ProcessorClass, p.ProcessorVersion,
			p.ConfigurationVersion, p.Mode, p.Image, p.Enabled,
		)
		return err
	})
}

func (c *catalogPG) RegisterSelectionRule(
	ctx context.Context, target string, text string, mode string, processors []string,
) (domain.SelectionRule, error) {
	var registered domain.SelectionRule
	err := c.transact(ctx, func(ctx context.Context, tx kpool.Tx) error {
		r := kpgintr.Reader{Q: tx}
		targetClass, err := r.ProductClass(ctx, target)
		if err != nil {
			return err
		}

		if len(processors) != 0 {
			found, err := r.ConfiguredProcessorsOf(ctx, processors)
			if err != nil {
				return err
			}
			problems := []string{}
			for _, p := range processors {
				if _, ok := found[p]; !ok {
					problems = append(problems, "configured processor is not found: "+p)
				}
			}
			if len(problems) != 0 {
				return &domain.ValidationError{Subject: "selection rule", Problems: problems}
			}
		}

		classes, err := r.ProductClasses(ctx, targetClass.Mission)
		if err != nil {
			return err
		}
		compiled, err := rule.Compile(targetClass, text, mode, rule.AmongClasses(classes))
		if err != nil {
			return err
		}

		existing, err := r.SelectionRules(ctx, target)
		if err != nil {
			return err
		}
		registered = domain.SelectionRule{TargetClass: target}
		for _, simple := range compiled.Rules {
			simple.ApplicableProcessors = append([]string{}, processors...)
			saved, err := c.mergeOrAdd(ctx, tx, existing, simple)
			if err != nil {
				return err
			}
			registered.Rules = append(registered.Rules, saved)
		}
		return nil
	})
	if err != nil {
		return domain.SelectionRule{}, err
	}
	return registered, nil
}

// mergeOrAdd merges the rule into an existing one for the same source, or adds it as a new rule.
func (c *catalogPG) mergeOrAdd(
	ctx context.Context, tx kpool.Tx,
	existing []domain.SimpleSelectionRule, simple domain.SimpleSelectionRule,
) (domain.SimpleSelectionRule, error) {
	for _, e := range existing {
		if e.FilteredSourceType != simple.FilteredSourceType || e.Mode != simple.Mode {
			continue
		}
		if !cmp.SliceContentEq(e.ApplicableProcessors, simple.ApplicableProcessors) {
			continue
		}
		merged, err := rule.Merge(e, simple)
		if err != nil {
			return domain.SimpleSelectionRule{}, &domain.RuleSyntaxError{Rule: rule.FormatSimple(simple), Reason: err.Error()}
		}
		policies, err := kpgintr.PoliciesJSON(merged.Policies)
		if err != nil {
			return domain.SimpleSelectionRule{}, err
		}
		if _, err := tx.Exec(
			ctx,
			`
			update "selection_rule"
			set "mandatory" = $2, "minimum_coverage" = $3, "policies" = $4, "text" = $5
			where "id" = $1
			`,
			e.Id, merged.Mandatory, merged.MinimumCoverage, policies, rule.FormatSimple(merged),
		); err != nil {
			return domain.SimpleSelectionRule{}, err
		}
		return merged, nil
	}

	simple.Id = c.newId()
	filters, err := kpgintr.ParametersJSON(simple.Filters)
	if err != nil {
		return domain.SimpleSelectionRule{}, err
	}
	policies, err := kpgintr.PoliciesJSON(simple.Policies)
	if err != nil {
		return domain.SimpleSelectionRule{}, err
	}
	if _, err := tx.Exec(
		ctx,
		`
		insert into "selection_rule"
			(
				"id", "target_class", "source_class", "filtered_source_type", "mode",
				"mandatory", "minimum_coverage", "filters", "policies", "applicable_processors", "text"
			)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
		simple.Id, simple.TargetClass, simple.SourceClass, simple.FilteredSourceType, simple.Mode,
		simple.Mandatory, simple.MinimumCoverage, filters, policies, simple.ApplicableProcessors,
		rule.FormatSimple(simple),
	); err != nil {
		return domain.SimpleSelectionRule{}, err
	}
	return simple, nil
}

func (c *catalogPG) RegisterOrbit(ctx context.Context, orbit domain.Orbit) error {
	if orbit.Stop.Before(orbit.Start) {
		return &domain.ValidationError{
			Subject:  "orbit " + orbit.Spacecraft,
			Problems: []string{"stop is before start"},
		}
	}
	return c.transact(ctx, func(ctx context.Context, tx kpool.Tx) error {
		_, err := tx.Exec(
			ctx,
			`insert into "orbit" ("spacecraft", "number", "start", "stop") values ($1, $2, $3, $4)`,
			orbit.Spacecraft, orbit.Number, orbit.Start, orbit.Stop,
		)
		return err
	})
}

func (c *catalogPG) RegisterProduct(ctx context.Context, product *domain.Product) error {
	return c.transact(ctx, func(ctx context.Context, tx kpool.Tx) error {
		w := c.writer(tx)
		if product.Id != "" {
			var exists bool
			if err := tx.QueryRow(
				ctx, `select exists (select 1 from "product" where "id" = $1)`, product.Id,
			).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return &conflict{what: "product " + product.Id}
			}
		}
		if product.EnclosingProduct != "" {
			var found pgtype.Text
			if err := tx.QueryRow(
				ctx, `select max("id") from "product" where "id" = $1`, product.EnclosingProduct,
			).Scan(&found); err != nil {
				return err
			}
			if found.Status != pgtype.Present {
				return &domain.ValidationError{
					Subject:  "product " + product.Id,
					Problems: []string{"enclosing product is not found: " + product.EnclosingProduct},
				}
			}
		}
		return w.SaveProduct(ctx, product)
	})
}

// conflict is ErrConflict with what is conflicted.
type conflict struct {
	what string
}

func (c *conflict) Error() string {
	return c.what + " is already registered"
}

func (c *conflict) Unwrap() error {
	return domain.ErrConflict
}
