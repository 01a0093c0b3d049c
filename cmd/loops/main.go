package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/opst/prodplan/cmd/loops/recurring"
	cfg_hook "github.com/opst/prodplan/pkg/configs/hook"
	configs "github.com/opst/prodplan/pkg/configs/planner"
	"github.com/opst/prodplan/pkg/domain"
	kpgplanner "github.com/opst/prodplan/pkg/domain/planner/db/postgres"
	"github.com/opst/prodplan/pkg/metrics"
	"github.com/opst/prodplan/pkg/utils"
	"github.com/opst/prodplan/pkg/utils/args"
	"github.com/opst/prodplan/pkg/utils/filewatch"
	"github.com/opst/prodplan/pkg/utils/try"
)

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM,
	)
	defer cancel()

	// define command line flags
	//-- path to config file
	pconfig := flag.String(
		"config", os.Getenv("PRODPLAN_CONFIG"), "path to config file",
	)
	pSchemaRepo := flag.String(
		"schema-repo", os.Getenv("PRODPLAN_SCHEMA"), "schema repository path",
	)
	phooks := flag.String(
		"hooks", os.Getenv("PRODPLAN_HOOK_CONFIG"), "path to hook config file",
	)
	//-- which loop type to run
	loopType := args.Parser(domain.ParseLoopType)
	flag.Var(
		loopType, "type",
		"loop to run. one of: "+strings.Join(utils.Map(domain.LoopTypes(), domain.LoopType.String), ", "),
	)
	//-- loop policy
	policy := args.Parser(recurring.ParsePolicy)
	flag.Var(
		policy, "policy",
		`loop policy (syntax: forever[:COOLDOWN]|backlog).`+
			` "forever[:COOLDOWN]" = run forever until error. When backlog is over, `+
			`wait COOLDOWN (optional duration. default: 0) as inteval.`+
			` "backlog" = run until error or backlog is over.`+
			` When omitted, the policy in the config file is used.`,
	)
	flag.Parse()

	if !loopType.IsSet() {
		logger.Fatal("flag -type is required")
	}

	{
		// watch config & hooks
		wctx, cancel, err := filewatch.UntilModifyContext(ctx, *pconfig, *phooks)
		if err != nil {
			logger.Fatal(err)
		}
		defer cancel()
		ctx = wctx
	}

	conf := try.To(configs.Load(*pconfig)).OrFatal(logger)

	if !policy.IsSet() {
		p := conf.Loops().Planning().Policy()
		if loopType.Value() == domain.Readiness {
			p = conf.Loops().Readiness().Policy()
		}
		policy.Default(try.To(recurring.ParsePolicy(p)).OrFatal(logger))
	}

	db := try.To(kpgplanner.New(
		ctx, conf.Database(),
		kpgplanner.WithMaxRetry(conf.MaxRetry()),
		kpgplanner.WithSchemaRepository(*pSchemaRepo),
	)).OrFatal(logger)
	defer db.Close()

	{
		ctx_, ccan := db.Schema().Context(ctx)
		defer ccan()
		ctx = ctx_
	}

	hooks := cfg_hook.Config{}
	if hookPath := *phooks; hookPath != "" {
		hooks = try.To(cfg_hook.Load(hookPath)).OrFatal(logger)
	}

	m := metrics.New()
	if port := conf.Metrics().Port(); 0 < port {
		srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: m.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("metrics server is stopped: %s", err)
			}
		}()
		defer srv.Close()
	}

	logger.Printf(
		`start loop "%s" /w policy "%s"`,
		loopType.Value().String(), policy.Value().String(),
	)

	manifest := LoopManifest{
		Policy: recurring.UntilError(policy.Value()),
		Hooks:  hooks,
	}

	var err error
	switch loopType.Value() {
	case domain.Planning:
		err = StartPlanningLoop(ctx, logger, db, conf, m, manifest)
	case domain.Readiness:
		err = StartReadinessLoop(ctx, logger, db, conf, m, manifest)
	}

	if err == nil {
		return
	} else if errors.Is(err, context.Canceled) {
		logger.Fatal(err, "(loop context is cancelled by:", context.Cause(ctx), ")")
	}
	logger.Fatal(err)
}
