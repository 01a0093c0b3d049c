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
	"time"

	configs "github.com/opst/prodplan/pkg/configs/planner"
	kpgplanner "github.com/opst/prodplan/pkg/domain/planner/db/postgres"
	"golang.org/x/sync/errgroup"
)

// grace period for in-flight requests on shutdown
const shutdownTimeout = 5 * time.Second

func main() {
	pconfig := flag.String("config", os.Getenv("PRODPLAN_CONFIG"), "path to config file")
	schemaRepo := flag.String("schema-repo", os.Getenv("PRODPLAN_SCHEMA"), "schema repository path")
	loglevel := flag.String("loglevel", "warn", "log level. debug|info|warn|error|off")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *pconfig, *schemaRepo, *loglevel); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, configPath string, schemaRepo string, loglevel string) error {
	conf, err := configs.Load(configPath)
	if err != nil {
		return err
	}

	db, err := kpgplanner.New(
		ctx, conf.Database(),
		kpgplanner.WithMaxRetry(conf.MaxRetry()),
		kpgplanner.WithSchemaRepository(schemaRepo),
	)
	if err != nil {
		return err
	}
	defer db.Close()

	// the server stops when the schema is upgraded by others
	ctx, ccan := db.Schema().Context(ctx)
	defer ccan()

	server := BuildServer(db, loglevel)
	for _, r := range server.Routes() {
		server.Logger.Debugf("- mount handler: %s %s", strings.ToUpper(r.Method), r.Path)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		err := server.Start(fmt.Sprintf(":%d", conf.Port()))
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	eg.Go(func() error {
		<-ctx.Done()
		server.Logger.Infof("shutting down... (cause: %s)", context.Cause(ctx))
		qctx, qcancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer qcancel()
		return server.Shutdown(qctx)
	})
	return eg.Wait()
}
