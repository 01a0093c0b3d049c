package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	kpgplanner "github.com/opst/prodplan/pkg/domain/planner/db/postgres"
	kio "github.com/opst/prodplan/pkg/io"
	"github.com/opst/prodplan/pkg/utils/try"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Host     string `flag:"host" help:"The host of the database."`
	Port     int    `flag:"port" help:"The port of the database."`
	User     string `flag:"user" help:"The user of the database."`
	Password string `flag:"pass" help:"The password of the database."`
	Database string `flag:"database" help:"The name of the database."`

	Schema string `flag:"schema" help:"The path to the schema repository directory."`
	DryRun bool   `flag:"dry-run" help:"Show pending versions without upgrading."`
}

// DSN is the connection string for pgx.
func (f Flag) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(f.User, f.Password),
		Host:   fmt.Sprintf("%s:%d", f.Host, f.Port),
		Path:   "/" + f.Database,
	}
	return u.String()
}

const ARG_SCHEMA_DEST = "ARG_SCHEMA_DEST"

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	port := 5432
	if p, err := strconv.Atoi(os.Getenv("DB_PORT")); err == nil {
		port = p
	}

	cmd := try.To(flarc.NewCommand(
		"upgrade the schema of the planner database to the latest in the schema repository",
		Flag{
			Host:     os.Getenv("DB_HOST"),
			Port:     port,
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Database: os.Getenv("DB_NAME"),
			Schema:   os.Getenv("PRODPLAN_SCHEMA"),
		},
		flarc.Args{
			{
				Name: ARG_SCHEMA_DEST, Help: "The schema files are copied to this directory before upgrading.",
				Required: false, Repeatable: false,
			},
		},
		func(ctx context.Context, c flarc.Commandline[Flag], _ []any) error {
			return upgrade(ctx, logger, c.Flags(), c.Args()[ARG_SCHEMA_DEST])
		},
	)).OrFatal(logger)

	os.Exit(flarc.Run(ctx, cmd))
}

func upgrade(ctx context.Context, logger *log.Logger, flags Flag, dest []string) error {
	if 0 < len(dest) {
		logger.Printf("copying schema files: %s -> %s", flags.Schema, dest[0])
		if err := kio.DirCopy(flags.Schema, dest[0]); err != nil {
			return err
		}
	}

	db, err := kpgplanner.New(ctx, flags.DSN(), kpgplanner.WithSchemaRepository(flags.Schema))
	if err != nil {
		return err
	}
	defer db.Close()

	schema := db.Schema()
	current, err := schema.Version(ctx)
	if err != nil {
		return err
	}
	pending, err := schema.Pending(ctx)
	if err != nil {
		return err
	}
	logger.Printf("schema version: %d, pending: %v", current, pending)
	if flags.DryRun || len(pending) == 0 {
		return nil
	}

	if err := schema.Upgrade(ctx); err != nil {
		return err
	}
	logger.Println("schema is upgraded")
	return nil
}
