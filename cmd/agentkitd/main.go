// Package main is the entrypoint for the agentkit service.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opspawn/agentkit/internal/config"
	"github.com/opspawn/agentkit/internal/server"
	"github.com/opspawn/agentkit/pkg/bootstrap"
	"github.com/opspawn/agentkit/pkg/catalogue"
	"github.com/opspawn/agentkit/pkg/db"
	"github.com/opspawn/agentkit/pkg/directory"
)

const usage = `Usage: agentkitd [command]
       agentkitd serve                   Start the service (HTTP API, NATS run transport, scheduler).
       agentkitd migrate up              Run delivery log migrations.
       agentkitd migrate down            Roll back the last applied migration.
       agentkitd migrate status          Show migration status.
       agentkitd ensure-db [name]        Create database if missing (default name: agentkit_test). Uses DATABASE_URL host/user.
       agentkitd clear [older-than]      Truncate the delivery log, or only purge entries older than a duration (e.g. 72h).
       agentkitd check-seed [file]       Validate a bootstrap seed file without starting the service.

Commands:
  serve            (default) Start agentkit.
  migrate up       Run database migrations only.
  migrate down     Roll back last migration.
  migrate status   Show current migration status.
  ensure-db [name] Create database (e.g. agentkit_test) on same host as DATABASE_URL.
  clear [dur]      Clear delivery log; schema preserved.
  check-seed       Load and apply a seed to an empty directory and catalogue, then report counts.

Environment: AGENTKIT_HTTP_ADDR (default :8000), COMMS_URL, DATABASE_URL, MIGRATION_PATH, AGENTKIT_BOOTSTRAP_FILE. See README.
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("agentkitd: %v", err)
	}
}

func run(args []string, out io.Writer) error {
	cmd := ""
	if len(args) > 0 {
		cmd = args[0]
	}
	arg := func(i int) string {
		if len(args) > i {
			return args[i]
		}
		return ""
	}

	switch cmd {
	case "migrate":
		switch sub := arg(1); sub {
		case "up":
			return withPool(runMigrateUp(out))
		case "status":
			return withPool(runMigrateStatus(out))
		case "down":
			return withPool(runMigrateDown(out))
		case "":
			return fmt.Errorf("migrate: require subcommand (up, down, status)")
		default:
			return fmt.Errorf("migrate: unknown subcommand %q (use up, down, status)", sub)
		}
	case "clear":
		return withPool(runClear(out, arg(1)))
	case "ensure-db":
		name := arg(1)
		if name == "" {
			name = "agentkit_test"
		}
		return runEnsureDB(out, name)
	case "check-seed":
		return runCheckSeed(out, arg(1))
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	case "serve", "":
		return server.Run()
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

// poolCommand runs against a connected pool and its loaded config.
type poolCommand func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error

// withPool loads config, connects to DATABASE_URL and runs fn.
func withPool(fn poolCommand) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func runMigrateUp(out io.Writer) poolCommand {
	return func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		migrations, err := db.LoadMigrations(cfg.MigrationPath)
		if err != nil {
			return fmt.Errorf("load migrations: %w", err)
		}
		if err := db.RunMigrations(ctx, pool, migrations); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		fmt.Fprintf(out, "Migrations up to date (%d known).\n", len(migrations))
		return nil
	}
}

func runMigrateStatus(out io.Writer) poolCommand {
	return func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		migrations, err := db.LoadMigrations(cfg.MigrationPath)
		if err != nil {
			return fmt.Errorf("load migrations: %w", err)
		}
		states, err := db.MigrationStatus(ctx, pool, migrations)
		if err != nil {
			return err
		}
		printMigrationStatus(out, states)
		return nil
	}
}

func printMigrationStatus(out io.Writer, states []db.MigrationState) {
	if len(states) == 0 {
		fmt.Fprintln(out, "No migrations found.")
		return
	}
	for _, st := range states {
		if st.AppliedAt != nil {
			fmt.Fprintf(out, "  applied  %s  (%s)\n", st.Name, st.AppliedAt.UTC().Format(time.RFC3339))
		} else {
			fmt.Fprintf(out, "  pending  %s\n", st.Name)
		}
	}
}

func runMigrateDown(out io.Writer) poolCommand {
	return func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		migrations, err := db.LoadMigrations(cfg.MigrationPath)
		if err != nil {
			return fmt.Errorf("load migrations: %w", err)
		}
		name, err := db.MigrationDown(ctx, pool, migrations)
		if err != nil {
			return err
		}
		if name == "" {
			fmt.Fprintln(out, "Nothing to roll back.")
			return nil
		}
		fmt.Fprintf(out, "Rolled back %s.\n", name)
		return nil
	}
}

func runClear(out io.Writer, olderThan string) poolCommand {
	return func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
		if olderThan == "" {
			if err := db.ClearDeliveries(ctx, pool); err != nil {
				return fmt.Errorf("clear deliveries: %w", err)
			}
			fmt.Fprintln(out, "Delivery log cleared.")
			return nil
		}
		d, err := time.ParseDuration(olderThan)
		if err != nil || d <= 0 {
			return fmt.Errorf("clear: invalid duration %q", olderThan)
		}
		n, err := db.PurgeDeliveriesBefore(ctx, pool, time.Now().Add(-d))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Purged %d deliveries older than %s.\n", n, d)
		return nil
	}
}

func runEnsureDB(out io.Writer, dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	u, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	// Replace path with target database name; query (e.g. sslmode) is kept on u.RawQuery.
	u.Path = "/" + dbName
	if err := db.EnsureDatabase(context.Background(), u.String()); err != nil {
		return err
	}
	fmt.Fprintf(out, "Database %q is ready.\n", dbName)
	return nil
}

func runCheckSeed(out io.Writer, path string) error {
	seed, err := bootstrap.LoadSeedConfig(path)
	if err != nil {
		return err
	}
	if seed.Source == "" {
		return fmt.Errorf("check-seed: no seed file found")
	}
	res, err := bootstrap.Apply(seed, directory.New(), catalogue.New())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Seed %s is valid: %d agents, %d external tools.\n", seed.Source, len(res.Agents), len(res.Tools))
	return nil
}
