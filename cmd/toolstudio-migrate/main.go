package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/openctemio/toolstudio/internal/config"
	"github.com/openctemio/toolstudio/internal/infra/postgres"
	"github.com/openctemio/toolstudio/pkg/migrations"
)

const usage = `Usage: toolstudio-migrate [flags] <command>

Commands:
  up      apply all pending migrations
  down    roll back the most recent migration
  status  list applied and pending migrations
  seed    load sample tags, tools and versions (idempotent)

Flags:
`

func main() {
	dbURL := flag.String("db", "", "Database URL (default: DATABASE_URL or DB_* env)")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall timeout")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(flag.Arg(0), *dbURL, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command, dbURL string, timeout time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if dbURL != "" {
		cfg.Database.URL = dbURL
	}

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	runner := migrations.NewRunner(db.DB, migrations.FS(), os.Stdout)
	switch command {
	case "up":
		n, err := runner.Up(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Applied %d migration(s)\n", n)
		return nil
	case "down":
		return runner.Down(ctx)
	case "status":
		return runner.Status(ctx)
	case "seed":
		return runner.Seed(ctx)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
