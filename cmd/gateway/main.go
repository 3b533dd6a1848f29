// Package main is the entrypoint for the gateway binary.
package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"

	"github.com/relaymesh/gateway/internal/config"
	"github.com/relaymesh/gateway/internal/server"
	"github.com/relaymesh/gateway/pkg/db"
	"github.com/relaymesh/gateway/pkg/project"
)

const usage = `Usage: gateway [command]
       gateway serve               Start the gateway (HTTP API, websocket endpoint, NATS command subject).
       gateway migrate up          Run database migrations.
       gateway migrate status      Show migration status.
       gateway ensure-db [name]    Create database if missing (default name: gateway_test). Uses DATABASE_URL host/user.
       gateway clear               Truncate the projects table; schema is preserved.
       gateway seed [file]         Upsert projects from a JSON file (default: GATEWAY_PROJECTS_FILE).

Commands:
  serve            (default) Start the gateway.
  migrate up       Run database migrations only.
  migrate status   Show current migration status.
  ensure-db [name] Create database (e.g. gateway_test) on same host as DATABASE_URL; then run tests with that URL.
  clear            Truncate project data; schema preserved.
  seed [file]      Upsert projects from a JSON projects file.

Environment: DATABASE_URL or GATEWAY_PROJECTS_FILE (one required for serve), MIGRATION_PATH, GATEWAY_HTTP_ADDR (default :8000), NATS_URL. See README.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("gateway migrate: require subcommand (up, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("gateway migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(); err != nil {
				log.Fatalf("gateway migrate status: %v", err)
			}
		default:
			log.Fatalf("gateway migrate: unknown subcommand %q (use up, status)", sub)
		}
		return
	case "clear":
		if err := runClear(); err != nil {
			log.Fatalf("gateway clear: %v", err)
		}
		return
	case "seed":
		file := ""
		if len(args) > 1 {
			file = args[1]
		}
		if err := runSeed(file); err != nil {
			log.Fatalf("gateway seed: %v", err)
		}
		return
	case "ensure-db":
		dbName := "gateway_test"
		if len(args) > 1 && args[1] != "" {
			dbName = args[1]
		}
		if err := runEnsureDB(dbName); err != nil {
			log.Fatalf("gateway ensure-db: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
		break
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("gateway: %v", err)
	}
}

func runMigrateUp() error {
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

	migrationSQL, err := db.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := db.RunMigrations(ctx, pool, migrationSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runMigrateStatus() error {
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

	return db.MigrationStatus(ctx, pool, cfg.MigrationPath)
}

func runClear() error {
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

	if err := db.ClearProjects(ctx, pool); err != nil {
		return fmt.Errorf("clear projects: %w", err)
	}
	return nil
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	u, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	// Replace path with target database name; query (e.g. sslmode) is kept on u.RawQuery.
	u.Path = "/" + dbName
	targetURL := u.String()
	ctx := context.Background()
	if err := db.EnsureDatabase(ctx, targetURL); err != nil {
		return err
	}
	fmt.Printf("Database %q is ready.\n", dbName)
	return nil
}

func runSeed(fileOverride string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	path := fileOverride
	if path == "" {
		path = cfg.ProjectsFile
	}
	if path == "" {
		return fmt.Errorf("seed: projects file required (argument or GATEWAY_PROJECTS_FILE)")
	}
	projects, err := project.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load projects: %w", err)
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	repo := db.NewProjectRepository(pool)
	for _, p := range projects {
		if err := repo.UpsertProject(ctx, p); err != nil {
			return fmt.Errorf("seed project %q: %w", p.ID, err)
		}
	}
	fmt.Printf("Seeded %d projects from %s.\n", len(projects), path)
	return nil
}
