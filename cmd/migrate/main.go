package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/ombhut175/RetailFlow-sub002/pkg/config"
	"github.com/ombhut175/RetailFlow-sub002/pkg/db"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
	"github.com/ombhut175/RetailFlow-sub002/pkg/migrate"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate|list")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name for -cmd=create; create_<table> scaffolds a table")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")

	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx = logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	switch *cmd {
	case "create":
		if *name == "" {
			fmt.Fprintln(os.Stderr, "missing -name for create")
			os.Exit(1)
		}
		logg.Info(ctx, "migrate ready")
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create migration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		logg.Info(ctx, "migrate ready")
		if err := migrate.ValidateDir(*dir); err != nil {
			fmt.Fprintf(os.Stderr, "migration validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migration validation passed")
		return

	case "list":
		files, err := migrate.ListFiles(*dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list migrations: %v\n", err)
			os.Exit(1)
		}
		for _, file := range files {
			fmt.Printf("%s  %s\n", file.Version, file.Name)
		}
		return
	}

	if err := migrate.ValidateDir(*dir); err != nil {
		fmt.Fprintf(os.Stderr, "refusing to run invalid migrations: %v\n", err)
		os.Exit(1)
	}
	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)
	runner, err := migrate.NewRunner(sqlDB, cfg.DB.Driver, *dir)
	requireResource(ctx, logg, "migration runner", err)

	logg.Info(ctx, "migrate ready")

	if err := runCommand(ctx, runner, *cmd, *version); err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", *cmd, err)
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, runner *migrate.Runner, cmd, version string) error {
	switch cmd {
	case "up":
		applied, err := runner.Up(ctx)
		printSteps(applied)
		return err
	case "down":
		step, err := runner.Down(ctx)
		if err != nil {
			return err
		}
		printSteps([]migrate.Step{step})
		return nil
	case "version":
		if version == "" {
			return fmt.Errorf("missing -version")
		}
		moved, err := runner.To(ctx, version)
		printSteps(moved)
		return err
	case "status":
		states, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		for _, st := range states {
			applied := "pending"
			if st.Applied {
				applied = st.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Printf("%-25s %s\n", applied, st.Path)
		}
		return nil
	default:
		return fmt.Errorf("unknown -cmd value %q", cmd)
	}
}

func printSteps(steps []migrate.Step) {
	for _, step := range steps {
		fmt.Printf("%-4s %d %s (%s)\n", step.Direction, step.Version, step.Path, step.Duration.Round(time.Millisecond))
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
