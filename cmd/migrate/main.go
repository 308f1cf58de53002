// Command migrate manages the goose schema for the order database.
//
//	migrate [-dir path] up|down|status
//	migrate to <version>
//	migrate create <name>
//	migrate validate
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

func main() {
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory on disk, used by create and validate")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [-dir path] up|down|status|to <version>|create <name>|validate")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*dir, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(dir string, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}
	command, rest := args[0], args[1:]

	// These two never need a database.
	switch command {
	case "create":
		if len(rest) != 1 {
			return errors.New("create takes exactly one name")
		}
		created, err := migrate.CreateSQLMigration(dir, rest[0])
		if err != nil {
			return err
		}
		fmt.Println(created)
		return nil
	case "validate":
		if err := migrate.ValidateDir(dir); err != nil {
			return err
		}
		fmt.Println("migrations ok")
		return nil
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.FeatureFlags.UseSQLite {
		return errors.New("goose migrations target postgres; sqlite schemas come from STOREFRONT_AUTO_MIGRATE")
	}

	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "command": command})

	client, err := db.New(ctx, cfg.DB, false, logg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()
	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}

	m, err := migrate.New(sqlDB)
	if err != nil {
		return err
	}
	switch command {
	case "up":
		var applied int
		applied, err = m.Up(ctx)
		ctx = logg.WithField(ctx, "applied", applied)
	case "down":
		err = m.Down(ctx)
	case "status":
		err = m.PrintStatus(ctx, os.Stdout)
	case "to":
		if len(rest) != 1 {
			return errors.New("to takes exactly one version")
		}
		err = m.To(ctx, rest[0])
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		return err
	}
	logg.Info(ctx, "migration command finished")
	return nil
}
