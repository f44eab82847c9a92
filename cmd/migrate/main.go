package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/db"
	"github.com/norberto-e-888/pos-app/pkg/logger"
	"github.com/norberto-e-888/pos-app/pkg/migrate"
)

// gooseCommands run against the database as-is.
var gooseCommands = map[string]bool{"up": true, "down": true, "status": true, "redo": true}

func main() {
	cmd := flag.String("cmd", "up", "up|down|status|redo|version|create|validate")
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	name := flag.String("name", "", "migration name (create)")
	version := flag.String("version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.Parse()

	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	src := migrate.Embedded()
	if *dir != "" {
		src = migrate.Disk(*dir)
	}

	// create and validate only touch files.
	switch *cmd {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.Create(target, *name, time.Now())
		exitOn(err)
		fmt.Println("created migration:", path)
		return
	case "validate":
		exitOn(migrate.Validate(src))
		fmt.Println("migrations are valid")
		return
	}

	cfg, err := config.Load()
	exitOn(err)
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	if cfg.FeatureFlags.UseSQLite {
		exitOn(errors.New("goose migrations target postgres; sqlite schemas come from POS_AUTO_MIGRATE"))
	}
	dbClient, err := db.New(ctx, cfg.DB, false, logg)
	exitOn(err)
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	exitOn(err)

	if err := run(ctx, sqlDB, src, *cmd, *version); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration finished")
}

func run(ctx context.Context, sqlDB *sql.DB, src migrate.Source, cmd, version string) error {
	if gooseCommands[cmd] {
		return migrate.Run(ctx, sqlDB, src, cmd)
	}
	if cmd == "version" {
		if version == "" {
			return errors.New("-version is required for -cmd=version")
		}
		return migrate.ToVersion(ctx, sqlDB, src, version)
	}
	return fmt.Errorf("unknown -cmd %q", cmd)
}

func exitOn(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "migrate:", err)
	os.Exit(1)
}
