package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are written and where the embedded set is
// read from in the source tree.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Source is a directory of goose SQL files inside FS.
type Source struct {
	FS  fs.FS
	Dir string
}

// Embedded returns the migrations compiled into the binary. Services and the
// migrate CLI use it unless told to read a directory on disk.
func Embedded() Source {
	return Source{FS: embedded, Dir: "migrations"}
}

// Disk reads migrations from dir relative to the working directory.
func Disk(dir string) Source {
	return Source{FS: os.DirFS(dir), Dir: "."}
}

// goose keeps its filesystem and dialect in package state, so every entry
// point sets both before running.
func (s Source) prepare() error {
	if s.FS == nil {
		return errors.New("migration source is required")
	}
	goose.SetBaseFS(s.FS)
	// The SQL files target Postgres. sqlite databases use gorm AutoMigrate.
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Run executes a goose command (up, down, status, redo, ...) against db.
func Run(ctx context.Context, db *sql.DB, src Source, command string, args ...string) error {
	if db == nil {
		return errors.New("db is required")
	}
	if err := src.prepare(); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, src.Dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// ToVersion migrates up or down until the schema is at version
// (YYYYMMDDHHMMSS).
func ToVersion(ctx context.Context, db *sql.DB, src Source, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", version, err)
	}
	if db == nil {
		return errors.New("db is required")
	}
	if err := src.prepare(); err != nil {
		return err
	}

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current < target:
		err = goose.UpToContext(ctx, db, src.Dir, target)
	case current > target:
		err = goose.DownToContext(ctx, db, src.Dir, target)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("goose migrate %d -> %d: %w", current, target, err)
	}
	return nil
}
