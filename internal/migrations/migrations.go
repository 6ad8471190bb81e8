// Package migrations embeds the PostgreSQL schema and applies it with
// golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	// Registers the postgres:// database driver.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var files embed.FS

// FS returns the embedded migration files rooted at the sql directory.
func FS() fs.FS {
	sub, err := fs.Sub(files, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migrator is the subset of *migrate.Migrate used here.
type Migrator interface {
	Up() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Close() (source error, database error)
}

// Engine builds a Migrator for a database URL.
type Engine func(databaseURL string) (Migrator, error)

// DefaultEngine reads the embedded files and connects to PostgreSQL.
func DefaultEngine(databaseURL string) (Migrator, error) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// Runner applies migrations against one database.
type Runner struct {
	databaseURL string
	engine      Engine
}

// NewRunner creates a Runner. A nil engine uses DefaultEngine.
func NewRunner(databaseURL string, engine Engine) *Runner {
	if engine == nil {
		engine = DefaultEngine
	}
	return &Runner{databaseURL: databaseURL, engine: engine}
}

// Up applies all pending migrations. Being already up to date is not an error.
func (r *Runner) Up() (err error) {
	return r.with(func(m Migrator) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration up failed: %w", err)
		}
		return nil
	})
}

// Down rolls back the given number of migrations.
func (r *Runner) Down(steps int) error {
	if steps < 1 {
		return fmt.Errorf("steps must be at least 1, got %d", steps)
	}
	return r.with(func(m Migrator) error {
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration down failed: %w", err)
		}
		return nil
	})
}

// Version reports the current schema version. A fresh database reports 0.
func (r *Runner) Version() (version uint, dirty bool, err error) {
	err = r.with(func(m Migrator) error {
		v, d, verr := m.Version()
		if verr != nil {
			if errors.Is(verr, migrate.ErrNilVersion) {
				return nil
			}
			return fmt.Errorf("failed to read migration version: %w", verr)
		}
		version, dirty = v, d
		return nil
	})
	return version, dirty, err
}

func (r *Runner) with(fn func(Migrator) error) (err error) {
	m, err := r.engine(r.databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		serr, dberr := m.Close()
		if closeErr := errors.Join(serr, dberr); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close migrator: %w", closeErr))
		}
	}()

	return fn(m)
}
