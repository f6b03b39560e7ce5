package store

import (
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate runs all pending database migrations.
func (s *Store) Migrate() error {
	if err := s.ready(); err != nil {
		return err
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Reset drops every table and re-runs the migrations. All data is lost.
func (s *Store) Reset() error {
	if err := s.ready(); err != nil {
		return err
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.DownTo(s.db, "migrations", 0); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// MigrationVersion returns the current migration version.
func (s *Store) MigrationVersion() (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite"); err != nil {
		return 0, fmt.Errorf("set migration dialect: %w", err)
	}
	return goose.GetDBVersion(s.db)
}
