package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pagebot/core/logger"
)

//go:embed migrations
var migrationsFS embed.FS

// RunMigrations applies all up migrations embedded for the configured driver.
// For sqlite the already opened handle is reused; postgres drivers open their own connection.
func RunMigrations(cfg Config, db *sqlx.DB) error {
	if err := cfg.Normalize(); err != nil {
		return fmt.Errorf("db config: %w", err)
	}

	dir := "migrations/" + migrationDialect(cfg)
	files := listMigrationFiles(migrationsFS, dir)
	ctx := context.Background()
	attrs := append([]slog.Attr{
		slog.String("driver", cfg.Driver),
		slog.String("path", dir),
	}, logger.ListAttrs("files", files, 6)...)
	logger.Debug(ctx, logger.CompMigrate, "db.migrate.resolve", attrs...)

	m, err := newMigrator(cfg, db, dir)
	if err != nil {
		logger.Error(ctx, logger.CompMigrate, "db.migrate.init", logger.ErrAttrs(err)...)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if cfg.IsPostgres() {
		// The postgres drivers own their connection; the sqlite one wraps the caller's handle.
		defer m.Close()
	}

	fromVer, _, _ := m.Version()

	start := time.Now()
	upErr := m.Up()
	took := logger.RoundMS(time.Since(start))

	switch {
	case upErr == nil:
	case errors.Is(upErr, migrate.ErrNoChange):
		logger.Info(ctx, logger.CompMigrate, "db.migrate.summary",
			slog.String("status", "ok"),
			slog.Uint64("from_ver", uint64(fromVer)),
			slog.Uint64("to_ver", uint64(fromVer)),
			slog.Int("files", 0),
			slog.Duration("duration", took),
		)
		return nil
	default:
		logger.Error(ctx, logger.CompMigrate, "db.migrate.apply",
			append(logger.ErrAttrs(upErr), slog.Duration("duration", took))...)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	toVer, _, _ := m.Version()
	applied := selectApplied(files, uint64(fromVer), uint64(toVer))
	if len(applied) > 0 {
		logger.Debug(ctx, logger.CompMigrate, "db.migrate.apply", logger.ListAttrs("files", applied, 6)...)
	}

	logger.Info(ctx, logger.CompMigrate, "db.migrate.summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func newMigrator(cfg Config, db *sqlx.DB, dir string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		if db == nil {
			return nil, fmt.Errorf("sqlite migrations need an open database")
		}
		driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
		if err != nil {
			return nil, fmt.Errorf("sqlite migrate driver: %w", err)
		}
		return migrate.NewWithInstance("iofs", src, DriverSQLite, driver)
	}

	if err := WaitForPostgres(context.Background(), cfg.Driver, cfg.DSN(), 30*time.Second); err != nil {
		logger.Error(context.Background(), logger.CompMigrate, "db.wait", logger.ErrAttrs(err)...)
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
}

func migrationDialect(cfg Config) string {
	if cfg.Driver == DriverSQLite {
		return "sqlite"
	}
	return "postgres"
}

func listMigrationFiles(fsys fs.FS, dir string) []string {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

func selectApplied(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
