package bootstrap

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/pagebot/core/config"
	coredatabase "github.com/m3rciful/pagebot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunSQLite(t *testing.T) {
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: "sqlite3", Path: filepath.Join(t.TempDir(), "boot.db")},
		LoggerInit: noLogger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.DB.Close() })

	var n int
	require.NoError(t, res.DB.Get(&n, `SELECT COUNT(*) FROM users`))
	assert.Zero(t, n)
}

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(Options{})
	assert.Error(t, err)
}

func TestRunStopsOnLoggerFailure(t *testing.T) {
	connected := false
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return errors.New("no sink") },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, nil
		},
	})
	assert.ErrorContains(t, err, "logger init failed")
	assert.False(t, connected)
}

func TestRunPropagatesMigrationFailure(t *testing.T) {
	boom := errors.New("dirty database version 2")
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "m.db")},
		LoggerInit: noLogger,
		Migrate:    func(coredatabase.Config, *sqlx.DB) error { return boom },
	})
	assert.ErrorIs(t, err, boom)
}
