package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    Config
		wantErr string
	}{
		{
			name: "postgres defaults",
			cfg:  Config{Host: "db", Name: "pagebot"},
			want: Config{Driver: DriverPostgres, Host: "db", Name: "pagebot", Port: "5432", SSLMode: "disable", MaxConnections: 10},
		},
		{
			name: "pgx alias",
			cfg:  Config{Driver: " PGX5 ", Host: "db", Name: "pagebot", Port: "6543", MaxConnections: 3},
			want: Config{Driver: DriverPGX, Host: "db", Name: "pagebot", Port: "6543", SSLMode: "disable", MaxConnections: 3},
		},
		{
			name: "sqlite forces one connection",
			cfg:  Config{Driver: "sqlite3", Path: "bot.db", MaxConnections: 8},
			want: Config{Driver: DriverSQLite, Path: "bot.db", MaxConnections: 1, BusyTimeoutMS: 5000},
		},
		{
			name:    "sqlite without path",
			cfg:     Config{Driver: DriverSQLite},
			wantErr: "database.path is required",
		},
		{
			name:    "postgres without host",
			cfg:     Config{Name: "pagebot"},
			wantErr: "database.host is required",
		},
		{
			name:    "unknown driver",
			cfg:     Config{Driver: "mysql"},
			wantErr: "invalid database.driver",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Normalize()
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg)
		})
	}
}

func TestConfigDSN(t *testing.T) {
	pg := Config{Driver: DriverPostgres, Host: "db", Port: "5432", User: "bot", Password: "s3cret", Name: "pagebot", SSLMode: "disable"}
	assert.Equal(t, "user=bot password=s3cret host=db port=5432 dbname=pagebot sslmode=disable", pg.DSN())
	assert.Equal(t, "postgres://bot:s3cret@db:5432/pagebot?sslmode=disable", pg.MigrateURL())

	pgx := pg
	pgx.Driver = DriverPGX
	assert.Equal(t, "postgres://bot:s3cret@db:5432/pagebot?sslmode=disable", pgx.DSN())
	assert.Equal(t, "pgx5://bot:s3cret@db:5432/pagebot?sslmode=disable", pgx.MigrateURL())

	lite := Config{Driver: DriverSQLite, Path: "/tmp/bot.db", BusyTimeoutMS: 250}
	dsn := lite.DSN()
	assert.Contains(t, dsn, "file:/tmp/bot.db?")
	assert.Contains(t, dsn, "foreign_keys%281%29")
	assert.Contains(t, dsn, "busy_timeout%28250%29")
	assert.Equal(t, "/tmp/bot.db", lite.Target())
}

func TestSelectApplied(t *testing.T) {
	files := listMigrationFiles(migrationsFS, "migrations/sqlite")
	require.Equal(t, []string{"000001_create_users.up.sql", "000002_create_interactions.up.sql"}, files)

	assert.Equal(t, files, selectApplied(files, 0, 2))
	assert.Equal(t, files[1:], selectApplied(files, 1, 2))
	assert.Empty(t, selectApplied(files, 2, 2))
	assert.EqualValues(t, 7, parseVersion("000007_add_index.up.sql"))
	assert.Zero(t, parseVersion("readme.md"))
}

func TestMigrationDialectsMatch(t *testing.T) {
	assert.Equal(t,
		listMigrationFiles(migrationsFS, "migrations/postgres"),
		listMigrationFiles(migrationsFS, "migrations/sqlite"),
	)
}
