package database

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/m3rciful/pagebot/core/apperror"
)

// Supported values for Config.Driver.
const (
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
	DriverSQLite   = "sqlite"
)

// Config holds database connection settings.
// Driver selects lib/pq ("postgres"), pgx ("pgx") or modernc sqlite ("sqlite").
type Config struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// Path is the database file used by the sqlite driver.
	Path string `yaml:"path" envconfig:"DB_PATH"`
	// BusyTimeoutMS bounds how long sqlite waits on a locked database.
	BusyTimeoutMS int `yaml:"busy_timeout_ms" envconfig:"DB_BUSY_TIMEOUT_MS"`
}

// Normalize validates the settings for the selected driver and fills defaults.
func (c *Config) Normalize() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	switch c.Driver {
	case "", "postgresql", "pq":
		c.Driver = DriverPostgres
	case "pgx5":
		c.Driver = DriverPGX
	case "sqlite3":
		c.Driver = DriverSQLite
	}

	switch c.Driver {
	case DriverPostgres, DriverPGX:
		if strings.TrimSpace(c.Host) == "" {
			return apperror.Invalid("database.host", fmt.Sprintf("database.host is required for driver %q", c.Driver))
		}
		if strings.TrimSpace(c.Name) == "" {
			return apperror.Invalid("database.name", fmt.Sprintf("database.name is required for driver %q", c.Driver))
		}
		if c.Port == "" {
			c.Port = "5432"
		}
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
		if c.MaxConnections <= 0 {
			c.MaxConnections = 10
		}
	case DriverSQLite:
		if strings.TrimSpace(c.Path) == "" {
			return apperror.Invalid("database.path", fmt.Sprintf("database.path is required for driver %q", c.Driver))
		}
		// One connection keeps writes serialized and avoids SQLITE_BUSY between pool members.
		c.MaxConnections = 1
		if c.BusyTimeoutMS <= 0 {
			c.BusyTimeoutMS = 5000
		}
	default:
		return apperror.Invalid("database.driver", fmt.Sprintf("invalid database.driver %q; allowed: postgres, pgx, sqlite", c.Driver))
	}
	return nil
}

// IsPostgres reports whether the driver talks to a PostgreSQL server.
func (c Config) IsPostgres() bool {
	return c.Driver == DriverPostgres || c.Driver == DriverPGX
}

// DSN returns the connection string understood by the selected database/sql driver.
func (c Config) DSN() string {
	switch c.Driver {
	case DriverSQLite:
		q := url.Values{}
		q.Add("_pragma", "foreign_keys(1)")
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeoutMS))
		q.Add("_pragma", "journal_mode(WAL)")
		// ISO-style text sorts in time order for UTC values.
		q.Set("_time_format", "sqlite")
		return "file:" + c.Path + "?" + q.Encode()
	case DriverPGX:
		return c.postgresURL("postgres")
	default:
		return fmt.Sprintf(
			"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
			c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
		)
	}
}

// MigrateURL returns the golang-migrate database URL for postgres drivers.
// The pgx driver uses the pgx5 scheme so migrations run on the same driver as the app.
func (c Config) MigrateURL() string {
	if c.Driver == DriverPGX {
		return c.postgresURL("pgx5")
	}
	return c.postgresURL("postgres")
}

func (c Config) postgresURL(scheme string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Target describes the database for logs without credentials.
func (c Config) Target() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return c.Name
}
