package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/iliyamo/book-panel/internal/config"
)

// database/sql driver names registered by the imported drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// Open connects to the configured store and verifies the connection.
func Open(cfg config.DBConfig) (*sqlx.DB, error) {
	driver, dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}

	// Pool settings
	if driver == DriverSQLite {
		// a single connection serializes writers instead of failing with SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		n := cfg.MaxOpenConns
		if n <= 0 {
			n = 25
		}
		db.SetMaxOpenConns(n)
		db.SetMaxIdleConns(n)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping %s", driver)
	}
	return db, nil
}

// DSN returns the database/sql driver name and data source for cfg.
func DSN(cfg config.DBConfig) (string, string, error) {
	switch cfg.Driver {
	case "mysql":
		auth := cfg.User
		if cfg.Pass != "" {
			auth = fmt.Sprintf("%s:%s", cfg.User, cfg.Pass)
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		return DriverMySQL, fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			auth, cfg.Host, cfg.Port, cfg.Name), nil
	case "postgres":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Pass),
			Host:     cfg.Host + ":" + cfg.Port,
			Path:     "/" + cfg.Name,
			RawQuery: "sslmode=disable&timezone=UTC",
		}
		return DriverPostgres, u.String(), nil
	case "sqlite":
		return DriverSQLite, "file:" + cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	}
	return "", "", errors.Errorf("unsupported driver %q", cfg.Driver)
}

// Dialect returns the goqu dialect matching a database/sql driver name.
func Dialect(driverName string) goqu.DialectWrapper {
	switch driverName {
	case DriverPostgres:
		return goqu.Dialect("postgres")
	case DriverSQLite:
		return goqu.Dialect("sqlite3")
	default:
		return goqu.Dialect("mysql")
	}
}
