package dump

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/williamokano/dbb/pkg/config"
)

const preflightTimeout = 10 * time.Second

// Preflight checks the database is reachable before a dump is attempted
type Preflight interface {
	Check(ctx context.Context, cfg config.RunConfig) error
}

// SQLPreflight connects with the engine's Go driver, pings and checks the database exists
type SQLPreflight struct {
	engine string
	open   func(driver, dsn string) (*sql.DB, error)
}

// NewSQLPreflight creates a preflight for engine
func NewSQLPreflight(engine string) *SQLPreflight {
	return &SQLPreflight{engine: engine, open: sql.Open}
}

// Check opens a short-lived connection and verifies the target database
func (p *SQLPreflight) Check(ctx context.Context, cfg config.RunConfig) error {
	driver, dsn, err := DSN(p.engine, cfg)
	if err != nil {
		return err
	}

	db, err := p.open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", p.engine, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()

	return CheckDatabase(ctx, db, p.engine, cfg.DatabaseName())
}

// CheckDatabase pings db and verifies that database name exists
func CheckDatabase(ctx context.Context, db *sql.DB, engine, name string) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}

	query := "SELECT 1 FROM information_schema.schemata WHERE schema_name = ?"
	if engine == config.EnginePostgres {
		query = "SELECT 1 FROM pg_database WHERE datname = $1"
	}

	var one int
	err := db.QueryRowContext(ctx, query, name).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("database %q does not exist", name)
	}
	if err != nil {
		return fmt.Errorf("failed to look up database %q: %w", name, err)
	}

	return nil
}

// DSN builds the driver name and connection string for engine
func DSN(engine string, cfg config.RunConfig) (string, string, error) {
	switch engine {
	case config.EngineMySQL, "":
		port := cfg.DatabasePort()
		if port == 0 {
			port = 3306
		}
		mc := mysql.NewConfig()
		mc.User = cfg.DatabaseUser()
		mc.Passwd = cfg.DatabasePassword()
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.DatabaseHost(), strconv.Itoa(port))
		mc.Timeout = preflightTimeout
		return "mysql", mc.FormatDSN(), nil

	case config.EnginePostgres:
		port := cfg.DatabasePort()
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.DatabaseUser(), cfg.DatabasePassword()),
			Host:   net.JoinHostPort(cfg.DatabaseHost(), strconv.Itoa(port)),
			Path:   "/" + cfg.DatabaseName(),
		}
		q := url.Values{}
		q.Set("connect_timeout", strconv.Itoa(int(preflightTimeout.Seconds())))
		u.RawQuery = q.Encode()
		return "postgres", u.String(), nil

	default:
		return "", "", fmt.Errorf("unknown dump engine: %s", engine)
	}
}
