package dump

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamokano/dbb/pkg/config"
)

func TestCheckDatabase(t *testing.T) {
	ctx := context.Background()

	t.Run("mysql_database_exists", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery(`SELECT 1 FROM information_schema.schemata WHERE schema_name = \?`).
			WithArgs("app").
			WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		require.NoError(t, CheckDatabase(ctx, db, config.EngineMySQL, "app"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("postgres_database_missing", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery(`SELECT 1 FROM pg_database WHERE datname = \$1`).
			WithArgs("app").
			WillReturnRows(sqlmock.NewRows([]string{"1"}))

		err = CheckDatabase(ctx, db, config.EnginePostgres, "app")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping_fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		err = CheckDatabase(ctx, db, config.EngineMySQL, "app")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unreachable")
	})

	t.Run("query_fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery(`SELECT 1`).WillReturnError(errors.New("access denied"))

		err = CheckDatabase(ctx, db, config.EngineMySQL, "app")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access denied")
	})
}

func TestDSN(t *testing.T) {
	cfg := testRunConfig(t)

	t.Run("mysql", func(t *testing.T) {
		driver, dsn, err := DSN(config.EngineMySQL, cfg)
		require.NoError(t, err)
		assert.Equal(t, "mysql", driver)
		assert.Contains(t, dsn, "root:pw@tcp(db:3306)/")
	})

	t.Run("postgres", func(t *testing.T) {
		driver, dsn, err := DSN(config.EnginePostgres, cfg)
		require.NoError(t, err)
		assert.Equal(t, "postgres", driver)
		assert.Equal(t, "postgres://root:pw@db:5432/app?connect_timeout=10", dsn)
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := DSN("oracle", cfg)
		assert.Error(t, err)
	})
}

func TestSQLPreflight_OpenError(t *testing.T) {
	p := NewSQLPreflight(config.EngineMySQL)
	p.open = func(driver, dsn string) (*sql.DB, error) {
		return nil, errors.New("driver missing")
	}

	err := p.Check(context.Background(), testRunConfig(t))
	assert.ErrorContains(t, err, "driver missing")
}
