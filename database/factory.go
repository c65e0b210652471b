/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

// sqlDriverName maps a connection type and driver choice to the
// database/sql driver name.
func sqlDriverName(cfg ConnectionConfig) (string, error) {
	switch cfg.Type {
	case TypeMySQL:
		return "mysql", nil
	case TypePostgres:
		if cfg.Driver == DriverPgx {
			return "pgx", nil
		}
		return "postgres", nil
	case TypeSQLite:
		return sqliteshim.ShimName, nil
	}
	return "", fmt.Errorf("%w: unsupported database type %q", ErrInvalidConfig, cfg.Type)
}

func newDialect(typ string) (schema.Dialect, error) {
	switch typ {
	case TypeMySQL:
		return mysqldialect.New(), nil
	case TypePostgres:
		return pgdialect.New(), nil
	case TypeSQLite:
		return sqlitedialect.New(), nil
	}
	return nil, fmt.Errorf("%w: unsupported database type %q", ErrInvalidConfig, typ)
}

// openConnection opens the pool described by cfg without contacting the store.
func openConnection(cfg ConnectionConfig) (*sql.DB, *bun.DB, error) {
	driverName, err := sqlDriverName(cfg)
	if err != nil {
		return nil, nil, err
	}
	dialect, err := newDialect(cfg.Type)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := sql.Open(driverName, cfg.Address())
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	configureConnectionPool(sqlDB, cfg)
	return sqlDB, bun.NewDB(sqlDB, dialect), nil
}

// configureConnectionPool sizes the pool. SQLite runs on a single long-lived
// connection.
func configureConnectionPool(sqlDB *sql.DB, cfg ConnectionConfig) {
	if cfg.Type == TypeSQLite {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
		return
	}
	sqlDB.SetMaxOpenConns(cfg.PoolSize)
	sqlDB.SetMaxIdleConns(cfg.IdleConns())
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
}

// prepareConnection runs per-dialect session setup after the first ping.
func prepareConnection(ctx context.Context, db *bun.DB, cfg ConnectionConfig) error {
	if cfg.Type == TypeSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			return fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	}
	return nil
}

// installHooks attaches the query hooks selected by cfg. bundebug is added
// when BUNDEBUG is set in the environment.
func installHooks(db *bun.DB, cfg ConnectionConfig, logger Logger, clock clockwork.Clock, queryLog io.Writer) *QueryHook {
	if _, ok := os.LookupEnv("BUNDEBUG"); ok {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.FromEnv("BUNDEBUG")))
	}
	var hook *QueryHook
	if cfg.EnableQueryLog {
		hook = NewQueryHook(true, queryLog, clock)
		db.AddQueryHook(hook)
	}
	if cfg.SlowQueryTime > 0 {
		db.AddQueryHook(NewSlowQueryHook(cfg.SlowQueryTime, logger, clock))
	}
	return hook
}
