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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, TypeMySQL, cfg.Connection.Type)
	assert.Equal(t, 5, cfg.Connection.PoolSize)
	assert.Equal(t, "db_1", cfg.Connection.DBName)
}

func TestLoadConfigFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	writeFile(t, path, `
connection:
  type: postgres
  driver: pgx
  host: db.internal
  port: 5432
  username: roster
  password: secret
  dbname: league
  pool_size: 4
  max_idle_conns: 2
  connect_timeout: 3s
migrate:
  enable_migrate_on_startup: true
init:
  environment: dev
`)
	t.Setenv("ROSTER_CONNECTION_POOL_SIZE", "8")
	t.Setenv("ROSTER_CONNECTION_SLOW_QUERY_TIME", "250ms")
	t.Setenv("ROSTER_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, TypePostgres, cfg.Connection.Type)
	assert.Equal(t, DriverPgx, cfg.Connection.Driver)
	assert.Equal(t, "db.internal", cfg.Connection.Host)
	assert.Equal(t, 8, cfg.Connection.PoolSize)
	assert.Equal(t, 2, cfg.Connection.MaxIdleConns)
	assert.Equal(t, 3*time.Second, cfg.Connection.ConnectTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Connection.SlowQueryTime)
	assert.True(t, cfg.Migrate.EnableMigrateOnStartup)
	assert.True(t, cfg.Migrate.EnableForeignKey)
	assert.Equal(t, "dev", cfg.Init.Environment)
	assert.Equal(t, "configs/sql", cfg.Init.Filepath)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigLowersPoolSizeAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	writeFile(t, path, "connection:\n  pool_size: 2\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Connection.PoolSize)
	assert.Zero(t, cfg.Connection.MaxIdleConns)
	assert.Equal(t, 2, cfg.Connection.IdleConns())
}

func TestIdleConns(t *testing.T) {
	cc := ConnectionConfig{PoolSize: 8}
	assert.Equal(t, 8, cc.IdleConns())
	cc.MaxIdleConns = 3
	assert.Equal(t, 3, cc.IdleConns())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "connection:\n  pool_size: 0\n")
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown type", func(c *Config) { c.Connection.Type = "oracle" }},
		{"empty pool", func(c *Config) { c.Connection.PoolSize = 0 }},
		{"idle above pool", func(c *Config) { c.Connection.MaxIdleConns = 6 }},
		{"missing host", func(c *Config) { c.Connection.Host = "" }},
		{"missing dbname", func(c *Config) { c.Connection.DBName = "" }},
		{"bad port", func(c *Config) { c.Connection.Port = 70000 }},
		{"driver on mysql", func(c *Config) { c.Connection.Driver = DriverPgx }},
		{"sslmode on mysql", func(c *Config) { c.Connection.SSLMode = "require" }},
		{"unknown driver", func(c *Config) { c.Connection.Type = TypePostgres; c.Connection.Driver = "odbc" }},
		{"bad environment", func(c *Config) { c.Init.Environment = "../prod" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"negative timeout", func(c *Config) { c.Connection.ConnectTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestValidateAcceptsSQLiteWithoutHost(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Connection = ConnectionConfig{Type: TypeSQLite, DBName: "roster", PoolSize: 1}
	assert.NoError(t, cfg.Validate())
}

func TestAddress(t *testing.T) {
	mysqlAddr := DefaultConnectionConfig().Address()
	assert.Contains(t, mysqlAddr, "user:user1234@tcp(localhost:3306)/db_1?")
	assert.Contains(t, mysqlAddr, "parseTime=true")
	assert.Contains(t, mysqlAddr, "charset=utf8mb4")

	pg := ConnectionConfig{
		Type:           TypePostgres,
		Host:           "db",
		Port:           5432,
		Username:       "roster",
		Password:       "pw",
		DBName:         "league",
		ConnectTimeout: 10 * time.Second,
	}
	assert.Equal(t, "postgres://roster:pw@db:5432/league?connect_timeout=10&sslmode=disable", pg.Address())

	assert.Equal(t, "file:roster.db?cache=shared", ConnectionConfig{Type: TypeSQLite, DBName: "roster"}.Address())
	assert.Equal(t, "file::memory:", ConnectionConfig{Type: TypeSQLite, DSN: "file::memory:"}.Address())
}

func TestRedacted(t *testing.T) {
	cfg := ConnectionConfig{Password: "secret", DSN: "postgres://roster:secret@db:5432/league"}
	redacted := cfg.Redacted()
	assert.Equal(t, "******", redacted.Password)
	assert.NotContains(t, redacted.DSN, "secret")
	assert.Equal(t, "secret", cfg.Password)
}
