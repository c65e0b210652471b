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
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
)

const (
	TypeMySQL    = "mysql"
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"

	DriverPQ  = "pq"
	DriverPgx = "pgx"
)

var ErrInvalidConfig = errors.New("database: invalid configuration")

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats mirrors database/sql pool statistics.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

// ConnectionConfig describes how to reach the store and size its pool.
// PoolSize bounds open connections; callers beyond it wait for a release.
// MaxIdleConns of 0 keeps up to PoolSize idle connections.
type ConnectionConfig struct {
	Type                string        `yaml:"type" koanf:"type" validate:"required,oneof=mysql postgres sqlite"`
	Driver              string        `yaml:"driver" koanf:"driver" validate:"omitempty,oneof=pq pgx"`
	DSN                 string        `yaml:"dsn" koanf:"dsn"`
	Host                string        `yaml:"host" koanf:"host" validate:"required_unless=Type sqlite,omitempty,hostname_rfc1123|ip"`
	Port                int           `yaml:"port" koanf:"port" validate:"required_unless=Type sqlite,min=0,max=65535"`
	Username            string        `yaml:"username" koanf:"username"`
	Password            string        `yaml:"password" koanf:"password"`
	DBName              string        `yaml:"dbname" koanf:"dbname" validate:"required_without=DSN,max=64"`
	SSLMode             string        `yaml:"sslmode" koanf:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	Charset             string        `yaml:"charset" koanf:"charset"`
	PoolSize            int           `yaml:"pool_size" koanf:"pool_size" validate:"min=1,max=1000"`
	MaxIdleConns        int           `yaml:"max_idle_conns" koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime     time.Duration `yaml:"conn_max_lifetime" koanf:"conn_max_lifetime" validate:"min=0"`
	ConnMaxIdleTime     time.Duration `yaml:"conn_max_idle_time" koanf:"conn_max_idle_time" validate:"min=0"`
	ConnectTimeout      time.Duration `yaml:"connect_timeout" koanf:"connect_timeout" validate:"min=0"`
	ReadTimeout         time.Duration `yaml:"read_timeout" koanf:"read_timeout" validate:"min=0"`
	WriteTimeout        time.Duration `yaml:"write_timeout" koanf:"write_timeout" validate:"min=0"`
	MaxReconnectTries   int           `yaml:"max_reconnect_tries" koanf:"max_reconnect_tries" validate:"min=0"`
	ReconnectInterval   time.Duration `yaml:"reconnect_interval" koanf:"reconnect_interval" validate:"min=0"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" koanf:"health_check_interval" validate:"min=0"`
	EnableQueryLog      bool          `yaml:"enable_query_log" koanf:"enable_query_log"`
	SlowQueryTime       time.Duration `yaml:"slow_query_time" koanf:"slow_query_time" validate:"min=0"`
}

// DataMigrateConfig controls schema creation on startup.
type DataMigrateConfig struct {
	EnableMigrateOnStartup bool   `yaml:"enable_migrate_on_startup" koanf:"enable_migrate_on_startup"`
	EnableForeignKey       bool   `yaml:"enable_foreign_key" koanf:"enable_foreign_key"`
	ForeignKeyFile         string `yaml:"foreign_key_file" koanf:"foreign_key_file"`
}

// DataInitConfig controls SQL seeding and environment selection.
type DataInitConfig struct {
	AutoInitOnStartup bool   `yaml:"auto_init_on_startup" koanf:"auto_init_on_startup"`
	Filepath          string `yaml:"filepath" koanf:"filepath"`
	Environment       string `yaml:"environment" koanf:"environment" validate:"omitempty,alphanum"`
}

// LogConfig selects the level and layout of the console loggers.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Format string `yaml:"format" koanf:"format" validate:"omitempty,oneof=text json"`
}

// Config aggregates connection, migration, seeding and logging settings. It
// is a plain value: build it once, validate it, then hand it to Open.
type Config struct {
	Connection ConnectionConfig  `yaml:"connection" koanf:"connection"`
	Migrate    DataMigrateConfig `yaml:"migrate" koanf:"migrate"`
	Init       DataInitConfig    `yaml:"init" koanf:"init"`
	Log        LogConfig         `yaml:"log" koanf:"log"`
}

// DefaultConnectionConfig returns the pool defaults: a local MySQL database
// db_1 reached as user/user1234 through five pooled connections.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		Type:              TypeMySQL,
		Host:              "localhost",
		Port:              3306,
		Username:          "user",
		Password:          "user1234",
		DBName:            "db_1",
		Charset:           "utf8mb4",
		PoolSize:          5,
		ConnMaxLifetime:   time.Hour,
		ConnMaxIdleTime:   time.Minute * 30,
		ConnectTimeout:    time.Second * 10,
		ReadTimeout:       time.Second * 30,
		WriteTimeout:      time.Second * 30,
		MaxReconnectTries: 3,
		ReconnectInterval: time.Second * 5,
		SlowQueryTime:     time.Second * 2,
	}
}

// DefaultConfig returns the full default configuration.
func DefaultConfig() Config {
	return Config{
		Connection: DefaultConnectionConfig(),
		Migrate:    DataMigrateConfig{EnableForeignKey: true},
		Init:       DataInitConfig{Filepath: "configs/sql", Environment: "prod"},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the rules that span fields.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cc := c.Connection
	if cc.MaxIdleConns > cc.PoolSize {
		return fmt.Errorf("%w: max_idle_conns (%d) exceeds pool_size (%d)", ErrInvalidConfig, cc.MaxIdleConns, cc.PoolSize)
	}
	if cc.Driver != "" && cc.Type != TypePostgres {
		return fmt.Errorf("%w: driver %q only applies to postgres", ErrInvalidConfig, cc.Driver)
	}
	if cc.SSLMode != "" && cc.Type != TypePostgres {
		return fmt.Errorf("%w: sslmode only applies to postgres", ErrInvalidConfig)
	}
	return nil
}

// IdleConns returns the idle connection cap applied to the pool.
func (c ConnectionConfig) IdleConns() int {
	if c.MaxIdleConns == 0 {
		return c.PoolSize
	}
	return c.MaxIdleConns
}

// Address returns the DSN used to open the connection. An explicit DSN wins.
func (c ConnectionConfig) Address() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch c.Type {
	case TypeMySQL:
		mc := mysql.NewConfig()
		mc.User = c.Username
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
		mc.DBName = c.DBName
		mc.ParseTime = true
		mc.Timeout = c.ConnectTimeout
		mc.ReadTimeout = c.ReadTimeout
		mc.WriteTimeout = c.WriteTimeout
		if c.Charset != "" {
			mc.Params = map[string]string{"charset": c.Charset}
		}
		return mc.FormatDSN()
	case TypePostgres:
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		q := url.Values{}
		q.Set("sslmode", sslMode)
		if c.ConnectTimeout > 0 {
			q.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.Username, c.Password),
			Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:     "/" + c.DBName,
			RawQuery: q.Encode(),
		}
		return u.String()
	case TypeSQLite:
		return fmt.Sprintf("file:%s.db?cache=shared", c.DBName)
	}
	return ""
}

// Redacted returns a copy safe to log.
func (c ConnectionConfig) Redacted() ConnectionConfig {
	if c.Password != "" {
		c.Password = "******"
	}
	if c.DSN != "" {
		if u, err := url.Parse(c.DSN); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), "******")
				c.DSN = u.String()
			}
		}
	}
	return c
}
