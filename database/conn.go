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
	"fmt"
	"io"

	"github.com/jonboulle/clockwork"
	"github.com/uptrace/bun"
)

// Database is an open connection together with the managers built for it.
// Create one with Open and release it with Close.
type Database struct {
	config  Config
	logger  Logger
	clock   clockwork.Clock
	manager *Manager
	models  []SQLModel
	fks     *ForeignKeyManager
}

// Option customizes Open.
type Option func(*options)

type options struct {
	logger   Logger
	clock    clockwork.Clock
	models   []SQLModel
	queryLog io.Writer
}

// WithLogger sets the logger used by the connection and its managers.
func WithLogger(logger Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithModels registers the models that migrations create, in priority order.
func WithModels(models ...SQLModel) Option {
	return func(o *options) { o.models = append(o.models, models...) }
}

// WithQueryLogWriter redirects the query log hook.
func WithQueryLogWriter(w io.Writer) Option {
	return func(o *options) { o.queryLog = w }
}

// Open validates cfg, connects, and then migrates and seeds when the
// configuration asks for it. A failure after connecting closes the pool.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = NewLogger("database")
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}
	if cfg.Log.Level != "" {
		o.logger.SetLevel(ParseLevel(cfg.Log.Level))
	}

	d := &Database{
		config:  cfg,
		logger:  o.logger,
		clock:   o.clock,
		manager: NewManager(cfg.Connection, o.logger, o.clock),
		models:  NewModelRegistry(o.models...).Models(),
	}
	if o.queryLog != nil {
		d.manager.SetQueryLogOutput(o.queryLog)
	}
	if err := d.manager.Connect(ctx); err != nil {
		return nil, err
	}

	if err := d.initialize(ctx); err != nil {
		_ = d.manager.Disconnect()
		return nil, err
	}
	d.manager.StartHealthCheck(cfg.Connection.HealthCheckInterval)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	if d.config.Migrate.EnableForeignKey {
		fks, err := NewForeignKeyManager(d.logger, d.models, d.config.Migrate.ForeignKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load foreign keys: %w", err)
		}
		d.fks = fks
	}
	if d.config.Migrate.EnableMigrateOnStartup {
		if err := d.Migrations().RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	if d.config.Init.AutoInitOnStartup {
		if _, err := d.Seeder().ExecuteInitialization(ctx); err != nil {
			return fmt.Errorf("failed to initialize data: %w", err)
		}
	}
	return nil
}

// DB returns the Bun handle, nil after Close.
func (d *Database) DB() *bun.DB {
	return d.manager.DB()
}

func (d *Database) Config() Config {
	return d.config
}

func (d *Database) Logger() Logger {
	return d.logger
}

func (d *Database) Manager() *Manager {
	return d.manager
}

// Migrations returns a migration manager over the registered models.
func (d *Database) Migrations() *MigrationManager {
	return NewMigrationManager(d.DB(), d.models, d.fks, d.logger, d.clock)
}

// Seeder returns a SQL initializer for the configured environment and path.
func (d *Database) Seeder() *SQLInitManager {
	s := NewSQLInitManager(d.DB(), d.config.Init.Environment, d.logger, d.clock)
	if d.config.Init.Filepath != "" {
		s.SetSQLRootPath(d.config.Init.Filepath)
	}
	return s
}

func (d *Database) HealthCheck(ctx context.Context) *HealthStatus {
	return d.manager.HealthCheck(ctx)
}

func (d *Database) Stats() *DBStats {
	return d.manager.Stats()
}

// Close stops background health checks and closes the pool.
func (d *Database) Close() error {
	return d.manager.Disconnect()
}
