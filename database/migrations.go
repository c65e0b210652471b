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
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/uptrace/bun"
)

var (
	ErrUnknownMigration    = errors.New("database: unknown migration version")
	ErrMigrationNotApplied = errors.New("database: migration not applied")
)

// Migration is an applied migration record.
type Migration struct {
	bun.BaseModel `bun:"table:migrations"`

	Version     string    `bun:"version,pk,type:varchar(32)"`
	Name        string    `bun:"name,type:varchar(100),notnull"`
	AppliedAt   time.Time `bun:"applied_at,notnull"`
	Description string    `bun:"description,type:varchar(255)"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes a single migration version with up/down functions.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
	Down        MigrationFunc
}

// MigrationManager creates and drops the registered tables, recording each
// applied version in the migrations table.
type MigrationManager struct {
	db     *bun.DB
	models []SQLModel
	fks    *ForeignKeyManager
	logger Logger
	clock  clockwork.Clock
}

// NewMigrationManager builds a manager over the given models. A nil fks
// creates tables without foreign keys.
func NewMigrationManager(db *bun.DB, models []SQLModel, fks *ForeignKeyManager, logger Logger, clock clockwork.Clock) *MigrationManager {
	if logger == nil {
		logger = NopLogger()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MigrationManager{db: db, models: models, fks: fks, logger: logger, clock: clock}
}

func (mm *MigrationManager) migrations() []MigrationItem {
	items := []MigrationItem{
		{
			Version:     "001",
			Name:        "create_tables",
			Description: "Create registered tables with their foreign keys",
			Up:          mm.createTables,
			Down:        mm.dropTables,
		},
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Version < items[j].Version })
	return items
}

// RunMigrations applies every migration not yet recorded, in version order.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if err := mm.createMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	for _, migration := range mm.migrations() {
		if err := mm.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
		}
	}
	mm.logger.Info("Database migrations completed")
	return nil
}

func (mm *MigrationManager) createMigrationTable(ctx context.Context) error {
	_, err := mm.db.NewCreateTable().
		Model((*Migration)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (mm *MigrationManager) isApplied(ctx context.Context, version string) (bool, error) {
	return mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", version).
		Exists(ctx)
}

func (mm *MigrationManager) runMigration(ctx context.Context, migration MigrationItem) error {
	applied, err := mm.isApplied(ctx, migration.Version)
	if err != nil || applied {
		return err
	}

	err = mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := migration.Up(ctx, tx); err != nil {
			return err
		}
		record := &Migration{
			Version:     migration.Version,
			Name:        migration.Name,
			AppliedAt:   mm.clock.Now(),
			Description: migration.Description,
		}
		_, err := tx.NewInsert().Model(record).Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}
	mm.logger.Info("Migration executed successfully", "version", migration.Version, "name", migration.Name)
	return nil
}

// RollbackMigration reverts one applied migration. An empty version reverts
// the most recently applied one.
func (mm *MigrationManager) RollbackMigration(ctx context.Context, version string) error {
	if err := mm.createMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	if version == "" {
		applied, err := mm.GetAppliedMigrations(ctx)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			return ErrMigrationNotApplied
		}
		version = applied[len(applied)-1].Version
	}

	var item *MigrationItem
	for _, m := range mm.migrations() {
		if m.Version == version {
			item = &m
			break
		}
	}
	if item == nil {
		return fmt.Errorf("%w: %s", ErrUnknownMigration, version)
	}
	applied, err := mm.isApplied(ctx, version)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("%w: %s", ErrMigrationNotApplied, version)
	}

	err = mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if item.Down != nil {
			if err := item.Down(ctx, tx); err != nil {
				return err
			}
		}
		_, err := tx.NewDelete().
			Model((*Migration)(nil)).
			Where("version = ?", version).
			Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to roll back migration %s: %w", version, err)
	}
	mm.logger.Info("Migration rolled back", "version", version, "name", item.Name)
	return nil
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().
		Model(&migrations).
		Order("version ASC").
		Scan(ctx)
	return migrations, err
}

func (mm *MigrationManager) createTables(ctx context.Context, db bun.IDB) error {
	for _, model := range mm.models {
		q := db.NewCreateTable().Model(model.Instance()).IfNotExists()
		if mm.fks != nil {
			for _, fk := range mm.fks.ConstraintsForTable(TableOf(model)) {
				q = q.ForeignKey(fk.Clause())
			}
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table %s: %w", TableOf(model), err)
		}
		mm.logger.Debug("Table created", "table", TableOf(model))
	}
	return nil
}

func (mm *MigrationManager) dropTables(ctx context.Context, db bun.IDB) error {
	for i := len(mm.models) - 1; i >= 0; i-- {
		model := mm.models[i]
		if _, err := db.NewDropTable().Model(model.Instance()).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", TableOf(model), err)
		}
		mm.logger.Debug("Table dropped", "table", TableOf(model))
	}
	return nil
}
