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
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var referentialActions = []string{"CASCADE", "RESTRICT", "SET NULL", "SET DEFAULT", "NO ACTION"}

// ForeignKeyConstraint describes a reference from Table.Column to
// ReferenceTable.ReferenceColumn. The store enforces it.
type ForeignKeyConstraint struct {
	Table           string `yaml:"table"`
	Column          string `yaml:"column"`
	ReferenceTable  string `yaml:"reference_table"`
	ReferenceColumn string `yaml:"reference_column"`
	OnDelete        string `yaml:"on_delete"`
	OnUpdate        string `yaml:"on_update"`
	ConstraintName  string `yaml:"constraint_name"`
}

// Name returns the explicit constraint name or fk_<table>_<column>.
func (fk ForeignKeyConstraint) Name() string {
	if fk.ConstraintName != "" {
		return fk.ConstraintName
	}
	return fmt.Sprintf("fk_%s_%s", fk.Table, fk.Column)
}

// Clause renders the constraint body for CREATE TABLE ... FOREIGN KEY.
func (fk ForeignKeyConstraint) Clause() string {
	clause := fmt.Sprintf("(%s) REFERENCES %s (%s)", fk.Column, fk.ReferenceTable, fk.ReferenceColumn)
	if fk.OnDelete != "" {
		clause += " ON DELETE " + strings.ToUpper(fk.OnDelete)
	}
	if fk.OnUpdate != "" {
		clause += " ON UPDATE " + strings.ToUpper(fk.OnUpdate)
	}
	return clause
}

// AlterStatement renders the constraint as an ALTER TABLE statement for
// tables that already exist.
func (fk ForeignKeyConstraint) AlterStatement() string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY %s", fk.Table, fk.Name(), fk.Clause())
}

// Validate checks for missing names and unknown referential actions.
func (fk ForeignKeyConstraint) Validate() error {
	var errs []error
	if fk.Table == "" {
		errs = append(errs, errors.New("table name cannot be empty"))
	}
	if fk.Column == "" {
		errs = append(errs, fmt.Errorf("column name cannot be empty: %s", fk.Table))
	}
	if fk.ReferenceTable == "" {
		errs = append(errs, fmt.Errorf("reference table name cannot be empty: %s.%s", fk.Table, fk.Column))
	}
	if fk.ReferenceColumn == "" {
		errs = append(errs, fmt.Errorf("reference column name cannot be empty: %s.%s -> %s", fk.Table, fk.Column, fk.ReferenceTable))
	}
	for _, action := range []struct{ name, value string }{{"delete", fk.OnDelete}, {"update", fk.OnUpdate}} {
		if action.value != "" && !isReferentialAction(action.value) {
			errs = append(errs, fmt.Errorf("invalid on %s action %q, constraint: %s", action.name, action.value, fk.Name()))
		}
	}
	return errors.Join(errs...)
}

func isReferentialAction(s string) bool {
	for _, action := range referentialActions {
		if strings.EqualFold(strings.TrimSpace(s), action) {
			return true
		}
	}
	return false
}

// ForeignKeyConfig is the YAML document listing foreign key constraints.
type ForeignKeyConfig struct {
	ForeignKeys []ForeignKeyConstraint `yaml:"foreign_keys"`
}

// LoadForeignKeys reads and validates the constraints listed in a YAML file.
func LoadForeignKeys(path string) ([]ForeignKeyConstraint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read foreign key file: %w", err)
	}
	var cfg ForeignKeyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse foreign key file %s: %w", path, err)
	}
	var errs []error
	for _, fk := range cfg.ForeignKeys {
		if err := fk.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("foreign key validation failed, %d errors in total: %w", len(errs), errors.Join(errs...))
	}
	return cfg.ForeignKeys, nil
}

// ForeignKeyManager resolves the constraints of each table: those declared
// by the registered models, replaced per table and column by the file ones.
type ForeignKeyManager struct {
	constraints []ForeignKeyConstraint
	logger      Logger
}

// NewForeignKeyManager merges model-declared constraints with the optional
// YAML file at path. An empty path uses the model constraints only.
func NewForeignKeyManager(logger Logger, models []SQLModel, path string) (*ForeignKeyManager, error) {
	if logger == nil {
		logger = NopLogger()
	}
	var constraints []ForeignKeyConstraint
	for _, m := range models {
		constraints = append(constraints, m.ForeignKeys()...)
	}
	if path != "" {
		overrides, err := LoadForeignKeys(path)
		if err != nil {
			return nil, err
		}
		constraints = mergeForeignKeys(constraints, overrides)
		logger.Debug("Loaded foreign key constraints from file", "path", path, "count", len(overrides))
	}
	for _, fk := range constraints {
		if err := fk.Validate(); err != nil {
			return nil, err
		}
	}
	return &ForeignKeyManager{constraints: constraints, logger: logger}, nil
}

func mergeForeignKeys(base, overrides []ForeignKeyConstraint) []ForeignKeyConstraint {
	merged := append([]ForeignKeyConstraint{}, base...)
	for _, o := range overrides {
		replaced := false
		for i, b := range merged {
			if strings.EqualFold(b.Table, o.Table) && strings.EqualFold(b.Column, o.Column) {
				merged[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, o)
		}
	}
	return merged
}

// ConstraintsForTable returns the constraints declared on table.
func (fkm *ForeignKeyManager) ConstraintsForTable(table string) []ForeignKeyConstraint {
	var result []ForeignKeyConstraint
	for _, fk := range fkm.constraints {
		if strings.EqualFold(fk.Table, table) {
			result = append(result, fk)
		}
	}
	return result
}

func (fkm *ForeignKeyManager) Constraints() []ForeignKeyConstraint {
	return fkm.constraints
}
