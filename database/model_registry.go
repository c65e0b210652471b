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
	"reflect"
	"sort"
	"sync"

	"github.com/tomoncle/roster/sqlgen"
)

// SQLModel is a table the migrations create. Instance returns a Bun-tagged
// struct pointer; lower Priority tables are created first and dropped last.
type SQLModel interface {
	Instance() any
	Priority() int
	ForeignKeys() []ForeignKeyConstraint
}

// ModelRegistry stores SQL models and exposes them in a deterministic order.
type ModelRegistry interface {
	Register(models ...SQLModel)
	Models() []SQLModel
}

type modelRegistry struct {
	models []SQLModel
	mutex  sync.RWMutex
}

func NewModelRegistry(models ...SQLModel) ModelRegistry {
	r := &modelRegistry{}
	r.Register(models...)
	return r
}

func (r *modelRegistry) Register(models ...SQLModel) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.models = append(r.models, models...)
}

// Models returns the models sorted by ascending priority, keeping
// registration order among equal priorities.
func (r *modelRegistry) Models() []SQLModel {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]SQLModel, len(r.models))
	copy(result, r.models)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority() < result[j].Priority()
	})
	return result
}

type ModelAdapter struct {
	instance    any
	priority    int
	foreignKeys []ForeignKeyConstraint
}

// NewModelAdapter wraps a struct pointer, its priority and the foreign keys
// of its table into an SQLModel.
func NewModelAdapter(instance any, priority int, fks ...ForeignKeyConstraint) *ModelAdapter {
	return &ModelAdapter{instance: instance, priority: priority, foreignKeys: fks}
}

func (a *ModelAdapter) Instance() any { return a.instance }

func (a *ModelAdapter) Priority() int { return a.priority }

func (a *ModelAdapter) ForeignKeys() []ForeignKeyConstraint { return a.foreignKeys }

// TableOf returns the table name a model instance maps to.
func TableOf(model SQLModel) string {
	return sqlgen.TableName(reflect.TypeOf(model.Instance()))
}
