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

package repository

import (
	"context"

	"github.com/tomoncle/roster/model"
	"github.com/tomoncle/roster/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type teamRepositoryImpl struct {
	*baseRepositoryImpl[model.Team]
}

func NewTeamRepository(db *bun.DB, opts ...Option) (TeamRepository, error) {
	base, err := newBaseRepository[model.Team](db, opts...)
	if err != nil {
		return nil, err
	}
	return &teamRepositoryImpl{baseRepositoryImpl: base}, nil
}

func (r *teamRepositoryImpl) FindByName(ctx context.Context, name string) (*model.Team, error) {
	return r.FindOne(ctx, exactNameFilter(r.db.Dialect().Name(), name))
}

// exactNameFilter compares bytes on MySQL, whose default collations ignore
// case and trailing spaces.
func exactNameFilter(d dialect.Name, name string) *types.QueryFilter {
	if d == dialect.MySQL {
		return types.NewQueryFilter("BINARY name = ?", name)
	}
	return types.NewQueryFilter("name = ?", name)
}

func (r *teamRepositoryImpl) FindAllByPointsBetween(ctx context.Context, low, high int64) ([]*model.Team, error) {
	return r.FindWhere(ctx, types.NewQueryFilter("points BETWEEN ? AND ?", low, high))
}
