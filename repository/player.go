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
)

type playerRepositoryImpl struct {
	*baseRepositoryImpl[model.Player]
}

func NewPlayerRepository(db *bun.DB, opts ...Option) (PlayerRepository, error) {
	base, err := newBaseRepository[model.Player](db, opts...)
	if err != nil {
		return nil, err
	}
	return &playerRepositoryImpl{baseRepositoryImpl: base}, nil
}

func (r *playerRepositoryImpl) FindAllByTeamID(ctx context.Context, teamID int64) ([]*model.Player, error) {
	return r.FindWhere(ctx, types.NewQueryFilter("team_id = ?", teamID))
}
