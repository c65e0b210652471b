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
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"github.com/tomoncle/roster/database"
	"github.com/tomoncle/roster/model"
	"github.com/tomoncle/roster/sqlgen"
	"github.com/uptrace/bun"
)

type playerWithTeamRepositoryImpl struct {
	db     *bun.DB
	logger database.Logger
	query  string
}

func NewPlayerWithTeamRepository(db *bun.DB, opts ...Option) (PlayerWithTeamRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database is nil", ErrInvalidArgument)
	}
	o := options{logger: database.NopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	players := sqlgen.TableName(reflect.TypeOf(model.Player{}))
	teams := sqlgen.TableName(reflect.TypeOf(model.Team{}))
	query := "SELECT p.id_ AS player_id, p.name AS player_name, COALESCE(p.goals, 0) AS player_goals, " +
		"t.id_ AS team_id, t.name AS team_name " +
		fmt.Sprintf("FROM %s AS p INNER JOIN %s AS t ON p.team_id = t.id_ ", players, teams) +
		"WHERE t.points BETWEEN ? AND ? ORDER BY p.id_"
	return &playerWithTeamRepositoryImpl{db: db, logger: o.logger, query: query}, nil
}

func (r *playerWithTeamRepositoryImpl) FindAllPlayersWithTeams(ctx context.Context, low, high int64) ([]*model.PlayerWithTeamView, error) {
	stmt := sqlgen.Statement{Query: r.query, Args: []any{low, high}}
	r.logger.Debug("execute statement", "op", "find-players-with-teams", "sql", stmt.String())

	views := make([]*model.PlayerWithTeamView, 0)
	err := r.db.NewRaw(stmt.Query, stmt.Args...).Scan(ctx, &views)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, database.NewStorageError("find-players-with-teams", err)
	}
	return views, nil
}
