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
	"github.com/uptrace/bun/schema"
)

// CrudRepository defines the identity-based operations for an entity type.
// Mutating calls run in their own transaction and return the affected
// identity.
type CrudRepository[T any] interface {
	Insert(ctx context.Context, record *T) (int64, error)

	InsertMany(ctx context.Context, records ...*T) (int64, error)

	Update(ctx context.Context, id int64, record *T) (int64, error)

	FindAll(ctx context.Context) ([]*T, error)

	FindByID(ctx context.Context, id int64) (*T, error)

	Delete(ctx context.Context, id int64) (int64, error)

	DeleteAll(ctx context.Context) error
}

// QueryRepository defines filtered reads. Filters are WHERE conditions with ?
// placeholders.
type QueryRepository[T any] interface {
	FindWhere(ctx context.Context, filter *types.QueryFilter) ([]*T, error)
	FindOne(ctx context.Context, filter *types.QueryFilter) (*T, error)
	Count(ctx context.Context, filter *types.QueryFilter) (int, error)
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)
}

// Repository combines CRUD, filtered and paged reads over one table.
type Repository[T any] interface {
	CrudRepository[T]
	QueryRepository[T]
	PageQueryRepository[T]
	Table() string
	Dialect() schema.Dialect
}

type TeamRepository interface {
	Repository[model.Team]

	// FindByName returns the first team, by identity, with exactly name, or
	// nil when there is none. The match is case-sensitive on every dialect.
	FindByName(ctx context.Context, name string) (*model.Team, error)

	// FindAllByPointsBetween returns the teams with low <= points <= high.
	FindAllByPointsBetween(ctx context.Context, low, high int64) ([]*model.Team, error)
}

type PlayerRepository interface {
	Repository[model.Player]

	FindAllByTeamID(ctx context.Context, teamID int64) ([]*model.Player, error)
}

// PlayerWithTeamRepository reads the player and team projection.
type PlayerWithTeamRepository interface {
	// FindAllPlayersWithTeams returns every player whose team has
	// low <= points <= high, ordered by player identity.
	FindAllPlayersWithTeams(ctx context.Context, low, high int64) ([]*model.PlayerWithTeamView, error)
}
