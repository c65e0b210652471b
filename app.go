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

package roster

import (
	"context"
	"errors"

	"github.com/tomoncle/roster/database"
	"github.com/tomoncle/roster/model"
	"github.com/tomoncle/roster/repository"
	"github.com/uptrace/bun"
)

// Models returns the tables of the roster schema in creation order. Players
// reference teams and follow their deletes and identity updates.
func Models() []database.SQLModel {
	return []database.SQLModel{
		database.NewModelAdapter((*model.Team)(nil), 1),
		database.NewModelAdapter((*model.Player)(nil), 2, database.ForeignKeyConstraint{
			Table:           "players",
			Column:          "team_id",
			ReferenceTable:  "teams",
			ReferenceColumn: "id_",
			OnDelete:        "CASCADE",
			OnUpdate:        "CASCADE",
		}),
	}
}

// App wires the repositories and the service over one database. Build it
// once at startup, pass it to whatever needs it and Close it on shutdown.
type App struct {
	Teams            repository.TeamRepository
	Players          repository.PlayerRepository
	PlayersWithTeams repository.PlayerWithTeamRepository
	Service          *PlayersWithTeamsService

	database *database.Database
	db       *bun.DB
	logger   database.Logger
}

// New opens the database described by cfg with the roster models registered
// and builds the App on it. Close releases the pool.
func New(ctx context.Context, cfg database.Config, opts ...database.Option) (*App, error) {
	opts = append([]database.Option{database.WithModels(Models()...)}, opts...)
	d, err := database.Open(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	app, err := NewWithDB(d.DB(), d.Logger())
	if err != nil {
		return nil, errors.Join(err, d.Close())
	}
	app.database = d
	return app, nil
}

// NewWithDB builds the App on a connection owned by the caller. Close does
// not close db.
func NewWithDB(db *bun.DB, logger database.Logger) (*App, error) {
	if logger == nil {
		logger = database.NopLogger()
	}
	opt := repository.WithLogger(logger)
	teams, err := repository.NewTeamRepository(db, opt)
	if err != nil {
		return nil, err
	}
	players, err := repository.NewPlayerRepository(db, opt)
	if err != nil {
		return nil, err
	}
	joined, err := repository.NewPlayerWithTeamRepository(db, opt)
	if err != nil {
		return nil, err
	}
	return &App{
		Teams:            teams,
		Players:          players,
		PlayersWithTeams: joined,
		Service:          NewPlayersWithTeamsService(teams, players, joined, logger),
		db:               db,
		logger:           logger,
	}, nil
}

func (a *App) DB() *bun.DB { return a.db }

// Database returns the managed database, or nil when the App was built with
// NewWithDB.
func (a *App) Database() *database.Database { return a.database }

func (a *App) Logger() database.Logger { return a.logger }

func (a *App) Close() error {
	if a.database == nil {
		return nil
	}
	return a.database.Close()
}
