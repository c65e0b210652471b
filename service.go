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
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tomoncle/roster/database"
	"github.com/tomoncle/roster/model"
	"github.com/tomoncle/roster/repository"
)

type teamNotFoundError struct{}

func (teamNotFoundError) Error() string { return "team name not found" }

func (teamNotFoundError) Unwrap() error { return repository.ErrNotFound }

// ErrTeamNotFound is returned when a player names a team that does not
// exist. It matches repository.ErrNotFound.
var ErrTeamNotFound error = teamNotFoundError{}

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreatePlayerWithTeamDto is the input of AddPlayerWithTeam.
type CreatePlayerWithTeamDto struct {
	PlayerName  string `json:"player_name" validate:"required,max=50"`
	PlayerGoals int64  `json:"player_goals" validate:"min=0"`
	TeamName    string `json:"team_name" validate:"required,max=50"`
}

// PlayersWithTeamsService creates players attached to existing teams and
// lists players together with their teams.
type PlayersWithTeamsService struct {
	teams   repository.TeamRepository
	players repository.PlayerRepository
	joined  repository.PlayerWithTeamRepository
	logger  database.Logger
}

func NewPlayersWithTeamsService(
	teams repository.TeamRepository,
	players repository.PlayerRepository,
	joined repository.PlayerWithTeamRepository,
	logger database.Logger,
) *PlayersWithTeamsService {
	if logger == nil {
		logger = database.NopLogger()
	}
	return &PlayersWithTeamsService{teams: teams, players: players, joined: joined, logger: logger}
}

// AddPlayerWithTeam inserts a player on the team named dto.TeamName and
// returns the player identity. The lookup and the insert are separate
// units of work: a team deleted in between leaves the insert to fail on
// the foreign key, or to succeed where storage does not enforce one.
func (s *PlayersWithTeamsService) AddPlayerWithTeam(ctx context.Context, dto CreatePlayerWithTeamDto) (int64, error) {
	opID := uuid.NewString()
	if err := validate.Struct(dto); err != nil {
		return 0, fmt.Errorf("%w: %w", repository.ErrInvalidArgument, err)
	}

	team, err := s.teams.FindByName(ctx, dto.TeamName)
	if err != nil {
		s.logger.Error("team lookup failed", "op_id", opID, "team", dto.TeamName, "error", err)
		return 0, err
	}
	if team == nil {
		s.logger.Warn("team not found", "op_id", opID, "team", dto.TeamName)
		return 0, fmt.Errorf("%w: %q", ErrTeamNotFound, dto.TeamName)
	}

	id, err := s.players.Insert(ctx, model.NewPlayer(dto.PlayerName, dto.PlayerGoals, team.ID))
	if err != nil {
		s.logger.Error("player insert failed", "op_id", opID, "player", dto.PlayerName, "error", err)
		return 0, err
	}
	s.logger.Info("player added", "op_id", opID, "player_id", id, "team_id", team.ID)
	return id, nil
}

// PlayersWithTeams lists players whose team has low <= points <= high.
func (s *PlayersWithTeamsService) PlayersWithTeams(ctx context.Context, low, high int64) ([]*model.PlayerWithTeamView, error) {
	if low > high {
		return nil, fmt.Errorf("%w: low %d is above high %d", repository.ErrInvalidArgument, low, high)
	}
	return s.joined.FindAllPlayersWithTeams(ctx, low, high)
}
