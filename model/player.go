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

package model

import "github.com/uptrace/bun"

// Player is a row of the players table. TeamID references teams.id_; the
// reference is enforced by storage only.
type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	ID     int64  `bun:"id_,pk,autoincrement" json:"id"`
	Name   string `bun:"name,type:varchar(50),notnull" json:"name"`
	Goals  *int64 `bun:"goals,default:0" json:"goals"`
	TeamID *int64 `bun:"team_id" json:"team_id"`
}

// NewPlayer returns an unsaved player attached to teamID.
func NewPlayer(name string, goals int64, teamID int64) *Player {
	return &Player{Name: name, Goals: Int64(goals), TeamID: Int64(teamID)}
}

// PlayerWithTeamView is a read-only projection of a player joined with its team.
type PlayerWithTeamView struct {
	PlayerID    int64  `bun:"player_id" json:"player_id"`
	PlayerName  string `bun:"player_name" json:"player_name"`
	PlayerGoals int64  `bun:"player_goals" json:"player_goals"`
	TeamID      int64  `bun:"team_id" json:"team_id"`
	TeamName    string `bun:"team_name" json:"team_name"`
}

// Int64 returns a pointer to v, for optional columns.
func Int64(v int64) *int64 {
	return &v
}
