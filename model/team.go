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

// Team is a row of the teams table. ID is zero until storage assigns it.
type Team struct {
	bun.BaseModel `bun:"table:teams,alias:t"`

	ID     int64  `bun:"id_,pk,autoincrement" json:"id"`
	Name   string `bun:"name,type:varchar(50),notnull" json:"name"`
	Points *int64 `bun:"points,default:0" json:"points"`
}

// NewTeam returns an unsaved team with points set.
func NewTeam(name string, points int64) *Team {
	return &Team{Name: name, Points: Int64(points)}
}

// HasPointsBetween reports whether the team's points lie in [low, high].
// A team without points never matches.
func (t *Team) HasPointsBetween(low, high int64) bool {
	if t.Points == nil {
		return false
	}
	return low <= *t.Points && *t.Points <= high
}
