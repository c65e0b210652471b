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

package sqlgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/roster/model"
)

type noIdentity struct {
	Name string `bun:"name"`
}

func teamBuilder(t *testing.T) *Builder[model.Team] {
	t.Helper()
	b, err := NewBuilder[model.Team]()
	require.NoError(t, err)
	return b
}

func TestInsertColumnsExcludeIdentity(t *testing.T) {
	assert.Equal(t, "name, points", teamBuilder(t).InsertColumns())

	pb, err := NewBuilder[model.Player]()
	require.NoError(t, err)
	assert.Equal(t, "name, goals, team_id", pb.InsertColumns())
}

func TestInsertValuesQuoteText(t *testing.T) {
	b := teamBuilder(t)
	assert.Equal(t, "'A', 30", b.InsertValues(model.NewTeam("A", 30)))
	assert.Equal(t, "'O''Brien', NULL", b.InsertValues(&model.Team{Name: "O'Brien"}))
}

func TestUpdateAssignmentsSkipAbsentFields(t *testing.T) {
	b := teamBuilder(t)
	assert.Equal(t, "name='A', points=30", b.UpdateAssignments(&model.Team{ID: 9, Name: "A", Points: model.Int64(30)}))
	assert.Equal(t, "points=0", b.UpdateAssignments(&model.Team{Points: model.Int64(0)}))
	assert.Equal(t, "", b.UpdateAssignments(&model.Team{ID: 3}))
}

func TestInsertStatement(t *testing.T) {
	b := teamBuilder(t)

	stmt, err := b.Insert(model.NewTeam("A", 30))
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO teams (name, points) VALUES (?, ?)", stmt.Query)
	assert.Equal(t, []any{"A", int64(30)}, stmt.Args)
	assert.Equal(t, "INSERT INTO teams (name, points) VALUES ('A', 30)", stmt.String())

	stmt, err = b.Insert(model.NewTeam("A", 1), &model.Team{Name: "B"})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO teams (name, points) VALUES (?, ?), (?, ?)", stmt.Query)
	assert.Equal(t, []any{"A", int64(1), "B", nil}, stmt.Args)
	assert.Equal(t, "INSERT INTO teams (name, points) VALUES ('A', 1), ('B', NULL)", stmt.String())
}

func TestInsertRejectsEmptyAndNil(t *testing.T) {
	b := teamBuilder(t)

	_, err := b.Insert()
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, err = b.Insert(model.NewTeam("A", 1), nil)
	assert.ErrorIs(t, err, ErrNilRecord)
}

func TestUpdateStatement(t *testing.T) {
	b := teamBuilder(t)

	stmt, err := b.Update(4, &model.Team{Points: model.Int64(50)})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE teams SET points = ? WHERE id_ = ?", stmt.Query)
	assert.Equal(t, []any{int64(50), int64(4)}, stmt.Args)
	assert.Equal(t, "UPDATE teams SET points = 50 WHERE id_ = 4", stmt.String())

	_, err = b.Update(4, &model.Team{})
	assert.ErrorIs(t, err, ErrNoAssignments)
}

func TestSelectAndDeleteStatements(t *testing.T) {
	b := teamBuilder(t)

	assert.Equal(t, "SELECT id_, name, points FROM teams ORDER BY id_", b.SelectAll().Query)
	assert.Equal(t, "SELECT id_, name, points FROM teams WHERE id_ = 2", b.SelectByID(2).String())
	assert.Equal(t, "SELECT id_, name, points FROM teams WHERE name = 'A' ORDER BY id_", b.SelectWhere("name = ?", "A").String())
	assert.Equal(t, "SELECT count(*) FROM teams", b.Count("").Query)
	assert.Equal(t, "DELETE FROM teams WHERE id_ = 2", b.Delete(2).String())
	assert.Equal(t, "DELETE FROM teams WHERE id_ > 0", b.DeleteAll().Query)
}

func TestStatementStringSkipsQuotedPlaceholders(t *testing.T) {
	b := teamBuilder(t)

	stmt := b.SelectWhere("name <> 'who?' AND points > ?", 10)
	assert.Equal(t, "SELECT id_, name, points FROM teams WHERE name <> 'who?' AND points > 10 ORDER BY id_", stmt.String())

	stmt = b.SelectWhere("name = 'it''s ?' OR \"name\" = ?", "B")
	assert.Equal(t, "SELECT id_, name, points FROM teams WHERE name = 'it''s ?' OR \"name\" = 'B' ORDER BY id_", stmt.String())

	stmt = b.SelectWhere("name = ?", "?'")
	assert.Equal(t, "SELECT id_, name, points FROM teams WHERE name = '?''' ORDER BY id_", stmt.String())
}

func TestSelectPageValidatesOrders(t *testing.T) {
	b := teamBuilder(t)

	stmt, err := b.SelectPage("points >= ?", []any{10}, []string{"points desc", "name"}, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id_, name, points FROM teams WHERE points >= ? ORDER BY points DESC, name, id_ LIMIT ? OFFSET ?", stmt.Query)
	assert.Equal(t, []any{10, 5, 10}, stmt.Args)

	_, err = b.SelectPage("", nil, []string{"points; DROP TABLE teams"}, 5, 0)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = b.SelectPage("", nil, []string{"points sideways"}, 5, 0)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestIdentityRoundTrip(t *testing.T) {
	b := teamBuilder(t)
	team := model.NewTeam("A", 1)
	assert.Zero(t, b.Identity(team))

	b.SetIdentity(team, 42)
	assert.Equal(t, int64(42), team.ID)
	assert.Equal(t, int64(42), b.Identity(team))
}

func TestNewBuilderRequiresIdentity(t *testing.T) {
	_, err := NewBuilder[noIdentity]()
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestLiteral(t *testing.T) {
	ts := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

	assert.Equal(t, "NULL", Literal(nil, KindText))
	assert.Equal(t, "'abc'", Literal("abc", KindText))
	assert.Equal(t, "'it''s'", Literal("it's", KindOther))
	assert.Equal(t, "12", Literal(int64(12), KindInteger))
	assert.Equal(t, "1.5", Literal(1.5, KindFloat))
	assert.Equal(t, "true", Literal(true, KindBoolean))
	assert.Equal(t, "'2025-03-14'", Literal(ts, KindDate))
	assert.Equal(t, "'2025-03-14 15:09:26'", Literal(ts, KindDateTime))
	assert.Equal(t, "'2025-03-14 15:09:26'", Literal(ts, KindOther))
}
