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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/roster/database"
	"github.com/tomoncle/roster/model"
	"github.com/tomoncle/roster/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

func newMockDB(t *testing.T, d schema.Dialect) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = sqlDB.Close()
	})
	return bun.NewDB(sqlDB, d), mock
}

func mockTeams(t *testing.T) (TeamRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t, sqlitedialect.New())
	repo, err := NewTeamRepository(db)
	require.NoError(t, err)
	return repo, mock
}

func teamRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id_", "name", "points"})
}

func TestNewRepositoryRejectsNilDB(t *testing.T) {
	_, err := NewRepository[model.Team](nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewPlayerWithTeamRepository(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestInsertCommitsAndSetsIdentity(t *testing.T) {
	repo, mock := mockTeams(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teams (name, points) VALUES ('A', 30)")).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	team := model.NewTeam("A", 30)
	id, err := repo.Insert(context.Background(), team)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, int64(7), team.ID)
}

func TestInsertRollsBackOnFailure(t *testing.T) {
	repo, mock := mockTeams(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teams (name, points) VALUES ('A', NULL)")).
		WillReturnError(errors.New("UNIQUE constraint failed: teams.name"))
	mock.ExpectRollback()

	team := &model.Team{Name: "A"}
	_, err := repo.Insert(context.Background(), team)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "insert", se.Op)
	assert.Equal(t, database.DuplicateKeyErr, se.Kind)
	assert.Zero(t, team.ID)
}

func TestInsertManySQLite(t *testing.T) {
	repo, mock := mockTeams(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teams (name, points) VALUES ('A', 1), ('B', NULL)")).
		WillReturnResult(sqlmock.NewResult(8, 2))
	mock.ExpectCommit()

	a, b := model.NewTeam("A", 1), &model.Team{Name: "B"}
	last, err := repo.InsertMany(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(8), last)
	assert.Equal(t, int64(7), a.ID)
	assert.Equal(t, int64(8), b.ID)
}

func TestInsertManyPostgresUsesReturning(t *testing.T) {
	db, mock := newMockDB(t, pgdialect.New())
	repo, err := NewRepository[model.Team](db)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO teams (name, points) VALUES ('A', 1), ('B', 2) RETURNING id_")).
		WillReturnRows(sqlmock.NewRows([]string{"id_"}).AddRow(int64(4)).AddRow(int64(5)))
	mock.ExpectCommit()

	a, b := model.NewTeam("A", 1), model.NewTeam("B", 2)
	last, err := repo.InsertMany(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(5), last)
	assert.Equal(t, int64(4), a.ID)
}

func TestInsertManyRejectsInvalidInput(t *testing.T) {
	repo, _ := mockTeams(t)
	_, err := repo.InsertMany(context.Background())
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = repo.InsertMany(context.Background(), model.NewTeam("A", 1), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = repo.Insert(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestInsertedIdentities(t *testing.T) {
	assert.Equal(t, []int64{10, 11, 12}, insertedIdentities(dialect.MySQL, 10, 3))
	assert.Equal(t, []int64{10, 11, 12}, insertedIdentities(dialect.SQLite, 12, 3))
	assert.Equal(t, []int64{5}, insertedIdentities(dialect.SQLite, 5, 1))
}

func TestUpdatePartial(t *testing.T) {
	repo, mock := mockTeams(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE teams SET points = 5 WHERE id_ = 3")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := repo.Update(context.Background(), 3, &model.Team{Points: model.Int64(5)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
}

func TestUpdateWithoutFieldsIsNoop(t *testing.T) {
	repo, _ := mockTeams(t)
	id, err := repo.Update(context.Background(), 3, &model.Team{ID: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
}

func TestFindAllMapsColumnsByName(t *testing.T) {
	repo, mock := mockTeams(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id_, name, points FROM teams ORDER BY id_")).
		WillReturnRows(sqlmock.NewRows([]string{"points", "name", "id_"}).
			AddRow(int64(30), "A", int64(1)).
			AddRow(nil, "B", int64(2)))

	teams, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, &model.Team{ID: 1, Name: "A", Points: model.Int64(30)}, teams[0])
	assert.Equal(t, &model.Team{ID: 2, Name: "B"}, teams[1])
}

func TestFindByIDAbsent(t *testing.T) {
	repo, mock := mockTeams(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id_, name, points FROM teams WHERE id_ = 9")).
		WillReturnRows(teamRows())

	team, err := repo.FindByID(context.Background(), 9)
	require.NoError(t, err)
	assert.Nil(t, team)
}

func TestFindByIDStorageError(t *testing.T) {
	repo, mock := mockTeams(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id_, name, points FROM teams WHERE id_ = 1")).
		WillReturnError(errors.New("no such table: teams"))

	_, err := repo.FindByID(context.Background(), 1)
	assert.True(t, database.IsStorageError(err, database.NoTableErr))
}

func TestDeleteEchoesIdentity(t *testing.T) {
	repo, mock := mockTeams(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teams WHERE id_ = 3")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teams WHERE id_ > 0")).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	id, err := repo.Delete(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	require.NoError(t, repo.DeleteAll(context.Background()))
}

func TestTeamQueries(t *testing.T) {
	repo, mock := mockTeams(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id_, name, points FROM teams WHERE name = 'A' ORDER BY id_")).
		WillReturnRows(teamRows().AddRow(int64(1), "A", int64(30)).AddRow(int64(4), "A", int64(2)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id_, name, points FROM teams WHERE points BETWEEN 10 AND 30 ORDER BY id_")).
		WillReturnRows(teamRows().AddRow(int64(1), "A", int64(30)))

	team, err := repo.FindByName(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), team.ID)

	teams, err := repo.FindAllByPointsBetween(context.Background(), 10, 30)
	require.NoError(t, err)
	assert.Len(t, teams, 1)
}

func TestExactNameFilter(t *testing.T) {
	where, args := exactNameFilter(dialect.MySQL, "Hawks").Condition()
	assert.Equal(t, "BINARY name = ?", where)
	assert.Equal(t, []any{"Hawks"}, args)

	for _, d := range []dialect.Name{dialect.PG, dialect.SQLite} {
		where, _ := exactNameFilter(d, "Hawks").Condition()
		assert.Equal(t, "name = ?", where, d.String())
	}
}

func TestCountAndPage(t *testing.T) {
	repo, mock := mockTeams(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM teams WHERE points > 5")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id_, name, points FROM teams WHERE points > 5 ORDER BY points DESC, id_ LIMIT 2 OFFSET 2")).
		WillReturnRows(teamRows().AddRow(int64(3), "C", int64(6)))

	page, err := repo.Page(context.Background(),
		types.NewPageRequest(2, 2, types.NewQueryFilter("points > ?", 5), []string{"points desc"}))
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages())
	assert.False(t, page.HasNext())
	require.Len(t, page.Items, 1)
	assert.Equal(t, "C", page.Items[0].Name)
}

func TestPageRejectsUnknownOrder(t *testing.T) {
	repo, _ := mockTeams(t)
	_, err := repo.Page(context.Background(), types.NewPageRequestWithOrders(1, 10, "rank"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPageEmpty(t *testing.T) {
	repo, mock := mockTeams(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM teams")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	page, err := repo.Page(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Items)
	assert.Equal(t, types.DefaultPageSize, page.PageSize)
}

func TestStatementsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.JSONFormatter{})

	db, mock := newMockDB(t, sqlitedialect.New())
	repo, err := NewRepository[model.Team](db, WithLogger(database.NewLogrusLogger(l)))
	require.NoError(t, err)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teams (name, points) VALUES ('A', 30)")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, err = repo.Insert(context.Background(), model.NewTeam("A", 30))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "insert", entry["op"])
	assert.Equal(t, "teams", entry["table"])
	assert.Equal(t, "INSERT INTO teams (name, points) VALUES ('A', 30)", entry["sql"])
}

func TestPlayerWithTeamQuery(t *testing.T) {
	db, mock := newMockDB(t, sqlitedialect.New())
	repo, err := NewPlayerWithTeamRepository(db)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT p.id_ AS player_id, p.name AS player_name, COALESCE(p.goals, 0) AS player_goals, " +
		"t.id_ AS team_id, t.name AS team_name FROM players AS p INNER JOIN teams AS t ON p.team_id = t.id_ " +
		"WHERE t.points BETWEEN 10 AND 40 ORDER BY p.id_")).
		WillReturnRows(sqlmock.NewRows([]string{"player_id", "player_name", "player_goals", "team_id", "team_name"}).
			AddRow(int64(2), "B", int64(12), int64(1), "A"))

	views, err := repo.FindAllPlayersWithTeams(context.Background(), 10, 40)
	require.NoError(t, err)
	assert.Equal(t, []*model.PlayerWithTeamView{{PlayerID: 2, PlayerName: "B", PlayerGoals: 12, TeamID: 1, TeamName: "A"}}, views)
}
