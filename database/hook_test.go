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

package database

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
)

func queryEvent(clock clockwork.Clock, query string, took time.Duration, err error) *bun.QueryEvent {
	return &bun.QueryEvent{Query: query, StartTime: clock.Now().Add(-took), Err: err}
}

func TestQueryHookWritesQuery(t *testing.T) {
	t.Setenv(QueryLogEnv, "1")
	var buf bytes.Buffer
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
	h := NewQueryHook(true, &buf, clock)

	h.AfterQuery(context.Background(), queryEvent(clock, "SELECT id_, name, points FROM teams", 1500*time.Microsecond, nil))
	out := buf.String()
	assert.Contains(t, out, "2025-01-01 10:00:00.000")
	assert.Contains(t, out, "[BUN]")
	assert.Contains(t, out, "1.5ms")
	assert.Contains(t, out, "SELECT id_, name, points FROM teams")

	buf.Reset()
	h.AfterQuery(context.Background(), queryEvent(clock, "INSERT INTO teams (name) VALUES (?)", time.Millisecond, errors.New("boom")))
	assert.Contains(t, buf.String(), "*errors.errorString: boom")
}

func TestQueryHookFiltering(t *testing.T) {
	var buf bytes.Buffer
	clock := clockwork.NewFakeClock()
	h := NewQueryHook(true, &buf, clock)

	t.Setenv(QueryLogEnv, "1")
	h.AfterQuery(context.Background(), queryEvent(clock, "SELECT 1", 0, sql.ErrNoRows))
	assert.Empty(t, buf.String())

	t.Setenv(QueryLogEnv, "2")
	h.AfterQuery(context.Background(), queryEvent(clock, "SELECT 1", 0, sql.ErrNoRows))
	assert.Contains(t, buf.String(), "SELECT 1")

	buf.Reset()
	h.Silence(true)
	h.AfterQuery(context.Background(), queryEvent(clock, "SELECT 2", 0, nil))
	assert.Empty(t, buf.String())
	h.Silence(false)

	t.Setenv(QueryLogEnv, "0")
	h.AfterQuery(context.Background(), queryEvent(clock, "SELECT 3", 0, nil))
	assert.Empty(t, buf.String())
}

func TestSlowQueryHook(t *testing.T) {
	clock := clockwork.NewFakeClock()
	logger := &recordingLogger{}
	h := NewSlowQueryHook(2*time.Second, logger, clock)

	h.AfterQuery(context.Background(), queryEvent(clock, "SELECT 1", time.Second, nil))
	h.AfterQuery(context.Background(), queryEvent(clock, "SELECT 2", 3*time.Second, errors.New("failed")))
	assert.False(t, logger.has("slow query detected"))

	h.AfterQuery(context.Background(), queryEvent(clock, "SELECT 3", 3*time.Second, nil))
	assert.Equal(t, 1, logger.count("slow query detected"))
}

func TestInstallHooks(t *testing.T) {
	cfg := sqliteConfig()
	cfg.Connection.EnableQueryLog = true
	cfg.Connection.SlowQueryTime = time.Second
	t.Setenv(QueryLogEnv, "1")

	var buf bytes.Buffer
	d := openSQLite(t, cfg, WithQueryLogWriter(&buf))
	_, err := d.DB().ExecContext(context.Background(), "SELECT 42")
	assert.NoError(t, err)
	assert.NotNil(t, d.Manager().QueryHook())
	assert.Contains(t, buf.String(), "SELECT 42")
}
