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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/roster"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	sqlDir := filepath.Join(dir, "sql", "common")
	require.NoError(t, os.MkdirAll(sqlDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sqlDir, "001_teams.sql"),
		[]byte("INSERT INTO teams (name, points) VALUES ('Hawks', 42);\nINSERT INTO teams (name, points) VALUES ('Otters', 17);\n"), 0o644))

	cfg := "connection:\n" +
		"  type: sqlite\n" +
		"  dsn: file:" + filepath.Join(dir, "roster.db") + "?cache=shared\n" +
		"  pool_size: 1\n" +
		"migrate:\n" +
		"  enable_migrate_on_startup: false\n" +
		"  enable_foreign_key: true\n" +
		"init:\n" +
		"  filepath: " + filepath.Join(dir, "sql") + "\n" +
		"  environment: test\n" +
		"log:\n" +
		"  level: error\n"
	path := filepath.Join(dir, "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestCommandsEndToEnd(t *testing.T) {
	path := writeTestConfig(t)

	out, err := run(t, "--config", path, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "create_tables")

	out, err = run(t, "--config", path, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "001_teams.sql")

	out, err = run(t, "--config", path, "teams", "--min", "20", "--max", "50")
	require.NoError(t, err)
	assert.Contains(t, out, "Hawks")
	assert.NotContains(t, out, "Otters")

	out, err = run(t, "--config", path, "add-player", "--name", "Ada", "--goals", "11", "--team", "Hawks")
	require.NoError(t, err)
	assert.Contains(t, out, "added to team \"Hawks\"")

	_, err = run(t, "--config", path, "add-player", "--name", "Bob", "--team", "Nobody")
	require.ErrorIs(t, err, roster.ErrTeamNotFound)

	out, err = run(t, "--config", path, "players-with-teams", "--min", "0", "--max", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "Hawks")

	out, err = run(t, "--config", path, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "\"healthy\"")

	_, err = run(t, "--config", path, "rollback")
	require.NoError(t, err)
	_, err = run(t, "--config", path, "teams")
	require.Error(t, err)
}

func TestAddPlayerRequiresFlags(t *testing.T) {
	_, err := run(t, "--config", writeTestConfig(t), "add-player", "--team", "Hawks")
	require.Error(t, err)
}
