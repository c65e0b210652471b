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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tomoncle/roster"
	"github.com/tomoncle/roster/database"
	"github.com/tomoncle/roster/model"
	"github.com/tomoncle/roster/utils"
)

const defaultConfigPath = "configs/roster.yaml"

type cliOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}
	cmd := &cobra.Command{
		Use:          "roster",
		Short:        "Manage teams and players stored in a relational database",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c",
		utils.EnvDefaultString("ROSTER_CONFIG", defaultConfigPath), "path to the YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(
		newMigrateCommand(opts),
		newRollbackCommand(opts),
		newSeedCommand(opts),
		newAddPlayerCommand(opts),
		newTeamsCommand(opts),
		newPlayersWithTeamsCommand(opts),
		newHealthCommand(opts),
	)
	return cmd
}

// loadConfig reads the configuration file. A missing file at the default
// path falls back to defaults and environment overrides.
func (o *cliOptions) loadConfig() (database.Config, error) {
	path := o.configPath
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := database.LoadConfig(path)
	if err != nil {
		return database.Config{}, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	utils.ConfigureConsoleLogFormat(cfg.Log.Format)
	utils.ConfigureLogLevel(cfg.Log.Level)
	return cfg, nil
}

// withApp opens the App, runs fn and closes the App.
func (o *cliOptions) withApp(ctx context.Context, mutate func(*database.Config), fn func(*roster.App) error) (err error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	if mutate != nil {
		mutate(&cfg)
	}
	app, err := roster.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, app.Close()) }()
	return fn(app)
}

// skipStartup keeps Open from migrating or seeding so the command runs that
// step itself.
func skipStartup(c *database.Config) {
	c.Migrate.EnableMigrateOnStartup = false
	c.Init.AutoInitOnStartup = false
}

func newMigrateCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the roster tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), skipStartup, func(app *roster.App) error {
				mm := app.Database().Migrations()
				if err := mm.RunMigrations(cmd.Context()); err != nil {
					return err
				}
				return printMigrations(cmd.Context(), cmd.OutOrStdout(), mm)
			})
		},
	}
}

func newRollbackCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback [version]",
		Short: "Roll back a migration, the latest one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := ""
			if len(args) == 1 {
				version = args[0]
			}
			return opts.withApp(cmd.Context(), skipStartup, func(app *roster.App) error {
				mm := app.Database().Migrations()
				if err := mm.RollbackMigration(cmd.Context(), version); err != nil {
					return err
				}
				return printMigrations(cmd.Context(), cmd.OutOrStdout(), mm)
			})
		},
	}
}

func printMigrations(ctx context.Context, out io.Writer, mm *database.MigrationManager) error {
	applied, err := mm.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
	for _, m := range applied {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", m.Version, m.Name, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func newSeedCommand(opts *cliOptions) *cobra.Command {
	var environment string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Run the SQL seed files for an environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mutate := func(c *database.Config) {
				c.Init.AutoInitOnStartup = false
				if environment != "" {
					c.Init.Environment = environment
				}
			}
			return opts.withApp(cmd.Context(), mutate, func(app *roster.App) error {
				results, err := app.Database().Seeder().ExecuteInitialization(cmd.Context())
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "FILE\tOK\tROWS\tDURATION")
				for _, r := range results {
					_, _ = fmt.Fprintf(w, "%s\t%t\t%d\t%s\n", r.File, r.Success, r.RowsAffected, r.Duration)
				}
				return errors.Join(err, w.Flush())
			})
		},
	}
	cmd.Flags().StringVarP(&environment, "env", "e", "", "seed environment, overrides init.environment")
	return cmd
}

func newAddPlayerCommand(opts *cliOptions) *cobra.Command {
	dto := roster.CreatePlayerWithTeamDto{}
	cmd := &cobra.Command{
		Use:   "add-player",
		Short: "Add a player to an existing team",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), nil, func(app *roster.App) error {
				id, err := app.Service.AddPlayerWithTeam(cmd.Context(), dto)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "player %d added to team %q\n", id, dto.TeamName)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&dto.PlayerName, "name", "", "player name")
	cmd.Flags().Int64Var(&dto.PlayerGoals, "goals", 0, "player goals")
	cmd.Flags().StringVar(&dto.TeamName, "team", "", "name of the team to join")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("team")
	return cmd
}

func newTeamsCommand(opts *cliOptions) *cobra.Command {
	var low, high int64
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "List teams, optionally within a points range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ranged := cmd.Flags().Changed("min") || cmd.Flags().Changed("max")
			return opts.withApp(cmd.Context(), nil, func(app *roster.App) error {
				var teams []*model.Team
				var err error
				if ranged {
					teams, err = app.Teams.FindAllByPointsBetween(cmd.Context(), low, high)
				} else {
					teams, err = app.Teams.FindAll(cmd.Context())
				}
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "ID\tNAME\tPOINTS")
				for _, t := range teams {
					points := "-"
					if t.Points != nil {
						points = fmt.Sprint(*t.Points)
					}
					_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, t.Name, points)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().Int64Var(&low, "min", 0, "lowest points, inclusive")
	cmd.Flags().Int64Var(&high, "max", 1<<62, "highest points, inclusive")
	return cmd
}

func newPlayersWithTeamsCommand(opts *cliOptions) *cobra.Command {
	var low, high int64
	cmd := &cobra.Command{
		Use:   "players-with-teams",
		Short: "List players whose team points fall within a range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), nil, func(app *roster.App) error {
				views, err := app.Service.PlayersWithTeams(cmd.Context(), low, high)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "PLAYER ID\tPLAYER\tGOALS\tTEAM ID\tTEAM")
				for _, v := range views {
					_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", v.PlayerID, v.PlayerName, v.PlayerGoals, v.TeamID, v.TeamName)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().Int64Var(&low, "min", 0, "lowest team points, inclusive")
	cmd.Flags().Int64Var(&high, "max", 1<<62, "highest team points, inclusive")
	return cmd
}

func newHealthCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Ping the database and print pool statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), nil, func(app *roster.App) error {
				report := struct {
					Health *database.HealthStatus `json:"health"`
					Stats  *database.DBStats      `json:"stats"`
				}{
					Health: app.Database().HealthCheck(cmd.Context()),
					Stats:  app.Database().Stats(),
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
				if !report.Health.Healthy {
					return fmt.Errorf("database unhealthy: %s", report.Health.LastError)
				}
				return nil
			})
		},
	}
}
