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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/jonboulle/clockwork"
	"github.com/uptrace/bun"
)

// QueryLogEnv overrides QueryHook: "0" silences it, "1" logs every query and
// "2" also logs successful no-row results.
const QueryLogEnv = "ROSTER_QUERY_LOG"

var (
	selectColor = color.New(color.FgGreen)
	insertColor = color.New(color.FgBlue)
	updateColor = color.New(color.FgYellow)
	deleteColor = color.New(color.FgMagenta)
	otherColor  = color.New(color.FgRed)
	tagColor    = color.New(color.FgCyan)
	errColor    = color.New(color.BgRed, color.FgWhite)
)

// QueryHook prints each executed query with its duration, colored by
// operation. Failed queries are always printed while the hook is enabled.
type QueryHook struct {
	enabled bool
	silent  atomic.Bool
	writer  io.Writer
	clock   clockwork.Clock
}

var _ bun.QueryHook = (*QueryHook)(nil)

// NewQueryHook returns a hook writing to w, or to stdout when w is nil.
func NewQueryHook(enabled bool, w io.Writer, clock clockwork.Clock) *QueryHook {
	if w == nil {
		w = os.Stdout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &QueryHook{enabled: enabled, writer: w, clock: clock}
}

// Silence suppresses output until called again with false.
func (h *QueryHook) Silence(s bool) { h.silent.Store(s) }

func (h *QueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if h.silent.Load() {
		return
	}
	enabled, verbose := h.enabled, false
	if env, ok := os.LookupEnv(QueryLogEnv); ok {
		enabled = env != "" && env != "0"
		verbose = env == "2"
	}
	if !enabled {
		return
	}
	if !verbose && (errors.Is(event.Err, sql.ErrNoRows) || errors.Is(event.Err, sql.ErrTxDone)) {
		return
	}

	now := h.clock.Now()
	args := []any{
		now.Format("2006-01-02 15:04:05.000"),
		tagColor.Sprintf("%10s", "[BUN]"),
		fmt.Sprintf("%12s", now.Sub(event.StartTime).Round(time.Microsecond)),
		" ", operationColor(event.Operation()).Sprint(event.Query),
	}
	if event.Err != nil {
		typ := reflect.TypeOf(event.Err).String()
		args = append(args, "\t", errColor.Sprintf(" %s: %s ", typ, event.Err.Error()))
	}
	_, _ = fmt.Fprintln(h.writer, args...)
}

func operationColor(operation string) *color.Color {
	switch strings.ToUpper(operation) {
	case "SELECT":
		return selectColor
	case "INSERT":
		return insertColor
	case "UPDATE":
		return updateColor
	case "DELETE":
		return deleteColor
	default:
		return otherColor
	}
}

// SlowQueryHook warns through the Logger about successful queries that took
// longer than the threshold.
type SlowQueryHook struct {
	threshold time.Duration
	logger    Logger
	clock     clockwork.Clock
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

func NewSlowQueryHook(threshold time.Duration, logger Logger, clock clockwork.Clock) *SlowQueryHook {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SlowQueryHook{threshold: threshold, logger: logger, clock: clock}
}

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if event.Err != nil || h.threshold <= 0 || h.logger == nil {
		return
	}
	duration := h.clock.Since(event.StartTime)
	if duration > h.threshold {
		h.logger.Warn("slow query detected",
			"duration", duration.Round(time.Microsecond),
			"threshold", h.threshold,
			"operation", event.Operation(),
			"query", event.Query,
		)
	}
}
