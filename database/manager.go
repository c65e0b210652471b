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
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/uptrace/bun"
)

var ErrNotConnected = errors.New("database: not connected")

const healthCheckTimeout = 5 * time.Second

// Manager owns one pool: it connects, pings, reports health and pool
// statistics, and optionally checks health on a ticker, re-pinging a bounded
// number of times when a check fails.
type Manager struct {
	config   ConnectionConfig
	logger   Logger
	clock    clockwork.Clock
	queryLog io.Writer

	mu           sync.RWMutex
	db           *bun.DB
	sqlDB        *sql.DB
	queryHook    *QueryHook
	connected    bool
	lastError    error
	healthStatus *HealthStatus

	stop chan struct{}
	done chan struct{}
}

func NewManager(config ConnectionConfig, logger Logger, clock clockwork.Clock) *Manager {
	if logger == nil {
		logger = NopLogger()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		config:       config,
		logger:       logger,
		clock:        clock,
		healthStatus: &HealthStatus{},
	}
}

// SetQueryLogOutput sets where the query log hook writes. It applies to the
// next Connect.
func (m *Manager) SetQueryLogOutput(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryLog = w
}

// Connect opens the pool and pings it within ConnectTimeout. Calling it on a
// connected manager is a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected && m.db != nil {
		return nil
	}

	sqlDB, db, err := openConnection(m.config)
	if err != nil {
		m.lastError = err
		return fmt.Errorf("failed to create database connection: %w", err)
	}

	timeout := m.config.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		m.lastError = err
		return fmt.Errorf("database connection test failed: %w", err)
	}
	if err := prepareConnection(pingCtx, db, m.config); err != nil {
		_ = db.Close()
		m.lastError = err
		return err
	}

	m.queryHook = installHooks(db, m.config, m.logger, m.clock, m.queryLog)
	m.db, m.sqlDB = db, sqlDB
	m.connected = true
	m.lastError = nil
	m.logger.Info("Database connected successfully", "type", m.config.Type, "host", m.config.Host, "pool_size", m.config.PoolSize)
	return nil
}

// Wrap adopts an externally opened Bun database. Disconnect will close it.
func (m *Manager) Wrap(db *bun.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.db, m.sqlDB = db, db.DB
	m.connected = true
}

// Disconnect stops health checks and closes the pool.
func (m *Manager) Disconnect() error {
	m.StopHealthCheck()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db, m.sqlDB = nil, nil
	m.connected = false
	if err != nil {
		m.logger.Error("Failed to close database connection", "error", err)
		return err
	}
	m.logger.Info("Database connection closed")
	return nil
}

func (m *Manager) Ping(ctx context.Context) error {
	db := m.DB()
	if db == nil {
		return ErrNotConnected
	}
	return db.PingContext(ctx)
}

func (m *Manager) DB() *bun.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

func (m *Manager) SQLDB() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sqlDB
}

// QueryHook returns the query log hook, or nil when query logging is off.
func (m *Manager) QueryHook() *QueryHook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryHook
}

// HealthCheck pings the store and records the outcome with pool usage.
func (m *Manager) HealthCheck(ctx context.Context) *HealthStatus {
	start := m.clock.Now()
	status := &HealthStatus{LastCheckTime: start}

	db, sqlDB := m.DB(), m.SQLDB()
	if db == nil {
		status.LastError = ErrNotConnected.Error()
		m.recordHealth(status, ErrNotConnected)
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	err := db.PingContext(pingCtx)
	status.ResponseTime = m.clock.Since(start)
	if err != nil {
		status.LastError = err.Error()
	} else {
		status.Healthy = true
		status.Connected = true
	}

	stats := sqlDB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections

	m.recordHealth(status, err)
	return status
}

func (m *Manager) recordHealth(status *HealthStatus, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthStatus = status
	m.lastError = err
	if m.db != nil {
		m.connected = err == nil
	}
}

// LastHealth returns the most recent health check result.
func (m *Manager) LastHealth() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.healthStatus
}

// StartHealthCheck checks health every interval until StopHealthCheck. A
// failed check triggers up to MaxReconnectTries pings spaced by
// ReconnectInterval. A non-positive interval disables checking.
func (m *Manager) StartHealthCheck(interval time.Duration) {
	if interval <= 0 {
		return
	}
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	stop, done := make(chan struct{}), make(chan struct{})
	m.stop, m.done = stop, done
	m.mu.Unlock()

	ticker := m.clock.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
				status := m.HealthCheck(ctx)
				cancel()
				if !status.Healthy {
					m.logger.Warn("Database health check failed", "error", status.LastError)
					m.recoverConnection(stop)
				}
			case <-stop:
				return
			}
		}
	}()
}

// StopHealthCheck stops the health check loop and waits for it to exit.
func (m *Manager) StopHealthCheck() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (m *Manager) recoverConnection(stop <-chan struct{}) {
	for try := 1; try <= m.config.MaxReconnectTries; try++ {
		select {
		case <-m.clock.After(m.config.ReconnectInterval):
		case <-stop:
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
		status := m.HealthCheck(ctx)
		cancel()
		if status.Healthy {
			m.logger.Info("Database connection recovered", "try", try)
			return
		}
		m.logger.Error("Database reconnect failed", "try", try, "error", status.LastError)
	}
	if m.config.MaxReconnectTries > 0 {
		m.logger.Error("Max reconnect attempts reached", "tries", m.config.MaxReconnectTries)
	}
}

// Stats returns pool statistics, zeroed when disconnected.
func (m *Manager) Stats() *DBStats {
	sqlDB := m.SQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}
	stats := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}
