/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
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
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/config"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/logger"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/profiler"
)

// DBAdapter defines the database operations needed by the commands.
type DBAdapter interface {
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, tableName string) ([]ColumnInfo, error)
	ExecuteSQLStatements(ctx context.Context, sqlStatements []string) error
	Ping(ctx context.Context) error
	Close() error
	GetConfig() config.DatabaseConfig
}

var _ DBAdapter = (*DB)(nil)

// DB holds the database connection pool and dialect handler.
type DB struct {
	Pool    *sql.DB
	Handler DialectHandler
	Config  config.DatabaseConfig
}

// ColumnInfo holds basic information about a database column.
type ColumnInfo struct {
	Name     string
	DataType string
}

// DialectHandler hides the SQL differences between database engines.
type DialectHandler interface {
	CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error)
	CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error)
	QuoteIdentifier(name string) string
	ListTables(ctx context.Context, db *DB) ([]string, error)
	// ListColumns returns the columns of tableName in ordinal order.
	ListColumns(ctx context.Context, db *DB, tableName string) ([]ColumnInfo, error)
	// AggregateQuery builds a single-row, single-column query computing stat
	// over the non-null values of a column. nonNull is the number of non-null
	// values, which some engines need to locate quantiles.
	AggregateQuery(tableName, columnName string, stat profiler.Statistic, nonNull int64) (string, error)
}

var (
	dialectHandlers = make(map[string]DialectHandler)
	mu              sync.RWMutex
)

func RegisterDialectHandler(dialect string, handler DialectHandler) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := dialectHandlers[dialect]; exists {
		logger.Logger.Warnw("Dialect handler is being overwritten", "dialect", dialect)
	}
	dialectHandlers[dialect] = handler
}

func GetDialectHandler(dialect string) (DialectHandler, error) {
	mu.RLock()
	defer mu.RUnlock()
	handler, ok := dialectHandlers[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}
	return handler, nil
}

// Dialects lists the registered dialect names.
func Dialects() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(dialectHandlers))
	for name := range dialectHandlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	handler, err := GetDialectHandler(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	var pool *sql.DB
	if strings.HasPrefix(cfg.Dialect, "cloudsql") {
		pool, err = handler.CreateCloudSQLPool(cfg)
	} else {
		pool, err = handler.CreateStandardPool(cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create database pool for dialect %s: %w", cfg.Dialect, err)
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database (ping failed) for dialect %s: %w", cfg.Dialect, err)
	}

	return &DB{
		Pool:    pool,
		Handler: handler,
		Config:  cfg,
	}, nil
}

func (db *DB) GetConfig() config.DatabaseConfig {
	return db.Config
}

func (db *DB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.PingContext(ctx)
}

func (db *DB) Close() error {
	if db.Pool != nil {
		return db.Pool.Close()
	}
	logger.Logger.Warn("Attempted to close a nil database connection pool.")
	return nil
}

func (db *DB) ListTables(ctx context.Context) ([]string, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListTables(ctx, db)
}

func (db *DB) ListColumns(ctx context.Context, tableName string) ([]ColumnInfo, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListColumns(ctx, db, tableName)
}

func (db *DB) ExecuteSQLStatements(ctx context.Context, sqlStatements []string) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	if len(sqlStatements) == 0 {
		logger.Logger.Info("No SQL statements provided to ExecuteSQLStatements.")
		return nil
	}

	tx, err := db.Pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range sqlStatements {
		trimmedStmt := strings.TrimSpace(stmt)
		if trimmedStmt == "" {
			continue
		}
		_, err = tx.ExecContext(ctx, trimmedStmt)
		if err != nil {
			logger.Logger.Errorw("Failed executing statement", "index", i+1, "statement", trimmedStmt, "error", err)
			return fmt.Errorf("failed executing statement #%d: %w", i+1, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// StandardAggregateQuery builds MIN, MAX and AVG queries that every supported
// engine understands. It returns false for the order statistics.
func StandardAggregateQuery(quotedTable, quotedColumn string, stat profiler.Statistic) (string, bool) {
	var fn string
	switch stat.Kind {
	case profiler.StatMin:
		fn = "MIN"
	case profiler.StatMax:
		fn = "MAX"
	case profiler.StatMean:
		fn = "AVG"
	default:
		return "", false
	}
	return fmt.Sprintf("SELECT %s(%s) FROM %s", fn, quotedColumn, quotedTable), true
}

// OffsetQuantileQuery locates a quantile by sorting the non-null values and
// skipping to the lower nearest rank, for engines without percentile functions.
func OffsetQuantileQuery(quotedTable, quotedColumn string, q float64, nonNull int64) string {
	var offset int64
	if nonNull > 0 {
		offset = int64(q * float64(nonNull-1))
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s LIMIT 1 OFFSET %d",
		quotedColumn, quotedTable, quotedColumn, quotedColumn, offset)
}

// QuantileOf returns the quantile a statistic asks for; the median is 0.5.
func QuantileOf(stat profiler.Statistic) (float64, error) {
	switch stat.Kind {
	case profiler.StatMedian:
		return 0.5, nil
	case profiler.StatQuantile:
		if stat.Quantile < 0 || stat.Quantile > 1 {
			return 0, fmt.Errorf("quantile %g out of range [0, 1]", stat.Quantile)
		}
		return stat.Quantile, nil
	}
	return 0, fmt.Errorf("unsupported statistic: %s", stat)
}
