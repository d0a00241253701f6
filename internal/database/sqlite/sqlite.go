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
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/config"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/database"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/profiler"
)

// sqliteHandler implements database.DialectHandler for SQLite files. The
// database file path is taken from DatabaseConfig.DBName.
type sqliteHandler struct{}

var _ database.DialectHandler = (*sqliteHandler)(nil)

func (h sqliteHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	return nil, fmt.Errorf("sqlite is not available on Cloud SQL")
}

func (h sqliteHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.DBName
	if dsn == "" {
		return nil, fmt.Errorf("sqlite requires a database file path (--database)")
	}
	dbPool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open (sqlite): %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	if strings.Contains(dsn, ":memory:") {
		dbPool.SetMaxOpenConns(1)
	}
	return dbPool, nil
}

func (h sqliteHandler) QuoteIdentifier(name string) string {
	return fmt.Sprintf(`"%s"`, strings.ReplaceAll(name, `"`, `""`))
}

func (h sqliteHandler) ListTables(ctx context.Context, db *database.DB) ([]string, error) {
	query := "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"

	rows, err := db.Pool.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("error scanning table name: %w", err)
		}
		tables = append(tables, tableName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table rows: %w", err)
	}
	return tables, nil
}

func (h sqliteHandler) ListColumns(ctx context.Context, db *database.DB, tableName string) ([]database.ColumnInfo, error) {
	query := "SELECT name, type FROM pragma_table_info(?) ORDER BY cid"

	rows, err := db.Pool.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []database.ColumnInfo
	for rows.Next() {
		var colInfo database.ColumnInfo
		if err := rows.Scan(&colInfo.Name, &colInfo.DataType); err != nil {
			return nil, fmt.Errorf("error scanning column name and data type: %w", err)
		}
		columns = append(columns, colInfo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}
	return columns, nil
}

// AggregateQuery for SQLite. Order statistics are read by offset from the
// sorted values.
func (h sqliteHandler) AggregateQuery(tableName, columnName string, stat profiler.Statistic, nonNull int64) (string, error) {
	quotedTable := h.QuoteIdentifier(tableName)
	quotedColumn := h.QuoteIdentifier(columnName)

	if q, ok := database.StandardAggregateQuery(quotedTable, quotedColumn, stat); ok {
		return q, nil
	}
	quantile, err := database.QuantileOf(stat)
	if err != nil {
		return "", err
	}
	return database.OffsetQuantileQuery(quotedTable, quotedColumn, quantile, nonNull), nil
}

func init() {
	database.RegisterDialectHandler("sqlite", sqliteHandler{})
}
