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
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/profiler"
)

// TableDataset exposes one database table to the profiler.
type TableDataset struct {
	db    *DB
	table string

	mu      sync.Mutex
	columns []ColumnInfo
}

var (
	_ profiler.Dataset       = (*TableDataset)(nil)
	_ profiler.RangeReporter = (*TableDataset)(nil)
)

func NewTableDataset(db *DB, table string) *TableDataset {
	return &TableDataset{db: db, table: table}
}

// Table returns the name of the profiled table.
func (t *TableDataset) Table() string {
	return t.table
}

// Columns lists the table columns and refreshes the cached storage types.
func (t *TableDataset) Columns(ctx context.Context) ([]string, error) {
	cols, err := t.db.ListColumns(ctx, t.table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found or has no columns", t.table)
	}
	t.mu.Lock()
	t.columns = cols
	t.mu.Unlock()

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

func (t *TableDataset) quoted(column string) (string, string) {
	h := t.db.Handler
	return h.QuoteIdentifier(t.table), h.QuoteIdentifier(column)
}

func (t *TableDataset) countQuery(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := t.db.Pool.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to execute %q: %w", query, err)
	}
	return n, nil
}

func (t *TableDataset) RowCount(ctx context.Context) (int64, error) {
	table := t.db.Handler.QuoteIdentifier(t.table)
	return t.countQuery(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
}

func (t *TableDataset) NullCount(ctx context.Context, column string) (int64, error) {
	table, col := t.quoted(column)
	return t.countQuery(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", table, col))
}

func (t *TableDataset) DistinctCount(ctx context.Context, column string) (int64, error) {
	table, col := t.quoted(column)
	return t.countQuery(ctx, fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s", col, table))
}

func (t *TableDataset) nonNullCount(ctx context.Context, column string) (int64, error) {
	table, col := t.quoted(column)
	return t.countQuery(ctx, fmt.Sprintf("SELECT COUNT(%s) FROM %s", col, table))
}

// InferredType maps the column's storage type onto a profiler type.
func (t *TableDataset) InferredType(ctx context.Context, column string) (profiler.InferredType, error) {
	t.mu.Lock()
	cached := t.columns
	t.mu.Unlock()
	if cached == nil {
		if _, err := t.Columns(ctx); err != nil {
			return profiler.TypeInvalid, err
		}
		t.mu.Lock()
		cached = t.columns
		t.mu.Unlock()
	}
	for _, c := range cached {
		if c.Name == column {
			return profiler.InferTypeFromStorage(c.DataType), nil
		}
	}
	return profiler.TypeInvalid, fmt.Errorf("column %s not found in table %s", column, t.table)
}

func (t *TableDataset) DistinctValues(ctx context.Context, column string) ([]any, error) {
	table, col := t.quoted(column)
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL", col, table, col)
	rows, err := t.db.Pool.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get distinct values: %w", err)
	}
	defer rows.Close()

	var values []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("error scanning distinct value: %w", err)
		}
		values = append(values, normalizeValue(v))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating distinct values: %w", err)
	}
	return values, nil
}

func (t *TableDataset) Aggregate(ctx context.Context, column string, stat profiler.Statistic) (float64, error) {
	var nonNull int64
	if stat.Kind == profiler.StatMedian || stat.Kind == profiler.StatQuantile {
		n, err := t.nonNullCount(ctx, column)
		if err != nil {
			return 0, err
		}
		nonNull = n
	}

	query, err := t.db.Handler.AggregateQuery(t.table, column, stat, nonNull)
	if err != nil {
		return 0, err
	}
	var v sql.NullFloat64
	if err := t.db.Pool.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to compute %s of %s: %w", stat, column, err)
	}
	if !v.Valid {
		return 0, fmt.Errorf("%s of %s is NULL", stat, column)
	}
	return v.Float64, nil
}

// ValueRange returns the lowest and highest value of column as text.
func (t *TableDataset) ValueRange(ctx context.Context, column string) (string, string, error) {
	table, col := t.quoted(column)
	query := fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s", col, col, table)
	var lo, hi any
	if err := t.db.Pool.QueryRowContext(ctx, query).Scan(&lo, &hi); err != nil {
		return "", "", fmt.Errorf("failed to get value range: %w", err)
	}
	return formatValue(lo), formatValue(hi), nil
}

// normalizeValue turns driver values into JSON and YAML friendly ones.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return formatValue(x)
	}
	return v
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}
