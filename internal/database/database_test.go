package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/config"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/profiler"
)

// Mock DialectHandler implementation
type mockDialectHandler struct {
	mu                   sync.Mutex
	createCloudSQLPoolFn func(cfg config.DatabaseConfig) (*sql.DB, error)
	createStandardPoolFn func(cfg config.DatabaseConfig) (*sql.DB, error)
	listTablesFn         func(ctx context.Context, db *DB) ([]string, error)
	listColumnsFn        func(ctx context.Context, db *DB, tableName string) ([]ColumnInfo, error)

	// Call counters/trackers
	listTablesCalls  int
	listColumnsCalls int
}

func (m *mockDialectHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createCloudSQLPoolFn != nil {
		return m.createCloudSQLPoolFn(cfg)
	}
	// Return a mock DB by default
	mockDb, _, _ := sqlmock.New()
	return mockDb, nil
}

func (m *mockDialectHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createStandardPoolFn != nil {
		return m.createStandardPoolFn(cfg)
	}
	mockDb, _, _ := sqlmock.New()
	return mockDb, nil
}

func (m *mockDialectHandler) QuoteIdentifier(name string) string { return fmt.Sprintf(`"%s"`, name) }

func (m *mockDialectHandler) ListTables(ctx context.Context, db *DB) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listTablesCalls++
	if m.listTablesFn != nil {
		return m.listTablesFn(ctx, db)
	}
	return []string{"table1"}, nil
}

func (m *mockDialectHandler) ListColumns(ctx context.Context, db *DB, tableName string) ([]ColumnInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listColumnsCalls++
	if m.listColumnsFn != nil {
		return m.listColumnsFn(ctx, db, tableName)
	}
	return []ColumnInfo{{Name: "col1", DataType: "integer"}}, nil
}

func (m *mockDialectHandler) AggregateQuery(tableName, columnName string, stat profiler.Statistic, nonNull int64) (string, error) {
	quotedTable, quotedColumn := m.QuoteIdentifier(tableName), m.QuoteIdentifier(columnName)
	if q, ok := StandardAggregateQuery(quotedTable, quotedColumn, stat); ok {
		return q, nil
	}
	quantile, err := QuantileOf(stat)
	if err != nil {
		return "", err
	}
	return OffsetQuantileQuery(quotedTable, quotedColumn, quantile, nonNull), nil
}

func TestRegisterAndGetDialectHandler(t *testing.T) {
	// Clean up handlers registered by other tests or init()
	mu.Lock()
	originalHandlers := make(map[string]DialectHandler)
	for k, v := range dialectHandlers {
		originalHandlers[k] = v
	}
	dialectHandlers = make(map[string]DialectHandler)
	mu.Unlock()

	// Restore original handlers after test
	defer func() {
		mu.Lock()
		dialectHandlers = originalHandlers
		mu.Unlock()
	}()

	mockHandler := &mockDialectHandler{}
	testDialect := "testdialect"

	// Test Get before Register
	_, err := GetDialectHandler(testDialect)
	if err == nil {
		t.Errorf("Expected error when getting unregistered dialect, got nil")
	}

	// Test Register
	RegisterDialectHandler(testDialect, mockHandler)

	// Test Get after Register
	handler, err := GetDialectHandler(testDialect)
	if err != nil {
		t.Errorf("Unexpected error getting registered dialect: %v", err)
	}
	if handler != mockHandler {
		t.Errorf("Got wrong handler back, expected mock, got %T", handler)
	}

	// Test Overwrite
	mockHandler2 := &mockDialectHandler{}
	RegisterDialectHandler(testDialect, mockHandler2)
	handler, err = GetDialectHandler(testDialect)
	if err != nil {
		t.Errorf("Unexpected error getting overwritten dialect: %v", err)
	}
	if handler != mockHandler2 {
		t.Errorf("Got wrong handler back after overwrite, expected mock2, got %T", handler)
	}

	// Test Get unknown dialect again
	_, err = GetDialectHandler("unknown")
	if err == nil {
		t.Errorf("Expected error when getting unknown dialect, got nil")
	}
}

func TestNew(t *testing.T) {
	mu.Lock()
	originalHandlers := make(map[string]DialectHandler)
	for k, v := range dialectHandlers {
		originalHandlers[k] = v
	}
	mu.Unlock()
	defer func() {
		mu.Lock()
		dialectHandlers = originalHandlers
		mu.Unlock()
	}()

	var cloudCalls, standardCalls int
	handler := &mockDialectHandler{
		createCloudSQLPoolFn: func(cfg config.DatabaseConfig) (*sql.DB, error) {
			cloudCalls++
			mockDb, _, err := sqlmock.New()
			return mockDb, err
		},
		createStandardPoolFn: func(cfg config.DatabaseConfig) (*sql.DB, error) {
			standardCalls++
			mockDb, _, err := sqlmock.New()
			return mockDb, err
		},
	}
	RegisterDialectHandler("mockdialect", handler)
	RegisterDialectHandler("cloudsqlmockdialect", handler)

	db, err := New(context.Background(), config.DatabaseConfig{Dialect: "mockdialect"})
	if err != nil {
		t.Fatalf("New() returned unexpected error: %v", err)
	}
	defer db.Close()
	if standardCalls != 1 || cloudCalls != 0 {
		t.Errorf("expected one standard pool, got standard=%d cloud=%d", standardCalls, cloudCalls)
	}

	cloudDB, err := New(context.Background(), config.DatabaseConfig{Dialect: "cloudsqlmockdialect"})
	if err != nil {
		t.Fatalf("New() returned unexpected error: %v", err)
	}
	defer cloudDB.Close()
	if cloudCalls != 1 {
		t.Errorf("expected one Cloud SQL pool, got %d", cloudCalls)
	}

	if _, err := New(context.Background(), config.DatabaseConfig{Dialect: "nope"}); err == nil {
		t.Errorf("expected error for unknown dialect")
	}

	handler.createStandardPoolFn = func(cfg config.DatabaseConfig) (*sql.DB, error) {
		return nil, errors.New("boom")
	}
	if _, err := New(context.Background(), config.DatabaseConfig{Dialect: "mockdialect"}); err == nil {
		t.Errorf("expected error when the pool cannot be created")
	}
}

// Helper to create a DB with a mock handler and pool for delegation tests
func newTestDBWithMockHandler(t *testing.T, handler DialectHandler) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	return &DB{
		Pool:    mockDb,
		Handler: handler,
		Config:  config.DatabaseConfig{Dialect: "mock"},
	}, mock
}

func TestDBMethodsDelegateToHandler(t *testing.T) {
	mockHandler := &mockDialectHandler{}
	db, mock := newTestDBWithMockHandler(t, mockHandler)
	defer db.Close()
	ctx := context.Background()

	if _, err := db.ListTables(ctx); err != nil {
		t.Errorf("db.ListTables() returned unexpected error: %v", err)
	}
	if _, err := db.ListColumns(ctx, "t1"); err != nil {
		t.Errorf("db.ListColumns() returned unexpected error: %v", err)
	}
	if mockHandler.listTablesCalls != 1 || mockHandler.listColumnsCalls != 1 {
		t.Errorf("expected one call each, got ListTables=%d ListColumns=%d", mockHandler.listTablesCalls, mockHandler.listColumnsCalls)
	}

	mock.ExpectPing()
	if err := db.Ping(ctx); err != nil {
		t.Errorf("db.Ping() returned unexpected error: %v", err)
	}

	cfg := db.GetConfig()
	if cfg.Dialect != "mock" {
		t.Errorf("db.GetConfig() returned wrong dialect, got %s, want mock", cfg.Dialect)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}

	empty := &DB{}
	if _, err := empty.ListTables(ctx); err == nil {
		t.Errorf("expected error without a dialect handler")
	}
	if err := empty.Ping(ctx); err == nil {
		t.Errorf("expected error without a pool")
	}
}

func TestAggregateQueryHelpers(t *testing.T) {
	tests := []struct {
		name    string
		stat    profiler.Statistic
		nonNull int64
		want    string
	}{
		{"min", profiler.Statistic{Kind: profiler.StatMin}, 0, `SELECT MIN("c") FROM "t"`},
		{"max", profiler.Statistic{Kind: profiler.StatMax}, 0, `SELECT MAX("c") FROM "t"`},
		{"mean", profiler.Statistic{Kind: profiler.StatMean}, 0, `SELECT AVG("c") FROM "t"`},
		{"median", profiler.Statistic{Kind: profiler.StatMedian}, 11, `SELECT "c" FROM "t" WHERE "c" IS NOT NULL ORDER BY "c" LIMIT 1 OFFSET 5`},
		{"p95", profiler.Statistic{Kind: profiler.StatQuantile, Quantile: 0.95}, 1000, `SELECT "c" FROM "t" WHERE "c" IS NOT NULL ORDER BY "c" LIMIT 1 OFFSET 949`},
		{"empty column", profiler.Statistic{Kind: profiler.StatQuantile, Quantile: 0.5}, 0, `SELECT "c" FROM "t" WHERE "c" IS NOT NULL ORDER BY "c" LIMIT 1 OFFSET 0`},
	}
	h := &mockDialectHandler{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.AggregateQuery("t", "c", tt.stat, tt.nonNull)
			if err != nil {
				t.Fatalf("AggregateQuery() returned unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("AggregateQuery() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := QuantileOf(profiler.Statistic{Kind: profiler.StatQuantile, Quantile: 1.5}); err == nil {
		t.Errorf("expected error for quantile out of range")
	}
	if _, err := QuantileOf(profiler.Statistic{Kind: profiler.StatMin}); err == nil {
		t.Errorf("expected error for non order statistic")
	}
}

func TestTableDataset(t *testing.T) {
	handler := &mockDialectHandler{
		listColumnsFn: func(ctx context.Context, db *DB, tableName string) ([]ColumnInfo, error) {
			return []ColumnInfo{
				{Name: "id", DataType: "integer"},
				{Name: "status", DataType: "character varying"},
				{Name: "created_at", DataType: "timestamp without time zone"},
			}, nil
		},
	}
	db, mock := newTestDBWithMockHandler(t, handler)
	defer db.Close()
	ctx := context.Background()
	ds := NewTableDataset(db, "orders")

	cols, err := ds.Columns(ctx)
	if err != nil {
		t.Fatalf("Columns() returned unexpected error: %v", err)
	}
	if len(cols) != 3 || cols[0] != "id" || cols[2] != "created_at" {
		t.Errorf("Columns() = %v", cols)
	}

	typ, err := ds.InferredType(ctx, "created_at")
	if err != nil || typ != profiler.TypeDatetime {
		t.Errorf("InferredType(created_at) = %v, %v; want DATETIME", typ, err)
	}
	if _, err := ds.InferredType(ctx, "missing"); err == nil {
		t.Errorf("expected error for unknown column")
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "orders" WHERE "status" IS NULL`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(DISTINCT "status") FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT "status" FROM "orders" WHERE "status" IS NOT NULL`)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow([]byte("open")).AddRow("closed"))

	if n, err := ds.RowCount(ctx); err != nil || n != 4 {
		t.Errorf("RowCount() = %d, %v; want 4", n, err)
	}
	if n, err := ds.NullCount(ctx, "status"); err != nil || n != 1 {
		t.Errorf("NullCount() = %d, %v; want 1", n, err)
	}
	if n, err := ds.DistinctCount(ctx, "status"); err != nil || n != 2 {
		t.Errorf("DistinctCount() = %d, %v; want 2", n, err)
	}
	values, err := ds.DistinctValues(ctx, "status")
	if err != nil {
		t.Fatalf("DistinctValues() returned unexpected error: %v", err)
	}
	if len(values) != 2 || values[0] != "open" || values[1] != "closed" {
		t.Errorf("DistinctValues() = %#v", values)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT AVG("id") FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow("2.5"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT("id") FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "orders" WHERE "id" IS NOT NULL ORDER BY "id" LIMIT 1 OFFSET 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	if v, err := ds.Aggregate(ctx, "id", profiler.Statistic{Kind: profiler.StatMean}); err != nil || v != 2.5 {
		t.Errorf("Aggregate(mean) = %v, %v; want 2.5", v, err)
	}
	if v, err := ds.Aggregate(ctx, "id", profiler.Statistic{Kind: profiler.StatMedian}); err != nil || v != 2 {
		t.Errorf("Aggregate(median) = %v, %v; want 2", v, err)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MIN("created_at"), MAX("created_at") FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"min", "max"}).AddRow("2024-01-01 00:00:00", "2024-03-31 12:00:00"))
	lo, hi, err := ds.ValueRange(ctx, "created_at")
	if err != nil {
		t.Fatalf("ValueRange() returned unexpected error: %v", err)
	}
	if lo != "2024-01-01 00:00:00" || hi != "2024-03-31 12:00:00" {
		t.Errorf("ValueRange() = %q, %q", lo, hi)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MIN("id") FROM "orders"`)).
		WillReturnError(errors.New("connection reset"))
	if _, err := ds.Aggregate(ctx, "id", profiler.Statistic{Kind: profiler.StatMin}); err == nil {
		t.Errorf("expected Aggregate() to surface the query error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestFormatValue(t *testing.T) {
	if got := normalizeValue([]byte("abc")); got != "abc" {
		t.Errorf("normalizeValue([]byte) = %#v", got)
	}
	if got := normalizeValue(int64(3)); got != int64(3) {
		t.Errorf("normalizeValue(int64) = %#v", got)
	}
	if got := formatValue(nil); got != "" {
		t.Errorf("formatValue(nil) = %q", got)
	}
	if got := formatValue(1.5); got != "1.5" {
		t.Errorf("formatValue(1.5) = %q", got)
	}
}

func TestExecuteSQLStatements(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		sqlStatements []string
		mockSetup     func(mock sqlmock.Sqlmock) // Setup mock expectations
		expectedError bool
	}{
		{
			name:          "Success case",
			sqlStatements: []string{"SELECT 1;", "UPDATE t SET c=1;"},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("SELECT 1;").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec("UPDATE t SET c=1;").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedError: false,
		},
		{
			name:          "Empty statements list",
			sqlStatements: []string{},
			mockSetup:     func(mock sqlmock.Sqlmock) { /* No expectations */ },
			expectedError: false,
		},
		{
			name:          "Statements with only whitespace",
			sqlStatements: []string{"  ", "\n\t ", ";"},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(";").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			expectedError: false,
		},
		{
			name:          "Begin fails",
			sqlStatements: []string{"SELECT 1;"},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(errors.New("begin failed"))
				// No Exec or Commit/Rollback expected
			},
			expectedError: true,
		},
		{
			name:          "Exec fails",
			sqlStatements: []string{"SELECT 1;", "BAD SQL;", "SELECT 3;"},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("SELECT 1;").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec("BAD SQL;").WillReturnError(errors.New("syntax error"))
				mock.ExpectRollback() // Expect rollback after error
			},
			expectedError: true,
		},
		{
			name:          "Commit fails",
			sqlStatements: []string{"SELECT 1;"},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("SELECT 1;").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit().WillReturnError(errors.New("commit failed"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDb, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
			}
			defer mockDb.Close()

			db := &DB{Pool: mockDb} // Simple DB struct for this test

			tt.mockSetup(mock)

			err = db.ExecuteSQLStatements(ctx, tt.sqlStatements)

			if (err != nil) != tt.expectedError {
				t.Errorf("ExecuteSQLStatements() error = %v, expectedError %v", err, tt.expectedError)
			}

			// Verify all expectations were met
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("there were unfulfilled expectations: %s", err)
			}
		})
	}
}
