package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/config"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/database"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/profiler"
)

// Helper to create a mock DB and handler for testing
func newMockPostgresDB(t *testing.T) (*database.DB, sqlmock.Sqlmock, *postgresHandler) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	handler := postgresHandler{}
	db := &database.DB{
		Pool:    mockDb,
		Handler: &handler,
		Config: config.DatabaseConfig{
			Dialect: "postgres",
		},
	}
	return db, mock, &handler
}

func TestPostgresQuoteIdentifier(t *testing.T) {
	handler := postgresHandler{}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Simple name", "mytable", `"mytable"`},
		{"Name with spaces", "my table", `"my table"`},
		{"Name with quotes", `my"table`, `"my""table"`},
		{"Empty name", "", `""`},
		{"Keyword", "user", `"user"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handler.QuoteIdentifier(tt.in); got != tt.want {
				t.Errorf("QuoteIdentifier() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPostgresListTables(t *testing.T) {
	db, mock, handler := newMockPostgresDB(t)
	defer db.Close()
	ctx := context.Background()

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		AND table_type = 'BASE TABLE'
		ORDER BY table_name;`

	expectedQuery := regexp.QuoteMeta(query)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"table_name"}).
			AddRow("users").
			AddRow("products")
		mock.ExpectQuery(expectedQuery).WillReturnRows(rows)

		tables, err := handler.ListTables(ctx, db)
		if err != nil {
			t.Fatalf("ListTables() unexpected error: %v", err)
		}

		if len(tables) != 2 || tables[0] != "users" || tables[1] != "products" {
			t.Errorf("ListTables() got %v, want [users products]", tables)
		}
	})

	t.Run("Query Error", func(t *testing.T) {
		dbError := errors.New("connection failed")
		mock.ExpectQuery(expectedQuery).WillReturnError(dbError)

		_, err := handler.ListTables(ctx, db)
		if err == nil {
			t.Fatalf("ListTables() expected error, got nil")
		}
		if !errors.Is(err, dbError) {
			t.Errorf("ListTables() got error %v, want error containing %v", err, dbError)
		}
	})

	t.Run("Scan Error", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"table_name"}).
			AddRow("users").
			AddRow(nil) // Simulate a scan error
		mock.ExpectQuery(expectedQuery).WillReturnRows(rows)

		_, err := handler.ListTables(ctx, db)
		if err == nil {
			t.Fatalf("ListTables() expected scan error, got nil")
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresListColumns(t *testing.T) {
	db, mock, handler := newMockPostgresDB(t)
	defer db.Close()
	ctx := context.Background()
	tableName := "users"

	query := `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public'
		AND table_name = $1
		ORDER BY ordinal_position;`
	expectedQuery := regexp.QuoteMeta(query)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("id", "integer").
			AddRow("email", "character varying")
		mock.ExpectQuery(expectedQuery).WithArgs(tableName).WillReturnRows(rows)

		cols, err := handler.ListColumns(ctx, db, tableName)
		if err != nil {
			t.Fatalf("ListColumns() unexpected error: %v", err)
		}

		expectedCols := []database.ColumnInfo{
			{Name: "id", DataType: "integer"},
			{Name: "email", DataType: "character varying"},
		}
		if len(cols) != len(expectedCols) {
			t.Fatalf("ListColumns() got %d columns, want %d", len(cols), len(expectedCols))
		}
		for i := range cols {
			if cols[i] != expectedCols[i] {
				t.Errorf("ListColumns() col %d got %+v, want %+v", i, cols[i], expectedCols[i])
			}
		}
	})

	t.Run("Query Error", func(t *testing.T) {
		dbError := errors.New("table not found")
		mock.ExpectQuery(expectedQuery).WithArgs(tableName).WillReturnError(dbError)

		_, err := handler.ListColumns(ctx, db, tableName)
		if err == nil {
			t.Fatalf("ListColumns() expected error, got nil")
		}
		if !errors.Is(err, dbError) {
			t.Errorf("ListColumns() got error %v, want error containing %v", err, dbError)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresAggregateQuery(t *testing.T) {
	handler := postgresHandler{}

	tests := []struct {
		name string
		stat profiler.Statistic
		want string
	}{
		{"Min", profiler.Statistic{Kind: profiler.StatMin}, `SELECT MIN("amount") FROM "orders"`},
		{"Max", profiler.Statistic{Kind: profiler.StatMax}, `SELECT MAX("amount") FROM "orders"`},
		{"Mean", profiler.Statistic{Kind: profiler.StatMean}, `SELECT AVG("amount") FROM "orders"`},
		{"Median", profiler.Statistic{Kind: profiler.StatMedian}, `SELECT percentile_cont(0.5) WITHIN GROUP (ORDER BY "amount") FROM "orders"`},
		{"Quantile", profiler.Statistic{Kind: profiler.StatQuantile, Quantile: 0.05}, `SELECT percentile_cont(0.05) WITHIN GROUP (ORDER BY "amount") FROM "orders"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := handler.AggregateQuery("orders", "amount", tt.stat, 100)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := handler.AggregateQuery("orders", "amount", profiler.Statistic{Kind: profiler.StatQuantile, Quantile: 2}, 100)
	assert.Error(t, err)
}

// TestPostgresTableDatasetProfile drives the profiler through a postgres table
// dataset backed by sqlmock.
func TestPostgresTableDatasetProfile(t *testing.T) {
	db, mock, _ := newMockPostgresDB(t)
	defer db.Close()
	ctx := context.Background()

	columnsQuery := regexp.QuoteMeta(`
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public'
		AND table_name = $1
		ORDER BY ordinal_position;`)
	mock.ExpectQuery(columnsQuery).WithArgs("flags").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("id", "integer").
			AddRow("enabled", "boolean"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "flags"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	for _, col := range []struct {
		name     string
		nulls    int
		distinct int
	}{{"id", 0, 3}, {"enabled", 0, 2}} {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "flags" WHERE "` + col.name + `" IS NULL`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(col.nulls))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(DISTINCT "` + col.name + `") FROM "flags"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(col.distinct))
	}

	ds := database.NewTableDataset(db, "flags")
	p, err := profiler.New(ctx, ds, map[string]any{"table_expectations_only": true})
	require.NoError(t, err)

	info := p.ColumnInfo()
	id, _ := info.Get("id")
	assert.Equal(t, profiler.CardinalityUnique, id.Cardinality)
	assert.Equal(t, profiler.TypeInt, id.InferredType)
	enabled, _ := info.Get("enabled")
	assert.Equal(t, profiler.CardinalityTwo, enabled.Cardinality)
	assert.Equal(t, profiler.TypeBoolean, enabled.InferredType)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresListTablesPropagatesContext(t *testing.T) {
	db, mock, handler := newMockPostgresDB(t)
	defer db.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := handler.ListTables(ctx, db)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NoError(t, mock.ExpectationsWereMet())
}
