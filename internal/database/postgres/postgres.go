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
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/config"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/database"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/profiler"
)

// postgresHandler struct implements database.DialectHandler for PostgreSQL.
type postgresHandler struct{}

var _ database.DialectHandler = (*postgresHandler)(nil)

// CreateCloudSQLPool for PostgreSQL
func (h postgresHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	getSetting := func(k string, cfg config.DatabaseConfig) string {
		v := ""
		switch k {
		case "user_name":
			v = cfg.User
		case "password":
			v = cfg.Password
		case "database_name":
			v = cfg.DBName
		case "instance_name":
			v = cfg.CloudSQLInstanceConnectionName
		case "PRIVATE_IP":
			if cfg.UsePrivateIP {
				v = "true"
			}
		}

		if v == "" {
			return os.Getenv(k) // Fallback to environment variable if not in Config
		}
		return v
	}

	dbUser := getSetting("user_name", cfg)
	dbPwd := getSetting("password", cfg)
	dbName := getSetting("database_name", cfg)
	instanceConnectionName := getSetting("instance_name", cfg)
	usePrivate := getSetting("PRIVATE_IP", cfg)

	dsn := fmt.Sprintf("user=%s password=%s database=%s", dbUser, dbPwd, dbName)
	pgxConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	var opts []cloudsqlconn.Option
	if usePrivate != "" && strings.ToLower(usePrivate) != "false" && usePrivate != "0" {
		opts = append(opts, cloudsqlconn.WithDefaultDialOptions(cloudsqlconn.WithPrivateIP()))
	}
	d, err := cloudsqlconn.NewDialer(context.Background(), opts...)
	if err != nil {
		return nil, err
	}
	pgxConfig.DialFunc = func(ctx context.Context, network, instance string) (net.Conn, error) {
		return d.Dial(ctx, instanceConnectionName)
	}
	dbURI := stdlib.RegisterConnConfig(pgxConfig)
	dbPool, err := sql.Open("pgx", dbURI)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	return dbPool, nil
}

// CreateStandardPool creates a standard PostgreSQL connection pool
func (h postgresHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	dbPool, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return dbPool, err
}

// QuoteIdentifier for PostgreSQL
func (h postgresHandler) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

// ListTables for PostgreSQL
func (h postgresHandler) ListTables(ctx context.Context, db *database.DB) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		AND table_type = 'BASE TABLE'
		ORDER BY table_name;`

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

// ListColumns for PostgreSQL
func (h postgresHandler) ListColumns(ctx context.Context, db *database.DB, tableName string) ([]database.ColumnInfo, error) {
	query := `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public'
		AND table_name = $1
		ORDER BY ordinal_position;`

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

// AggregateQuery for PostgreSQL. Order statistics use percentile_cont, which
// interpolates between neighbouring values.
func (h postgresHandler) AggregateQuery(tableName, columnName string, stat profiler.Statistic, nonNull int64) (string, error) {
	quotedTable := h.QuoteIdentifier(tableName)
	quotedColumn := h.QuoteIdentifier(columnName)

	if q, ok := database.StandardAggregateQuery(quotedTable, quotedColumn, stat); ok {
		return q, nil
	}
	quantile, err := database.QuantileOf(stat)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT percentile_cont(%g) WITHIN GROUP (ORDER BY %s) FROM %s",
		quantile, quotedColumn, quotedTable), nil
}

func init() {
	database.RegisterDialectHandler("postgres", postgresHandler{})
	database.RegisterDialectHandler("cloudsqlpostgres", postgresHandler{})
}
