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
package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/config"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/database"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/profiler"
	mssql "github.com/denisenkom/go-mssqldb"
)

// sqlServerHandler struct implements database.DialectHandler for SQL Server.
type sqlServerHandler struct{}

var _ database.DialectHandler = (*sqlServerHandler)(nil)

type csqlDialer struct {
	dialer     *cloudsqlconn.Dialer
	connName   string
	usePrivate bool
}

// DialContext adheres to the mssql.Dialer interface.
func (c *csqlDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var opts []cloudsqlconn.DialOption
	if c.usePrivate {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}
	return c.dialer.Dial(ctx, c.connName, opts...)
}

// CreateCloudSQLPool for SQL Server
func (h sqlServerHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
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
			return os.Getenv(k)
		}
		return v
	}

	dbUser := getSetting("user_name", cfg)
	dbPwd := getSetting("password", cfg)
	dbName := getSetting("database_name", cfg)
	instanceConnectionName := getSetting("instance_name", cfg)
	usePrivate := getSetting("PRIVATE_IP", cfg)

	// WithLazyRefresh() Option is used to perform refresh
	// when needed, rather than on a scheduled interval.
	// This is recommended for serverless environments to
	// avoid background refreshes from throttling CPU.
	dialer, err := cloudsqlconn.NewDialer(context.Background(), cloudsqlconn.WithLazyRefresh())
	if err != nil {
		return nil, fmt.Errorf("cloudsqlconn.NewDailer: %w", err)
	}
	connector, err := mssql.NewConnector(fmt.Sprintf("sqlserver://%s:%s@localhost:1433?database=%s&dial=cloudsqlconn&instance=%s",
		dbUser, dbPwd, dbName, instanceConnectionName))
	if err != nil {
		return nil, fmt.Errorf("mssql.NewConnector: %w", err)
	}
	connector.Dialer = &csqlDialer{
		dialer:     dialer,
		connName:   instanceConnectionName,
		usePrivate: usePrivate != "",
	}

	dbPool := sql.OpenDB(connector)

	return dbPool, nil
}

// CreateStandardPool creates a standard SQL Server connection pool
func (h sqlServerHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	port := cfg.Port
	if port == 0 {
		port = 1433 // Default SQL Server port
	}
	connStr := fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
		cfg.User, cfg.Password, cfg.Host, port, cfg.DBName)

	dbPool, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard sqlserver): %w", err)
	}
	return dbPool, nil
}

// QuoteIdentifier for SQL Server. A closing bracket inside the name is doubled.
func (h sqlServerHandler) QuoteIdentifier(name string) string {
	return fmt.Sprintf("[%s]", strings.ReplaceAll(name, "]", "]]"))
}

// ListTables for SQL Server
func (h sqlServerHandler) ListTables(ctx context.Context, db *database.DB) ([]string, error) {
	query := "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_CATALOG = DB_NAME() ORDER BY TABLE_NAME"
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

// ListColumns for SQL Server
func (h sqlServerHandler) ListColumns(ctx context.Context, db *database.DB, tableName string) ([]database.ColumnInfo, error) {
	query := "SELECT COLUMN_NAME, DATA_TYPE FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_NAME = @p1 AND TABLE_CATALOG = DB_NAME() ORDER BY ORDINAL_POSITION"

	rows, err := db.Pool.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []database.ColumnInfo

	for rows.Next() {
		var colInfo database.ColumnInfo
		if err := rows.Scan(&colInfo.Name, &colInfo.DataType); err != nil {
			return nil, fmt.Errorf("error scanning column details: %w", err)
		}
		columns = append(columns, colInfo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}
	return columns, nil
}

// AggregateQuery for SQL Server. AVG over integer columns is integer division
// there, so the mean is computed on FLOAT. PERCENTILE_CONT is only available as
// a window function, hence TOP 1.
func (h sqlServerHandler) AggregateQuery(tableName, columnName string, stat profiler.Statistic, nonNull int64) (string, error) {
	quotedTable := h.QuoteIdentifier(tableName)
	quotedColumn := h.QuoteIdentifier(columnName)

	if stat.Kind == profiler.StatMean {
		return fmt.Sprintf("SELECT AVG(CAST(%s AS FLOAT)) FROM %s", quotedColumn, quotedTable), nil
	}
	if q, ok := database.StandardAggregateQuery(quotedTable, quotedColumn, stat); ok {
		return q, nil
	}
	quantile, err := database.QuantileOf(stat)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT TOP 1 PERCENTILE_CONT(%g) WITHIN GROUP (ORDER BY %s) OVER () FROM %s WHERE %s IS NOT NULL",
		quantile, quotedColumn, quotedTable, quotedColumn), nil
}

func init() {
	database.RegisterDialectHandler("sqlserver", sqlServerHandler{})
	database.RegisterDialectHandler("cloudsqlsqlserver", sqlServerHandler{})
}
