package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/config"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/database"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/logger"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/profiler"
	"github.com/go-sql-driver/mysql"
)

type mysqlHandler struct{}

var _ database.DialectHandler = (*mysqlHandler)(nil)

func (h mysqlHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
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
		return v
	}

	dbUser := getSetting("user_name", cfg)
	dbPwd := getSetting("password", cfg)
	dbName := getSetting("database_name", cfg)
	instanceConnectionName := getSetting("instance_name", cfg)
	usePrivate := getSetting("PRIVATE_IP", cfg)

	if dbUser == "" || dbPwd == "" || dbName == "" || instanceConnectionName == "" {
		return nil, fmt.Errorf("missing required CloudSQL connection parameter (user, pass, db, instance)")
	}

	d, err := cloudsqlconn.NewDialer(context.Background())
	if err != nil {
		return nil, fmt.Errorf("cloudsqlconn.NewDialer: %w", err)
	}

	var opts []cloudsqlconn.DialOption
	if usePrivate != "" && strings.ToLower(usePrivate) != "false" && usePrivate != "0" {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}

	network := fmt.Sprintf("cloudsql-%s", instanceConnectionName)

	mysql.RegisterDialContext(network,
		func(ctx context.Context, addr string) (net.Conn, error) {
			conn, dialErr := d.Dial(ctx, instanceConnectionName, opts...)
			if dialErr != nil {
				logger.Logger.Errorw("Cloud SQL dial failed", "instance", instanceConnectionName, "error", dialErr)
			}
			return conn, dialErr
		})

	mysqlCfg := mysql.Config{
		User:                 dbUser,
		Passwd:               dbPwd,
		Net:                  network,
		Addr:                 instanceConnectionName,
		DBName:               dbName,
		AllowNativePasswords: true,
		ParseTime:            true,
	}

	dbPool, err := sql.Open("mysql", mysqlCfg.FormatDSN())
	if err != nil {
		mysql.DeregisterDialContext(network)
		d.Close()
		return nil, fmt.Errorf("sql.Open failed for CloudSQL MySQL: %w", err)
	}
	return dbPool, nil
}

func (h mysqlHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	mysqlCfg := mysql.Config{
		User:                 cfg.User,
		Passwd:               cfg.Password,
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DBName:               cfg.DBName,
		AllowNativePasswords: true,
		ParseTime:            true,
	}
	connStr := mysqlCfg.FormatDSN()

	dbPool, err := sql.Open("mysql", connStr)
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard mysql): %w", err)
	}
	return dbPool, nil
}

func (h mysqlHandler) QuoteIdentifier(name string) string {
	name = strings.ReplaceAll(name, "`", "``")
	return fmt.Sprintf("`%s`", name)
}

func (h mysqlHandler) ListTables(ctx context.Context, db *database.DB) ([]string, error) {
	query := "SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME"

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

func (h mysqlHandler) ListColumns(ctx context.Context, db *database.DB, tableName string) ([]database.ColumnInfo, error) {
	query := `
		  SELECT COLUMN_NAME, COLUMN_TYPE
		  FROM information_schema.COLUMNS
		  WHERE TABLE_SCHEMA = DATABASE()
			AND TABLE_NAME = ?
		  ORDER BY ORDINAL_POSITION;`

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

// AggregateQuery for MySQL. MySQL has no ordered-set aggregates, so order
// statistics are read by offset from the sorted values.
func (h mysqlHandler) AggregateQuery(tableName, columnName string, stat profiler.Statistic, nonNull int64) (string, error) {
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
	database.RegisterDialectHandler("mysql", mysqlHandler{})
	database.RegisterDialectHandler("cloudsqlmysql", mysqlHandler{})
}
