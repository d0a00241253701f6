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
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/config"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/database"
	_ "github.com/GoogleCloudPlatform/db-suite-profiler/internal/database/mysql"
	_ "github.com/GoogleCloudPlatform/db-suite-profiler/internal/database/postgres"
	_ "github.com/GoogleCloudPlatform/db-suite-profiler/internal/database/sqlite"
	_ "github.com/GoogleCloudPlatform/db-suite-profiler/internal/database/sqlserver"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/logger"
)

var (
	geminiAPIKey string
	logJSON      bool
	debug        bool

	// Database connection flags
	dialect                        string
	host                           string
	port                           int
	username                       string
	password                       string
	dbName                         string
	cloudSQLInstanceConnectionName string
	cloudSQLUsePrivateIP           bool
)

var rootCmd = &cobra.Command{
	Use:   "db_suite_profiler",
	Short: "A tool to profile database tables into expectation suites",
	Long: `db_suite_profiler is a CLI tool that profiles the columns of a database table
and turns what it finds into a suite of data quality expectations.`,
	SilenceUsage:      true,
	PersistentPreRunE: initFlagsAndConfig,
}

// initFlagsAndConfig initializes logging and the database configuration using command flags.
func initFlagsAndConfig(cmd *cobra.Command, args []string) error {
	if err := logger.Initialize(logJSON, debug); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg := config.GetConfig()
	dbCfg := cfg.Database
	if cmd != nil {
		dbCfg.Dialect = dialect
		dbCfg.Host = host
		dbCfg.Port = port
		dbCfg.User = username
		dbCfg.Password = password
		dbCfg.DBName = dbName
		dbCfg.CloudSQLInstanceConnectionName = cloudSQLInstanceConnectionName
		dbCfg.UsePrivateIP = cloudSQLUsePrivateIP
	}
	cfg.Database = dbCfg

	if geminiAPIKey == "" {
		geminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	cfg.GeminiAPIKey = geminiAPIKey
	config.SetConfig(cfg)

	return nil
}

func validateDialect(dialect string) error {
	supportedDialects := database.Dialects()
	for _, supportedDialect := range supportedDialects {
		if dialect == supportedDialect {
			return nil
		}
	}
	return fmt.Errorf("unsupported dialect: %s (only %s are supported)", dialect, strings.Join(supportedDialects, ", "))
}

func setupDatabase(ctx context.Context) (*database.DB, error) {
	cfg := config.Current()
	if cfg == nil {
		return nil, fmt.Errorf("database config is not initialized")
	}
	if err := validateDialect(cfg.Database.Dialect); err != nil {
		return nil, err
	}
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Logger.Errorw("Failed to connect to database", "dialect", cfg.Database.Dialect, "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	defer logger.Sync()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON instead of colored console output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	// Database connection flags
	rootCmd.PersistentFlags().StringVar(&dialect, "dialect", "", fmt.Sprintf("Database dialect (%s) - MANDATORY", strings.Join(database.Dialects(), ", ")))
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "Database host")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "Database port")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "Database username")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Database password")
	rootCmd.PersistentFlags().StringVar(&dbName, "database", "", "Database name, or the database file path for sqlite - MANDATORY")
	rootCmd.PersistentFlags().StringVar(&cloudSQLInstanceConnectionName, "cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (for Cloud SQL dialects) - MANDATORY for CloudSQL")
	rootCmd.PersistentFlags().BoolVar(&cloudSQLUsePrivateIP, "cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection (Cloud SQL)")

	// Gemini API Key flag
	rootCmd.PersistentFlags().StringVar(&geminiAPIKey, "gemini-api-key", "", "Gemini API key used to describe columns (can also be set via GEMINI_API_KEY environment variable)")

	// Add subcommands
	rootCmd.AddCommand(buildSuiteCmd)
	rootCmd.AddCommand(showColumnsCmd)
	rootCmd.AddCommand(listTablesCmd)
}
