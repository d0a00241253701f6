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

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/database"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/genai"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/logger"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/profiler"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/utils"
)

// buildSuiteCmd represents the build-suite command
var buildSuiteCmd = &cobra.Command{
	Use:     "build-suite",
	Short:   "Profile a table and write an expectation suite",
	Long:    `Connects to the database, profiles every column of the table that is not ignored, and writes the synthesized expectation suite to a file.`,
	Example: `./db_suite_profiler build-suite --dialect postgres --host localhost --port 5432 --username user --password pass --database mydb --table orders --primary-key order_id --semantic-types "numeric[amount],value_set[status]" --format yaml`,
	RunE:    runBuildSuite,
}

func runBuildSuite(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	table, _ := cmd.Flags().GetString("table")
	format, err := utils.ParseFormat(cmd.Flag("format").Value.String())
	if err != nil {
		return err
	}
	outputFile := cmd.Flag("out_file").Value.String()
	if outputFile == "" {
		outputFile = utils.GetDefaultOutputFilePath(table, format)
	}

	raw, err := profilerConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	db, err := setupDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	suiteName, _ := cmd.Flags().GetString("suite-name")
	if suiteName == "" {
		suiteName = table
	}
	opts := []profiler.Option{
		profiler.WithConcurrency(concurrency),
		profiler.WithSuiteName(suiteName),
	}

	describer, closeDescriber, err := setupDescriber(ctx, cmd, table)
	if err != nil {
		return err
	}
	defer closeDescriber()
	if describer != nil {
		opts = append(opts, profiler.WithDescriber(describer))
	}

	logger.Logger.Infow("Starting build-suite operation", "dialect", db.Config.Dialect, "database", db.Config.DBName, "table", table)

	p, err := profiler.New(ctx, database.NewTableDataset(db, table), raw, opts...)
	if err != nil {
		return err
	}
	suite, err := p.BuildSuite(ctx)
	if err != nil {
		return fmt.Errorf("failed to build expectation suite: %w", err)
	}

	if err := utils.WriteSuiteFile(outputFile, suite, format); err != nil {
		return err
	}
	if printSuite, _ := cmd.Flags().GetBool("print"); printSuite {
		fmt.Fprint(cmd.OutOrStdout(), profiler.FormatSuiteByColumn(suite))
	}
	pterm.Success.Printf("Wrote %d expectations for table %s to %s\n", len(suite.Expectations), table, outputFile)
	return nil
}

// setupDescriber returns a Gemini-backed describer when context files are
// given. The returned close function is always safe to call.
func setupDescriber(ctx context.Context, cmd *cobra.Command, table string) (profiler.Describer, func(), error) {
	noop := func() {}
	contextFiles := cmd.Flag("context").Value.String()
	if contextFiles == "" {
		return nil, noop, nil
	}
	knowledgeContext, err := utils.ReadContextFiles(contextFiles)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to read context files: %w", err)
	}
	if geminiAPIKey == "" {
		return nil, noop, fmt.Errorf("context files are provided, but Gemini API key is not configured. Please set the GEMINI_API_KEY environment variable")
	}

	client, err := genai.NewClient(ctx, genai.Config{APIKey: geminiAPIKey, Model: cmd.Flag("model").Value.String()})
	if err != nil {
		return nil, noop, err
	}
	if err := client.IsAPIKeyValid(ctx); err != nil {
		client.Close()
		return nil, noop, fmt.Errorf("gemini API key is invalid, please provide a valid api key: %w", err)
	}
	closeClient := func() {
		if err := client.Close(); err != nil {
			logger.Logger.Warnw("Failed to close Gemini client", "error", err)
		}
	}
	return genai.NewColumnDescriber(client, table, knowledgeContext, genai.DefaultRetryOptions), closeClient, nil
}

func init() {
	addProfilerFlags(buildSuiteCmd)
	buildSuiteCmd.Flags().String("suite-name", "", "Name of the expectation suite (defaults to the table name)")
	buildSuiteCmd.Flags().String("format", "json", "Output format (json, yaml or toml)")
	buildSuiteCmd.Flags().String("out_file", "", "Output file path (defaults to <table>_suite.<format>)")
	buildSuiteCmd.Flags().Bool("print", false, "Also print the suite grouped by column")
	buildSuiteCmd.Flags().String("context", "", "Comma separated context files used to describe columns with Gemini")
	buildSuiteCmd.Flags().String("model", genai.DefaultModel, "Gemini model used to describe columns")
}
