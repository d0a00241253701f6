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
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/database"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/profiler"
)

// showColumnsCmd represents the show-columns command
var showColumnsCmd = &cobra.Command{
	Use:     "show-columns",
	Short:   "Print the inferred profile of every column of a table",
	Long:    `Connects to the database, profiles the table with the given configuration and prints the cardinality, type and semantic types of each column.`,
	Example: `./db_suite_profiler show-columns --dialect sqlite --database ./shop.db --table orders --ignored-columns notes`,
	RunE:    runShowColumns,
}

func runShowColumns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	table, _ := cmd.Flags().GetString("table")
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
	p, err := profiler.New(ctx, database.NewTableDataset(db, table), raw, profiler.WithConcurrency(concurrency))
	if err != nil {
		return err
	}

	rendered, err := renderColumnTable(p.ColumnInfo())
	if err != nil {
		return fmt.Errorf("failed to render column table: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Table %s (%d rows)\n", table, p.ColumnInfo().RowCount())
	fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return nil
}

// renderColumnTable lays out column profiles in physical column order.
func renderColumnTable(profiles profiler.ColumnProfiles) (string, error) {
	data := pterm.TableData{{"Column", "Type", "Cardinality", "Nulls", "Distinct", "Semantic types"}}
	for _, name := range profiles.Names() {
		p, _ := profiles.Get(name)
		tags := make([]string, len(p.SemanticTypes))
		for i, s := range p.SemanticTypes {
			tags[i] = s.String()
		}
		data = append(data, []string{
			name,
			p.InferredType.String(),
			p.Cardinality.String(),
			strconv.FormatInt(p.NullCount, 10),
			strconv.FormatInt(p.DistinctCount, 10),
			strings.Join(tags, ", "),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

func init() {
	addProfilerFlags(showColumnsCmd)
}
