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

	"github.com/spf13/cobra"
)

// listTablesCmd represents the list-tables command
var listTablesCmd = &cobra.Command{
	Use:     "list-tables",
	Short:   "List the tables of the connected database",
	Example: `./db_suite_profiler list-tables --dialect mysql --host localhost --port 3306 --username user --password pass --database shop`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		db, err := setupDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		tables, err := db.ListTables(ctx)
		if err != nil {
			return fmt.Errorf("failed to list tables: %w", err)
		}
		for _, t := range tables {
			fmt.Fprintln(cmd.OutOrStdout(), t)
		}
		return nil
	},
}
