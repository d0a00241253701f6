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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/config"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/profiler"
	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/utils"
)

// addProfilerFlags registers the table and profiler configuration flags shared
// by build-suite and show-columns.
func addProfilerFlags(cmd *cobra.Command) {
	cmd.Flags().String("table", "", "Table to profile - MANDATORY")
	cmd.Flags().String("config", "", "Profiler configuration file (yaml, json or toml); flags override its values")
	cmd.Flags().StringSlice("primary-key", nil, "Primary or compound key columns, e.g. \"order_id,line_no\"")
	cmd.Flags().StringSlice("ignored-columns", nil, "Columns to leave out of profiling")
	cmd.Flags().String("value-set-threshold", "", "Largest cardinality that still gets a value set (none, one, two, very_few, few, many, very_many, unique)")
	cmd.Flags().StringSlice("excluded-expectations", nil, "Expectation types to leave out of the suite")
	cmd.Flags().Bool("not-null-only", false, "Never emit expect_column_values_to_be_null for partially null columns")
	cmd.Flags().Bool("table-expectations-only", false, "Only emit table-level expectations")
	cmd.Flags().String("semantic-types", "", "Semantic types, e.g. \"numeric[amount,total],value_set[status]\"")
	cmd.Flags().Int("concurrency", 4, "Number of columns profiled in parallel")
	_ = cmd.MarkFlagRequired("table")
}

// profilerConfigFromFlags builds the raw profiler configuration: the --config
// file first, then every flag the user set explicitly.
func profilerConfigFromFlags(cmd *cobra.Command) (map[string]any, error) {
	raw := map[string]any{}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		fromFile, err := config.LoadProfilerConfig(path)
		if err != nil {
			return nil, err
		}
		for k, v := range fromFile {
			raw[k] = v
		}
	}

	lists := map[string]string{
		"primary-key":           profiler.KeyPrimaryOrCompoundKey,
		"ignored-columns":       profiler.KeyIgnoredColumns,
		"excluded-expectations": profiler.KeyExcludedExpectations,
	}
	for flag, key := range lists {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		v, err := cmd.Flags().GetStringSlice(flag)
		if err != nil {
			return nil, err
		}
		raw[key] = v
	}

	bools := map[string]string{
		"not-null-only":           profiler.KeyNotNullOnly,
		"table-expectations-only": profiler.KeyTableExpectationsOnly,
	}
	for flag, key := range bools {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		v, err := cmd.Flags().GetBool(flag)
		if err != nil {
			return nil, err
		}
		raw[key] = v
	}

	if cmd.Flags().Changed("value-set-threshold") {
		v, _ := cmd.Flags().GetString("value-set-threshold")
		raw[profiler.KeyValueSetThreshold] = v
	}
	if cmd.Flags().Changed("semantic-types") {
		v, _ := cmd.Flags().GetString("semantic-types")
		semanticTypes, err := utils.ParseSemanticTypesFlag(v)
		if err != nil {
			return nil, fmt.Errorf("invalid --semantic-types: %w", err)
		}
		raw[profiler.KeySemanticTypes] = semanticTypes
	}
	return raw, nil
}
