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
package profiler

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// resolveSemanticTypes validates the semantic_types declarations of cfg against
// the dataset columns and returns the tags per column, in category order.
// Ignored columns are dropped from their groups.
func resolveSemanticTypes(cfg Config, columns []string, log *zap.SugaredLogger) (map[string][]SemanticType, error) {
	groups, declared := cfg.SemanticTypes()
	if !declared {
		return map[string][]SemanticType{}, nil
	}

	exists := make(map[string]bool, len(columns))
	for _, c := range columns {
		exists[c] = true
	}

	tagged := map[string]map[SemanticType]bool{}
	for _, g := range groups {
		st, ok := ParseSemanticType(g.Category)
		if !ok {
			return nil, errors.WithHint(&SemanticCategoryError{Category: g.Category},
				"semantic_types keys are matched case-insensitively")
		}
		for _, column := range g.Columns {
			if cfg.IsIgnored(column) {
				log.Debugw("Dropping ignored column from semantic type", "column", column, "semantic_type", st.String())
				continue
			}
			if !exists[column] {
				return nil, &ReferenceError{Column: column, Usage: "semantic type"}
			}
			if tagged[column] == nil {
				tagged[column] = map[SemanticType]bool{}
			}
			tagged[column][st] = true
		}
	}

	out := make(map[string][]SemanticType, len(tagged))
	for column, set := range tagged {
		for _, st := range SemanticTypes() {
			if set[st] {
				out[column] = append(out[column], st)
			}
		}
	}
	return out, nil
}

// validateKeyColumns checks that every primary_or_compound_key column exists in
// the dataset. Ignored columns are allowed as key members.
func validateKeyColumns(cfg Config, columns []string) error {
	exists := make(map[string]bool, len(columns))
	for _, c := range columns {
		exists[c] = true
	}
	for _, column := range cfg.PrimaryOrCompoundKey() {
		if !exists[column] {
			return &ReferenceError{Column: column, Usage: "primary_or_compound_key"}
		}
	}
	return nil
}

// checkIgnoredColumns warns about ignored columns the dataset does not have.
func checkIgnoredColumns(cfg Config, columns []string, log *zap.SugaredLogger) {
	exists := make(map[string]bool, len(columns))
	for _, c := range columns {
		exists[c] = true
	}
	for _, column := range cfg.IgnoredColumns() {
		if !exists[column] {
			log.Warnw("Ignored column is not in the dataset", "column", column)
		}
	}
}
