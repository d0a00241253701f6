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
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// Expectation types emitted by the synthesizer.
const (
	ExpectTableColumnsToMatchOrderedList        = "expect_table_columns_to_match_ordered_list"
	ExpectTableRowCountToBeBetween              = "expect_table_row_count_to_be_between"
	ExpectCompoundColumnsToBeUnique             = "expect_compound_columns_to_be_unique"
	ExpectColumnValuesToBeNull                  = "expect_column_values_to_be_null"
	ExpectColumnValuesToNotBeNull               = "expect_column_values_to_not_be_null"
	ExpectColumnValuesToBeInTypeList            = "expect_column_values_to_be_in_type_list"
	ExpectColumnValuesToBeUnique                = "expect_column_values_to_be_unique"
	ExpectColumnValuesToBeInSet                 = "expect_column_values_to_be_in_set"
	ExpectColumnMinToBeBetween                  = "expect_column_min_to_be_between"
	ExpectColumnMaxToBeBetween                  = "expect_column_max_to_be_between"
	ExpectColumnMeanToBeBetween                 = "expect_column_mean_to_be_between"
	ExpectColumnMedianToBeBetween               = "expect_column_median_to_be_between"
	ExpectColumnQuantileValuesToBeBetween       = "expect_column_quantile_values_to_be_between"
	ExpectColumnValuesToBeBetween               = "expect_column_values_to_be_between"
	ExpectColumnProportionOfUniqueValuesBetween = "expect_column_proportion_of_unique_values_to_be_between"
)

// Expectation is a declarative assertion about the data: a type name plus its
// keyword arguments. Column-scoped expectations carry kwargs["column"].
type Expectation struct {
	ExpectationType string         `json:"expectation_type" yaml:"expectation_type" toml:"expectation_type"`
	Kwargs          map[string]any `json:"kwargs" yaml:"kwargs" toml:"kwargs"`
}

// Column returns the column an expectation is scoped to, if any.
func (e Expectation) Column() (string, bool) {
	c, ok := e.Kwargs["column"].(string)
	return c, ok
}

func (e Expectation) clone() Expectation {
	return Expectation{ExpectationType: e.ExpectationType, Kwargs: cloneMap(e.Kwargs)}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep copies the slice and map shapes that appear in kwargs and
// suite meta. Scalars are returned as is.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case map[string][]string:
		out := make(map[string][]string, len(t))
		for k, s := range t {
			out[k] = append([]string(nil), s...)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []float64:
		return append([]float64(nil), t...)
	case [][]float64:
		out := make([][]float64, len(t))
		for i, r := range t {
			out[i] = append([]float64(nil), r...)
		}
		return out
	default:
		return v
	}
}

// Suite is a named, ordered collection of expectations.
type Suite struct {
	Name         string         `json:"expectation_suite_name" yaml:"expectation_suite_name" toml:"expectation_suite_name"`
	Expectations []Expectation  `json:"expectations" yaml:"expectations" toml:"expectations"`
	Meta         map[string]any `json:"meta,omitempty" yaml:"meta,omitempty" toml:"meta,omitempty"`
}

// NewSuite returns an empty suite.
func NewSuite(name string) *Suite {
	return &Suite{Name: name, Expectations: []Expectation{}, Meta: map[string]any{}}
}

// replaceExpectations discards every existing expectation.
func (s *Suite) replaceExpectations(exps []Expectation) {
	s.Expectations = make([]Expectation, len(exps))
	for i, e := range exps {
		s.Expectations[i] = e.clone()
	}
}

// Clone returns a deep copy of s. Mutating the copy, down to nested kwargs and
// meta values, never affects s.
func (s *Suite) Clone() *Suite {
	out := &Suite{Name: s.Name, Expectations: make([]Expectation, len(s.Expectations)), Meta: cloneMap(s.Meta)}
	for i, e := range s.Expectations {
		out.Expectations[i] = e.clone()
	}
	return out
}

// ExpectationTypes returns the distinct expectation types in the suite, sorted.
func (s *Suite) ExpectationTypes() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range s.Expectations {
		if !seen[e.ExpectationType] {
			seen[e.ExpectationType] = true
			out = append(out, e.ExpectationType)
		}
	}
	sort.Strings(out)
	return out
}

// TableExpectations returns the expectations not scoped to a single column.
func (s *Suite) TableExpectations() []Expectation {
	var out []Expectation
	for _, e := range s.Expectations {
		if _, ok := e.Column(); !ok {
			out = append(out, e.clone())
		}
	}
	return out
}

// ExpectationsForColumn returns the expectations scoped to column in suite order.
func (s *Suite) ExpectationsForColumn(column string) []Expectation {
	var out []Expectation
	for _, e := range s.Expectations {
		if c, ok := e.Column(); ok && c == column {
			out = append(out, e.clone())
		}
	}
	return out
}

// FormatSuiteByColumn renders the suite for terminal display, table
// expectations first and then one block per column.
func FormatSuiteByColumn(s *Suite) string {
	if s == nil || len(s.Expectations) == 0 {
		return "No expectations found.\n"
	}
	var buffer bytes.Buffer
	buffer.WriteString(fmt.Sprintf("--- Suite: %s ---\n", s.Name))

	var columns []string
	seen := map[string]bool{}
	for _, e := range s.Expectations {
		if c, ok := e.Column(); ok && !seen[c] {
			seen[c] = true
			columns = append(columns, c)
		}
	}

	if table := s.TableExpectations(); len(table) > 0 {
		buffer.WriteString("  [Table]\n")
		for _, e := range table {
			buffer.WriteString(fmt.Sprintf("    %s%s\n", e.ExpectationType, formatKwargs(e.Kwargs)))
		}
	}
	for _, c := range columns {
		buffer.WriteString(fmt.Sprintf("  Column: %s\n", c))
		for _, e := range s.ExpectationsForColumn(c) {
			buffer.WriteString(fmt.Sprintf("    %s%s\n", e.ExpectationType, formatKwargs(e.Kwargs)))
		}
	}
	return buffer.String()
}

func formatKwargs(kwargs map[string]any) string {
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		if k != "column" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, kwargs[k])
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
