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
	"fmt"
	"strings"
)

// ConfigurationError represents a configuration mapping that does not match the
// recognized schema: an unknown key, a wrongly typed value, or a bad value.
type ConfigurationError struct {
	Key string
	Msg string
}

// ReferenceError represents a configuration entry that names a column the
// dataset does not have.
type ReferenceError struct {
	Column string
	Usage  string
}

// SemanticCategoryError represents a semantic_types entry whose category is not
// one of the recognized semantic types.
type SemanticCategoryError struct {
	Category string
}

// ProfilingError represents a failure of the dataset while answering one of the
// profiling queries.
type ProfilingError struct {
	Column string
	Query  string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Msg)
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("column %s not found. Please ensure that this column is in the dataset if you would like to use it as a %s", e.Column, e.Usage)
}

func (e *SemanticCategoryError) Error() string {
	return fmt.Sprintf("%s is not a recognized semantic_type. Please only include one of [%s]",
		e.Category, strings.Join(semanticTypeNameList(), " "))
}

func (e *ProfilingError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("profiling error: %s: %v", e.Query, e.Err)
	}
	return fmt.Sprintf("profiling error on column %s: %s: %v", e.Column, e.Query, e.Err)
}

func (e *ProfilingError) Unwrap() error {
	return e.Err
}
