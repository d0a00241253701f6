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
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// Recognized configuration keys.
const (
	KeyPrimaryOrCompoundKey  = "primary_or_compound_key"
	KeyIgnoredColumns        = "ignored_columns"
	KeyValueSetThreshold     = "value_set_threshold"
	KeyTableExpectationsOnly = "table_expectations_only"
	KeyExcludedExpectations  = "excluded_expectations"
	KeyNotNullOnly           = "not_null_only"
	KeySemanticTypes         = "semantic_types"
)

type configKind int

const (
	kindList configKind = iota + 1
	kindString
	kindBool
	kindMapOfLists
)

func (k configKind) String() string {
	switch k {
	case kindList:
		return "list"
	case kindString:
		return "string"
	case kindBool:
		return "bool"
	case kindMapOfLists:
		return "map"
	}
	return "unknown"
}

var configSchema = map[string]configKind{
	KeyPrimaryOrCompoundKey:  kindList,
	KeyIgnoredColumns:        kindList,
	KeyValueSetThreshold:     kindString,
	KeyTableExpectationsOnly: kindBool,
	KeyExcludedExpectations:  kindList,
	KeyNotNullOnly:           kindBool,
	KeySemanticTypes:         kindMapOfLists,
}

// SemanticGroup is one semantic_types entry: a category name as written by the
// user and the columns declared under it.
type SemanticGroup struct {
	Category string
	Columns  []string
}

// Config is a validated profiler configuration. It is immutable; accessors
// return copies.
type Config struct {
	primaryOrCompoundKey  []string
	ignoredColumns        []string
	valueSetThreshold     Cardinality
	tableExpectationsOnly bool
	excludedExpectations  []string
	notNullOnly           bool
	semanticTypes         []SemanticGroup
	semanticDeclared      bool
}

// ValidateConfig checks raw against the recognized keys and their types and
// returns the normalized configuration. A nil map yields the defaults.
func ValidateConfig(raw map[string]any) (Config, error) {
	var cfg Config

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		kind, ok := configSchema[key]
		if !ok {
			return Config{}, errors.WithHint(
				&ConfigurationError{Key: key, Msg: fmt.Sprintf("parameter %s from config is not recognized", key)},
				"recognized parameters are "+strings.Join(recognizedKeys(), ", "))
		}
		value := raw[key]
		if value == nil {
			continue
		}

		switch kind {
		case kindList:
			list, ok := toStringList(value)
			if !ok {
				return Config{}, typeMismatch(key, kind, value)
			}
			switch key {
			case KeyPrimaryOrCompoundKey:
				if dup := firstDuplicate(list); dup != "" {
					return Config{}, &ConfigurationError{Key: key, Msg: fmt.Sprintf("column %s appears more than once in %s", dup, key)}
				}
				cfg.primaryOrCompoundKey = list
			case KeyIgnoredColumns:
				cfg.ignoredColumns = dedupe(list)
			case KeyExcludedExpectations:
				cfg.excludedExpectations = dedupe(list)
			}
		case kindString:
			s, ok := value.(string)
			if !ok {
				return Config{}, typeMismatch(key, kind, value)
			}
			c, ok := ParseCardinality(s)
			if !ok {
				var names []string
				for _, b := range Cardinalities() {
					names = append(names, b.String())
				}
				return Config{}, &ConfigurationError{Key: key, Msg: fmt.Sprintf(
					"%s is not a recognized value_set_threshold. Please use one of [%s]", s, strings.Join(names, " "))}
			}
			cfg.valueSetThreshold = c
		case kindBool:
			b, ok := value.(bool)
			if !ok {
				return Config{}, typeMismatch(key, kind, value)
			}
			if key == KeyTableExpectationsOnly {
				cfg.tableExpectationsOnly = b
			} else {
				cfg.notNullOnly = b
			}
		case kindMapOfLists:
			groups, err := toSemanticGroups(value)
			if err != nil {
				return Config{}, err
			}
			cfg.semanticTypes = groups
			cfg.semanticDeclared = true
		}
	}
	return cfg, nil
}

func recognizedKeys() []string {
	keys := make([]string, 0, len(configSchema))
	for k := range configSchema {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func typeMismatch(key string, want configKind, value any) error {
	if want == kindList && describeValue(value) == "list" {
		return &ConfigurationError{Key: key, Msg: fmt.Sprintf("config parameter %s must be a list of strings", key)}
	}
	return &ConfigurationError{
		Key: key,
		Msg: fmt.Sprintf("config parameter %s must be formatted as a %s rather than a %s", key, want, describeValue(value)),
	}
}

func describeValue(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return "number"
	case []string, []any:
		return "list"
	case map[string]any, map[string][]string, map[any]any:
		return "map"
	}
	return fmt.Sprintf("%T", v)
}

// toStringList accepts []string and []any whose elements are all strings, the
// shapes produced by callers and by YAML/JSON decoders respectively.
func toStringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func toSemanticGroups(v any) ([]SemanticGroup, error) {
	entries := map[string]any{}
	switch m := v.(type) {
	case map[string][]string:
		for k, cols := range m {
			entries[k] = cols
		}
	case map[string]any:
		entries = m
	case map[any]any:
		for k, cols := range m {
			name, ok := k.(string)
			if !ok {
				return nil, typeMismatch(KeySemanticTypes, kindMapOfLists, v)
			}
			entries[name] = cols
		}
	default:
		return nil, typeMismatch(KeySemanticTypes, kindMapOfLists, v)
	}

	categories := make([]string, 0, len(entries))
	for k := range entries {
		categories = append(categories, k)
	}
	sort.Strings(categories)

	groups := make([]SemanticGroup, 0, len(categories))
	for _, category := range categories {
		cols, ok := toStringList(entries[category])
		if !ok {
			return nil, &ConfigurationError{
				Key: KeySemanticTypes,
				Msg: "entries in semantic_types must be lists of column names e.g. {semantic_types: {numeric: [number_of_transactions]}}",
			}
		}
		groups = append(groups, SemanticGroup{Category: category, Columns: cols})
	}
	return groups, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func firstDuplicate(in []string) string {
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if seen[s] {
			return s
		}
		seen[s] = true
	}
	return ""
}

// PrimaryOrCompoundKey returns the key columns in declaration order.
func (c Config) PrimaryOrCompoundKey() []string {
	return append([]string(nil), c.primaryOrCompoundKey...)
}

func (c Config) IgnoredColumns() []string {
	return append([]string(nil), c.ignoredColumns...)
}

// IsIgnored reports whether column is listed in ignored_columns.
func (c Config) IsIgnored(column string) bool {
	for _, ic := range c.ignoredColumns {
		if ic == column {
			return true
		}
	}
	return false
}

// ValueSetThreshold returns the configured threshold. The second result is
// false when the key was absent.
func (c Config) ValueSetThreshold() (Cardinality, bool) {
	return c.valueSetThreshold, c.valueSetThreshold != CardinalityInvalid
}

func (c Config) TableExpectationsOnly() bool {
	return c.tableExpectationsOnly
}

func (c Config) ExcludedExpectations() []string {
	return append([]string(nil), c.excludedExpectations...)
}

// IsExcluded reports whether expectationType is listed in excluded_expectations.
func (c Config) IsExcluded(expectationType string) bool {
	for _, e := range c.excludedExpectations {
		if e == expectationType {
			return true
		}
	}
	return false
}

func (c Config) NotNullOnly() bool {
	return c.notNullOnly
}

// SemanticTypes returns the declared groups sorted by category name. The second
// result is false when semantic_types was not given at all.
func (c Config) SemanticTypes() ([]SemanticGroup, bool) {
	out := make([]SemanticGroup, len(c.semanticTypes))
	for i, g := range c.semanticTypes {
		out[i] = SemanticGroup{Category: g.Category, Columns: append([]string(nil), g.Columns...)}
	}
	return out, c.semanticDeclared
}

// AsMap renders the configuration back into the raw mapping shape accepted by
// ValidateConfig. Only keys that differ from their defaults are included.
func (c Config) AsMap() map[string]any {
	m := map[string]any{}
	if len(c.primaryOrCompoundKey) > 0 {
		m[KeyPrimaryOrCompoundKey] = c.PrimaryOrCompoundKey()
	}
	if len(c.ignoredColumns) > 0 {
		m[KeyIgnoredColumns] = c.IgnoredColumns()
	}
	if t, ok := c.ValueSetThreshold(); ok {
		m[KeyValueSetThreshold] = strings.ToLower(t.String())
	}
	if c.tableExpectationsOnly {
		m[KeyTableExpectationsOnly] = true
	}
	if len(c.excludedExpectations) > 0 {
		m[KeyExcludedExpectations] = c.ExcludedExpectations()
	}
	if c.notNullOnly {
		m[KeyNotNullOnly] = true
	}
	if c.semanticDeclared {
		st := make(map[string][]string, len(c.semanticTypes))
		for _, g := range c.semanticTypes {
			st[g.Category] = append([]string(nil), g.Columns...)
		}
		m[KeySemanticTypes] = st
	}
	return m
}
