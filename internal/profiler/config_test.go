package profiler

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		wantKey string
		wantMsg string
	}{
		{
			name:    "unknown key",
			raw:     map[string]any{"bad_keyword": 100},
			wantKey: "bad_keyword",
			wantMsg: "parameter bad_keyword from config is not recognized",
		},
		{
			name:    "string instead of list",
			raw:     map[string]any{"ignored_columns": "col_none"},
			wantKey: "ignored_columns",
			wantMsg: "config parameter ignored_columns must be formatted as a list rather than a string",
		},
		{
			name:    "list with non string entry",
			raw:     map[string]any{"excluded_expectations": []any{"expect_column_values_to_be_null", 3}},
			wantKey: "excluded_expectations",
			wantMsg: "config parameter excluded_expectations must be a list of strings",
		},
		{
			name:    "number instead of bool",
			raw:     map[string]any{"not_null_only": 1},
			wantKey: "not_null_only",
			wantMsg: "must be formatted as a bool rather than a number",
		},
		{
			name:    "bool instead of string",
			raw:     map[string]any{"value_set_threshold": true},
			wantKey: "value_set_threshold",
			wantMsg: "must be formatted as a string rather than a bool",
		},
		{
			name:    "unknown threshold",
			raw:     map[string]any{"value_set_threshold": "lots"},
			wantKey: "value_set_threshold",
			wantMsg: "lots is not a recognized value_set_threshold",
		},
		{
			name:    "semantic types not a map",
			raw:     map[string]any{"semantic_types": []string{"numeric"}},
			wantKey: "semantic_types",
			wantMsg: "must be formatted as a map rather than a list",
		},
		{
			name:    "semantic entry not a list",
			raw:     map[string]any{"semantic_types": map[string]any{"numeric": "col_few"}},
			wantKey: "semantic_types",
			wantMsg: "entries in semantic_types must be lists of column names",
		},
		{
			name:    "duplicate key column",
			raw:     map[string]any{"primary_or_compound_key": []string{"a", "b", "a"}},
			wantKey: "primary_or_compound_key",
			wantMsg: "column a appears more than once",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateConfig(tt.raw)
			require.Error(t, err)
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %T", err)
			assert.Equal(t, tt.wantKey, cfgErr.Key)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidateConfig_UnknownKeyHint(t *testing.T) {
	_, err := ValidateConfig(map[string]any{"bad_keyword": 100})
	require.Error(t, err)
	hints := errors.GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Contains(t, hints[0], "ignored_columns")
}

func TestValidateConfig_Defaults(t *testing.T) {
	for _, raw := range []map[string]any{nil, {}} {
		cfg, err := ValidateConfig(raw)
		require.NoError(t, err)
		assert.Empty(t, cfg.PrimaryOrCompoundKey())
		assert.Empty(t, cfg.IgnoredColumns())
		assert.Empty(t, cfg.ExcludedExpectations())
		assert.False(t, cfg.TableExpectationsOnly())
		assert.False(t, cfg.NotNullOnly())
		_, ok := cfg.ValueSetThreshold()
		assert.False(t, ok)
		_, declared := cfg.SemanticTypes()
		assert.False(t, declared)
		assert.Empty(t, cfg.AsMap())
	}
}

func TestValidateConfig_AcceptedShapes(t *testing.T) {
	raw := map[string]any{
		"primary_or_compound_key": []any{"a", "b"},
		"ignored_columns":         []string{"c", "c"},
		"value_set_threshold":     "Very_Few",
		"table_expectations_only": false,
		"excluded_expectations":   []any{"expect_column_values_to_be_unique"},
		"not_null_only":           true,
		"semantic_types": map[string]any{
			"value_set": []any{"a"},
			"numeric":   []string{"b"},
		},
	}
	cfg, err := ValidateConfig(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, cfg.PrimaryOrCompoundKey())
	assert.Equal(t, []string{"c"}, cfg.IgnoredColumns())
	assert.True(t, cfg.IsIgnored("c"))
	threshold, ok := cfg.ValueSetThreshold()
	assert.True(t, ok)
	assert.Equal(t, CardinalityVeryFew, threshold)
	assert.True(t, cfg.IsExcluded("expect_column_values_to_be_unique"))
	assert.True(t, cfg.NotNullOnly())

	groups, declared := cfg.SemanticTypes()
	assert.True(t, declared)
	assert.Equal(t, []SemanticGroup{
		{Category: "numeric", Columns: []string{"b"}},
		{Category: "value_set", Columns: []string{"a"}},
	}, groups)
}

func TestValidateConfig_YAMLStyleSemanticTypes(t *testing.T) {
	raw := map[string]any{
		"semantic_types": map[any]any{"boolean": []any{"flag"}},
	}
	cfg, err := ValidateConfig(raw)
	require.NoError(t, err)
	groups, _ := cfg.SemanticTypes()
	assert.Equal(t, []SemanticGroup{{Category: "boolean", Columns: []string{"flag"}}}, groups)
}

func TestConfig_AsMapRoundTrip(t *testing.T) {
	raw := map[string]any{
		"primary_or_compound_key": []string{"id"},
		"ignored_columns":         []string{"notes"},
		"value_set_threshold":     "few",
		"table_expectations_only": true,
		"excluded_expectations":   []string{"expect_column_mean_to_be_between"},
		"not_null_only":           true,
		"semantic_types":          map[string][]string{"string": {"name"}},
	}
	cfg, err := ValidateConfig(raw)
	require.NoError(t, err)

	again, err := ValidateConfig(cfg.AsMap())
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
	assert.Equal(t, "few", cfg.AsMap()["value_set_threshold"])
}

func TestConfig_AccessorsReturnCopies(t *testing.T) {
	cfg, err := ValidateConfig(map[string]any{"ignored_columns": []string{"a"}})
	require.NoError(t, err)

	cols := cfg.IgnoredColumns()
	cols[0] = "mutated"
	assert.Equal(t, []string{"a"}, cfg.IgnoredColumns())
}
