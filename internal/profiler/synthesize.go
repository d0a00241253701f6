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
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
)

type synthesizer struct {
	ds       Dataset
	cfg      Config
	profiles ColumnProfiles
	log      *zap.SugaredLogger
}

// synthesize builds the expectation list for a profiled dataset: table-level
// expectations first, then each column in physical order. excluded_expectations
// is applied last.
func synthesize(ctx context.Context, ds Dataset, cfg Config, profiles ColumnProfiles, log *zap.SugaredLogger) ([]Expectation, error) {
	s := &synthesizer{ds: ds, cfg: cfg, profiles: profiles, log: log}

	exps := s.tableExpectations()
	if !cfg.TableExpectationsOnly() {
		exps = append(exps, s.compoundKeyExpectations()...)
		for _, column := range profiles.Names() {
			colExps, err := s.columnExpectations(ctx, column)
			if err != nil {
				return nil, err
			}
			exps = append(exps, colExps...)
		}
	}

	out := make([]Expectation, 0, len(exps))
	for _, e := range exps {
		if !cfg.IsExcluded(e.ExpectationType) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *synthesizer) tableExpectations() []Expectation {
	n := s.profiles.RowCount()
	return []Expectation{
		{
			ExpectationType: ExpectTableColumnsToMatchOrderedList,
			Kwargs:          map[string]any{"column_list": s.profiles.Names()},
		},
		{
			ExpectationType: ExpectTableRowCountToBeBetween,
			Kwargs:          map[string]any{"min_value": n, "max_value": n},
		},
	}
}

func (s *synthesizer) compoundKeyExpectations() []Expectation {
	key := s.cfg.PrimaryOrCompoundKey()
	if len(key) < 2 {
		return nil
	}
	for _, column := range key {
		if s.cfg.IsIgnored(column) {
			s.log.Warnw("Skipping compound key expectation because a key column is ignored",
				"column", column, "key", key)
			return nil
		}
	}
	return []Expectation{{
		ExpectationType: ExpectCompoundColumnsToBeUnique,
		Kwargs:          map[string]any{"column_list": key},
	}}
}

func (s *synthesizer) columnExpectations(ctx context.Context, column string) ([]Expectation, error) {
	p, _ := s.profiles.Get(column)
	_, semanticMode := s.cfg.SemanticTypes()
	var exps []Expectation

	add := func(expType string, kwargs map[string]any) {
		kwargs["column"] = column
		exps = append(exps, Expectation{ExpectationType: expType, Kwargs: kwargs})
	}

	exps = append(exps, s.nullExpectations(column, p)...)

	if types := p.InferredType.TypeList(); len(types) > 0 {
		add(ExpectColumnValuesToBeInTypeList, map[string]any{"type_list": types})
	}

	if key := s.cfg.PrimaryOrCompoundKey(); len(key) == 1 && key[0] == column {
		add(ExpectColumnValuesToBeUnique, map[string]any{})
	}

	if s.wantsValueSet(p, semanticMode) && !s.cfg.IsExcluded(ExpectColumnValuesToBeInSet) {
		values, err := s.ds.DistinctValues(ctx, column)
		if err != nil {
			return nil, &ProfilingError{Column: column, Query: "distinct values", Err: err}
		}
		sortValues(values)
		add(ExpectColumnValuesToBeInSet, map[string]any{"value_set": values})
	}

	if p.Cardinality != CardinalityNone && (p.InferredType.IsNumeric() || p.HasSemanticType(SemanticNumeric)) {
		numeric, err := s.numericExpectations(ctx, column)
		if err != nil {
			return nil, err
		}
		exps = append(exps, numeric...)
	}

	if p.Cardinality != CardinalityNone && (p.InferredType == TypeDatetime || p.HasSemanticType(SemanticDatetime)) &&
		!s.cfg.IsExcluded(ExpectColumnValuesToBeBetween) {
		rr, ok := s.ds.(RangeReporter)
		if !ok {
			s.log.Debugw("Dataset cannot report value ranges, skipping datetime bounds", "column", column)
		} else {
			lo, hi, err := rr.ValueRange(ctx, column)
			if err != nil {
				return nil, &ProfilingError{Column: column, Query: "value range", Err: err}
			}
			add(ExpectColumnValuesToBeBetween, map[string]any{
				"min_value":                  lo,
				"max_value":                  hi,
				"parse_strings_as_datetimes": true,
			})
		}
	}

	if p.Cardinality != CardinalityNone && (p.Cardinality == CardinalityVeryMany || p.HasSemanticType(SemanticOther)) {
		nonNull := s.profiles.RowCount() - p.NullCount
		proportion := float64(p.DistinctCount) / float64(nonNull)
		add(ExpectColumnProportionOfUniqueValuesBetween, map[string]any{
			"min_value": proportion,
			"max_value": proportion,
		})
	}
	return exps, nil
}

// nullExpectations picks between the null and not-null expectations. Columns
// with some nulls get a "mostly" fraction slightly below the observed one.
func (s *synthesizer) nullExpectations(column string, p ColumnProfile) []Expectation {
	rows := s.profiles.RowCount()
	notNullOnly := s.cfg.NotNullOnly()

	if p.Cardinality == CardinalityNone {
		if notNullOnly {
			return nil
		}
		return []Expectation{{
			ExpectationType: ExpectColumnValuesToBeNull,
			Kwargs:          map[string]any{"column": column},
		}}
	}
	if p.NullCount == 0 || rows == 0 {
		return []Expectation{{
			ExpectationType: ExpectColumnValuesToNotBeNull,
			Kwargs:          map[string]any{"column": column},
		}}
	}

	nullPct := float64(p.NullCount) / float64(rows) * 100
	if nullPct >= 50 && !notNullOnly {
		return []Expectation{{
			ExpectationType: ExpectColumnValuesToBeNull,
			Kwargs:          map[string]any{"column": column, "mostly": mostly(nullPct)},
		}}
	}
	return []Expectation{{
		ExpectationType: ExpectColumnValuesToNotBeNull,
		Kwargs:          map[string]any{"column": column, "mostly": mostly(100 - nullPct)},
	}}
}

func mostly(pct float64) float64 {
	v := math.Floor(pct)/100 - 0.001
	if v < 0.001 {
		v = 0.001
	}
	return math.Round(v*1000) / 1000
}

// wantsValueSet decides whether the column gets expect_column_values_to_be_in_set.
// With semantic types declared only VALUE_SET and BOOLEAN columns qualify;
// otherwise the cardinality must be at or below value_set_threshold.
func (s *synthesizer) wantsValueSet(p ColumnProfile, semanticMode bool) bool {
	if p.Cardinality == CardinalityNone {
		return false
	}
	if semanticMode {
		return p.HasSemanticType(SemanticValueSet) || p.HasSemanticType(SemanticBoolean)
	}
	threshold, ok := s.cfg.ValueSetThreshold()
	if !ok {
		threshold = CardinalityMany
	}
	return p.Cardinality.AtMost(threshold)
}

func (s *synthesizer) numericExpectations(ctx context.Context, column string) ([]Expectation, error) {
	var exps []Expectation
	single := []struct {
		expType string
		stat    Statistic
	}{
		{ExpectColumnMinToBeBetween, Statistic{Kind: StatMin}},
		{ExpectColumnMaxToBeBetween, Statistic{Kind: StatMax}},
		{ExpectColumnMeanToBeBetween, Statistic{Kind: StatMean}},
		{ExpectColumnMedianToBeBetween, Statistic{Kind: StatMedian}},
	}
	for _, sc := range single {
		if s.cfg.IsExcluded(sc.expType) {
			continue
		}
		v, err := s.ds.Aggregate(ctx, column, sc.stat)
		if err != nil {
			return nil, &ProfilingError{Column: column, Query: sc.stat.String(), Err: err}
		}
		exps = append(exps, Expectation{
			ExpectationType: sc.expType,
			Kwargs:          map[string]any{"column": column, "min_value": v, "max_value": v},
		})
	}

	if s.cfg.IsExcluded(ExpectColumnQuantileValuesToBeBetween) {
		return exps, nil
	}
	quantiles := append([]float64(nil), defaultQuantiles...)
	ranges := make([][]float64, len(quantiles))
	for i, q := range quantiles {
		stat := Statistic{Kind: StatQuantile, Quantile: q}
		v, err := s.ds.Aggregate(ctx, column, stat)
		if err != nil {
			return nil, &ProfilingError{Column: column, Query: stat.String(), Err: err}
		}
		ranges[i] = []float64{v, v}
	}
	exps = append(exps, Expectation{
		ExpectationType: ExpectColumnQuantileValuesToBeBetween,
		Kwargs: map[string]any{
			"column": column,
			"quantile_ranges": map[string]any{
				"quantiles":    quantiles,
				"value_ranges": ranges,
			},
		},
	})
	return exps, nil
}

// sortValues orders a value set: numbers numerically, then strings, then
// anything else by its printed form.
func sortValues(values []any) {
	rank := func(v any) int {
		switch v.(type) {
		case bool:
			return 0
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return 1
		case string:
			return 2
		}
		return 3
	}
	sort.SliceStable(values, func(i, j int) bool {
		ri, rj := rank(values[i]), rank(values[j])
		if ri != rj {
			return ri < rj
		}
		switch ri {
		case 0:
			return !values[i].(bool) && values[j].(bool)
		case 1:
			return toFloat(values[i]) < toFloat(values[j])
		case 2:
			return values[i].(string) < values[j].(string)
		}
		return fmt.Sprint(values[i]) < fmt.Sprint(values[j])
	})
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return math.NaN()
}
