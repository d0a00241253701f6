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
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ColumnProfile is what the profiler knows about a single column.
type ColumnProfile struct {
	Cardinality   Cardinality
	InferredType  InferredType
	SemanticTypes []SemanticType
	NullCount     int64
	DistinctCount int64
}

// HasSemanticType reports whether the column was tagged with s.
func (p ColumnProfile) HasSemanticType(s SemanticType) bool {
	for _, t := range p.SemanticTypes {
		if t == s {
			return true
		}
	}
	return false
}

func (p ColumnProfile) clone() ColumnProfile {
	p.SemanticTypes = append([]SemanticType{}, p.SemanticTypes...)
	return p
}

// ColumnProfiles is an immutable record of the profiled columns of one dataset,
// keyed by column name and kept in physical column order.
type ColumnProfiles struct {
	order    []string
	profiles map[string]ColumnProfile
	rowCount int64
}

// Get returns a copy of the profile of column.
func (cp ColumnProfiles) Get(column string) (ColumnProfile, bool) {
	p, ok := cp.profiles[column]
	if !ok {
		return ColumnProfile{}, false
	}
	return p.clone(), true
}

// Names returns the profiled columns in physical order.
func (cp ColumnProfiles) Names() []string {
	return append([]string(nil), cp.order...)
}

func (cp ColumnProfiles) Len() int {
	return len(cp.order)
}

// RowCount is the number of rows observed while profiling.
func (cp ColumnProfiles) RowCount() int64 {
	return cp.rowCount
}

// withSemanticTypes returns a copy whose profiles carry the given tags. Columns
// absent from tags end up with an empty tag list.
func (cp ColumnProfiles) withSemanticTypes(tags map[string][]SemanticType) ColumnProfiles {
	out := ColumnProfiles{
		order:    cp.Names(),
		profiles: make(map[string]ColumnProfile, len(cp.profiles)),
		rowCount: cp.rowCount,
	}
	for name, p := range cp.profiles {
		p = p.clone()
		p.SemanticTypes = append([]SemanticType{}, tags[name]...)
		out.profiles[name] = p
	}
	return out
}

// classifyCardinality buckets a column by its distinct count and the share of
// distinct values among its non-null rows.
func classifyCardinality(distinct, nonNull int64) Cardinality {
	if distinct <= 0 {
		return CardinalityNone
	}
	var pctUnique float64
	if nonNull > 0 {
		pctUnique = float64(distinct) / float64(nonNull)
	}

	switch {
	case pctUnique == 1.0:
		return CardinalityUnique
	case distinct == 1:
		return CardinalityOne
	case distinct == 2:
		return CardinalityTwo
	case distinct < 20:
		return CardinalityVeryFew
	case distinct < 60:
		return CardinalityFew
	case pctUnique > 0.1:
		return CardinalityVeryMany
	default:
		return CardinalityMany
	}
}

// profileColumns queries the dataset for every column in columns and classifies
// each one. Up to concurrency columns are queried at once; the result order
// always follows columns.
func profileColumns(ctx context.Context, ds Dataset, columns []string, concurrency int, log *zap.SugaredLogger) (ColumnProfiles, error) {
	start := time.Now()

	rowCount, err := ds.RowCount(ctx)
	if err != nil {
		return ColumnProfiles{}, &ProfilingError{Query: "row count", Err: err}
	}

	results := make([]ColumnProfile, len(columns))
	g, gctx := errgroup.WithContext(ctx)
	if concurrency < 1 {
		concurrency = 1
	}
	g.SetLimit(concurrency)

	for i, column := range columns {
		g.Go(func() error {
			p, err := profileColumn(gctx, ds, column, rowCount)
			if err != nil {
				return err
			}
			results[i] = p
			log.Debugw("Profiled column",
				"column", column,
				"cardinality", p.Cardinality.String(),
				"type", p.InferredType.String(),
				"null_count", p.NullCount,
				"distinct_count", p.DistinctCount)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ColumnProfiles{}, err
	}

	out := ColumnProfiles{
		order:    append([]string(nil), columns...),
		profiles: make(map[string]ColumnProfile, len(columns)),
		rowCount: rowCount,
	}
	for i, column := range columns {
		out.profiles[column] = results[i]
	}
	log.Infow("Profiled columns",
		"count", len(columns),
		"row_count", rowCount,
		"duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

func profileColumn(ctx context.Context, ds Dataset, column string, rowCount int64) (ColumnProfile, error) {
	nulls, err := ds.NullCount(ctx, column)
	if err != nil {
		return ColumnProfile{}, &ProfilingError{Column: column, Query: "null count", Err: err}
	}
	distinct, err := ds.DistinctCount(ctx, column)
	if err != nil {
		return ColumnProfile{}, &ProfilingError{Column: column, Query: "distinct count", Err: err}
	}
	typ, err := ds.InferredType(ctx, column)
	if err != nil {
		return ColumnProfile{}, &ProfilingError{Column: column, Query: "inferred type", Err: err}
	}
	if typ == TypeInvalid {
		typ = TypeOther
	}

	return ColumnProfile{
		Cardinality:   classifyCardinality(distinct, rowCount-nulls),
		InferredType:  typ,
		SemanticTypes: []SemanticType{},
		NullCount:     nulls,
		DistinctCount: distinct,
	}, nil
}
