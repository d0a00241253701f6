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
)

// Dataset is the data source being profiled. Implementations answer simple
// per-column queries; the profiler never reads rows itself.
type Dataset interface {
	// Columns returns every column in physical order.
	Columns(ctx context.Context) ([]string, error)
	RowCount(ctx context.Context) (int64, error)
	NullCount(ctx context.Context, column string) (int64, error)
	// DistinctCount counts distinct non-null values.
	DistinctCount(ctx context.Context, column string) (int64, error)
	InferredType(ctx context.Context, column string) (InferredType, error)
	// DistinctValues returns the distinct non-null values of column.
	DistinctValues(ctx context.Context, column string) ([]any, error)
	Aggregate(ctx context.Context, column string, stat Statistic) (float64, error)
}

// RangeReporter is implemented by datasets that can report the lowest and
// highest value of a column as text, which is how datetime bounds are emitted.
type RangeReporter interface {
	ValueRange(ctx context.Context, column string) (min string, max string, err error)
}

// StatisticKind selects the aggregate computed by Dataset.Aggregate.
type StatisticKind int

const (
	StatMin StatisticKind = iota + 1
	StatMax
	StatMean
	StatMedian
	StatQuantile
)

// Statistic describes one aggregate. Quantile is only meaningful for StatQuantile.
type Statistic struct {
	Kind     StatisticKind
	Quantile float64
}

func (s Statistic) String() string {
	switch s.Kind {
	case StatMin:
		return "min"
	case StatMax:
		return "max"
	case StatMean:
		return "mean"
	case StatMedian:
		return "median"
	case StatQuantile:
		return fmt.Sprintf("quantile(%g)", s.Quantile)
	}
	return "unknown"
}

// Quantiles used for expect_column_quantile_values_to_be_between.
var defaultQuantiles = []float64{0.05, 0.25, 0.5, 0.75, 0.95}
