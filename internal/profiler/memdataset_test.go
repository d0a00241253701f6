package profiler

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// memDataset is an in-memory Dataset used by the profiler tests. A nil cell is
// a null.
type memDataset struct {
	columns []string
	types   map[string]InferredType
	data    map[string][]any
	rows    int
	ranges  map[string][2]string

	failQuery  string
	failColumn string

	mu    sync.Mutex
	calls map[string]int
}

func newMemDataset(rows int) *memDataset {
	return &memDataset{
		types: map[string]InferredType{},
		data:  map[string][]any{},
		rows:  rows,
		calls: map[string]int{},
	}
}

func (m *memDataset) addColumn(name string, typ InferredType, gen func(i int) any) *memDataset {
	m.columns = append(m.columns, name)
	m.types[name] = typ
	vals := make([]any, m.rows)
	for i := range vals {
		vals[i] = gen(i)
	}
	m.data[name] = vals
	return m
}

func (m *memDataset) record(query, column string) error {
	m.mu.Lock()
	m.calls[query]++
	m.mu.Unlock()
	if m.failQuery == query && (m.failColumn == "" || m.failColumn == column) {
		return fmt.Errorf("simulated %s failure", query)
	}
	return nil
}

func (m *memDataset) callCount(query string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[query]
}

func (m *memDataset) Columns(ctx context.Context) ([]string, error) {
	if err := m.record("columns", ""); err != nil {
		return nil, err
	}
	return append([]string(nil), m.columns...), nil
}

func (m *memDataset) RowCount(ctx context.Context) (int64, error) {
	if err := m.record("row_count", ""); err != nil {
		return 0, err
	}
	return int64(m.rows), nil
}

func (m *memDataset) NullCount(ctx context.Context, column string) (int64, error) {
	if err := m.record("null_count", column); err != nil {
		return 0, err
	}
	var n int64
	for _, v := range m.data[column] {
		if v == nil {
			n++
		}
	}
	return n, nil
}

func (m *memDataset) DistinctCount(ctx context.Context, column string) (int64, error) {
	if err := m.record("distinct_count", column); err != nil {
		return 0, err
	}
	vals, _ := m.distinct(column)
	return int64(len(vals)), nil
}

func (m *memDataset) InferredType(ctx context.Context, column string) (InferredType, error) {
	if err := m.record("inferred_type", column); err != nil {
		return TypeInvalid, err
	}
	return m.types[column], nil
}

func (m *memDataset) DistinctValues(ctx context.Context, column string) ([]any, error) {
	if err := m.record("distinct_values", column); err != nil {
		return nil, err
	}
	return m.distinct(column)
}

func (m *memDataset) distinct(column string) ([]any, error) {
	seen := map[any]bool{}
	var out []any
	for _, v := range m.data[column] {
		if v != nil && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memDataset) Aggregate(ctx context.Context, column string, stat Statistic) (float64, error) {
	if err := m.record("aggregate", column); err != nil {
		return 0, err
	}
	var nums []float64
	for _, v := range m.data[column] {
		if v != nil {
			nums = append(nums, toFloat(v))
		}
	}
	if len(nums) == 0 {
		return math.NaN(), nil
	}
	sort.Float64s(nums)
	switch stat.Kind {
	case StatMin:
		return nums[0], nil
	case StatMax:
		return nums[len(nums)-1], nil
	case StatMean:
		var sum float64
		for _, n := range nums {
			sum += n
		}
		return sum / float64(len(nums)), nil
	case StatMedian:
		return nums[(len(nums)-1)/2], nil
	case StatQuantile:
		return nums[int(stat.Quantile*float64(len(nums)-1))], nil
	}
	return 0, fmt.Errorf("unknown statistic %v", stat)
}

// rangedDataset adds RangeReporter support on top of memDataset.
type rangedDataset struct {
	*memDataset
}

func (r rangedDataset) ValueRange(ctx context.Context, column string) (string, string, error) {
	if err := r.record("value_range", column); err != nil {
		return "", "", err
	}
	rg := r.ranges[column]
	return rg[0], rg[1], nil
}

// cardinalityDataset has one column per cardinality bucket over 1000 rows.
func cardinalityDataset() *memDataset {
	return newMemDataset(1000).
		addColumn("col_none", TypeNumeric, func(i int) any { return nil }).
		addColumn("col_one", TypeInt, func(i int) any { return int64(0) }).
		addColumn("col_two", TypeInt, func(i int) any { return int64(i % 2) }).
		addColumn("col_very_few", TypeInt, func(i int) any { return int64(i % 10) }).
		addColumn("col_few", TypeInt, func(i int) any { return int64(i % 50) }).
		addColumn("col_many", TypeInt, func(i int) any { return int64(i % 100) }).
		addColumn("col_very_many", TypeInt, func(i int) any { return int64(i % 500) }).
		addColumn("col_unique", TypeInt, func(i int) any { return int64(i) })
}
