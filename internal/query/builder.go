// Package query composes metric-data requests.
package query

import (
	"cmp"
	"slices"
	"strconv"
	"time"

	"nathanbeddoewebdev/cloudharvest/internal/domain"
)

const (
	// DefaultPeriod is the aggregation granularity.
	DefaultPeriod = 300 * time.Second
	// StatAverage is the default aggregation statistic.
	StatAverage = "Average"
)

// Builder composes MetricQuery values with a fixed period and statistic.
type Builder struct {
	Period time.Duration
	Stat   string
}

// NewBuilder returns a Builder, substituting defaults for zero values.
func NewBuilder(period time.Duration, stat string) Builder {
	if period <= 0 {
		period = DefaultPeriod
	}
	if stat == "" {
		stat = StatAverage
	}
	return Builder{Period: period, Stat: stat}
}

// Build binds subject to the definition's dimension key.
func (b Builder) Build(subject domain.ResourceID, def domain.MetricDefinition, window domain.TimeWindow) domain.MetricQuery {
	return domain.MetricQuery{
		Subject:    string(subject),
		Namespace:  def.Namespace,
		MetricName: def.Name,
		Dimensions: []domain.Dimension{{Name: def.DimensionKey, Value: string(subject)}},
		Unit:       def.Unit,
		Period:     b.Period,
		Stat:       b.Stat,
		Window:     window,
	}
}

// BuildDescriptor builds a query for a backend-listed metric, carrying only
// the descriptor's own dimensions. unit overrides whatever the backend uses.
func (b Builder) BuildDescriptor(desc domain.MetricDescriptor, unit domain.Unit, window domain.TimeWindow) domain.MetricQuery {
	dims := make([]domain.Dimension, len(desc.Dimensions))
	copy(dims, desc.Dimensions)
	return domain.MetricQuery{
		Subject:    Subject(desc),
		Namespace:  desc.Namespace,
		MetricName: desc.Name,
		Dimensions: dims,
		Unit:       unit,
		Period:     b.Period,
		Stat:       b.Stat,
		Window:     window,
	}
}

// Subject renders descriptor dimensions as "k=v,k=v" sorted by name, so
// the same dimension set always yields the same subject. A descriptor
// without dimensions is identified by its name.
func Subject(desc domain.MetricDescriptor) string {
	if len(desc.Dimensions) == 0 {
		return desc.Name
	}
	dims := slices.Clone(desc.Dimensions)
	slices.SortFunc(dims, func(a, b domain.Dimension) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Value, b.Value))
	})
	buf := make([]byte, 0, 64)
	for i, d := range dims {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, d.Name...)
		buf = append(buf, '=')
		buf = append(buf, d.Value...)
	}
	return string(buf)
}

// CorrelationID returns the id of the i-th query in a batch. Ids start with
// a lowercase letter and contain only letters and digits, which satisfies
// the CloudWatch id syntax.
func CorrelationID(i int) string {
	return "q" + strconv.Itoa(i)
}

// AssignIDs sets index-based correlation ids on queries in place.
func AssignIDs(queries []domain.MetricQuery) {
	for i := range queries {
		queries[i].ID = CorrelationID(i)
	}
}

// Batch splits queries into chunks of at most size and assigns each chunk
// its own ids, so ids are unique within every batched call.
func Batch(queries []domain.MetricQuery, size int) [][]domain.MetricQuery {
	if size < 1 {
		size = 1
	}
	var batches [][]domain.MetricQuery
	for start := 0; start < len(queries); start += size {
		end := min(start+size, len(queries))
		chunk := make([]domain.MetricQuery, end-start)
		copy(chunk, queries[start:end])
		AssignIDs(chunk)
		batches = append(batches, chunk)
	}
	return batches
}
