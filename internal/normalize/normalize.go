// Package normalize turns raw backend series into ordered samples.
package normalize

import (
	"math"
	"time"

	"nathanbeddoewebdev/cloudharvest/internal/domain"
)

// TimestampLayout is the human-readable sample timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"

// Normalize pairs timestamps with values by position, keeping the backend's
// order. When the slices differ in length the series is truncated to the
// shorter one and marked Partial. NaN values become absent samples.
func Normalize(timestamps []time.Time, values []float64) domain.SampleSeries {
	n := min(len(timestamps), len(values))
	series := domain.SampleSeries{
		Samples: make([]domain.Sample, 0, n),
		Partial: len(timestamps) != len(values),
	}

	for i := 0; i < n; i++ {
		ts := timestamps[i].UTC()
		s := domain.Sample{
			Timestamp: ts.Format(TimestampLayout),
			Time:      ts,
		}
		if v := values[i]; !math.IsNaN(v) {
			s.Value = &v
		}
		series.Samples = append(series.Samples, s)
	}

	return series
}

// Result normalizes a backend result. A nil result gives an empty series.
func Result(r *domain.MetricDataResult) domain.SampleSeries {
	if r == nil {
		return domain.SampleSeries{Samples: []domain.Sample{}}
	}
	return Normalize(r.Timestamps, r.Values)
}
