package domain

import (
	"strings"
	"time"
)

// ResourceKind is the class of monitored entity a pass harvests.
type ResourceKind string

const (
	KindCompute ResourceKind = "compute"
	KindStorage ResourceKind = "storage"
	KindAgent   ResourceKind = "agent"
)

// Kinds lists every resource kind in harvesting order.
var Kinds = []ResourceKind{KindCompute, KindStorage, KindAgent}

// ParseKind matches s against the known kinds, ignoring case and
// surrounding whitespace.
func ParseKind(s string) (ResourceKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Unit is a measurement unit. Values match the CloudWatch unit names.
// The zero value means the unit is unmapped.
type Unit string

const (
	UnitPercent Unit = "Percent"
	UnitBytes   Unit = "Bytes"
	UnitCount   Unit = "Count"
	UnitSeconds Unit = "Seconds"
)

// ResourceID identifies an instance or volume within its kind.
type ResourceID string

// MetricDefinition is a static catalog entry.
type MetricDefinition struct {
	Kind         ResourceKind `json:"kind"`
	Namespace    string       `json:"namespace"`
	Name         string       `json:"name"`
	Unit         Unit         `json:"unit"`
	DimensionKey string       `json:"dimension_key,omitempty"`
}

// Dimension scopes a metric to one resource.
type Dimension struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MetricDescriptor is a metric as listed by the monitoring backend.
type MetricDescriptor struct {
	Namespace  string      `json:"namespace"`
	Name       string      `json:"name"`
	Dimensions []Dimension `json:"dimensions,omitempty"`
}

// MetricFilter narrows a ListMetrics call.
type MetricFilter struct {
	Namespace string
	Name      string
}

// TimeWindow is the query interval shared by every query in a pass.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (w TimeWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

// MetricQuery is a single metric-data request. ID is the correlation id
// that matches the result back to the query inside a batched call.
type MetricQuery struct {
	ID         string        `json:"id"`
	Subject    string        `json:"subject"`
	Namespace  string        `json:"namespace"`
	MetricName string        `json:"metric_name"`
	Dimensions []Dimension   `json:"dimensions"`
	Unit       Unit          `json:"unit"`
	Period     time.Duration `json:"period"`
	Stat       string        `json:"stat"`
	Window     TimeWindow    `json:"window"`
}

// MetricDataResult is the raw backend answer for one query.
type MetricDataResult struct {
	ID         string
	Timestamps []time.Time
	Values     []float64
}

// Sample is a single normalized data point. A nil Value is an absent sample.
type Sample struct {
	Timestamp string    `json:"timestamp"`
	Time      time.Time `json:"-"`
	Value     *float64  `json:"value"`
}

// SampleSeries is an ordered sequence of samples. Partial is set when the
// backend returned timestamp and value arrays of different lengths.
type SampleSeries struct {
	Samples []Sample `json:"samples"`
	Partial bool     `json:"partial,omitempty"`
}

// Len returns the number of samples.
func (s SampleSeries) Len() int { return len(s.Samples) }

// Latest returns the most recent present value.
func (s SampleSeries) Latest() (float64, bool) {
	for i := len(s.Samples) - 1; i >= 0; i-- {
		if v := s.Samples[i].Value; v != nil {
			return *v, true
		}
	}
	return 0, false
}

// Record is one harvested (subject, metric) pair handed to an output sink.
// Err is non-empty when the query failed; Series is then empty.
type Record struct {
	Kind       ResourceKind `json:"kind"`
	Subject    string       `json:"subject"`
	Metric     string       `json:"metric"`
	Unit       Unit         `json:"unit"`
	Dimensions []Dimension  `json:"dimensions,omitempty"`
	Window     TimeWindow   `json:"window"`
	Series     SampleSeries `json:"series"`
	Err        string       `json:"error,omitempty"`
}

// Failed reports whether the record carries a query failure.
func (r Record) Failed() bool { return r.Err != "" }

// PassResult summarizes one harvesting pass.
type PassResult struct {
	Kind     ResourceKind
	Window   TimeWindow
	Records  []Record
	Failed   int
	Err      error
	Duration time.Duration
}
