package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nathanbeddoewebdev/cloudharvest/internal/catalog"
	"nathanbeddoewebdev/cloudharvest/internal/domain"
	"nathanbeddoewebdev/cloudharvest/internal/retry"
	"nathanbeddoewebdev/cloudharvest/internal/timewindow"

	"github.com/google/go-cmp/cmp"
)

var testNow = time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC)

// fakeBackend implements both backend interfaces and records every call.
type fakeBackend struct {
	mu sync.Mutex

	reservations []domain.Reservation
	describeErr  error
	descriptors  map[string][]domain.MetricDescriptor
	listErr      error

	// fail returns a non-nil error to fail the call carrying q.
	fail  func(q domain.MetricQuery) error
	block bool
	delay time.Duration

	inFlight atomic.Int32
	peak     atomic.Int32

	calls   [][]domain.MetricQuery
	windows []domain.TimeWindow
}

func (f *fakeBackend) DescribeInstances(_ context.Context) ([]domain.Reservation, error) {
	return f.reservations, f.describeErr
}

func (f *fakeBackend) ListMetrics(_ context.Context, filter domain.MetricFilter) ([]domain.MetricDescriptor, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.descriptors[filter.Name], nil
}

func (f *fakeBackend) GetMetricData(ctx context.Context, queries []domain.MetricQuery, window domain.TimeWindow) ([]domain.MetricDataResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, queries)
	f.windows = append(f.windows, window)
	f.mu.Unlock()

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	results := make([]domain.MetricDataResult, 0, len(queries))
	for _, q := range queries {
		if f.fail != nil {
			if err := f.fail(q); err != nil {
				return nil, err
			}
		}
		results = append(results, domain.MetricDataResult{
			ID:         q.ID,
			Timestamps: []time.Time{window.Start, window.Start.Add(5 * time.Minute)},
			Values:     []float64{1, 2},
		})
	}
	return results, nil
}

func (f *fakeBackend) allQueries() []domain.MetricQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.MetricQuery
	for _, c := range f.calls {
		out = append(out, c...)
	}
	return out
}

type recordingSink struct {
	mu      sync.Mutex
	records []domain.Record
	err     error
}

func (s *recordingSink) Write(_ context.Context, rec domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

type countingObserver struct {
	mu      sync.Mutex
	queries int
	failed  int
	passes  []domain.ResourceKind
}

func (o *countingObserver) ObserveQuery(_ domain.ResourceKind, failed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queries++
	if failed {
		o.failed++
	}
}

func (o *countingObserver) ObservePass(r domain.PassResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.passes = append(o.passes, r.Kind)
}

func twoReservations() []domain.Reservation {
	return []domain.Reservation{
		{Instances: []domain.Instance{
			{ID: "i-1", BlockDevices: []domain.BlockDevice{{DeviceName: "/dev/xvda", VolumeID: "vol-a"}}},
		}},
		{Instances: []domain.Instance{
			{ID: "i-2", BlockDevices: []domain.BlockDevice{{DeviceName: "/dev/xvda", VolumeID: "vol-b"}}},
			{ID: "i-3", BlockDevices: []domain.BlockDevice{{DeviceName: "/dev/xvda", VolumeID: "vol-c"}}},
		}},
	}
}

func newTestHarvester(t *testing.T, backend *fakeBackend, cfg Config, opts ...Option) *Harvester {
	t.Helper()
	cfg.Retry = retry.Config{MaxAttempts: 1}
	clock := timewindow.ClockFunc(func() time.Time { return testNow })
	opts = append([]Option{WithClock(clock)}, opts...)
	return New(backend, backend, cfg, opts...)
}

func TestHarvestCompute_CrossProduct(t *testing.T) {
	backend := &fakeBackend{reservations: twoReservations()}
	h := newTestHarvester(t, backend, Config{Concurrency: 3})

	result := h.HarvestCompute(context.Background())
	if result.Err != nil {
		t.Fatalf("expected no error, got %v", result.Err)
	}

	names := catalog.Names(domain.KindCompute)
	if len(result.Records) != 3*len(names) {
		t.Fatalf("expected %d records, got %d", 3*len(names), len(result.Records))
	}

	// Records come back in (resource, metric) order regardless of
	// completion order.
	i := 0
	for _, id := range []string{"i-1", "i-2", "i-3"} {
		for _, name := range names {
			rec := result.Records[i]
			if rec.Subject != id || rec.Metric != name {
				t.Errorf("record %d = %s/%s, want %s/%s", i, rec.Subject, rec.Metric, id, name)
			}
			i++
		}
	}

	first := result.Records[0]
	if first.Unit != domain.UnitPercent {
		t.Errorf("CPUUtilization unit = %q, want Percent", first.Unit)
	}
	want := []domain.Dimension{{Name: "InstanceId", Value: "i-1"}}
	if diff := cmp.Diff(want, first.Dimensions); diff != "" {
		t.Errorf("dimensions mismatch (-want +got):\n%s", diff)
	}
	if first.Series.Len() != 2 || first.Series.Samples[0].Timestamp != "2024-01-15 12:00:00" {
		t.Errorf("unexpected series: %+v", first.Series)
	}
}

func TestHarvestCompute_ConcurrencyIsCapped(t *testing.T) {
	for _, limit := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("concurrency=%d", limit), func(t *testing.T) {
			backend := &fakeBackend{reservations: twoReservations(), delay: 5 * time.Millisecond}
			h := newTestHarvester(t, backend, Config{Concurrency: limit, BatchSize: 1})

			result := h.HarvestCompute(context.Background())
			if result.Err != nil {
				t.Fatalf("expected no error, got %v", result.Err)
			}
			if result.Failed != 0 {
				t.Errorf("expected no failed records, got %d", result.Failed)
			}

			peak := int(backend.peak.Load())
			if peak > limit {
				t.Errorf("peak in-flight GetMetricData calls = %d, exceeds concurrency %d", peak, limit)
			}
			if peak < 1 {
				t.Error("no GetMetricData calls observed")
			}
			if got, want := len(backend.allQueries()), 3*len(catalog.Names(domain.KindCompute)); got != want {
				t.Errorf("expected %d single-query calls, got %d", want, got)
			}
		})
	}
}

func TestHarvestCompute_SharedWindow(t *testing.T) {
	backend := &fakeBackend{reservations: twoReservations()}
	calls := 0
	clock := timewindow.ClockFunc(func() time.Time {
		calls++
		return testNow.Add(time.Duration(calls) * time.Second)
	})
	h := New(backend, backend, Config{Concurrency: 4, Retry: retry.Config{MaxAttempts: 1}}, WithClock(clock))

	result := h.HarvestCompute(context.Background())
	if result.Err != nil {
		t.Fatalf("expected no error, got %v", result.Err)
	}

	queries := backend.allQueries()
	if len(queries) == 0 {
		t.Fatal("expected queries")
	}
	for _, q := range queries {
		if !q.Window.Start.Equal(result.Window.Start) || !q.Window.End.Equal(result.Window.End) {
			t.Fatalf("query %s/%s window %v differs from pass window %v", q.Subject, q.MetricName, q.Window, result.Window)
		}
	}
	for _, w := range backend.windows {
		if w != result.Window {
			t.Fatalf("call window %v differs from pass window %v", w, result.Window)
		}
	}
	if calls != 1 {
		t.Errorf("expected clock read once per pass, got %d", calls)
	}
}

func TestHarvestCompute_QueryFailureIsIsolated(t *testing.T) {
	backend := &fakeBackend{
		reservations: twoReservations(),
		fail: func(q domain.MetricQuery) error {
			if q.Subject == "i-2" && q.MetricName == "CPUUtilization" {
				return errors.New("throttled hard")
			}
			return nil
		},
	}
	obs := &countingObserver{}
	h := newTestHarvester(t, backend, Config{Concurrency: 2}, WithObserver(obs))

	result := h.HarvestCompute(context.Background())
	if result.Err != nil {
		t.Fatalf("expected pass to succeed, got %v", result.Err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected 1 failed record, got %d", result.Failed)
	}

	for _, rec := range result.Records {
		isTarget := rec.Subject == "i-2" && rec.Metric == "CPUUtilization"
		if isTarget != rec.Failed() {
			t.Errorf("%s/%s failed=%v, want %v", rec.Subject, rec.Metric, rec.Failed(), isTarget)
		}
		if isTarget && rec.Series.Len() != 0 {
			t.Errorf("failed record should have empty series, got %d samples", rec.Series.Len())
		}
		if !isTarget && rec.Series.Len() != 2 {
			t.Errorf("%s/%s: expected 2 samples, got %d", rec.Subject, rec.Metric, rec.Series.Len())
		}
	}

	if obs.failed != 1 || obs.queries != len(result.Records) {
		t.Errorf("observer saw %d queries / %d failed", obs.queries, obs.failed)
	}
}

func TestHarvestStorage_AllVolumes(t *testing.T) {
	backend := &fakeBackend{reservations: twoReservations()}
	h := newTestHarvester(t, backend, Config{})

	result := h.HarvestStorage(context.Background())
	if result.Err != nil {
		t.Fatalf("expected no error, got %v", result.Err)
	}

	seen := map[string]int{}
	for _, rec := range result.Records {
		seen[rec.Subject]++
		if rec.Dimensions[0].Name != "VolumeId" {
			t.Errorf("dimension = %q, want VolumeId", rec.Dimensions[0].Name)
		}
	}
	n := len(catalog.Definitions(domain.KindStorage))
	want := map[string]int{"vol-a": n, "vol-b": n, "vol-c": n}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("volumes mismatch (-want +got):\n%s", diff)
	}
}

func TestHarvestAgentMetrics_OneQueryPerDescriptor(t *testing.T) {
	backend := &fakeBackend{descriptors: map[string][]domain.MetricDescriptor{
		"mem_used_percent": {
			{Namespace: "CWAgent", Name: "mem_used_percent", Dimensions: []domain.Dimension{{Name: "host", Value: "web-1"}}},
			{Namespace: "CWAgent", Name: "mem_used_percent", Dimensions: []domain.Dimension{{Name: "host", Value: "web-2"}, {Name: "AutoScalingGroupName", Value: "web"}}},
		},
	}}
	h := newTestHarvester(t, backend, Config{})

	result := h.HarvestAgentMetrics(context.Background())
	if result.Err != nil {
		t.Fatalf("expected no error, got %v", result.Err)
	}

	queries := backend.allQueries()
	if len(queries) != 2 {
		t.Fatalf("expected exactly 2 queries, got %d", len(queries))
	}

	byHost := map[string][]domain.Dimension{}
	for _, q := range queries {
		if q.Unit != domain.UnitPercent {
			t.Errorf("unit = %q, want Percent", q.Unit)
		}
		byHost[q.Dimensions[0].Value] = q.Dimensions
	}
	want := map[string][]domain.Dimension{
		"web-1": {{Name: "host", Value: "web-1"}},
		"web-2": {{Name: "host", Value: "web-2"}, {Name: "AutoScalingGroupName", Value: "web"}},
	}
	if diff := cmp.Diff(want, byHost); diff != "" {
		t.Errorf("dimensions mismatch (-want +got):\n%s", diff)
	}
}

func TestHarvestAgentMetrics_IgnoresForeignDescriptors(t *testing.T) {
	backend := &fakeBackend{descriptors: map[string][]domain.MetricDescriptor{
		"disk_used_percent": {
			{Namespace: "AWS/EC2", Name: "disk_used_percent"},
			{Namespace: "CWAgent", Name: "disk_used_percent", Dimensions: []domain.Dimension{{Name: "path", Value: "/"}}},
		},
	}}
	h := newTestHarvester(t, backend, Config{})

	result := h.HarvestAgentMetrics(context.Background())
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
}

func TestHarvest_DiscoveryFailureAbortsOnlyThatPass(t *testing.T) {
	backend := &fakeBackend{
		describeErr: errors.New("inventory down"),
		descriptors: map[string][]domain.MetricDescriptor{
			"disk_used_percent": {{Namespace: "CWAgent", Name: "disk_used_percent"}},
		},
	}
	obs := &countingObserver{}
	h := newTestHarvester(t, backend, Config{}, WithObserver(obs))

	results := h.Run(context.Background())
	if len(results) != 3 {
		t.Fatalf("expected 3 pass results, got %d", len(results))
	}

	for _, r := range results[:2] {
		var discErr *domain.DiscoveryError
		if !errors.As(r.Err, &discErr) {
			t.Errorf("%s: expected DiscoveryError, got %v", r.Kind, r.Err)
		}
		if len(r.Records) != 0 {
			t.Errorf("%s: expected zero records, got %d", r.Kind, len(r.Records))
		}
	}

	agent := results[2]
	if agent.Err != nil || len(agent.Records) != 1 {
		t.Errorf("agent pass: err=%v records=%d", agent.Err, len(agent.Records))
	}

	want := []domain.ResourceKind{domain.KindCompute, domain.KindStorage, domain.KindAgent}
	if diff := cmp.Diff(want, obs.passes); diff != "" {
		t.Errorf("observed passes mismatch (-want +got):\n%s", diff)
	}
}

func TestHarvestAgentMetrics_ListFailureAbortsPass(t *testing.T) {
	backend := &fakeBackend{listErr: domain.ErrUnauthorized}
	h := newTestHarvester(t, backend, Config{})

	result := h.HarvestAgentMetrics(context.Background())
	if !errors.Is(result.Err, domain.ErrUnauthorized) {
		t.Fatalf("expected wrapped ErrUnauthorized, got %v", result.Err)
	}
	if len(backend.allQueries()) != 0 {
		t.Error("expected no metric queries after listing failure")
	}
}

func TestHarvestCompute_BatchedIDsUnique(t *testing.T) {
	backend := &fakeBackend{reservations: twoReservations()}
	h := newTestHarvester(t, backend, Config{BatchSize: 10, Concurrency: 2})

	result := h.HarvestCompute(context.Background())
	if result.Failed != 0 {
		t.Fatalf("expected no failures, got %d", result.Failed)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.calls) != 3 {
		t.Fatalf("expected 27 queries in 3 calls, got %d calls", len(backend.calls))
	}
	for ci, call := range backend.calls {
		seen := map[string]bool{}
		for _, q := range call {
			if seen[q.ID] {
				t.Errorf("call %d: duplicate correlation id %q", ci, q.ID)
			}
			seen[q.ID] = true
		}
	}
}

func TestHarvestCompute_QueryTimeoutIsQueryFailure(t *testing.T) {
	backend := &fakeBackend{
		reservations: []domain.Reservation{{Instances: []domain.Instance{{ID: "i-1"}}}},
		block:        true,
	}
	h := newTestHarvester(t, backend, Config{QueryTimeout: 20 * time.Millisecond})

	result := h.HarvestCompute(context.Background())
	if result.Err != nil {
		t.Fatalf("timeouts must not abort the pass, got %v", result.Err)
	}
	if result.Failed != len(result.Records) || result.Failed == 0 {
		t.Errorf("expected every record to fail, got %d/%d", result.Failed, len(result.Records))
	}
}

func TestHarvest_SinkReceivesRecordsInOrder(t *testing.T) {
	backend := &fakeBackend{reservations: twoReservations()}
	sink := &recordingSink{err: fmt.Errorf("disk full")}
	h := newTestHarvester(t, backend, Config{Concurrency: 8}, WithSink(sink))

	result := h.HarvestCompute(context.Background())

	if diff := cmp.Diff(result.Records, sink.records); diff != "" {
		t.Errorf("sink records mismatch (-want +got):\n%s", diff)
	}
}

func TestHarvest_UnknownKind(t *testing.T) {
	h := newTestHarvester(t, &fakeBackend{}, Config{})
	if r := h.Harvest(context.Background(), "gpu"); r.Err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	got := Config{BatchSize: 10_000}.withDefaults()
	if got.BatchSize != MaxBatchSize {
		t.Errorf("BatchSize = %d, want %d", got.BatchSize, MaxBatchSize)
	}
	if got.Lookback != time.Hour || got.Period != 5*time.Minute || got.Stat != "Average" {
		t.Errorf("unexpected defaults: %+v", got)
	}
	if got.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", got.Concurrency)
	}
}

func TestObservers_FanOut(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	backend := &fakeBackend{reservations: twoReservations()}
	h := newTestHarvester(t, backend, Config{}, WithObserver(Observers{a, b}))

	h.HarvestCompute(context.Background())

	for i, o := range []*countingObserver{a, b} {
		if o.queries != 27 {
			t.Errorf("observer %d: queries = %d, want 27", i, o.queries)
		}
		if len(o.passes) != 1 || o.passes[0] != domain.KindCompute {
			t.Errorf("observer %d: passes = %v", i, o.passes)
		}
	}
}
