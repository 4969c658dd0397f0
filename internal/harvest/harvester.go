// Package harvest runs the metric-harvesting passes.
//
// A pass discovers the resources of one kind, computes a single time
// window, builds one query per (resource, metric) pair and executes them
// through a bounded worker pool. A failed query only marks its own record;
// a failed discovery aborts the pass and nothing else.
package harvest

import (
	"context"
	"fmt"
	"time"

	"nathanbeddoewebdev/cloudharvest/internal/catalog"
	"nathanbeddoewebdev/cloudharvest/internal/discovery"
	"nathanbeddoewebdev/cloudharvest/internal/domain"
	"nathanbeddoewebdev/cloudharvest/internal/logger"
	"nathanbeddoewebdev/cloudharvest/internal/normalize"
	"nathanbeddoewebdev/cloudharvest/internal/query"
	"nathanbeddoewebdev/cloudharvest/internal/retry"
	"nathanbeddoewebdev/cloudharvest/internal/timewindow"

	"golang.org/x/sync/errgroup"
)

// MaxBatchSize is the most queries a single GetMetricData call may carry.
const MaxBatchSize = 500

// Config holds the tunables of a harvesting run.
type Config struct {
	Lookback     time.Duration
	Period       time.Duration
	Stat         string
	Concurrency  int
	BatchSize    int
	QueryTimeout time.Duration
	Retry        retry.Config
}

// DefaultConfig returns the defaults: a 60 minute lookback, 300 second
// Average aggregation, four concurrent single-query calls.
func DefaultConfig() Config {
	return Config{
		Lookback:     timewindow.DefaultLookback,
		Period:       query.DefaultPeriod,
		Stat:         query.StatAverage,
		Concurrency:  4,
		BatchSize:    1,
		QueryTimeout: 30 * time.Second,
		Retry:        retry.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Lookback <= 0 {
		c.Lookback = d.Lookback
	}
	if c.Period <= 0 {
		c.Period = d.Period
	}
	if c.Stat == "" {
		c.Stat = d.Stat
	}
	if c.Concurrency < 1 {
		c.Concurrency = d.Concurrency
	}
	if c.BatchSize < 1 {
		c.BatchSize = d.BatchSize
	}
	if c.BatchSize > MaxBatchSize {
		c.BatchSize = MaxBatchSize
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = d.QueryTimeout
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = d.Retry
	}
	return c
}

// Sink receives harvested records in deterministic order.
type Sink interface {
	Write(ctx context.Context, rec domain.Record) error
}

// Observer is notified of query and pass outcomes.
type Observer interface {
	ObserveQuery(kind domain.ResourceKind, failed bool)
	ObservePass(result domain.PassResult)
}

// Observers fans notifications out to several observers in order.
type Observers []Observer

func (o Observers) ObserveQuery(kind domain.ResourceKind, failed bool) {
	for _, obs := range o {
		obs.ObserveQuery(kind, failed)
	}
}

func (o Observers) ObservePass(result domain.PassResult) {
	for _, obs := range o {
		obs.ObservePass(result)
	}
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithSink sets the record sink.
func WithSink(s Sink) Option {
	return func(h *Harvester) { h.sink = s }
}

// WithClock sets the clock used for time windows.
func WithClock(c timewindow.Clock) Option {
	return func(h *Harvester) { h.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(h *Harvester) { h.log = l }
}

// WithObserver sets the outcome observer.
func WithObserver(o Observer) Option {
	return func(h *Harvester) { h.observer = o }
}

// Harvester orchestrates discovery, query dispatch and normalization.
type Harvester struct {
	discovery *discovery.Discovery
	monitor   domain.MonitoringBackend
	builder   query.Builder
	cfg       Config
	clock     timewindow.Clock
	sink      Sink
	observer  Observer
	log       *logger.Logger
}

// New returns a Harvester reading inventory and metrics from the given
// backends.
func New(inventory domain.InventoryBackend, monitor domain.MonitoringBackend, cfg Config, opts ...Option) *Harvester {
	cfg = cfg.withDefaults()
	h := &Harvester{
		discovery: discovery.New(inventory),
		monitor:   monitor,
		builder:   query.NewBuilder(cfg.Period, cfg.Stat),
		cfg:       cfg,
		clock:     timewindow.SystemClock,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logger.Nop()
	}
	return h
}

// Run executes the compute, storage and agent passes in order. Every pass
// runs even when an earlier one fails.
func (h *Harvester) Run(ctx context.Context) []domain.PassResult {
	return h.RunKinds(ctx, domain.Kinds...)
}

// RunKinds executes the passes for the given kinds in order.
func (h *Harvester) RunKinds(ctx context.Context, kinds ...domain.ResourceKind) []domain.PassResult {
	results := make([]domain.PassResult, 0, len(kinds))
	for _, kind := range kinds {
		results = append(results, h.Harvest(ctx, kind))
	}
	return results
}

// Harvest runs the pass for kind.
func (h *Harvester) Harvest(ctx context.Context, kind domain.ResourceKind) domain.PassResult {
	switch kind {
	case domain.KindCompute:
		return h.HarvestCompute(ctx)
	case domain.KindStorage:
		return h.HarvestStorage(ctx)
	case domain.KindAgent:
		return h.HarvestAgentMetrics(ctx)
	default:
		return domain.PassResult{Kind: kind, Err: fmt.Errorf("harvest: unknown resource kind %q", kind)}
	}
}

// HarvestCompute queries every compute catalog metric for every instance.
func (h *Harvester) HarvestCompute(ctx context.Context) domain.PassResult {
	return h.resourcePass(ctx, domain.KindCompute, h.discovery.ListComputeInstances)
}

// HarvestStorage queries every storage catalog metric for every volume.
func (h *Harvester) HarvestStorage(ctx context.Context) domain.PassResult {
	return h.resourcePass(ctx, domain.KindStorage, h.discovery.ListStorageVolumes)
}

// HarvestAgentMetrics queries every backend-listed descriptor of each agent
// metric. Descriptors carry their own dimensions.
func (h *Harvester) HarvestAgentMetrics(ctx context.Context) domain.PassResult {
	return h.pass(ctx, domain.KindAgent, func(window domain.TimeWindow) ([]domain.MetricQuery, error) {
		var queries []domain.MetricQuery
		for _, def := range catalog.Definitions(domain.KindAgent) {
			filter := domain.MetricFilter{Namespace: def.Namespace, Name: def.Name}
			descs, err := retry.DoValue(ctx, h.cfg.Retry, retry.IsRetryable, func() ([]domain.MetricDescriptor, error) {
				return h.monitor.ListMetrics(ctx, filter)
			})
			if err != nil {
				return nil, &domain.DiscoveryError{Kind: domain.KindAgent, Err: fmt.Errorf("list %s metrics: %w", def.Name, err)}
			}
			for _, desc := range descs {
				// Backends are asked to filter, but a loose listing must not
				// leak other metrics into the pass.
				if desc.Namespace != def.Namespace || desc.Name != def.Name {
					continue
				}
				queries = append(queries, h.builder.BuildDescriptor(desc, def.Unit, window))
			}
		}
		return queries, nil
	})
}

type discoverFunc func(ctx context.Context) ([]domain.ResourceID, error)

func (h *Harvester) resourcePass(ctx context.Context, kind domain.ResourceKind, discover discoverFunc) domain.PassResult {
	return h.pass(ctx, kind, func(window domain.TimeWindow) ([]domain.MetricQuery, error) {
		ids, err := retry.DoValue(ctx, h.cfg.Retry, retry.IsRetryable, func() ([]domain.ResourceID, error) {
			return discover(ctx)
		})
		if err != nil {
			return nil, err
		}
		defs := catalog.Definitions(kind)
		queries := make([]domain.MetricQuery, 0, len(ids)*len(defs))
		for _, id := range ids {
			for _, def := range defs {
				queries = append(queries, h.builder.Build(id, def, window))
			}
		}
		return queries, nil
	})
}

// pass computes the window once, plans the queries against it, executes
// them and emits the records.
func (h *Harvester) pass(ctx context.Context, kind domain.ResourceKind, plan func(domain.TimeWindow) ([]domain.MetricQuery, error)) domain.PassResult {
	started := time.Now()
	log := h.log.WithFields("kind", string(kind))
	result := domain.PassResult{Kind: kind}

	finish := func() domain.PassResult {
		result.Duration = time.Since(started)
		if h.observer != nil {
			h.observer.ObservePass(result)
		}
		return result
	}

	window, err := timewindow.Current(h.clock, h.cfg.Lookback)
	if err != nil {
		result.Err = err
		log.WithError(err).Error("pass aborted")
		return finish()
	}
	result.Window = window

	queries, err := plan(window)
	if err != nil {
		result.Err = err
		log.WithError(err).Error("pass aborted")
		return finish()
	}

	log.Debugw("dispatching queries", "queries", len(queries), "start", window.Start, "end", window.End)

	result.Records = h.execute(ctx, kind, window, queries)
	for _, rec := range result.Records {
		if rec.Failed() {
			result.Failed++
		}
		if h.sink == nil {
			continue
		}
		if err := h.sink.Write(ctx, rec); err != nil {
			log.WithError(err).Warnw("sink write failed", "subject", rec.Subject, "metric", rec.Metric)
		}
	}

	log.Infow("pass complete", "records", len(result.Records), "failed", result.Failed, "duration", time.Since(started))
	return finish()
}

// execute runs the queries in batches through a pool of at most
// Concurrency workers. Each batch writes only its own slot, so the
// records come back in query order.
func (h *Harvester) execute(ctx context.Context, kind domain.ResourceKind, window domain.TimeWindow, queries []domain.MetricQuery) []domain.Record {
	batches := query.Batch(queries, h.cfg.BatchSize)
	slots := make([][]domain.Record, len(batches))

	var g errgroup.Group
	g.SetLimit(h.cfg.Concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			slots[i] = h.runBatch(ctx, kind, window, batch)
			return nil
		})
	}
	_ = g.Wait()

	records := make([]domain.Record, 0, len(queries))
	for _, s := range slots {
		records = append(records, s...)
	}
	return records
}

func (h *Harvester) runBatch(ctx context.Context, kind domain.ResourceKind, window domain.TimeWindow, batch []domain.MetricQuery) []domain.Record {
	qctx, cancel := context.WithTimeout(ctx, h.cfg.QueryTimeout)
	defer cancel()

	data, err := retry.DoValue(qctx, h.cfg.Retry, retry.IsRetryable, func() ([]domain.MetricDataResult, error) {
		return h.monitor.GetMetricData(qctx, batch, window)
	})

	byID := make(map[string]*domain.MetricDataResult, len(data))
	for i := range data {
		byID[data[i].ID] = &data[i]
	}

	records := make([]domain.Record, len(batch))
	for i, q := range batch {
		rec := domain.Record{
			Kind:       kind,
			Subject:    q.Subject,
			Metric:     q.MetricName,
			Unit:       q.Unit,
			Dimensions: q.Dimensions,
			Window:     window,
		}
		if err != nil {
			qerr := &domain.QueryError{Subject: q.Subject, Metric: q.MetricName, Err: err}
			rec.Err = qerr.Error()
			rec.Series = domain.SampleSeries{Samples: []domain.Sample{}}
			h.log.WithError(qerr).Warnw("query failed", "kind", string(kind), "subject", q.Subject, "metric", q.MetricName)
		} else {
			rec.Series = normalize.Result(byID[q.ID])
			if rec.Series.Partial {
				h.log.Warnw("mismatched series lengths, truncated", "kind", string(kind), "subject", q.Subject, "metric", q.MetricName)
			}
		}
		if h.observer != nil {
			h.observer.ObserveQuery(kind, err != nil)
		}
		records[i] = rec
	}
	return records
}
