package providers

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"nathanbeddoewebdev/cloudharvest/internal/catalog"
	"nathanbeddoewebdev/cloudharvest/internal/domain"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

type hetznerSeries struct {
	metricType hcloud.ServerMetricType
	name       string
}

// hetznerSeriesByMetric maps compute catalog metrics onto the series the
// Hetzner metrics endpoint returns. Only the first disk and interface are
// reported.
var hetznerSeriesByMetric = map[string]hetznerSeries{
	"CPUUtilization":    {hcloud.ServerMetricCPU, "cpu"},
	"DiskReadOps":       {hcloud.ServerMetricDisk, "disk.0.iops.read"},
	"DiskWriteOps":      {hcloud.ServerMetricDisk, "disk.0.iops.write"},
	"DiskReadBytes":     {hcloud.ServerMetricDisk, "disk.0.bandwidth.read"},
	"DiskWriteBytes":    {hcloud.ServerMetricDisk, "disk.0.bandwidth.write"},
	"NetworkPacketsIn":  {hcloud.ServerMetricNetwork, "network.0.pps.in"},
	"NetworkPacketsOut": {hcloud.ServerMetricNetwork, "network.0.pps.out"},
}

// GetMetricData fetches the metrics of each server referenced by the
// queries with one call per server, at a step equal to the query period.
// A query outside the supported compute metrics fails the whole call with
// domain.ErrUnsupportedMetric.
func (h *HetznerProvider) GetMetricData(ctx context.Context, queries []domain.MetricQuery, window domain.TimeWindow) ([]domain.MetricDataResult, error) {
	type serverRequest struct {
		types map[hcloud.ServerMetricType]bool
		step  time.Duration
	}

	var order []int64
	requests := make(map[int64]*serverRequest)
	serverOf := make([]int64, len(queries))

	for i, q := range queries {
		series, ok := hetznerSeriesByMetric[q.MetricName]
		if q.Namespace != catalog.NamespaceEC2 || !ok {
			return nil, fmt.Errorf("hetzner: %s/%s: %w", q.Namespace, q.MetricName, domain.ErrUnsupportedMetric)
		}
		id, err := hetznerServerID(q)
		if err != nil {
			return nil, err
		}
		serverOf[i] = id

		req, ok := requests[id]
		if !ok {
			req = &serverRequest{types: make(map[hcloud.ServerMetricType]bool)}
			requests[id] = req
			order = append(order, id)
		}
		req.types[series.metricType] = true
		if req.step == 0 || q.Period < req.step {
			req.step = q.Period
		}
	}

	fetched := make(map[int64]*hcloud.ServerMetrics, len(order))
	for _, id := range order {
		req := requests[id]
		opts := hcloud.ServerGetMetricsOpts{
			Start: window.Start,
			End:   window.End,
			Step:  max(int(req.step/time.Second), 1),
		}
		for _, t := range []hcloud.ServerMetricType{hcloud.ServerMetricCPU, hcloud.ServerMetricDisk, hcloud.ServerMetricNetwork} {
			if req.types[t] {
				opts.Types = append(opts.Types, t)
			}
		}

		metrics, _, err := h.client.Server.GetMetrics(ctx, &hcloud.Server{ID: id}, opts)
		if err != nil {
			return nil, hetznerError("failed to get server metrics", err)
		}
		fetched[id] = metrics
	}

	results := make([]domain.MetricDataResult, 0, len(queries))
	for i, q := range queries {
		res := domain.MetricDataResult{ID: q.ID}
		if m := fetched[serverOf[i]]; m != nil {
			for _, v := range m.TimeSeries[hetznerSeriesByMetric[q.MetricName].name] {
				res.Timestamps = append(res.Timestamps, hetznerTimestamp(v.Timestamp))
				res.Values = append(res.Values, hetznerValue(v.Value))
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// ListMetrics returns nothing: Hetzner has no metric catalog to enumerate.
func (h *HetznerProvider) ListMetrics(_ context.Context, _ domain.MetricFilter) ([]domain.MetricDescriptor, error) {
	return nil, nil
}

func hetznerServerID(q domain.MetricQuery) (int64, error) {
	for _, d := range q.Dimensions {
		if d.Name != catalog.DimensionInstanceID {
			continue
		}
		id, err := strconv.ParseInt(d.Value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid server ID %q: %w", d.Value, err)
		}
		return id, nil
	}
	return 0, fmt.Errorf("hetzner: query %s has no %s dimension", q.ID, catalog.DimensionInstanceID)
}

func hetznerTimestamp(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// hetznerValue parses a sample. Unparseable values become NaN and are
// reported as absent downstream.
func hetznerValue(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
