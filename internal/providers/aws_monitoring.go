package providers

import (
	"context"
	"time"

	"nathanbeddoewebdev/cloudharvest/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// GetMetricData runs the queries as one GetMetricData request, following
// pagination and concatenating the pages of each result. Results come back
// in ascending timestamp order, in the order CloudWatch first reports them.
func (a *AWSProvider) GetMetricData(ctx context.Context, queries []domain.MetricQuery, window domain.TimeWindow) ([]domain.MetricDataResult, error) {
	input := &cloudwatch.GetMetricDataInput{
		StartTime:         aws.Time(window.Start),
		EndTime:           aws.Time(window.End),
		ScanBy:            cwtypes.ScanByTimestampAscending,
		MetricDataQueries: make([]cwtypes.MetricDataQuery, 0, len(queries)),
	}
	for _, q := range queries {
		input.MetricDataQueries = append(input.MetricDataQueries, toMetricDataQuery(q))
	}

	var (
		order  []string
		merged = make(map[string]*domain.MetricDataResult, len(queries))
	)

	p := cloudwatch.NewGetMetricDataPaginator(a.cw, input)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, awsError("failed to get metric data", err)
		}
		for _, r := range out.MetricDataResults {
			id := aws.ToString(r.Id)
			res, ok := merged[id]
			if !ok {
				res = &domain.MetricDataResult{ID: id}
				merged[id] = res
				order = append(order, id)
			}
			res.Timestamps = append(res.Timestamps, r.Timestamps...)
			res.Values = append(res.Values, r.Values...)
		}
	}

	results := make([]domain.MetricDataResult, 0, len(order))
	for _, id := range order {
		results = append(results, *merged[id])
	}
	return results, nil
}

func toMetricDataQuery(q domain.MetricQuery) cwtypes.MetricDataQuery {
	dims := make([]cwtypes.Dimension, 0, len(q.Dimensions))
	for _, d := range q.Dimensions {
		dims = append(dims, cwtypes.Dimension{Name: aws.String(d.Name), Value: aws.String(d.Value)})
	}
	return cwtypes.MetricDataQuery{
		Id: aws.String(q.ID),
		MetricStat: &cwtypes.MetricStat{
			Metric: &cwtypes.Metric{
				Namespace:  aws.String(q.Namespace),
				MetricName: aws.String(q.MetricName),
				Dimensions: dims,
			},
			Period: aws.Int32(int32(q.Period / time.Second)),
			Stat:   aws.String(q.Stat),
			Unit:   cwtypes.StandardUnit(q.Unit),
		},
		ReturnData: aws.Bool(true),
	}
}

// ListMetrics pages through every metric matching filter.
func (a *AWSProvider) ListMetrics(ctx context.Context, filter domain.MetricFilter) ([]domain.MetricDescriptor, error) {
	input := &cloudwatch.ListMetricsInput{}
	if filter.Namespace != "" {
		input.Namespace = aws.String(filter.Namespace)
	}
	if filter.Name != "" {
		input.MetricName = aws.String(filter.Name)
	}

	var descs []domain.MetricDescriptor
	p := cloudwatch.NewListMetricsPaginator(a.cw, input)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, awsError("failed to list metrics", err)
		}
		for _, m := range out.Metrics {
			desc := domain.MetricDescriptor{
				Namespace: aws.ToString(m.Namespace),
				Name:      aws.ToString(m.MetricName),
			}
			for _, d := range m.Dimensions {
				desc.Dimensions = append(desc.Dimensions, domain.Dimension{
					Name:  aws.ToString(d.Name),
					Value: aws.ToString(d.Value),
				})
			}
			descs = append(descs, desc)
		}
	}
	return descs, nil
}
