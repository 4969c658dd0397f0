package domain

import "context"

// Instance is a compute instance as returned by the inventory backend.
type Instance struct {
	ID           string
	BlockDevices []BlockDevice
}

// BlockDevice is a device mapping on an instance. VolumeID is empty for
// devices that are not backed by a block-storage volume.
type BlockDevice struct {
	DeviceName string
	VolumeID   string
}

// Reservation groups instances the way the inventory backend returns them.
type Reservation struct {
	ID        string
	Instances []Instance
}

// InventoryBackend enumerates the account's compute resources.
type InventoryBackend interface {
	DescribeInstances(ctx context.Context) ([]Reservation, error)
}

// MonitoringBackend answers metric-data queries.
//
// GetMetricData returns one result per query, matched by MetricQuery.ID.
// Queries missing from the result are treated as empty series.
type MonitoringBackend interface {
	GetMetricData(ctx context.Context, queries []MetricQuery, window TimeWindow) ([]MetricDataResult, error)
	ListMetrics(ctx context.Context, filter MetricFilter) ([]MetricDescriptor, error)
}

// Provider is a cloud provider that can be harvested.
type Provider interface {
	InventoryBackend
	MonitoringBackend
	GetDisplayName() string
}
