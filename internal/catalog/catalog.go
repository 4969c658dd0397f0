// Package catalog is the static registry of harvestable metrics.
//
// Every kind uses the same lookup policy: a name either has an explicit
// unit or the lookup fails with a *domain.CatalogError. There is no
// silent fallback unit.
package catalog

import "nathanbeddoewebdev/cloudharvest/internal/domain"

const (
	NamespaceEC2     = "AWS/EC2"
	NamespaceEBS     = "AWS/EBS"
	NamespaceCWAgent = "CWAgent"

	DimensionInstanceID = "InstanceId"
	DimensionVolumeID   = "VolumeId"
)

var compute = []domain.MetricDefinition{
	def(domain.KindCompute, "CPUUtilization", domain.UnitPercent),
	def(domain.KindCompute, "DiskReadBytes", domain.UnitBytes),
	def(domain.KindCompute, "DiskWriteBytes", domain.UnitBytes),
	def(domain.KindCompute, "DiskReadOps", domain.UnitCount),
	def(domain.KindCompute, "DiskWriteOps", domain.UnitCount),
	def(domain.KindCompute, "NetworkPacketsIn", domain.UnitCount),
	def(domain.KindCompute, "NetworkPacketsOut", domain.UnitCount),
	def(domain.KindCompute, "CPUCreditUsage", domain.UnitCount),
	def(domain.KindCompute, "CPUCreditBalance", domain.UnitCount),
}

var storage = []domain.MetricDefinition{
	def(domain.KindStorage, "VolumeIdleTime", domain.UnitSeconds),
	def(domain.KindStorage, "VolumeWriteOps", domain.UnitCount),
	def(domain.KindStorage, "VolumeReadBytes", domain.UnitBytes),
	def(domain.KindStorage, "VolumeTotalReadTime", domain.UnitSeconds),
	def(domain.KindStorage, "VolumeTotalWriteTime", domain.UnitSeconds),
	def(domain.KindStorage, "VolumeReadOps", domain.UnitCount),
	def(domain.KindStorage, "VolumeWriteBytes", domain.UnitBytes),
	def(domain.KindStorage, "BurstBalance", domain.UnitPercent),
}

// Agent metrics are always reported as Percent, whatever unit the backend
// lists them with. Their dimensions come from the backend's descriptors.
var agent = []domain.MetricDefinition{
	def(domain.KindAgent, "disk_used_percent", domain.UnitPercent),
	def(domain.KindAgent, "mem_used_percent", domain.UnitPercent),
}

func def(kind domain.ResourceKind, name string, unit domain.Unit) domain.MetricDefinition {
	d := domain.MetricDefinition{Kind: kind, Name: name, Unit: unit}
	switch kind {
	case domain.KindCompute:
		d.Namespace = NamespaceEC2
		d.DimensionKey = DimensionInstanceID
	case domain.KindStorage:
		d.Namespace = NamespaceEBS
		d.DimensionKey = DimensionVolumeID
	case domain.KindAgent:
		d.Namespace = NamespaceCWAgent
	}
	return d
}

// Definitions returns a copy of the catalog for kind, in harvesting order.
// Unknown kinds yield nil.
func Definitions(kind domain.ResourceKind) []domain.MetricDefinition {
	var src []domain.MetricDefinition
	switch kind {
	case domain.KindCompute:
		src = compute
	case domain.KindStorage:
		src = storage
	case domain.KindAgent:
		src = agent
	default:
		return nil
	}
	out := make([]domain.MetricDefinition, len(src))
	copy(out, src)
	return out
}

// Lookup returns the catalog entry for (kind, name).
func Lookup(kind domain.ResourceKind, name string) (domain.MetricDefinition, error) {
	for _, d := range Definitions(kind) {
		if d.Name == name {
			return d, nil
		}
	}
	return domain.MetricDefinition{}, &domain.CatalogError{Kind: kind, Metric: name}
}

// UnitFor returns the unit of (kind, name).
func UnitFor(kind domain.ResourceKind, name string) (domain.Unit, error) {
	d, err := Lookup(kind, name)
	if err != nil {
		return "", err
	}
	return d.Unit, nil
}

// Names returns the metric names of kind in harvesting order.
func Names(kind domain.ResourceKind) []string {
	defs := Definitions(kind)
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}
