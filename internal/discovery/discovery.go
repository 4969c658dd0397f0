// Package discovery enumerates the resources a pass harvests.
package discovery

import (
	"context"

	"nathanbeddoewebdev/cloudharvest/internal/domain"
)

// Discovery flattens inventory responses into resource identifiers.
type Discovery struct {
	inventory domain.InventoryBackend
}

// New returns a Discovery reading from inventory.
func New(inventory domain.InventoryBackend) *Discovery {
	return &Discovery{inventory: inventory}
}

// ListComputeInstances returns every instance id in backend order.
// Duplicates returned by the backend are kept.
func (d *Discovery) ListComputeInstances(ctx context.Context) ([]domain.ResourceID, error) {
	reservations, err := d.inventory.DescribeInstances(ctx)
	if err != nil {
		return nil, &domain.DiscoveryError{Kind: domain.KindCompute, Err: err}
	}

	var ids []domain.ResourceID
	for _, r := range reservations {
		for _, inst := range r.Instances {
			ids = append(ids, domain.ResourceID(inst.ID))
		}
	}
	return ids, nil
}

// ListStorageVolumes returns the volume ids attached to every instance,
// across all of their block-device mappings. Devices without a volume are
// skipped.
func (d *Discovery) ListStorageVolumes(ctx context.Context) ([]domain.ResourceID, error) {
	reservations, err := d.inventory.DescribeInstances(ctx)
	if err != nil {
		return nil, &domain.DiscoveryError{Kind: domain.KindStorage, Err: err}
	}

	var ids []domain.ResourceID
	for _, r := range reservations {
		for _, inst := range r.Instances {
			for _, bd := range inst.BlockDevices {
				if bd.VolumeID == "" {
					continue
				}
				ids = append(ids, domain.ResourceID(bd.VolumeID))
			}
		}
	}
	return ids, nil
}
