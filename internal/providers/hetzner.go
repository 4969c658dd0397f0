package providers

import (
	"context"
	"fmt"
	"strconv"

	"nathanbeddoewebdev/cloudharvest/internal/domain"
	"nathanbeddoewebdev/cloudharvest/internal/services/auth"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// hetznerReservation groups every Hetzner server, which has no reservation
// concept of its own.
const hetznerReservation = "hetzner"

// HetznerProvider implements domain.Provider using the Hetzner Cloud API.
type HetznerProvider struct {
	client *hcloud.Client
}

// NewHetznerProvider creates a HetznerProvider with the given hcloud client options.
// Default options (application name) are applied first; callers can override them.
func NewHetznerProvider(opts ...hcloud.ClientOption) *HetznerProvider {
	defaults := []hcloud.ClientOption{
		hcloud.WithApplication("cloudharvest", "0.1.0"),
	}
	allOpts := append(defaults, opts...)
	return &HetznerProvider{
		client: hcloud.NewClient(allOpts...),
	}
}

// RegisterHetzner registers the Hetzner provider factory with the global registry.
func RegisterHetzner() {
	Register("hetzner", func(store auth.Store, _ Options) (domain.Provider, error) {
		token, err := store.GetToken("hetzner")
		if err != nil {
			return nil, fmt.Errorf("hetzner auth: %w", err)
		}

		return NewHetznerProvider(hcloud.WithToken(token)), nil
	})
}

func (h *HetznerProvider) GetDisplayName() string {
	return "Hetzner"
}

// DescribeInstances lists every server as one reservation. Attached volumes
// become the servers' block devices.
func (h *HetznerProvider) DescribeInstances(ctx context.Context) ([]domain.Reservation, error) {
	servers, err := h.client.Server.All(ctx)
	if err != nil {
		return nil, hetznerError("failed to list servers", err)
	}

	volumes, err := h.client.Volume.All(ctx)
	if err != nil {
		return nil, hetznerError("failed to list volumes", err)
	}

	attached := make(map[int64][]domain.BlockDevice)
	for _, v := range volumes {
		if v.Server == nil {
			continue
		}
		attached[v.Server.ID] = append(attached[v.Server.ID], domain.BlockDevice{
			DeviceName: v.LinuxDevice,
			VolumeID:   strconv.FormatInt(v.ID, 10),
		})
	}

	res := domain.Reservation{
		ID:        hetznerReservation,
		Instances: make([]domain.Instance, 0, len(servers)),
	}
	for _, s := range servers {
		res.Instances = append(res.Instances, domain.Instance{
			ID:           strconv.FormatInt(s.ID, 10),
			BlockDevices: attached[s.ID],
		})
	}

	return []domain.Reservation{res}, nil
}

// hetznerError maps hcloud error codes to domain sentinels.
func hetznerError(op string, err error) error {
	switch {
	case hcloud.IsError(err, hcloud.ErrorCodeNotFound):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case hcloud.IsError(err, hcloud.ErrorCodeUnauthorized):
		return fmt.Errorf("%s: %w", op, domain.ErrUnauthorized)
	case hcloud.IsError(err, hcloud.ErrorCodeRateLimitExceeded):
		return fmt.Errorf("%s: %w", op, domain.ErrRateLimited)
	case hcloud.IsError(err, hcloud.ErrorCodeConflict):
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
