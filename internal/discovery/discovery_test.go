package discovery

import (
	"context"
	"errors"
	"testing"

	"nathanbeddoewebdev/cloudharvest/internal/domain"

	"github.com/google/go-cmp/cmp"
)

type fakeInventory struct {
	reservations []domain.Reservation
	err          error
	calls        int
}

func (f *fakeInventory) DescribeInstances(_ context.Context) ([]domain.Reservation, error) {
	f.calls++
	return f.reservations, f.err
}

func TestListComputeInstances_FlattensInOrder(t *testing.T) {
	inv := &fakeInventory{reservations: []domain.Reservation{
		{ID: "r-1", Instances: []domain.Instance{{ID: "i-1"}}},
		{ID: "r-2", Instances: []domain.Instance{{ID: "i-2"}, {ID: "i-3"}}},
	}}

	got, err := New(inv).ListComputeInstances(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := []domain.ResourceID{"i-1", "i-2", "i-3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("instances mismatch (-want +got):\n%s", diff)
	}
}

func TestListComputeInstances_KeepsDuplicates(t *testing.T) {
	inv := &fakeInventory{reservations: []domain.Reservation{
		{Instances: []domain.Instance{{ID: "i-1"}}},
		{Instances: []domain.Instance{{ID: "i-1"}}},
	}}

	got, err := New(inv).ListComputeInstances(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected duplicates kept, got %v", got)
	}
}

func TestListComputeInstances_BackendError(t *testing.T) {
	inv := &fakeInventory{err: domain.ErrUnauthorized}

	_, err := New(inv).ListComputeInstances(context.Background())

	var discErr *domain.DiscoveryError
	if !errors.As(err, &discErr) {
		t.Fatalf("expected *domain.DiscoveryError, got %T (%v)", err, err)
	}
	if discErr.Kind != domain.KindCompute {
		t.Errorf("Kind = %q, want compute", discErr.Kind)
	}
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected wrapped ErrUnauthorized, got %v", err)
	}
}

func TestListStorageVolumes_ReturnsEveryVolume(t *testing.T) {
	inv := &fakeInventory{reservations: []domain.Reservation{
		{Instances: []domain.Instance{
			{ID: "i-1", BlockDevices: []domain.BlockDevice{
				{DeviceName: "/dev/xvda", VolumeID: "vol-a"},
				{DeviceName: "/dev/xvdb", VolumeID: "vol-b"},
			}},
		}},
		{Instances: []domain.Instance{
			{ID: "i-2", BlockDevices: []domain.BlockDevice{
				{DeviceName: "/dev/sdb"},
				{DeviceName: "/dev/xvda", VolumeID: "vol-c"},
			}},
			{ID: "i-3"},
		}},
	}}

	got, err := New(inv).ListStorageVolumes(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := []domain.ResourceID{"vol-a", "vol-b", "vol-c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("volumes mismatch (-want +got):\n%s", diff)
	}
}

func TestListStorageVolumes_BackendError(t *testing.T) {
	inv := &fakeInventory{err: errors.New("boom")}

	_, err := New(inv).ListStorageVolumes(context.Background())

	var discErr *domain.DiscoveryError
	if !errors.As(err, &discErr) || discErr.Kind != domain.KindStorage {
		t.Fatalf("expected storage DiscoveryError, got %v", err)
	}
}
