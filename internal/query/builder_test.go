package query

import (
	"regexp"
	"testing"
	"time"

	"nathanbeddoewebdev/cloudharvest/internal/catalog"
	"nathanbeddoewebdev/cloudharvest/internal/domain"

	"github.com/google/go-cmp/cmp"
)

var testWindow = domain.TimeWindow{
	Start: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC),
}

func TestNewBuilder_Defaults(t *testing.T) {
	b := NewBuilder(0, "")
	if b.Period != 300*time.Second {
		t.Errorf("Period = %s, want 5m0s", b.Period)
	}
	if b.Stat != "Average" {
		t.Errorf("Stat = %q, want Average", b.Stat)
	}
}

func TestBuild_BindsDimension(t *testing.T) {
	def, err := catalog.Lookup(domain.KindCompute, "CPUUtilization")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	got := NewBuilder(0, "").Build("i-0abc", def, testWindow)

	want := domain.MetricQuery{
		Subject:    "i-0abc",
		Namespace:  "AWS/EC2",
		MetricName: "CPUUtilization",
		Dimensions: []domain.Dimension{{Name: "InstanceId", Value: "i-0abc"}},
		Unit:       domain.UnitPercent,
		Period:     300 * time.Second,
		Stat:       "Average",
		Window:     testWindow,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("query mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildDescriptor_CopiesOnlyDescriptorDimensions(t *testing.T) {
	desc := domain.MetricDescriptor{
		Namespace: "CWAgent",
		Name:      "mem_used_percent",
		Dimensions: []domain.Dimension{
			{Name: "host", Value: "ip-10-0-0-1"},
		},
	}

	got := NewBuilder(0, "").BuildDescriptor(desc, domain.UnitPercent, testWindow)

	if diff := cmp.Diff(desc.Dimensions, got.Dimensions); diff != "" {
		t.Errorf("dimensions mismatch (-want +got):\n%s", diff)
	}
	if got.Subject != "host=ip-10-0-0-1" {
		t.Errorf("Subject = %q", got.Subject)
	}

	desc.Dimensions[0].Value = "changed"
	if got.Dimensions[0].Value != "ip-10-0-0-1" {
		t.Error("query shares dimension storage with descriptor")
	}
}

func TestSubject_NoDimensions(t *testing.T) {
	if got := Subject(domain.MetricDescriptor{Name: "mem_used_percent"}); got != "mem_used_percent" {
		t.Errorf("Subject = %q", got)
	}
}

func TestSubject_OrderIndependent(t *testing.T) {
	a := domain.MetricDescriptor{Name: "disk_used_percent", Dimensions: []domain.Dimension{
		{Name: "InstanceId", Value: "i-1"},
		{Name: "host", Value: "h"},
		{Name: "device", Value: "xvda1"},
	}}
	b := domain.MetricDescriptor{Name: "disk_used_percent", Dimensions: []domain.Dimension{
		{Name: "host", Value: "h"},
		{Name: "device", Value: "xvda1"},
		{Name: "InstanceId", Value: "i-1"},
	}}

	const want = "InstanceId=i-1,device=xvda1,host=h"
	if got := Subject(a); got != want {
		t.Errorf("Subject(a) = %q, want %q", got, want)
	}
	if got := Subject(b); got != want {
		t.Errorf("Subject(b) = %q, want %q", got, want)
	}
	if b.Dimensions[0].Name != "host" {
		t.Error("Subject reordered the descriptor's dimensions")
	}
}

func TestBatch_UniqueValidIDs(t *testing.T) {
	idSyntax := regexp.MustCompile(`^[a-z][a-zA-Z0-9_]*$`)
	queries := make([]domain.MetricQuery, 7)
	for i := range queries {
		queries[i].Subject = "i-" + string(rune('a'+i))
	}

	batches := Batch(queries, 3)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[2]) != 1 {
		t.Errorf("expected last batch of 1, got %d", len(batches[2]))
	}

	for bi, batch := range batches {
		seen := map[string]bool{}
		for _, q := range batch {
			if !idSyntax.MatchString(q.ID) {
				t.Errorf("batch %d: id %q is not backend-syntax-valid", bi, q.ID)
			}
			if seen[q.ID] {
				t.Errorf("batch %d: duplicate id %q", bi, q.ID)
			}
			seen[q.ID] = true
		}
	}

	if queries[0].ID != "" {
		t.Error("Batch mutated the input slice")
	}
}

func TestBatch_SizeBelowOne(t *testing.T) {
	batches := Batch(make([]domain.MetricQuery, 2), 0)
	if len(batches) != 2 {
		t.Errorf("expected 2 single-query batches, got %d", len(batches))
	}
}
