package runlog

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"nathanbeddoewebdev/cloudharvest/internal/domain"
	"nathanbeddoewebdev/cloudharvest/internal/logger"

	"github.com/google/go-cmp/cmp"
)

func tempRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.db")
	r, err := OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSave_AssignsIDAndStartedAt(t *testing.T) {
	r := tempRepo(t)

	entry := &Entry{Kind: "compute", Outcome: OutcomeSuccess, DurationMs: 12}
	if err := r.Save(entry); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if entry.ID == 0 {
		t.Error("expected ID to be assigned")
	}
	if entry.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	r := tempRepo(t)

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	want := &Entry{
		StartedAt:   start.Add(time.Hour),
		Provider:    "aws",
		Kind:        "storage",
		WindowStart: start,
		WindowEnd:   start.Add(time.Hour),
		Records:     16,
		Failed:      2,
		Outcome:     OutcomePartial,
		DurationMs:  830,
	}
	if err := r.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := r.List(10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if diff := cmp.Diff(*want, got[0]); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestList_NewestFirst(t *testing.T) {
	r := tempRepo(t)

	base := time.Now().UTC()
	for i := range 3 {
		entry := &Entry{
			Kind:      "compute",
			Outcome:   OutcomeSuccess,
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := r.Save(entry); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	entries, err := r.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].StartedAt.Before(entries[1].StartedAt) {
		t.Error("expected entries sorted by start time descending")
	}
}

func TestListByKind(t *testing.T) {
	r := tempRepo(t)

	for _, kind := range []string{"compute", "storage", "compute", "agent"} {
		if err := r.Save(&Entry{Kind: kind, Outcome: OutcomeSuccess}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	entries, err := r.ListByKind("compute", 10)
	if err != nil {
		t.Fatalf("ListByKind failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 compute entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Kind != "compute" {
			t.Errorf("unexpected kind %q", e.Kind)
		}
	}
}

func TestPrune(t *testing.T) {
	r := tempRepo(t)

	old := &Entry{Kind: "compute", StartedAt: time.Now().UTC().Add(-48 * time.Hour)}
	recent := &Entry{Kind: "compute", StartedAt: time.Now().UTC()}
	for _, e := range []*Entry{old, recent} {
		if err := r.Save(e); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	n, err := r.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned entry, got %d", n)
	}

	entries, _ := r.List(10)
	if len(entries) != 1 || entries[0].ID != recent.ID {
		t.Errorf("expected only the recent entry to remain, got %+v", entries)
	}
}

func TestFromPass_Outcome(t *testing.T) {
	window := domain.TimeWindow{
		Start: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	tests := []struct {
		name   string
		result domain.PassResult
		want   string
	}{
		{name: "success", result: domain.PassResult{Records: make([]domain.Record, 3)}, want: OutcomeSuccess},
		{name: "partial", result: domain.PassResult{Records: make([]domain.Record, 3), Failed: 1}, want: OutcomePartial},
		{name: "error", result: domain.PassResult{Err: errors.New("discovery failed")}, want: OutcomeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.result.Kind = domain.KindCompute
			tt.result.Window = window
			tt.result.Duration = 1500 * time.Millisecond

			e := FromPass("aws", tt.result)
			if e.Outcome != tt.want {
				t.Errorf("Outcome = %q, want %q", e.Outcome, tt.want)
			}
			if e.Kind != "compute" || e.Provider != "aws" || e.DurationMs != 1500 {
				t.Errorf("unexpected entry: %+v", e)
			}
			if e.Records != len(tt.result.Records) {
				t.Errorf("Records = %d, want %d", e.Records, len(tt.result.Records))
			}
			if !e.WindowStart.Equal(window.Start) || !e.WindowEnd.Equal(window.End) {
				t.Errorf("window = %v..%v", e.WindowStart, e.WindowEnd)
			}
		})
	}
}

func TestObserver_SavesPasses(t *testing.T) {
	r := tempRepo(t)
	o := NewObserver(r, "hetzner", logger.Nop())

	o.ObserveQuery(domain.KindCompute, false)
	o.ObservePass(domain.PassResult{Kind: domain.KindCompute, Records: make([]domain.Record, 2)})
	o.ObservePass(domain.PassResult{Kind: domain.KindAgent, Err: errors.New("boom")})

	entries, err := r.List(10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Provider != "hetzner" {
			t.Errorf("Provider = %q", e.Provider)
		}
	}
}
