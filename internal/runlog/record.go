package runlog

import (
	"time"

	"nathanbeddoewebdev/cloudharvest/internal/domain"
)

const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeError   = "error"
)

// Entry is one persisted harvesting pass. Samples are never stored.
type Entry struct {
	ID          int64     `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	Provider    string    `json:"provider"`
	Kind        string    `json:"kind"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Records     int       `json:"records"`
	Failed      int       `json:"failed"`
	Outcome     string    `json:"outcome"`
	Error       string    `json:"error,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
}

// FromPass builds an entry from a finished pass.
func FromPass(provider string, result domain.PassResult) *Entry {
	e := &Entry{
		StartedAt:   time.Now().UTC().Add(-result.Duration),
		Provider:    provider,
		Kind:        string(result.Kind),
		WindowStart: result.Window.Start,
		WindowEnd:   result.Window.End,
		Records:     len(result.Records),
		Failed:      result.Failed,
		DurationMs:  result.Duration.Milliseconds(),
	}
	switch {
	case result.Err != nil:
		e.Outcome = OutcomeError
		e.Error = result.Err.Error()
	case result.Failed > 0:
		e.Outcome = OutcomePartial
	default:
		e.Outcome = OutcomeSuccess
	}
	return e
}
