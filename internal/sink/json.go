package sink

import (
	"context"
	"encoding/json"
	"io"

	"nathanbeddoewebdev/cloudharvest/internal/domain"
)

// JSONLines writes one JSON object per record per line.
type JSONLines struct {
	enc *json.Encoder
}

// NewJSONLines returns a JSONLines sink writing to w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

func (j *JSONLines) Write(_ context.Context, rec domain.Record) error {
	return j.enc.Encode(rec)
}

func (j *JSONLines) Close() error { return nil }
