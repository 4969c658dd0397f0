// Package sink writes harvested records to their destinations.
package sink

import (
	"context"
	"errors"

	"nathanbeddoewebdev/cloudharvest/internal/domain"
)

// Sink consumes records. Implementations must be safe to call from one
// goroutine at a time; the harvester never writes concurrently.
type Sink interface {
	Write(ctx context.Context, rec domain.Record) error
	Close() error
}

// Multi fans every record out to several sinks.
type Multi []Sink

// Write writes rec to every sink and joins their errors.
func (m Multi) Write(ctx context.Context, rec domain.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every record.
type Discard struct{}

func (Discard) Write(context.Context, domain.Record) error { return nil }
func (Discard) Close() error                               { return nil }
