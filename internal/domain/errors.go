package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for cross-provider error classification.
// Providers should wrap these so the harvester can handle error categories
// uniformly without importing provider-specific SDKs.
//
//	return fmt.Errorf("failed to get metric data: %w", domain.ErrRateLimited)
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates the request was rejected due to
	// invalid, expired, or missing credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrConflict indicates a state or uniqueness conflict.
	ErrConflict = errors.New("conflict")

	// ErrUnknownMetric indicates a metric name that has no catalog entry
	// for the requested resource kind.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrUnsupportedMetric indicates the provider cannot serve a metric
	// that exists in the catalog.
	ErrUnsupportedMetric = errors.New("metric not supported by provider")
)

// DiscoveryError reports a failed inventory call. It is fatal to the pass
// that triggered it.
type DiscoveryError struct {
	Kind ResourceKind
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover %s resources: %v", e.Kind, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// QueryError reports a failed monitoring call for one subject/metric pair.
type QueryError struct {
	Subject string
	Metric  string
	Err     error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s for %s: %v", e.Metric, e.Subject, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// CatalogError reports a metric name without a unit mapping.
type CatalogError struct {
	Kind   ResourceKind
	Metric string
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("no %s metric named %q", e.Kind, e.Metric)
}

func (e *CatalogError) Unwrap() error { return ErrUnknownMetric }
