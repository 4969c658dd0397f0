// Package timewindow computes the lookback interval of a harvesting pass.
package timewindow

import (
	"fmt"
	"time"

	"nathanbeddoewebdev/cloudharvest/internal/domain"
)

// DefaultLookback is the span requested when none is configured.
const DefaultLookback = 60 * time.Minute

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Current returns the window ending now and starting lookback earlier,
// both in UTC. Call it once per pass and share the result.
func Current(clock Clock, lookback time.Duration) (domain.TimeWindow, error) {
	if lookback <= 0 {
		return domain.TimeWindow{}, fmt.Errorf("timewindow: lookback must be positive, got %s", lookback)
	}
	if clock == nil {
		clock = SystemClock
	}
	end := clock.Now().UTC()
	return domain.TimeWindow{Start: end.Add(-lookback), End: end}, nil
}
