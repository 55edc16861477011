package series

import (
	"errors"
	"fmt"
	"time"

	"github.com/sguter90/watermaestro/pkg/models"
)

// ErrIncompleteSeries is returned by Advance when a set lacks a parameter or
// has an empty history.
var ErrIncompleteSeries = errors.New("series set is incomplete")

// GenerateInitialSeries builds a full window for every parameter.
// Samples are spaced interval apart, ending at now, oldest first.
func GenerateInitialSeries(src ReadingSource, now time.Time, capacity int, interval time.Duration) models.SeriesSet {
	if capacity < 1 {
		capacity = models.DefaultHistoryCapacity
	}
	if interval <= 0 {
		interval = models.DefaultSampleInterval
	}
	now = now.UTC()

	set := make(models.SeriesSet, len(models.Parameters))
	for _, p := range models.Parameters {
		history := make([]models.Sample, capacity)
		for i := range history {
			history[i] = models.Sample{
				Time:  now.Add(-time.Duration(capacity-1-i) * interval),
				Value: src.Read(p),
			}
		}
		set[p] = &models.TimeSeries{
			Value:   history[capacity-1].Value,
			History: history,
		}
	}
	return set
}

// Advance slides every parameter's window forward by one sample taken at now.
// A now earlier than the newest stored sample is clamped to that sample's
// time so histories stay ordered when the clock steps back.
// All values are drawn before any series is touched, so the set is either
// fully advanced or left unchanged.
func Advance(set models.SeriesSet, src ReadingSource, now time.Time) error {
	var latest time.Time
	for _, p := range models.Parameters {
		ts, ok := set[p]
		if !ok || ts == nil || len(ts.History) == 0 {
			return fmt.Errorf("%w: %s", ErrIncompleteSeries, p)
		}
		if t := ts.History[len(ts.History)-1].Time; t.After(latest) {
			latest = t
		}
	}

	now = now.UTC()
	if now.Before(latest) {
		now = latest.UTC()
	}
	next := make(map[models.Parameter]float64, len(models.Parameters))
	for _, p := range models.Parameters {
		next[p] = src.Read(p)
	}

	for _, p := range models.Parameters {
		ts := set[p]
		v := next[p]
		ts.Value = v

		// shift in place so the backing array never grows
		copy(ts.History, ts.History[1:])
		ts.History[len(ts.History)-1] = models.Sample{Time: now, Value: v}
	}
	return nil
}
