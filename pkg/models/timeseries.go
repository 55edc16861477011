package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	// DefaultHistoryCapacity is the fixed history length per parameter
	DefaultHistoryCapacity = 10
	// DefaultSampleInterval spaces the samples of a freshly generated history
	DefaultSampleInterval = 30 * time.Minute
)

// Sample is a single timestamped reading in a parameter's history
type Sample struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

type sampleJSON struct {
	Time  json.RawMessage `json:"time"`
	Value json.RawMessage `json:"value"`
}

// UnmarshalJSON accepts RFC3339 strings or unix milliseconds for time, and
// numbers or numeric strings for value.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var raw sampleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t, err := decodeInstant(raw.Time)
	if err != nil {
		return fmt.Errorf("invalid sample time: %w", err)
	}

	v, err := decodeNumber(raw.Value)
	if err != nil {
		return fmt.Errorf("invalid sample value: %w", err)
	}

	s.Time = t
	s.Value = v
	return nil
}

func decodeInstant(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, errors.New("missing time")
	}

	if raw[0] == '"' {
		var t time.Time
		if err := json.Unmarshal(raw, &t); err != nil {
			return time.Time{}, err
		}
		return t, nil
	}

	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func decodeNumber(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errors.New("missing value")
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return strconv.ParseFloat(s, 64)
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// TimeSeries holds the current value and bounded history of one parameter
type TimeSeries struct {
	Value   float64  `json:"value"`
	History []Sample `json:"history"`
}

// Validate checks the history is exactly capacity long, chronological,
// and ends with the current value.
func (ts *TimeSeries) Validate(capacity int) error {
	if ts == nil {
		return errors.New("series is nil")
	}
	if len(ts.History) != capacity {
		return fmt.Errorf("history length must be %d, got %d", capacity, len(ts.History))
	}
	for i := 1; i < len(ts.History); i++ {
		if ts.History[i].Time.Before(ts.History[i-1].Time) {
			return fmt.Errorf("history out of order at index %d", i)
		}
	}
	if capacity > 0 && ts.History[len(ts.History)-1].Value != ts.Value {
		return fmt.Errorf("current value %v does not match last history value %v", ts.Value, ts.History[len(ts.History)-1].Value)
	}
	return nil
}

// Times returns the history timestamps, oldest first
func (ts *TimeSeries) Times() []time.Time {
	times := make([]time.Time, len(ts.History))
	for i, s := range ts.History {
		times[i] = s.Time
	}
	return times
}

// Values returns the history values, index-aligned with Times
func (ts *TimeSeries) Values() []float64 {
	values := make([]float64, len(ts.History))
	for i, s := range ts.History {
		values[i] = s.Value
	}
	return values
}

// Clone returns a deep copy
func (ts *TimeSeries) Clone() *TimeSeries {
	if ts == nil {
		return nil
	}
	history := make([]Sample, len(ts.History))
	copy(history, ts.History)
	return &TimeSeries{Value: ts.Value, History: history}
}

// SeriesSet maps every parameter to its time series
type SeriesSet map[Parameter]*TimeSeries

// Validate checks that every parameter is present and valid
func (s SeriesSet) Validate(capacity int) error {
	if s == nil {
		return errors.New("series set is nil")
	}
	for _, p := range Parameters {
		ts, ok := s[p]
		if !ok || ts == nil {
			return fmt.Errorf("missing parameter: %s", p)
		}
		if err := ts.Validate(capacity); err != nil {
			return fmt.Errorf("parameter %s: %w", p, err)
		}
	}
	for p := range s {
		if !p.Valid() {
			return fmt.Errorf("unknown parameter: %s", p)
		}
	}
	return nil
}

// Clone returns a deep copy
func (s SeriesSet) Clone() SeriesSet {
	if s == nil {
		return nil
	}
	out := make(SeriesSet, len(s))
	for p, ts := range s {
		out[p] = ts.Clone()
	}
	return out
}
