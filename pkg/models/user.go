package models

import "time"

// UserProfile is one dashboard user and their monitored series.
// Data is nil when a persisted profile carried no series.
type UserProfile struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Data SeriesSet `json:"data,omitempty"`
}

// Clone returns a deep copy
func (u UserProfile) Clone() UserProfile {
	return UserProfile{
		ID:   u.ID,
		Name: u.Name,
		Data: u.Data.Clone(),
	}
}

// UserSummary is the listing view of a profile without its series
type UserSummary struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	LastUpdate  *time.Time            `json:"last_update,omitempty"`
	LatestValue map[Parameter]float64 `json:"latest,omitempty"`
}

// Summary builds the listing view of u
func (u UserProfile) Summary() UserSummary {
	summary := UserSummary{ID: u.ID, Name: u.Name}
	if len(u.Data) == 0 {
		return summary
	}

	summary.LatestValue = make(map[Parameter]float64, len(u.Data))
	for p, ts := range u.Data {
		if ts == nil {
			continue
		}
		summary.LatestValue[p] = ts.Value
	}

	if ph, ok := u.Data[ParameterPH]; ok && ph != nil && len(ph.History) > 0 {
		last := ph.History[len(ph.History)-1].Time
		summary.LastUpdate = &last
	}
	return summary
}
