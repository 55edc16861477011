package main

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sguter90/watermaestro/pkg/chart"
)

// ChartResponse adds HH:MM label text to the chart arrays
type ChartResponse struct {
	chart.ChartData
	LabelText []string `json:"label_text"`
}

// chartHandler returns the chart arrays for a user
func (rm *RouteManager) chartHandler(w http.ResponseWriter, r *http.Request) {
	data, ok := rm.loadChart(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, ChartResponse{ChartData: data, LabelText: data.FormatLabels()})
}

// chartPNGHandler renders the chart of a user as PNG.
// Size is taken from ?width= and ?height=.
func (rm *RouteManager) chartPNGHandler(w http.ResponseWriter, r *http.Request) {
	width, err := queryInt(r, "width", chart.DefaultWidth)
	if err != nil {
		http.Error(w, "Invalid width", http.StatusBadRequest)
		return
	}
	height, err := queryInt(r, "height", chart.DefaultHeight)
	if err != nil {
		http.Error(w, "Invalid height", http.StatusBadRequest)
		return
	}

	data, ok := rm.loadChart(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := chart.RenderPNG(&buf, data, width, height); err != nil {
		rm.logger.Errorf("❌ Failed to render chart for %s: %v", data.UserID, err)
		http.Error(w, "Failed to render chart", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// loadChart prefers the session's chart and falls back to the stored profile.
// It writes the error response itself and reports false on failure.
func (rm *RouteManager) loadChart(w http.ResponseWriter, r *http.Request) (chart.ChartData, bool) {
	id := mux.Vars(r)["id"]

	if rm.session != nil {
		if data, ok := rm.session.Chart(id); ok {
			return data, true
		}
	}

	profile, ok, err := rm.registry.Profile(r.Context(), id)
	if err != nil {
		rm.logger.Errorf("❌ Failed to load user %s: %v", id, err)
		http.Error(w, "Failed to load user", http.StatusInternalServerError)
		return chart.ChartData{}, false
	}
	if !ok {
		http.Error(w, "User not found", http.StatusNotFound)
		return chart.ChartData{}, false
	}
	return chart.BuildChartData(profile), true
}

func queryInt(r *http.Request, key string, defaultValue int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 4096 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
