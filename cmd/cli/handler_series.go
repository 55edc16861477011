package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sguter90/watermaestro/pkg/models"
	"github.com/sguter90/watermaestro/pkg/registry"
)

// getSeriesHandler returns a user's series, optionally narrowed to one
// parameter with ?parameter=
func (rm *RouteManager) getSeriesHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var only models.Parameter
	if raw := r.URL.Query().Get("parameter"); raw != "" {
		p, err := models.ParseParameter(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		only = p
	}

	set, ok, err := rm.registry.GetSeries(r.Context(), id)
	if err != nil {
		rm.logger.Errorf("❌ Failed to load series for %s: %v", id, err)
		http.Error(w, "Failed to load series", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	if only != "" {
		writeJSON(w, http.StatusOK, models.SeriesSet{only: set[only]})
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// putSeriesHandler replaces a user's series wholesale
func (rm *RouteManager) putSeriesHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var set models.SeriesSet
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ok, err := rm.registry.UpdateSeries(r.Context(), id, set)
	if errors.Is(err, registry.ErrInvalidSeries) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		rm.logger.Errorf("❌ Failed to update series for %s: %v", id, err)
		http.Error(w, "Failed to update series", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	rm.publish(r, id)
	writeJSON(w, http.StatusOK, set)
}

// tickHandler advances a user's series by one sample
func (rm *RouteManager) tickHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var (
		ok  bool
		err error
	)
	if rm.session != nil {
		ok, err = rm.session.TickUser(r.Context(), id)
	} else {
		ok, err = rm.registry.Tick(r.Context(), id, time.Now())
	}
	if err != nil {
		rm.logger.Errorf("❌ Failed to advance %s: %v", id, err)
		http.Error(w, "Failed to advance series", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	set, _, err := rm.registry.GetSeries(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to load series", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, set)
}
