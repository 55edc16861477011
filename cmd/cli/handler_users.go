package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sguter90/watermaestro/pkg/models"
	"github.com/sguter90/watermaestro/pkg/registry"
)

// CreateUserRequest is the body of POST /api/v1/users
type CreateUserRequest struct {
	Name string `json:"name"`
}

// listUsersHandler returns a summary of every user
func (rm *RouteManager) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	profiles, err := rm.registry.LoadAll(r.Context())
	if err != nil {
		rm.logger.Errorf("❌ Failed to load users: %v", err)
		http.Error(w, "Failed to load users", http.StatusInternalServerError)
		return
	}

	summaries := make([]models.UserSummary, len(profiles))
	for i, p := range profiles {
		summaries[i] = p.Summary()
	}

	writeJSON(w, http.StatusOK, summaries)
}

// getUserHandler returns one full profile
func (rm *RouteManager) getUserHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	profile, ok, err := rm.registry.Profile(r.Context(), id)
	if err != nil {
		rm.logger.Errorf("❌ Failed to load user %s: %v", id, err)
		http.Error(w, "Failed to load user", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// createUserHandler adds a user with freshly generated series
func (rm *RouteManager) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := rm.registry.AddUser(r.Context(), req.Name)
	if errors.Is(err, registry.ErrEmptyName) {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		rm.logger.Errorf("❌ Failed to add user: %v", err)
		http.Error(w, "Failed to add user", http.StatusInternalServerError)
		return
	}

	rm.publish(r, profile.ID)
	writeJSON(w, http.StatusCreated, profile)
}

// deleteUserHandler removes a user
func (rm *RouteManager) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	removed, err := rm.registry.RemoveUser(r.Context(), id)
	if err != nil {
		rm.logger.Errorf("❌ Failed to remove user %s: %v", id, err)
		http.Error(w, "Failed to remove user", http.StatusInternalServerError)
		return
	}
	if !removed {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	if rm.session != nil {
		if err := rm.session.Refresh(r.Context()); err != nil {
			rm.logger.Warnf("⚠ Failed to refresh charts: %v", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// parametersHandler lists the monitored parameters in display order
func (rm *RouteManager) parametersHandler(w http.ResponseWriter, r *http.Request) {
	type parameterResponse struct {
		Key models.Parameter `json:"key"`
		models.ParameterInfo
	}

	out := make([]parameterResponse, 0, len(models.Parameters))
	for _, p := range models.Parameters {
		info, _ := p.Info()
		out = append(out, parameterResponse{Key: p, ParameterInfo: info})
	}

	writeJSON(w, http.StatusOK, out)
}

// publish pushes the current chart of id to live listeners
func (rm *RouteManager) publish(r *http.Request, id string) {
	if rm.session == nil {
		return
	}
	if _, err := rm.session.Publish(r.Context(), id); err != nil {
		rm.logger.Warnf("⚠ Failed to publish chart for %s: %v", id, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
