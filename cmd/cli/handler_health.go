package main

import (
	"encoding/json"
	"net/http"
)

// healthChecked is implemented by stores backed by a database connection
type healthChecked interface {
	IsConnectionHealthy() bool
}

// healthHandler returns server health status
func (rm *RouteManager) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "storage": "ok"}
	code := http.StatusOK

	if hc, ok := rm.store.(healthChecked); ok && !hc.IsConnectionHealthy() {
		status["status"] = "degraded"
		status["storage"] = "unreachable"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
