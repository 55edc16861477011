package main

import (
	"net/http"
	"strings"
)

// corsMiddleware handles CORS headers
func (rm *RouteManager) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check if origin is allowed
		origin := r.Header.Get("Origin")
		if origin != "" {
			if rm.originAllowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			} else {
				rm.logger.Debugf("Origin '%s' is not within allowed origins: %s", origin, strings.Join(rm.allowedOrigins, ", "))
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rm *RouteManager) originAllowed(origin string) bool {
	for _, allowed := range rm.allowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	return false
}
