package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sguter90/watermaestro/pkg/metrics"
	"github.com/sguter90/watermaestro/pkg/registry"
	"github.com/sguter90/watermaestro/pkg/scheduler"
	"github.com/sguter90/watermaestro/pkg/storage"
	"go.uber.org/zap"
)

// RouteManager handles all API routes
type RouteManager struct {
	registry       *registry.Registry
	session        *scheduler.Session
	hub            *Hub
	store          storage.BlobStore
	allowedOrigins []string
	logger         *zap.SugaredLogger
	Router         *mux.Router
}

// NewRouteManager creates a new RouteManager instance
func NewRouteManager(svc *Services, session *scheduler.Session, hub *Hub) *RouteManager {
	return &RouteManager{
		registry:       svc.Registry,
		session:        session,
		hub:            hub,
		store:          svc.Store,
		allowedOrigins: svc.Config.AllowedOrigins,
		logger:         svc.Logger,
		Router:         mux.NewRouter(),
	}
}

// Setup configures all API routes
func (rm *RouteManager) Setup() {
	r := rm.Router
	r.Use(metrics.HTTPMiddleware)
	r.Use(rm.corsMiddleware)

	// Global OPTIONS handler - catches all preflight requests
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.HandleFunc("/health", rm.healthHandler).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	if rm.hub != nil {
		r.HandleFunc("/ws", rm.hub.ServeHTTP).Methods("GET")
	}

	// API v1 routes
	api := r.PathPrefix("/api/v1").Subrouter()
	rm.setupAPIRoutes(api)
}

// setupAPIRoutes configures all API v1 routes
func (rm *RouteManager) setupAPIRoutes(api *mux.Router) {
	// Users
	api.HandleFunc("/users", rm.listUsersHandler).Methods("GET")
	api.HandleFunc("/users", rm.createUserHandler).Methods("POST")
	api.HandleFunc("/users/{id}", rm.getUserHandler).Methods("GET")
	api.HandleFunc("/users/{id}", rm.deleteUserHandler).Methods("DELETE")

	// Series
	api.HandleFunc("/users/{id}/series", rm.getSeriesHandler).Methods("GET")
	api.HandleFunc("/users/{id}/series", rm.putSeriesHandler).Methods("PUT")
	api.HandleFunc("/users/{id}/tick", rm.tickHandler).Methods("POST")

	// Charts
	api.HandleFunc("/users/{id}/chart", rm.chartHandler).Methods("GET")
	api.HandleFunc("/users/{id}/chart.png", rm.chartPNGHandler).Methods("GET")

	// Parameters
	api.HandleFunc("/parameters", rm.parametersHandler).Methods("GET")
}
