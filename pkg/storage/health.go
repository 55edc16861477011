package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthChecker monitors database connection health
type HealthChecker struct {
	db            *sql.DB
	checkInterval time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	mu            sync.RWMutex
	isHealthy     bool
	logger        *zap.SugaredLogger
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db *sql.DB, checkInterval time.Duration, logger *zap.SugaredLogger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &HealthChecker{
		db:            db,
		checkInterval: checkInterval,
		stopChan:      make(chan struct{}),
		isHealthy:     true,
		logger:        logger,
	}
}

// Start begins monitoring the database connection
func (hc *HealthChecker) Start() {
	ticker := time.NewTicker(hc.checkInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-hc.stopChan:
				return
			case <-ticker.C:
				hc.checkConnection()
			}
		}
	}()
}

// Stop stops monitoring. Safe to call more than once.
func (hc *HealthChecker) Stop() {
	hc.stopOnce.Do(func() {
		close(hc.stopChan)
	})
}

// checkConnection pings the database and records the outcome.
// database/sql re-dials broken pool connections on its own.
func (hc *HealthChecker) checkConnection() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := hc.db.PingContext(ctx)

	hc.mu.Lock()
	defer hc.mu.Unlock()

	if err != nil {
		hc.logger.Errorf("❌ Database connection health check failed: %v", err)
		hc.isHealthy = false
		return
	}

	if !hc.isHealthy {
		hc.logger.Info("✓ Database connection restored")
	}
	hc.isHealthy = true
}

// IsHealthy returns the current health status of the connection
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.isHealthy
}

// EnsureConnection verifies the connection before executing a query.
// An unhealthy connection is re-pinged so a recovered database is picked up
// without waiting for the next tick.
func (hc *HealthChecker) EnsureConnection(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := hc.db.PingContext(pingCtx); err != nil {
		hc.mu.Lock()
		hc.isHealthy = false
		hc.mu.Unlock()
		return fmt.Errorf("database connection check failed: %w", err)
	}

	hc.mu.Lock()
	hc.isHealthy = true
	hc.mu.Unlock()
	return nil
}
