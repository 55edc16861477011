package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sguter90/watermaestro/pkg/chart"
	"github.com/sguter90/watermaestro/pkg/registry"
	"go.uber.org/zap"
)

const (
	// DefaultInterval is the period between update cycles
	DefaultInterval = 5 * time.Second

	defaultTickTimeout = 30 * time.Second
)

// Listener is notified with fresh chart data after each user tick
type Listener interface {
	ChartUpdated(data chart.ChartData)
}

// ListenerFunc adapts a function to the Listener interface
type ListenerFunc func(data chart.ChartData)

// ChartUpdated calls f(data)
func (f ListenerFunc) ChartUpdated(data chart.ChartData) {
	f(data)
}

// Session owns the update timer and the chart data of every displayed user
type Session struct {
	registry    *registry.Registry
	logger      *zap.SugaredLogger
	now         func() time.Time
	tickTimeout time.Duration

	mu        sync.RWMutex
	charts    map[string]chart.ChartData
	listeners []Listener

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source used to stamp new samples
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTickTimeout bounds a single cycle
func WithTickTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		if timeout > 0 {
			s.tickTimeout = timeout
		}
	}
}

// NewSession creates a stopped Session over reg
func NewSession(reg *registry.Registry, opts ...Option) *Session {
	s := &Session{
		registry:    reg,
		logger:      zap.NewNop().Sugar(),
		now:         time.Now,
		tickTimeout: defaultTickTimeout,
		charts:      make(map[string]chart.ChartData),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddListener registers l for chart updates
func (s *Session) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Start cancels any running cycle, rebuilds the charts and begins ticking
// every interval.
func (s *Session) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.run(ctx, interval, done)
	s.logger.Infof("✓ Update scheduler started (interval %s)", interval)
}

// Stop halts the running cycle and waits for it to exit. It is safe to call
// on a stopped session.
func (s *Session) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.stopLocked() {
		s.logger.Info("✓ Update scheduler stopped")
	}
}

// Running reports whether a cycle is scheduled
func (s *Session) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.cancel != nil
}

func (s *Session) stopLocked() bool {
	if s.cancel == nil {
		return false
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	return true
}

// run executes the update loop
func (s *Session) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	if err := s.Refresh(ctx); err != nil {
		s.logger.Errorf("❌ Failed to build initial charts: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Errorf("❌ Update cycle failed: %v", err)
			}
		}
	}
}

// Refresh rebuilds the chart registry from the stored profiles without
// advancing any series. Charts of removed users are dropped.
func (s *Session) Refresh(ctx context.Context) error {
	profiles, err := s.registry.LoadAll(ctx)
	if err != nil {
		return err
	}

	charts := make(map[string]chart.ChartData, len(profiles))
	for _, p := range profiles {
		charts[p.ID] = chart.BuildChartData(p)
	}

	s.mu.Lock()
	s.charts = charts
	s.mu.Unlock()
	return nil
}

// RunOnce advances every known user by one sample and pushes the new chart
// data to listeners. A failing user is logged and skipped. It returns the
// number of users that were advanced.
func (s *Session) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.tickTimeout)
	defer cancel()

	logger := s.logger.With("cycle_id", uuid.New().String())

	ids, err := s.registry.UserIDs(ctx)
	if err != nil {
		return 0, err
	}

	advanced := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return advanced, ctx.Err()
		}

		ok, err := s.TickUser(ctx, id)
		if err != nil {
			logger.Errorf("❌ Error advancing %s: %v", id, err)
			continue
		}
		if ok {
			advanced++
		}
	}

	s.prune(ids)
	logger.Debugf("✓ Advanced %d of %d users", advanced, len(ids))
	return advanced, nil
}

// TickUser advances one user, rebuilds its chart and notifies listeners.
// It reports false if the user no longer exists.
func (s *Session) TickUser(ctx context.Context, id string) (bool, error) {
	ok, err := s.registry.Tick(ctx, id, s.now())
	if err != nil {
		return ok, err
	}
	if !ok {
		s.forget(id)
		return false, nil
	}

	if _, err := s.Publish(ctx, id); err != nil {
		return true, err
	}
	return true, nil
}

// Publish rebuilds one user's chart from the stored profile and notifies
// listeners without advancing the series.
func (s *Session) Publish(ctx context.Context, id string) (bool, error) {
	profile, ok, err := s.registry.Profile(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		s.forget(id)
		return false, nil
	}

	data := chart.BuildChartData(profile)
	s.mu.Lock()
	s.charts[id] = data
	s.mu.Unlock()

	s.notify(data)
	return true, nil
}

// Chart returns the latest chart data for a user
func (s *Session) Chart(userID string) (chart.ChartData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.charts[userID]
	return data, ok
}

func (s *Session) forget(id string) {
	s.mu.Lock()
	delete(s.charts, id)
	s.mu.Unlock()
}

// prune drops charts for users missing from ids
func (s *Session) prune(ids []string) {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.charts {
		if !keep[id] {
			delete(s.charts, id)
		}
	}
}

func (s *Session) notify(data chart.ChartData) {
	s.mu.RLock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, l := range listeners {
		l.ChartUpdated(data)
	}
}
