package main

import (
	"context"
	"fmt"

	"github.com/sguter90/watermaestro/pkg/registry"
	"github.com/sguter90/watermaestro/pkg/scheduler"
	"github.com/sguter90/watermaestro/pkg/storage"
	"go.uber.org/zap"
)

type contextKey string

const servicesKey contextKey = "services"

// Services bundles the long-lived components shared by every command
type Services struct {
	Config   *Config
	Logger   *zap.SugaredLogger
	Store    storage.BlobStore
	Registry *registry.Registry
}

// InitServices opens storage and builds the user registry
func InitServices(cfg *Config, logger *zap.SugaredLogger) (*Services, error) {
	store, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}

	reg := registry.New(store,
		registry.WithLogger(logger),
		registry.WithHistoryCapacity(cfg.HistoryCapacity),
		registry.WithSampleInterval(cfg.SampleInterval),
	)

	return &Services{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Registry: reg,
	}, nil
}

// NewSession creates an update session over the registry
func (s *Services) NewSession() *scheduler.Session {
	return scheduler.NewSession(s.Registry, scheduler.WithLogger(s.Logger))
}

// Close releases storage and flushes the logger
func (s *Services) Close() error {
	err := s.Store.Close()
	_ = s.Logger.Sync()
	return err
}

func servicesFromContext(ctx context.Context) (*Services, error) {
	svc, ok := ctx.Value(servicesKey).(*Services)
	if !ok || svc == nil {
		return nil, fmt.Errorf("services not initialized")
	}
	return svc, nil
}
