package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the WaterMaestro server",
	Long: `Start the WaterMaestro server. Every user's series is advanced by one
sample per tick interval and pushed to websocket clients.`,
	RunE: runServe,
}

var serveFlags struct {
	port     string
	interval time.Duration
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveFlags.port, "port", "", "HTTP port (overrides SERVER_PORT)")
	serveCmd.Flags().DurationVar(&serveFlags.interval, "interval", 0, "tick interval (overrides TICK_INTERVAL)")
}

func runServe(cmd *cobra.Command, args []string) error {
	svc, err := servicesFromContext(cmd.Context())
	if err != nil {
		return err
	}
	cfg := svc.Config
	logger := svc.Logger

	if cmd.Flags().Changed("port") {
		cfg.Port = serveFlags.port
	}
	if cmd.Flags().Changed("interval") {
		if serveFlags.interval <= 0 {
			return fmt.Errorf("tick interval must be positive, got %s", serveFlags.interval)
		}
		cfg.TickInterval = serveFlags.interval
	}

	// Load (and if needed seed) users before serving
	ids, err := svc.Registry.UserIDs(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	logger.Infof("✓ Loaded %d users", len(ids))

	hub := NewHub(cfg.AllowedOrigins, logger)
	session := svc.NewSession()
	session.AddListener(hub)
	session.Start(cfg.TickInterval)

	// Setup Router
	routeManager := NewRouteManager(svc, session, hub)
	routeManager.Setup()

	addr := ":" + cfg.Port
	server := &http.Server{
		Handler:      routeManager.Router,
		Addr:         addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		session.Stop()
		return fmt.Errorf("failed to start server: %w", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Infof("Starting WaterMaestro server on %s (storage: %s)...", addr, cfg.Storage.Backend)
	err = serveUntil(server, ln, sigChan, func() {
		session.Stop()
		hub.Close()
	}, logger)
	if err != nil {
		session.Stop()
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveUntil serves on ln until a signal arrives on stop, then runs shutdown
// and drains in-flight requests. It only returns once the drain is over.
func serveUntil(server *http.Server, ln net.Listener, stop <-chan os.Signal, shutdown func(), logger *zap.SugaredLogger) error {
	done := make(chan struct{})
	quit := make(chan struct{})

	go func() {
		defer close(done)

		select {
		case <-stop:
		case <-quit:
			return
		}
		logger.Info("Shutdown signal received")

		shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Errorf("❌ Server shutdown error: %v", err)
		}
	}()

	err := server.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		close(quit)
		<-done
		return err
	}

	<-done
	logger.Info("✓ Server stopped")
	return nil
}
