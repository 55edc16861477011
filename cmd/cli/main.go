package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "watermaestro",
	Short: "WaterMaestro - Water Quality Dashboard",
	Long: `WaterMaestro tracks pH, COD, TSS, NH3-N and flow readings for a set of
users and keeps a rolling window of recent samples per parameter.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setupServices,
	PersistentPostRunE: teardownServices,
}

var rootFlags struct {
	storageBackend string
	storagePath    string
	sqlitePath     string
	capacity       int
	logLevel       string
	logFormat      string
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.storageBackend, "storage", "", "storage backend (memory, file, sqlite, postgres)")
	pf.StringVar(&rootFlags.storagePath, "storage-path", "", "directory for the file backend")
	pf.StringVar(&rootFlags.sqlitePath, "sqlite-path", "", "database file for the sqlite backend")
	pf.IntVar(&rootFlags.capacity, "capacity", 0, "samples kept per parameter")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "", "log format (console, json)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// setupServices loads configuration, applies flag overrides and stores the
// shared services on the command context.
func setupServices(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	svc, err := InitServices(cfg, logger)
	if err != nil {
		return err
	}

	cmd.SetContext(context.WithValue(cmd.Context(), servicesKey, svc))
	return nil
}

func teardownServices(cmd *cobra.Command, args []string) error {
	svc, err := servicesFromContext(cmd.Context())
	if err != nil {
		return nil
	}
	return svc.Close()
}

func applyFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("storage") {
		cfg.Storage.Backend = rootFlags.storageBackend
	}
	if flags.Changed("storage-path") {
		cfg.Storage.Path = rootFlags.storagePath
	}
	if flags.Changed("sqlite-path") {
		cfg.Storage.SQLitePath = rootFlags.sqlitePath
	}
	if flags.Changed("capacity") {
		cfg.HistoryCapacity = rootFlags.capacity
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = rootFlags.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = rootFlags.logFormat
	}
}
