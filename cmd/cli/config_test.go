package main

import (
	"testing"
	"time"

	"github.com/sguter90/watermaestro/pkg/storage"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"SERVER_PORT", "STORAGE_BACKEND", "TICK_INTERVAL", "HISTORY_CAPACITY", "SAMPLE_INTERVAL", "SERVER_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Port != "8059" {
		t.Errorf("Expected port 8059, got %s", cfg.Port)
	}
	if cfg.Storage.Backend != storage.BackendFile {
		t.Errorf("Expected file backend, got %s", cfg.Storage.Backend)
	}
	if cfg.TickInterval != 5*time.Second {
		t.Errorf("Expected 5s tick interval, got %s", cfg.TickInterval)
	}
	if cfg.HistoryCapacity != 10 {
		t.Errorf("Expected capacity 10, got %d", cfg.HistoryCapacity)
	}
	if cfg.SampleInterval != 30*time.Minute {
		t.Errorf("Expected 30m sample interval, got %s", cfg.SampleInterval)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("Expected default origins, got %v", cfg.AllowedOrigins)
	}
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE_BACKEND", storage.BackendSQLite)
	t.Setenv("TICK_INTERVAL", "250ms")
	t.Setenv("HISTORY_CAPACITY", "24")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Port)
	}
	if cfg.Storage.Backend != storage.BackendSQLite {
		t.Errorf("Expected sqlite backend, got %s", cfg.Storage.Backend)
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %s", cfg.TickInterval)
	}
	if cfg.HistoryCapacity != 24 {
		t.Errorf("Expected capacity 24, got %d", cfg.HistoryCapacity)
	}

	expected := []string{"https://a.example", "https://b.example"}
	if len(cfg.AllowedOrigins) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, cfg.AllowedOrigins)
	}
	for i := range expected {
		if cfg.AllowedOrigins[i] != expected[i] {
			t.Errorf("Expected %s, got %s", expected[i], cfg.AllowedOrigins[i])
		}
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value string
	}{
		{name: "Non-numeric capacity", key: "HISTORY_CAPACITY", value: "ten"},
		{name: "Zero capacity", key: "HISTORY_CAPACITY", value: "0"},
		{name: "Bad tick interval", key: "TICK_INTERVAL", value: "soon"},
		{name: "Negative tick interval", key: "TICK_INTERVAL", value: "-1s"},
		{name: "Bad sample interval", key: "SAMPLE_INTERVAL", value: "1x"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)

			if _, err := LoadConfig(); err == nil {
				t.Errorf("Expected error for %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	testCases := []struct {
		level       string
		format      string
		expectError bool
	}{
		{level: "info", format: "console"},
		{level: "debug", format: "json"},
		{level: "", format: ""},
		{level: "loud", format: "console", expectError: true},
		{level: "info", format: "xml", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.level+"/"+tc.format, func(t *testing.T) {
			logger, err := newLogger(tc.level, tc.format)
			if tc.expectError {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if logger == nil {
				t.Error("Expected logger to be created")
			}
		})
	}
}
