package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// UsersCollection is the blob holding the serialized user snapshot
const UsersCollection = "users"

// Backend names accepted by Open
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// ErrBlobNotFound is returned by Load when no payload is stored under a name
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore persists named opaque payloads. Save overwrites any prior payload.
type BlobStore interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, payload []byte) error
	Close() error
}

// Config selects and configures a storage backend
type Config struct {
	Backend    string
	Path       string
	SQLitePath string
	Postgres   PostgresConfig
}

// PostgresConfig holds postgres connection settings
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds a lib/pq connection string
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Open creates the configured backend
func Open(cfg Config, logger *zap.SugaredLogger) (BlobStore, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile, "":
		return NewOsFileStore(cfg.Path)
	case BackendPostgres:
		return NewPostgresStore(cfg.Postgres, logger)
	case BackendSQLite:
		return NewSQLiteStore(cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (valid: %s, %s, %s, %s)",
			cfg.Backend, BackendMemory, BackendFile, BackendPostgres, BackendSQLite)
	}
}

func validateName(name string) error {
	if name == "" {
		return errors.New("blob name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid blob name: %s", name)
	}
	return nil
}
