package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Dialect names the SQL flavour a SQLStore talks to.
// The value is also the database/sql driver name.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

var positionalParam = regexp.MustCompile(`\$\d+`)

// rebind rewrites $N placeholders for drivers that expect ?
func (d Dialect) rebind(query string) string {
	if d == DialectSQLite {
		return positionalParam.ReplaceAllString(query, "?")
	}
	return query
}

func (d Dialect) migrationDir() string {
	if d == DialectSQLite {
		return "sqlite"
	}
	return "postgres"
}

// SQLStore keeps blobs in a relational table
type SQLStore struct {
	db            *sql.DB
	dialect       Dialect
	healthChecker *HealthChecker
	logger        *zap.SugaredLogger
}

// NewPostgresStore connects to postgres and migrates the blobs table
func NewPostgresStore(cfg PostgresConfig, logger *zap.SugaredLogger) (*SQLStore, error) {
	db, err := sql.Open(string(DialectPostgres), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return newSQLStore(db, DialectPostgres, logger)
}

// NewSQLiteStore opens (or creates) a sqlite database file
func NewSQLiteStore(path string, logger *zap.SugaredLogger) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	connString := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=30000", path)
	db, err := sql.Open(string(DialectSQLite), connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite serialises writers anyway
	db.SetMaxOpenConns(1)

	return newSQLStore(db, DialectSQLite, logger)
}

// NewSQLStore wraps an already opened connection, running migrations
func NewSQLStore(db *sql.DB, dialect Dialect, logger *zap.SugaredLogger) (*SQLStore, error) {
	return newSQLStore(db, dialect, logger)
}

func newSQLStore(db *sql.DB, dialect Dialect, logger *zap.SugaredLogger) (*SQLStore, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	runner, err := NewMigrationsRunner(db, dialect, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create migration runner: %w", err)
	}
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &SQLStore{
		db:            db,
		dialect:       dialect,
		healthChecker: NewHealthChecker(db, 30*time.Second, logger),
		logger:        logger,
	}

	// Start health checking
	s.healthChecker.Start()

	return s, nil
}

// IsConnectionHealthy returns the current health status
func (s *SQLStore) IsConnectionHealthy() bool {
	return s.healthChecker.IsHealthy()
}

// Load reads a blob payload
func (s *SQLStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := s.healthChecker.EnsureConnection(ctx); err != nil {
		return nil, err
	}

	query := s.dialect.rebind(`SELECT payload FROM blobs WHERE name = $1`)

	var payload string
	err := s.db.QueryRowContext(ctx, query, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query blob %s: %w", name, err)
	}

	return []byte(payload), nil
}

// Save upserts a blob payload
func (s *SQLStore) Save(ctx context.Context, name string, payload []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := s.healthChecker.EnsureConnection(ctx); err != nil {
		return err
	}

	query := s.dialect.rebind(`
        INSERT INTO blobs (name, payload)
        VALUES ($1, $2)
        ON CONFLICT (name) DO UPDATE
        SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP
    `)

	if _, err := s.db.ExecContext(ctx, query, name, string(payload)); err != nil {
		return fmt.Errorf("failed to save blob %s: %w", name, err)
	}
	return nil
}

// Close closes the database connection and stops health checking
func (s *SQLStore) Close() error {
	if s.healthChecker != nil {
		s.healthChecker.Stop()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
