// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides MCP configuration persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		// Ensure parent directory exists
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS mcp_configs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			config TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateConfig inserts a new configuration record and returns it with its
// assigned id.
func (s *SQLiteStore) CreateConfig(ctx context.Context, name string, config json.RawMessage) (*MCPConfig, error) {
	createdAt := time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO mcp_configs (name, config, created_at) VALUES (?, ?, ?)`,
		name, string(config), createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting config: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting insert id: %w", err)
	}

	return &MCPConfig{
		ID:        id,
		Name:      name,
		Config:    config,
		CreatedAt: createdAt,
	}, nil
}

// GetConfig retrieves a configuration by id.
// Returns ErrNotFound if no record exists.
func (s *SQLiteStore) GetConfig(ctx context.Context, id int64) (*MCPConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, config, created_at FROM mcp_configs WHERE id = ?`, id)

	cfg, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying config: %w", err)
	}
	return cfg, nil
}

// ListConfigs returns all stored configurations ordered by id.
func (s *SQLiteStore) ListConfigs(ctx context.Context) ([]*MCPConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, config, created_at FROM mcp_configs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying configs: %w", err)
	}
	defer rows.Close()

	configs := make([]*MCPConfig, 0)
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating configs: %w", err)
	}

	return configs, nil
}

// UpdateConfig replaces the name and config blob of an existing record.
// Returns ErrNotFound if no record exists.
func (s *SQLiteStore) UpdateConfig(ctx context.Context, id int64, name string, config json.RawMessage) (*MCPConfig, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE mcp_configs SET name = ?, config = ? WHERE id = ?`,
		name, string(config), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating config: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting affected rows: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return s.GetConfig(ctx, id)
}

// DeleteConfig removes a configuration record.
// Returns ErrNotFound if no record exists.
func (s *SQLiteStore) DeleteConfig(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM mcp_configs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting config: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner abstracts sql.Row and sql.Rows for scanConfig.
type scanner interface {
	Scan(dest ...any) error
}

func scanConfig(row scanner) (*MCPConfig, error) {
	var cfg MCPConfig
	var configText string
	if err := row.Scan(&cfg.ID, &cfg.Name, &configText, &cfg.CreatedAt); err != nil {
		return nil, err
	}
	cfg.Config = json.RawMessage(configText)
	return &cfg, nil
}

// Ensure SQLiteStore satisfies the interface.
var _ Store = (*SQLiteStore)(nil)
