package storage

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"workspace-search/internal/common/errors"
)

// SQLiteStore persists credentials in a local SQLite database. This is the
// default backend for single-instance deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at path and
// ensures the credentials table exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.ConnectionError("failed to open sqlite database", err)
	}

	// SQLite handles one writer at a time
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS credentials (
		provider   TEXT NOT NULL,
		field      TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (provider, field)
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return errors.ConnectionError("failed to create credentials table", err)
	}
	return nil
}

func (s *SQLiteStore) GetField(ctx context.Context, provider, field string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM credentials WHERE provider = ? AND field = ?",
		provider, field,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.ConnectionError("failed to read credential field", err)
	}
	return value, true, nil
}

// GetAll reads every field in one statement; a single SELECT sees one
// consistent database state even while ReplaceCredential commits.
func (s *SQLiteStore) GetAll(ctx context.Context, provider string) (map[string]string, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT field, value FROM credentials WHERE provider = ?", provider)
	if err != nil {
		return nil, false, errors.ConnectionError("failed to read credential", err)
	}
	defer rows.Close()

	fields := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, false, errors.ConnectionError("failed to scan credential field", err)
		}
		fields[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, false, errors.ConnectionError("failed to iterate credential fields", err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	return fields, true, nil
}

func (s *SQLiteStore) SetField(ctx context.Context, provider, field, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (provider, field, value, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(provider, field) DO UPDATE SET
		   value = excluded.value,
		   updated_at = CURRENT_TIMESTAMP`,
		provider, field, value,
	)
	if err != nil {
		return errors.ConnectionError("failed to write credential field", err)
	}
	return nil
}

func (s *SQLiteStore) ReplaceCredential(ctx context.Context, provider string, fields map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.ConnectionError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM credentials WHERE provider = ?", provider); err != nil {
		return errors.ConnectionError("failed to clear credential", err)
	}

	for field, value := range fields {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO credentials (provider, field, value) VALUES (?, ?, ?)",
			provider, field, value,
		); err != nil {
			return errors.ConnectionError("failed to write credential field", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.ConnectionError("failed to commit credential", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteCredential(ctx context.Context, provider string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE provider = ?", provider)
	if err != nil {
		return errors.ConnectionError("failed to delete credential", err)
	}
	return nil
}

func (s *SQLiteStore) Providers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT provider FROM credentials ORDER BY provider")
	if err != nil {
		return nil, errors.ConnectionError("failed to list providers", err)
	}
	defer rows.Close()

	var providers []string
	for rows.Next() {
		var provider string
		if err := rows.Scan(&provider); err != nil {
			return nil, errors.ConnectionError("failed to scan provider", err)
		}
		providers = append(providers, provider)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.ConnectionError("failed to iterate providers", err)
	}
	return providers, nil
}

func (s *SQLiteStore) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.ConnectionError("sqlite health check failed", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
