package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"workspace-search/internal/common/errors"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string
}

// DSN builds a connection string for the pgx stdlib driver.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode)
}

// PostgresStore persists credentials in PostgreSQL for deployments that
// already run one.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to PostgreSQL and ensures the credentials
// table exists.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, errors.ConnectionError("failed to open postgres connection", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.ConnectionError("failed to ping postgres", err)
	}

	store := &PostgresStore{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS credentials (
		provider   TEXT NOT NULL,
		field      TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ DEFAULT NOW(),
		PRIMARY KEY (provider, field)
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return errors.ConnectionError("failed to create credentials table", err)
	}
	return nil
}

func (s *PostgresStore) GetField(ctx context.Context, provider, field string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM credentials WHERE provider = $1 AND field = $2",
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
func (s *PostgresStore) GetAll(ctx context.Context, provider string) (map[string]string, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT field, value FROM credentials WHERE provider = $1", provider)
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

func (s *PostgresStore) SetField(ctx context.Context, provider, field, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (provider, field, value, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (provider, field) DO UPDATE SET
		   value = EXCLUDED.value,
		   updated_at = NOW()`,
		provider, field, value,
	)
	if err != nil {
		return errors.ConnectionError("failed to write credential field", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceCredential(ctx context.Context, provider string, fields map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.ConnectionError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM credentials WHERE provider = $1", provider); err != nil {
		return errors.ConnectionError("failed to clear credential", err)
	}

	for field, value := range fields {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO credentials (provider, field, value) VALUES ($1, $2, $3)",
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

func (s *PostgresStore) DeleteCredential(ctx context.Context, provider string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE provider = $1", provider)
	if err != nil {
		return errors.ConnectionError("failed to delete credential", err)
	}
	return nil
}

func (s *PostgresStore) Providers(ctx context.Context) ([]string, error) {
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

func (s *PostgresStore) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.ConnectionError("postgres health check failed", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
