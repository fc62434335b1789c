package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

type dialect struct {
	driver string
	schema string
	get    string
	put    string
}

var (
	postgresDialect = dialect{
		driver: "pgx",
		schema: `CREATE TABLE IF NOT EXISTS documents (
            name VARCHAR(64) PRIMARY KEY,
            body JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`,
		get: "SELECT body FROM documents WHERE name = $1",
		put: `INSERT INTO documents (name, body, updated_at) VALUES ($1, $2, $3)
            ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
	}

	sqliteDialect = dialect{
		driver: "sqlite3",
		schema: `CREATE TABLE IF NOT EXISTS documents (
            name TEXT PRIMARY KEY,
            body TEXT NOT NULL,
            updated_at TEXT NOT NULL
        )`,
		get: "SELECT body FROM documents WHERE name = ?",
		put: `INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
            ON CONFLICT (name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
	}
)

// SQL keeps documents as rows of a single "documents" table.
type SQL struct {
	Conn    *sql.DB
	dialect dialect
}

// OpenPostgres connects through the pgx stdlib driver and verifies the
// connection before returning.
func OpenPostgres(ctx context.Context, dsn string) (*SQL, error) {
	conn, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)
	return &SQL{Conn: conn, dialect: postgresDialect}, nil
}

// OpenSQLite opens (or creates) the sqlite database file at path.
func OpenSQLite(path string) (*SQL, error) {
	conn, err := sql.Open(sqliteDialect.driver, path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	conn.SetMaxOpenConns(1)
	return &SQL{Conn: conn, dialect: sqliteDialect}, nil
}

// AutoMigrate creates the documents table when missing.
func (s *SQL) AutoMigrate(ctx context.Context) error {
	if _, err := s.Conn.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Get implements Backend.
func (s *SQL) Get(ctx context.Context, name string) ([]byte, error) {
	var body string
	err := s.Conn.QueryRowContext(ctx, s.dialect.get, name).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(body), nil
}

// Put implements Backend.
func (s *SQL) Put(ctx context.Context, name string, body []byte) error {
	_, err := s.Conn.ExecContext(ctx, s.dialect.put, name, string(body), time.Now().UTC())
	return err
}

// Close implements Backend.
func (s *SQL) Close() error {
	return s.Conn.Close()
}
