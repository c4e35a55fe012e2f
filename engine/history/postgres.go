package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresLog persists chat turns to a chat_history table.
type PostgresLog struct {
	db *sql.DB
}

// OpenPostgres connects to the database and ensures the table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresLog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS chat_history (
			id SERIAL PRIMARY KEY,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			role TEXT NOT NULL,
			content TEXT NOT NULL
		)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ensure schema: %w", err)
	}
	return &PostgresLog{db: db}, nil
}

// Close releases the connection pool.
func (p *PostgresLog) Close() error { return p.db.Close() }

// Append implements Log.
func (p *PostgresLog) Append(ctx context.Context, role, content string) error {
	_, err := p.db.ExecContext(ctx,
		"INSERT INTO chat_history (role, content) VALUES ($1, $2)", role, content)
	if err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

// Read implements Log, returning up to limit messages ordered by time.
func (p *PostgresLog) Read(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := p.db.QueryContext(ctx,
		"SELECT role, content, timestamp FROM chat_history ORDER BY timestamp ASC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("history: read: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
