// Package history is the append-only chat log collaborator. The query
// core never depends on its availability: when no database is
// configured the no-op log is used, and append failures are logged by
// callers rather than failing the query.
package history

import (
	"context"
	"time"
)

// Message is one chat turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is the minimal collaborator interface.
type Log interface {
	Append(ctx context.Context, role, content string) error
	Read(ctx context.Context, limit int) ([]Message, error)
}

// NopLog discards appends and reads back nothing. Used when history
// persistence is not configured.
type NopLog struct{}

func (NopLog) Append(context.Context, string, string) error { return nil }
func (NopLog) Read(context.Context, int) ([]Message, error) { return nil, nil }
