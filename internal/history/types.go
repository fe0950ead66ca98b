package history

import (
	"context"
	"time"
)

// Record stores the outcome of one completed generation step. This is audit
// data, not conversation state: sessions stay in memory only.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Workflow  string    `json:"workflow"`
	Topic     string    `json:"topic"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// Outcomes for Record.Outcome.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Store persists and retrieves generation records.
type Store interface {
	SaveRecord(ctx context.Context, record Record) error
	Recent(ctx context.Context, userID string, limit int) ([]Record, error)
	Close() error
}
