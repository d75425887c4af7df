package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mailflow/mailflow/internal/database"
	"github.com/mailflow/mailflow/internal/model"
)

// DeliveryLogRepository is the durable, append-only record of delivery
// attempts. Entries are never updated or deleted.
type DeliveryLogRepository struct {
	db *database.Postgres
}

// NewDeliveryLogRepository creates a new DeliveryLogRepository
func NewDeliveryLogRepository(db *database.Postgres) *DeliveryLogRepository {
	return &DeliveryLogRepository{db: db}
}

// Append inserts one delivery log entry
func (r *DeliveryLogRepository) Append(ctx context.Context, entry *model.LogEntry) error {
	query := `
		INSERT INTO delivery_logs (id, user_id, email, name, subject, body_preview, status, error, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Email,
		entry.Name,
		entry.Subject,
		entry.BodyPreview,
		entry.Status,
		nullIfEmpty(entry.Error),
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append delivery log: %w", err)
	}
	return nil
}

// ListByUser returns a user's delivery log entries, newest first
func (r *DeliveryLogRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, user_id, email, name, subject, body_preview, status, error, attempted_at
		FROM delivery_logs
		WHERE user_id = $1
		ORDER BY attempted_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery logs: %w", err)
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var entry model.LogEntry
		var errText sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Email,
			&entry.Name,
			&entry.Subject,
			&entry.BodyPreview,
			&entry.Status,
			&errText,
			&entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan delivery log: %w", err)
		}
		entry.Error = errText.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate delivery logs: %w", err)
	}
	return entries, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
