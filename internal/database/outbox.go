package database

import (
	"context"
	"time"

	"github.com/bwithai/traffic-analysis/internal/models"
	"github.com/google/uuid"
)

// AddToOutbox adds a message to the transactional outbox
func (d *Database) AddToOutbox(ctx context.Context, analysisID string, action models.EventAction) error {
	_, err := d.querier(ctx).ExecContext(ctx,
		"INSERT INTO outbox (id, analysis_id, action, created_at) VALUES ($1, $2, $3, $4)",
		uuid.New().String(),
		analysisID,
		action,
		time.Now(),
	)

	return err
}

// GetPendingOutboxMessages retrieves unprocessed outbox messages
func (d *Database) GetPendingOutboxMessages(ctx context.Context, limit int) ([]models.OutboxMessage, error) {
	rows, err := d.querier(ctx).QueryContext(ctx, `
		SELECT
			o.id, o.analysis_id, o.action, o.created_at,
			a.source
		FROM outbox o
		JOIN analyses a ON o.analysis_id = a.id
		WHERE o.processed_at IS NULL
		ORDER BY o.created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.OutboxMessage
	for rows.Next() {
		var m models.OutboxMessage
		err := rows.Scan(
			&m.ID,
			&m.AnalysisID,
			&m.Action,
			&m.CreatedAt,
			&m.Source,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// MarkOutboxMessageAsProcessed marks an outbox message as processed
func (d *Database) MarkOutboxMessageAsProcessed(ctx context.Context, id string) error {
	_, err := d.querier(ctx).ExecContext(ctx,
		"UPDATE outbox SET processed_at = $1 WHERE id = $2",
		time.Now(),
		id,
	)
	return err
}
