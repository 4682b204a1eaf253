package database

import (
	"context"

	"github.com/bwithai/traffic-analysis/internal/models"
)

// WriteEvent record a processing event
func (d *Database) WriteEvent(ctx context.Context, event models.AnalysisEvent) error {
	_, err := d.querier(ctx).ExecContext(ctx,
		"INSERT INTO analysis_events (analysis_id, action, frame, timestamp) VALUES ($1, $2, $3, $4)",
		event.AnalysisID,
		event.Action,
		event.Frame,
		event.TimeStamp,
	)

	return err
}
