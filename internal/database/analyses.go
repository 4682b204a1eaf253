package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwithai/traffic-analysis/internal/models"
)

// CreateAnalysis creates a new analysis record
func (d *Database) CreateAnalysis(ctx context.Context, analysis *models.Analysis) error {
	now := time.Now()
	analysis.CreatedAt = now
	analysis.UpdatedAt = now

	configJSON, err := json.Marshal(analysis.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis config: %w", err)
	}

	_, err = d.querier(ctx).ExecContext(ctx,
		"INSERT INTO analyses (id, source, config, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)",
		analysis.ID,
		analysis.Source,
		string(configJSON),
		analysis.Status,
		analysis.CreatedAt,
		analysis.UpdatedAt,
	)

	return err
}

// GetAnalysisByID retrieves an analysis by its ID
func (d *Database) GetAnalysisByID(ctx context.Context, analysisID string) (models.Analysis, error) {
	var (
		a          models.Analysis
		configJSON string
		countsJSON string
	)
	err := d.querier(ctx).QueryRowContext(ctx,
		"SELECT id, source, config, status, result_path, counts, created_at, updated_at FROM analyses WHERE id = $1",
		analysisID,
	).Scan(
		&a.ID,
		&a.Source,
		&configJSON,
		&a.Status,
		&a.ResultPath,
		&countsJSON,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return models.Analysis{}, err
	}

	if err := json.Unmarshal([]byte(configJSON), &a.Config); err != nil {
		return models.Analysis{}, fmt.Errorf("failed to unmarshal analysis config: %w", err)
	}
	if err := json.Unmarshal([]byte(countsJSON), &a.Counts); err != nil {
		return models.Analysis{}, fmt.Errorf("failed to unmarshal crossing counts: %w", err)
	}

	return a, nil
}

// UpdateAnalysisStatus обновляет статус анализа
func (d *Database) UpdateAnalysisStatus(ctx context.Context, analysisID string, status models.AnalysisStatus) error {
	_, err := d.querier(ctx).ExecContext(ctx,
		"UPDATE analyses SET status = $1, updated_at = $2 WHERE id = $3",
		status,
		time.Now(),
		analysisID,
	)

	return err
}

// FinishAnalysis записывает результат и счётчики, переводит анализ в done
func (d *Database) FinishAnalysis(ctx context.Context, analysisID, resultPath string, counts models.CrossingCounts) error {
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("failed to marshal crossing counts: %w", err)
	}

	_, err = d.querier(ctx).ExecContext(ctx,
		"UPDATE analyses SET status = $1, result_path = $2, counts = $3, updated_at = $4 WHERE id = $5",
		models.StatusDone,
		resultPath,
		string(countsJSON),
		time.Now(),
		analysisID,
	)

	return err
}

func (d *Database) UpdateAnalysisTimestamp(ctx context.Context, analysisID string) error {
	_, err := d.querier(ctx).ExecContext(ctx,
		"UPDATE analyses SET updated_at = $1 WHERE id = $2",
		time.Now(),
		analysisID,
	)

	return err
}

// FindStaleAnalyses ищет запущенные анализы без свежих событий
func (d *Database) FindStaleAnalyses(ctx context.Context, interval time.Duration) ([]models.Analysis, error) {
	rows, err := d.querier(ctx).QueryContext(ctx, `
		SELECT a.id, a.source, a.status, a.created_at, a.updated_at
		FROM analyses a
		LEFT JOIN (
			SELECT analysis_id, MAX(timestamp) as last_event
			FROM analysis_events
			GROUP BY analysis_id
		) e ON a.id = e.analysis_id
		WHERE a.status = $1
		AND (e.last_event IS NULL OR e.last_event < $2)
		AND a.updated_at < $2
	`, models.StatusRunning, time.Now().Add(-interval))

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []models.Analysis
	for rows.Next() {
		var a models.Analysis
		err := rows.Scan(
			&a.ID,
			&a.Source,
			&a.Status,
			&a.CreatedAt,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}

	return analyses, rows.Err()
}
