package janitor

import (
	"context"
	"log"
	"time"

	"github.com/bwithai/traffic-analysis/internal/database"
	"github.com/bwithai/traffic-analysis/internal/models"
)

const checkInterval = 30 * time.Second

// Janitor переводит зависшие анализы в failed
type Janitor struct {
	db *database.Database
}

func New(db *database.Database) *Janitor {
	return &Janitor{
		db: db,
	}
}

func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Janitor stopped")
			return
		case <-ticker.C:
			j.checkAnalyses(ctx)
		}
	}
}

func (j *Janitor) checkAnalyses(ctx context.Context) {
	analyses, err := j.db.FindStaleAnalyses(ctx, checkInterval)
	if err != nil {
		log.Printf("Failed to find stale analyses: %v", err)
		return
	}

	for _, analysis := range analyses {
		log.Printf("Found stale analysis %s, marking as failed", analysis.ID)

		if err := j.db.InTx(ctx, func(ctx context.Context) error {
			if err := j.db.UpdateAnalysisStatus(ctx, analysis.ID, models.StatusFailed); err != nil {
				return err
			}
			return j.db.AddToOutbox(ctx, analysis.ID, models.EventFailed)
		}); err != nil {
			log.Printf("Failed to mark analysis %s as failed: %v", analysis.ID, err)
		}
	}
}
