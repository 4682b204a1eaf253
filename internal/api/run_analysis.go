package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/bwithai/traffic-analysis/internal/models"
)

// LoadAnalysisHandler обработчик запуска анализа трафика.
// save=true: обрабатывает видео целиком и возвращает ссылку на результат.
// save=false: стримит отрендеренные кадры как MJPEG со скоростью обработки.
func (h *Handlers) LoadAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	req := models.AnalysisRequest{AnalysisConfig: models.DefaultAnalysisConfig()}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	source := req.Source
	if source == "" {
		source = h.demoSource
	}

	ctx := r.Context()
	if _, err := h.db.GetVideo(ctx, source); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, fmt.Sprintf("Source video %s not found", source), http.StatusNotFound)
		} else {
			http.Error(w, "Database error", http.StatusInternalServerError)
		}
		return
	}

	a := models.Analysis{
		ID:     uuid.New().String(),
		Source: source,
		Config: req.AnalysisConfig,
		Status: models.StatusPending,
	}

	if err := h.db.InTx(ctx, func(ctx context.Context) error {
		if err := h.db.CreateAnalysis(ctx, &a); err != nil {
			return fmt.Errorf("failed to insert analysis: %w", err)
		}

		if err := h.db.AddToOutbox(ctx, a.ID, models.EventCreated); err != nil {
			return fmt.Errorf("failed to add to outbox: %w", err)
		}

		return nil
	}); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create analysis: %v", err), http.StatusInternalServerError)
		return
	}

	if err := h.db.UpdateAnalysisStatus(ctx, a.ID, models.StatusRunning); err != nil {
		log.Printf("Analysis %s: failed to mark running: %v", a.ID, err)
	}

	if a.Config.Save {
		h.runSaved(ctx, w, a)
		return
	}
	h.runLive(ctx, w, a)
}

// runSaved обрабатывает видео целиком и отвечает ссылкой на сохранённый результат
func (h *Handlers) runSaved(ctx context.Context, w http.ResponseWriter, a models.Analysis) {
	resultPath, counts, err := h.runner.Run(ctx, a, nil)
	if err != nil {
		h.failAnalysis(context.WithoutCancel(ctx), a.ID, err)
		http.Error(w, fmt.Sprintf("Analysis failed: %v", err), http.StatusInternalServerError)
		return
	}

	if err := h.db.InTx(ctx, func(ctx context.Context) error {
		if err := h.db.FinishAnalysis(ctx, a.ID, resultPath, counts); err != nil {
			return err
		}
		return h.db.AddToOutbox(ctx, a.ID, models.EventFinished)
	}); err != nil {
		http.Error(w, fmt.Sprintf("Failed to finish analysis: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":          a.ID,
		"status":      models.StatusDone,
		"result_path": resultPath,
		"counts":      counts,
	})
}

// runLive стримит кадры клиенту; после обрыва соединения ответ уже не изменить
func (h *Handlers) runLive(ctx context.Context, w http.ResponseWriter, a models.Analysis) {
	sink, err := newMJPEGSink(w)
	if err != nil {
		h.failAnalysis(context.WithoutCancel(ctx), a.ID, err)
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	_, counts, err := h.runner.Run(ctx, a, sink)
	if err != nil {
		log.Printf("Analysis %s: live run stopped: %v", a.ID, err)
		h.failAnalysis(context.WithoutCancel(ctx), a.ID, err)
		// Пока не ушёл ни один кадр, статус ответа ещё можно выставить
		if !sink.wrote {
			http.Error(w, fmt.Sprintf("Analysis failed: %v", err), http.StatusInternalServerError)
		}
		return
	}

	if err := h.db.InTx(context.WithoutCancel(ctx), func(ctx context.Context) error {
		if err := h.db.FinishAnalysis(ctx, a.ID, "", counts); err != nil {
			return err
		}
		return h.db.AddToOutbox(ctx, a.ID, models.EventFinished)
	}); err != nil {
		log.Printf("Analysis %s: failed to finish: %v", a.ID, err)
	}
}

func (h *Handlers) failAnalysis(ctx context.Context, analysisID string, cause error) {
	log.Printf("Analysis %s failed: %v", analysisID, cause)

	if err := h.db.InTx(ctx, func(ctx context.Context) error {
		if err := h.db.UpdateAnalysisStatus(ctx, analysisID, models.StatusFailed); err != nil {
			return err
		}
		return h.db.AddToOutbox(ctx, analysisID, models.EventFailed)
	}); err != nil {
		log.Printf("Analysis %s: failed to mark failed: %v", analysisID, err)
	}
}
