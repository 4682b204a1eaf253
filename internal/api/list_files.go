package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/samber/lo"

	"github.com/bwithai/traffic-analysis/internal/models"
)

// GetAllFileNamesHandler обработчик для получения списков загруженных и обработанных файлов
func (h *Handlers) GetAllFileNamesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videos, err := h.db.ListVideos(ctx)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	results, err := h.s3.ListFileNames(ctx, h.resultBucket)
	if err != nil {
		http.Error(w, "Storage error", http.StatusInternalServerError)
		return
	}

	demo := lo.Map(videos, func(v models.VideoFile, _ int) string {
		return fmt.Sprintf("upload_files/%s", v.Name)
	})
	detected := lo.Map(results, func(name string, _ int) string {
		return fmt.Sprintf("result/%s", name)
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{
		"demo files":      demo,
		"detected videos": detected,
	})
}
