package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
)

// GetAnalysisHandler обработчик для получения статуса и счётчиков анализа
func (h *Handlers) GetAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	analysisID := vars["analysis_id"]

	analysis, err := h.db.GetAnalysisByID(r.Context(), analysisID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Analysis not found", http.StatusNotFound)
		} else {
			http.Error(w, "Database error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(analysis)
}
