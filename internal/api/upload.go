package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bwithai/traffic-analysis/internal/models"
)

// UploadHandler принимает видеофайл и сохраняет его в хранилище
func (h *Handlers) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(50 << 20); err != nil {
		http.Error(w, "Could not parse multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No upload file sent", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size == 0 {
		http.Error(w, "No upload file sent", http.StatusBadRequest)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}

	ctx := r.Context()
	if _, err := h.s3.UploadFileStream(ctx, h.videoBucket, header.Filename, file, header.Size, contentType); err != nil {
		http.Error(w, fmt.Sprintf("Failed to store video: %v", err), http.StatusInternalServerError)
		return
	}

	if err := h.db.InsertVideo(ctx, &models.VideoFile{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: contentType,
	}); err != nil {
		http.Error(w, fmt.Sprintf("Failed to register video: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"message": fmt.Sprintf("%s is Uploaded Successfully", header.Filename),
	})
}
