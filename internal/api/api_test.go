package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/bwithai/traffic-analysis/internal/analysis"
	"github.com/bwithai/traffic-analysis/internal/models"
)

type fakeDB struct {
	videos   map[string]models.VideoFile
	analyses map[string]*models.Analysis
	outbox   []models.EventAction
	finished bool
	counts   models.CrossingCounts
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		videos:   make(map[string]models.VideoFile),
		analyses: make(map[string]*models.Analysis),
	}
}

func (f *fakeDB) InsertVideo(_ context.Context, video *models.VideoFile) error {
	f.videos[video.Name] = *video
	return nil
}

func (f *fakeDB) GetVideo(_ context.Context, name string) (models.VideoFile, error) {
	v, ok := f.videos[name]
	if !ok {
		return models.VideoFile{}, sql.ErrNoRows
	}
	return v, nil
}

func (f *fakeDB) ListVideos(_ context.Context) ([]models.VideoFile, error) {
	var videos []models.VideoFile
	for _, v := range f.videos {
		videos = append(videos, v)
	}
	return videos, nil
}

func (f *fakeDB) CreateAnalysis(_ context.Context, a *models.Analysis) error {
	copied := *a
	f.analyses[a.ID] = &copied
	return nil
}

func (f *fakeDB) GetAnalysisByID(_ context.Context, analysisID string) (models.Analysis, error) {
	a, ok := f.analyses[analysisID]
	if !ok {
		return models.Analysis{}, sql.ErrNoRows
	}
	return *a, nil
}

func (f *fakeDB) UpdateAnalysisStatus(_ context.Context, analysisID string, status models.AnalysisStatus) error {
	if a, ok := f.analyses[analysisID]; ok {
		a.Status = status
	}
	return nil
}

func (f *fakeDB) FinishAnalysis(_ context.Context, analysisID, resultPath string, counts models.CrossingCounts) error {
	f.finished = true
	f.counts = counts
	if a, ok := f.analyses[analysisID]; ok {
		a.Status = models.StatusDone
		a.ResultPath = resultPath
	}
	return nil
}

func (f *fakeDB) AddToOutbox(_ context.Context, _ string, action models.EventAction) error {
	f.outbox = append(f.outbox, action)
	return nil
}

func (f *fakeDB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

type fakeStorage struct {
	uploaded map[string][]byte
	results  []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: make(map[string][]byte)}
}

func (f *fakeStorage) UploadFileStream(_ context.Context, bucketName, objectName string, reader io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	f.uploaded[bucketName+"/"+objectName] = data
	return "http://minio/" + bucketName + "/" + objectName, nil
}

func (f *fakeStorage) ListFileNames(_ context.Context, _ string) ([]string, error) {
	return f.results, nil
}

type fakeRunner struct {
	run func(ctx context.Context, a models.Analysis, live analysis.FrameSink) (string, models.CrossingCounts, error)
}

func (f *fakeRunner) Run(ctx context.Context, a models.Analysis, live analysis.FrameSink) (string, models.CrossingCounts, error) {
	return f.run(ctx, a, live)
}

func newTestRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(CORS)
	r.HandleFunc("/api/v1/upload", h.UploadHandler).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/video/get-all-file-name", h.GetAllFileNamesHandler).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/load-traffic-analysis-system", h.LoadAnalysisHandler).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/analysis/{analysis_id}", h.GetAnalysisHandler).Methods("GET", "OPTIONS")
	return r
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, writer.FormDataContentType()
}

func TestUploadHandler(t *testing.T) {
	db := newFakeDB()
	storage := newFakeStorage()
	h := NewHandlers(db, storage, &fakeRunner{}, "videos", "results", "traffic.mp4")

	body, contentType := multipartBody(t, "file", "cars.mp4", []byte("video-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["message"] != "cars.mp4 is Uploaded Successfully" {
		t.Fatalf("message = %q", resp["message"])
	}

	if string(storage.uploaded["videos/cars.mp4"]) != "video-bytes" {
		t.Fatal("video was not stored")
	}
	if _, ok := db.videos["cars.mp4"]; !ok {
		t.Fatal("video was not registered in catalog")
	}
}

func TestUploadHandlerNoFile(t *testing.T) {
	h := NewHandlers(newFakeDB(), newFakeStorage(), &fakeRunner{}, "videos", "results", "traffic.mp4")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetAllFileNamesHandler(t *testing.T) {
	db := newFakeDB()
	db.videos["traffic.mp4"] = models.VideoFile{Name: "traffic.mp4"}
	storage := newFakeStorage()
	storage.results = []string{"traffic_out.mp4"}
	h := NewHandlers(db, storage, &fakeRunner{}, "videos", "results", "traffic.mp4")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/video/get-all-file-name", nil)
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp["demo files"]) != 1 || resp["demo files"][0] != "upload_files/traffic.mp4" {
		t.Fatalf("demo files = %v", resp["demo files"])
	}
	if len(resp["detected videos"]) != 1 || resp["detected videos"][0] != "result/traffic_out.mp4" {
		t.Fatalf("detected videos = %v", resp["detected videos"])
	}
}

func TestLoadAnalysisSaved(t *testing.T) {
	db := newFakeDB()
	db.videos["traffic.mp4"] = models.VideoFile{Name: "traffic.mp4"}
	runner := &fakeRunner{
		run: func(_ context.Context, a models.Analysis, live analysis.FrameSink) (string, models.CrossingCounts, error) {
			if live != nil {
				t.Error("saved run should not receive a live sink")
			}
			if !a.Config.Save {
				t.Error("expected save=true config")
			}
			return "result/traffic_out.mp4", models.CrossingCounts{2: 14, 3: 3}, nil
		},
	}
	h := NewHandlers(db, newFakeStorage(), runner, "videos", "results", "traffic.mp4")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/load-traffic-analysis-system",
		strings.NewReader(`{"source": "traffic.mp4", "save": true}`))
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status     models.AnalysisStatus `json:"status"`
		ResultPath string                `json:"result_path"`
		Counts     models.CrossingCounts `json:"counts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != models.StatusDone {
		t.Fatalf("status = %q", resp.Status)
	}
	if resp.ResultPath != "result/traffic_out.mp4" {
		t.Fatalf("result_path = %q", resp.ResultPath)
	}
	if resp.Counts[2] != 14 {
		t.Fatalf("counts = %v", resp.Counts)
	}

	if !db.finished {
		t.Fatal("analysis was not finished in DB")
	}
	wantOutbox := []models.EventAction{models.EventCreated, models.EventFinished}
	if len(db.outbox) != 2 || db.outbox[0] != wantOutbox[0] || db.outbox[1] != wantOutbox[1] {
		t.Fatalf("outbox = %v", db.outbox)
	}
}

func TestLoadAnalysisLive(t *testing.T) {
	db := newFakeDB()
	db.videos["traffic.mp4"] = models.VideoFile{Name: "traffic.mp4"}
	runner := &fakeRunner{
		run: func(_ context.Context, _ models.Analysis, live analysis.FrameSink) (string, models.CrossingCounts, error) {
			if live == nil {
				t.Error("live run requires a sink")
				return "", nil, nil
			}
			for i := 0; i < 2; i++ {
				if err := live.WriteFrame([]byte("jpeg-frame")); err != nil {
					return "", nil, err
				}
			}
			return "", models.CrossingCounts{2: 1}, nil
		},
	}
	h := NewHandlers(db, newFakeStorage(), runner, "videos", "results", "traffic.mp4")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/load-traffic-analysis-system",
		strings.NewReader(`{"source": "traffic.mp4", "save": false}`))
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Fatalf("content-type = %q", ct)
	}
	body := rec.Body.String()
	if strings.Count(body, "--frame") != 2 {
		t.Fatalf("expected 2 frame boundaries, body = %q", body)
	}
	if !strings.Contains(body, "jpeg-frame") {
		t.Fatal("frame payload missing from stream")
	}
	if !db.finished {
		t.Fatal("analysis was not finished in DB")
	}
}

func TestLoadAnalysisLiveFailsBeforeFirstFrame(t *testing.T) {
	db := newFakeDB()
	db.videos["traffic.mp4"] = models.VideoFile{Name: "traffic.mp4"}
	runner := &fakeRunner{
		run: func(_ context.Context, _ models.Analysis, _ analysis.FrameSink) (string, models.CrossingCounts, error) {
			return "", nil, errors.New("source video is corrupt")
		},
	}
	h := NewHandlers(db, newFakeStorage(), runner, "videos", "results", "traffic.mp4")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/load-traffic-analysis-system",
		strings.NewReader(`{"source": "traffic.mp4", "save": false}`))
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	// Ни один кадр не ушёл, значит клиент должен увидеть ошибку, а не пустой поток
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, body = %q", rec.Code, rec.Body.String())
	}

	for _, a := range db.analyses {
		if a.Status != models.StatusFailed {
			t.Fatalf("analysis status = %q", a.Status)
		}
	}
	if n := len(db.outbox); n == 0 || db.outbox[n-1] != models.EventFailed {
		t.Fatalf("outbox = %v", db.outbox)
	}
}

func TestLoadAnalysisSavedFailureAfterDisconnect(t *testing.T) {
	db := newFakeDB()
	db.videos["traffic.mp4"] = models.VideoFile{Name: "traffic.mp4"}

	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{
		run: func(_ context.Context, _ models.Analysis, _ analysis.FrameSink) (string, models.CrossingCounts, error) {
			// Клиент отваливается во время обработки
			cancel()
			return "", nil, context.Canceled
		},
	}
	h := NewHandlers(db, newFakeStorage(), runner, "videos", "results", "traffic.mp4")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/load-traffic-analysis-system",
		strings.NewReader(`{"source": "traffic.mp4", "save": true}`)).WithContext(ctx)
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	// Запуск должен быть помечен failed даже с отменённым контекстом запроса
	for _, a := range db.analyses {
		if a.Status != models.StatusFailed {
			t.Fatalf("analysis status = %q", a.Status)
		}
	}
	if n := len(db.outbox); n == 0 || db.outbox[n-1] != models.EventFailed {
		t.Fatalf("outbox = %v", db.outbox)
	}
}

func TestLoadAnalysisUnknownSource(t *testing.T) {
	h := NewHandlers(newFakeDB(), newFakeStorage(), &fakeRunner{}, "videos", "results", "traffic.mp4")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/load-traffic-analysis-system",
		strings.NewReader(`{"source": "missing.mp4"}`))
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLoadAnalysisInvalidConfig(t *testing.T) {
	db := newFakeDB()
	db.videos["traffic.mp4"] = models.VideoFile{Name: "traffic.mp4"}
	h := NewHandlers(db, newFakeStorage(), &fakeRunner{}, "videos", "results", "traffic.mp4")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/load-traffic-analysis-system",
		strings.NewReader(`{"source": "traffic.mp4", "id_size": -2}`))
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetAnalysisHandler(t *testing.T) {
	db := newFakeDB()
	db.analyses["a1"] = &models.Analysis{
		ID:     "a1",
		Source: "traffic.mp4",
		Status: models.StatusDone,
		Counts: models.CrossingCounts{2: 7},
	}
	h := NewHandlers(db, newFakeStorage(), &fakeRunner{}, "videos", "results", "traffic.mp4")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/a1", nil)
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp models.Analysis
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != models.StatusDone || resp.Counts[2] != 7 {
		t.Fatalf("analysis = %+v", resp)
	}
}

func TestGetAnalysisHandlerNotFound(t *testing.T) {
	h := NewHandlers(newFakeDB(), newFakeStorage(), &fakeRunner{}, "videos", "results", "traffic.mp4")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/missing", nil)
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := NewHandlers(newFakeDB(), newFakeStorage(), &fakeRunner{}, "videos", "results", "traffic.mp4")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/upload", nil)
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}
