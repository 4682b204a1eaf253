package models

import "time"

// AnalysisStatus статус обработки анализа
type AnalysisStatus string

// Константы статусов
const (
	StatusPending AnalysisStatus = "pending"
	StatusRunning AnalysisStatus = "running"
	StatusDone    AnalysisStatus = "done"
	StatusFailed  AnalysisStatus = "failed"
)

type EventAction string

const (
	EventCreated  EventAction = "created"
	EventProgress EventAction = "progress"
	EventFinished EventAction = "finished"
	EventFailed   EventAction = "failed"
)

// AnalysisConfig Конфигурация одного запуска анализа
type AnalysisConfig struct {
	DrawPaths   bool  `json:"draw_paths"`
	IDSize      int   `json:"id_size"`
	PathHistory int   `json:"path_history"`
	DrawObjects bool  `json:"draw_objects"`
	TrackBoxes  bool  `json:"track_boxes"`
	Save        bool  `json:"save"`
	Classes     []int `json:"classes"` // coco data set 2:car, 3:bike
}

// DefaultAnalysisConfig возвращает конфигурацию по умолчанию
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		DrawPaths:   true,
		IDSize:      1,
		PathHistory: 70,
		DrawObjects: true,
		TrackBoxes:  true,
		Save:        true,
		Classes:     []int{2, 3},
	}
}

// AnalysisRequest тело запроса load-traffic-analysis-system
type AnalysisRequest struct {
	Source string `json:"source"`
	AnalysisConfig
}

// Detection представляет структуру одного обнаруженного объекта
type Detection struct {
	Class int       `json:"class"`
	Score float64   `json:"score"`
	Box   []float64 `json:"box"` // [x1, y1, x2, y2]
}

// Center возвращает центр bounding box
func (d Detection) Center() (float64, float64) {
	if len(d.Box) < 4 {
		return 0, 0
	}
	return (d.Box[0] + d.Box[2]) / 2, (d.Box[1] + d.Box[3]) / 2
}

// CrossingCounts количество пересечений линии подсчёта по классам
type CrossingCounts map[int]int

// Analysis Структура для запусков анализа
type Analysis struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Config     AnalysisConfig `json:"config"`
	Status     AnalysisStatus `json:"status"`
	ResultPath string         `json:"result_path,omitempty"`
	Counts     CrossingCounts `json:"counts,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// AnalysisEvent событие хода обработки (heartbeat)
type AnalysisEvent struct {
	AnalysisID string         `json:"AnalysisID"`
	Action     EventAction    `json:"Action"`
	Frame      int64          `json:"Frame"`
	Counts     CrossingCounts `json:"Counts,omitempty"`
	TimeStamp  time.Time      `json:"TimeStamp"`
}

// OutboxMessage Структура для транзакционного outbox
type OutboxMessage struct {
	ID          string      `json:"id"`
	AnalysisID  string      `json:"analysis_id"`
	Action      EventAction `json:"action"`
	CreatedAt   time.Time   `json:"created_at"`
	ProcessedAt *time.Time  `json:"processed_at"`
	Source      string      `json:"source"`
}

// VideoFile запись каталога загруженных видео
type VideoFile struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
