package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/bwithai/traffic-analysis/internal/analysis"
	"github.com/bwithai/traffic-analysis/internal/api"
	"github.com/bwithai/traffic-analysis/internal/config"
	"github.com/bwithai/traffic-analysis/internal/database"
	"github.com/bwithai/traffic-analysis/internal/janitor"
	"github.com/bwithai/traffic-analysis/internal/kafka"
	"github.com/bwithai/traffic-analysis/internal/outbox"
	"github.com/bwithai/traffic-analysis/internal/s3"
	"github.com/bwithai/traffic-analysis/internal/services/detection"
	"github.com/bwithai/traffic-analysis/internal/tracker"
)

func main() {
	log.Println("Main: init...")

	// Чтение конфига
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal(err)
	}

	// Инициализация базы данных
	db, err := database.New(cfg.Postgres.DSN)
	if err != nil {
		log.Fatal(err)
	}
	if err = db.Init(); err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Инициализация s3
	minioClient, err := s3.NewMinioClient(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey)
	if err != nil {
		log.Fatalf("Failed connect to MinIO: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Горутина для обработки аутбокса
	go outbox.StartOutboxDispatcher(ctx, db, cfg.Kafka.Brokers, cfg.Kafka.AnalysisTopic, 5*time.Second)

	// Горутина для обработки событий анализа
	consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.EventTopic)
	if err != nil {
		log.Fatalf("Failed to create Kafka consumer: %v", err)
	}
	defer consumer.Close()
	consumer.StartListening(ctx, db)

	// Горутина для добивания зависших анализов
	jan := janitor.New(db)
	go jan.Start(ctx)

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventTopic)
	if err != nil {
		log.Fatalf("Failed to create Kafka producer: %v", err)
	}
	defer producer.Close()

	detectClient := detection.NewClient(cfg.Detection.Endpoint)

	runner := analysis.New(
		db,
		minioClient,
		detectClient,
		producer,
		cfg.Minio.VideoBucket,
		cfg.Minio.ResultBucket,
		countingLineFromConfig(cfg.Analysis.CountingLine),
	)

	// Настройка роутера
	r := mux.NewRouter()
	r.Use(api.CORS)
	handlers := api.NewHandlers(db, minioClient, runner, cfg.Minio.VideoBucket, cfg.Minio.ResultBucket, cfg.Analysis.DemoSource)

	// Регистрация обработчиков
	r.HandleFunc("/api/v1/upload", handlers.UploadHandler).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/video/get-all-file-name", handlers.GetAllFileNamesHandler).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/load-traffic-analysis-system", handlers.LoadAnalysisHandler).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/analysis/{analysis_id}", handlers.GetAnalysisHandler).Methods("GET", "OPTIONS")

	// Запуск сервера
	log.Printf("Starting traffic analysis API server on %s", cfg.Server.Addr)
	log.Fatal(http.ListenAndServe(cfg.Server.Addr, r))
}

// countingLineFromConfig превращает [x1, y1, x2, y2] из конфига в линию подсчёта
func countingLineFromConfig(coords []float64) tracker.Line {
	if len(coords) != 4 {
		return tracker.Line{}
	}
	return tracker.Line{
		A: tracker.Point{X: coords[0], Y: coords[1]},
		B: tracker.Point{X: coords[2], Y: coords[3]},
	}
}
