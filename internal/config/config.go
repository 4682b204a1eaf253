package config

import (
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config структура конфига
type Config struct {
	Server struct {
		Addr string `yaml:"addr" env:"SERVER_ADDR"`
	} `yaml:"server"`

	Postgres struct {
		DSN string `yaml:"dsn" env:"DATABASE_DSN"`
	} `yaml:"postgres"`

	Minio struct {
		Endpoint     string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
		AccessKey    string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
		SecretKey    string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
		VideoBucket  string `yaml:"video_bucket" env:"MINIO_VIDEO_BUCKET"`
		ResultBucket string `yaml:"result_bucket" env:"MINIO_RESULT_BUCKET"`
	} `yaml:"minio"`

	Kafka struct {
		Brokers       []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
		GroupID       string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
		AnalysisTopic string   `yaml:"analysis_topic" env:"ANALYSIS_TOPIC"`
		EventTopic    string   `yaml:"event_topic" env:"EVENT_TOPIC"`
	} `yaml:"kafka"`

	Detection struct {
		Endpoint string `yaml:"endpoint" env:"DETECTION_ENDPOINT"`
	} `yaml:"detection"`

	Analysis struct {
		DemoSource string `yaml:"demo_source" env:"DEMO_SOURCE"`
		// Линия подсчёта [x1, y1, x2, y2]; пустая - горизонтальная линия по центру кадра
		CountingLine []float64 `yaml:"counting_line" env:"COUNTING_LINE" envSeparator:","`
	} `yaml:"analysis"`
}

func LoadConfig(filename string) (*Config, error) {
	cfg := &Config{}

	if filename == "" {
		filename = "local.yaml"
	}
	path := "internal/config/" + filename

	// Читаем YAML
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Парсим YAML в структуру
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Парсим переменные окружения с приоритетом
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
