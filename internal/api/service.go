package api

import (
	"context"
	"io"

	"github.com/bwithai/traffic-analysis/internal/analysis"
	"github.com/bwithai/traffic-analysis/internal/models"
)

type Database interface {
	InsertVideo(ctx context.Context, video *models.VideoFile) error
	GetVideo(ctx context.Context, name string) (models.VideoFile, error)
	ListVideos(ctx context.Context) ([]models.VideoFile, error)
	CreateAnalysis(ctx context.Context, a *models.Analysis) error
	GetAnalysisByID(ctx context.Context, analysisID string) (models.Analysis, error)
	UpdateAnalysisStatus(ctx context.Context, analysisID string, status models.AnalysisStatus) error
	FinishAnalysis(ctx context.Context, analysisID, resultPath string, counts models.CrossingCounts) error
	AddToOutbox(ctx context.Context, analysisID string, action models.EventAction) error
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ObjectStorage interface {
	UploadFileStream(ctx context.Context, bucketName, objectName string, reader io.Reader, size int64, contentType string) (string, error)
	ListFileNames(ctx context.Context, bucketName string) ([]string, error)
}

type AnalysisRunner interface {
	Run(ctx context.Context, a models.Analysis, live analysis.FrameSink) (string, models.CrossingCounts, error)
}

type Handlers struct {
	db     Database
	s3     ObjectStorage
	runner AnalysisRunner

	videoBucket  string
	resultBucket string
	demoSource   string
}

func NewHandlers(db Database, s3 ObjectStorage, runner AnalysisRunner, videoBucket, resultBucket, demoSource string) *Handlers {
	return &Handlers{
		db:           db,
		s3:           s3,
		runner:       runner,
		videoBucket:  videoBucket,
		resultBucket: resultBucket,
		demoSource:   demoSource,
	}
}
