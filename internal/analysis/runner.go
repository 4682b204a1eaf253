package analysis

import (
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/bwithai/traffic-analysis/internal/models"
	"github.com/bwithai/traffic-analysis/internal/render"
	"github.com/bwithai/traffic-analysis/internal/tracker"
	"github.com/bwithai/traffic-analysis/internal/video"
)

const (
	retries           = 5
	heartbeatInterval = 5 * time.Second
	// Живой поток отдаём уменьшенным, чтобы не раздувать канал
	liveDownsample = 2
)

// FrameSink принимает отрендеренные JPEG-кадры
type FrameSink interface {
	WriteFrame(jpegData []byte) error
}

type objectStorage interface {
	DownloadToTemp(ctx context.Context, bucketName, objectName string) (string, error)
	UploadFileStream(ctx context.Context, bucketName, objectName string, reader io.Reader, size int64, contentType string) (string, error)
}

type detector interface {
	DetectFrame(ctx context.Context, imageData []byte) ([]models.Detection, error)
}

type eventProducer interface {
	SendEvent(event models.AnalysisEvent) error
}

type store interface {
	UpdateAnalysisTimestamp(ctx context.Context, analysisID string) error
}

// Runner прогоняет видео через пайплайн детекции, трекинга и отрисовки
type Runner struct {
	db           store
	s3           objectStorage
	detection    detector
	producer     eventProducer
	videoBucket  string
	resultBucket string
	countingLine tracker.Line
}

func New(db store, s3 objectStorage, detection detector, producer eventProducer, videoBucket, resultBucket string, countingLine tracker.Line) *Runner {
	return &Runner{
		db:           db,
		s3:           s3,
		detection:    detection,
		producer:     producer,
		videoBucket:  videoBucket,
		resultBucket: resultBucket,
		countingLine: countingLine,
	}
}

// Run обрабатывает анализ: скачивает видео, прогоняет кадры, отдаёт их в sink.
// Для save=true пишет MP4, загружает его в бакет результатов и возвращает путь результата.
func (r *Runner) Run(ctx context.Context, a models.Analysis, live FrameSink) (string, models.CrossingCounts, error) {
	log.Printf("Analysis %s: downloading source %s", a.ID, a.Source)

	srcPath, err := r.s3.DownloadToTemp(ctx, r.videoBucket, a.Source)
	if err != nil {
		return "", nil, fmt.Errorf("failed to download source video: %w", err)
	}
	defer os.Remove(srcPath)

	framesDir, err := os.MkdirTemp("", "frames-"+a.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create frames directory: %w", err)
	}
	defer os.RemoveAll(framesDir)

	frames, err := video.ExtractFrames(ctx, srcPath, framesDir)
	if err != nil {
		return "", nil, fmt.Errorf("failed to extract frames: %w", err)
	}
	log.Printf("Analysis %s: extracted %d frames", a.ID, len(frames))

	sink := live
	var writer *video.MP4Writer
	var outPath string
	if a.Config.Save {
		outPath = filepath.Join(os.TempDir(), resultName(a.Source))
		fps := video.ProbeFPS(ctx, srcPath)
		writer, err = video.NewMP4Writer(ctx, outPath, fps)
		if err != nil {
			return "", nil, err
		}
		defer os.Remove(outPath)
		sink = writer
	}
	if sink == nil {
		return "", nil, fmt.Errorf("no frame sink for live analysis")
	}

	line, err := r.resolveCountingLine(frames[0])
	if err != nil {
		return "", nil, err
	}

	opts := tracker.DefaultOptions()
	opts.PathHistory = a.Config.PathHistory
	opts.TrackBoxes = a.Config.TrackBoxes
	trk := tracker.New(opts)
	counter := tracker.NewLineCounter(line)

	overlay := render.Overlay{
		DrawPaths:   a.Config.DrawPaths,
		DrawObjects: a.Config.DrawObjects,
		TrackBoxes:  a.Config.TrackBoxes,
		IDSize:      a.Config.IDSize,
	}

	timer := time.NewTicker(heartbeatInterval)
	defer timer.Stop()

	for idx, framePath := range frames {
		frameData, err := os.ReadFile(framePath)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read frame %d: %w", idx, err)
		}

		detections, err := r.detectWithRetries(ctx, a.ID, frameData, idx)
		if err != nil {
			return "", nil, err
		}

		detections = lo.Filter(detections, func(d models.Detection, _ int) bool {
			return len(a.Config.Classes) == 0 || lo.Contains(a.Config.Classes, d.Class)
		})

		objects := trk.Update(detections)
		counter.Update(objects)

		rendered, err := render.Frame(frameData, objects, line, overlay)
		if err != nil {
			return "", nil, err
		}

		if !a.Config.Save {
			rendered, err = render.Downsample(rendered, liveDownsample)
			if err != nil {
				return "", nil, err
			}
		}

		if err := sink.WriteFrame(rendered); err != nil {
			return "", nil, fmt.Errorf("failed to write frame %d: %w", idx, err)
		}

		select {
		case <-ctx.Done():
			return "", counter.Counts(), ctx.Err()
		case <-timer.C:
			if err := r.db.UpdateAnalysisTimestamp(ctx, a.ID); err != nil {
				log.Printf("Analysis %s error updating timestamp: %v", a.ID, err)
			}

			if err := r.producer.SendEvent(models.AnalysisEvent{
				AnalysisID: a.ID,
				Action:     models.EventProgress,
				Frame:      int64(idx),
				TimeStamp:  time.Now().UTC(),
			}); err != nil {
				log.Printf("Analysis %s error sending progress event: %v", a.ID, err)
			}
		default:
		}
	}

	counts := counter.Counts()

	var resultPath string
	if a.Config.Save {
		if err := writer.Close(); err != nil {
			return "", counts, err
		}

		resultPath, err = r.uploadResult(ctx, outPath, resultName(a.Source))
		if err != nil {
			return "", counts, err
		}
	}

	if err := r.producer.SendEvent(models.AnalysisEvent{
		AnalysisID: a.ID,
		Action:     models.EventFinished,
		Frame:      int64(len(frames)),
		Counts:     counts,
		TimeStamp:  time.Now().UTC(),
	}); err != nil {
		log.Printf("Analysis %s error sending finished event: %v", a.ID, err)
	}
	log.Printf("Analysis %s: finished, %d frames, counts %v", a.ID, len(frames), counts)

	return resultPath, counts, nil
}

// detectWithRetries опрашивает сервис детекции с повторами, как и положено внешнему сервису
func (r *Runner) detectWithRetries(ctx context.Context, analysisID string, frame []byte, idx int) ([]models.Detection, error) {
	var lastErr error

	for attempt := 0; attempt < retries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		detections, err := r.detection.DetectFrame(ctx, frame)
		if err != nil {
			lastErr = err
			log.Printf("Analysis %s: detection error on frame %d: %v", analysisID, idx, err)
			continue
		}

		return detections, nil
	}

	return nil, fmt.Errorf("failed to process frame %d after %d attempts: %w", idx, retries, lastErr)
}

// resolveCountingLine возвращает настроенную линию или горизонтальную по центру кадра
func (r *Runner) resolveCountingLine(firstFrame string) (tracker.Line, error) {
	if !r.countingLine.IsZero() {
		return r.countingLine, nil
	}

	f, err := os.Open(firstFrame)
	if err != nil {
		return tracker.Line{}, fmt.Errorf("failed to open first frame: %w", err)
	}
	defer f.Close()

	cfg, err := jpeg.DecodeConfig(f)
	if err != nil {
		return tracker.Line{}, fmt.Errorf("failed to decode first frame: %w", err)
	}

	mid := float64(cfg.Height) / 2
	return tracker.Line{
		A: tracker.Point{X: 0, Y: mid},
		B: tracker.Point{X: float64(cfg.Width), Y: mid},
	}, nil
}

func (r *Runner) uploadResult(ctx context.Context, outPath, name string) (string, error) {
	f, err := os.Open(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to open result video: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat result video: %w", err)
	}

	if _, err := r.s3.UploadFileStream(ctx, r.resultBucket, name, f, info.Size(), "video/mp4"); err != nil {
		return "", fmt.Errorf("failed to upload result video: %w", err)
	}

	return fmt.Sprintf("result/%s", name), nil
}

// resultName имя итогового видео: traffic.mp4 -> traffic_out.mp4
func resultName(source string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + "_out.mp4"
}
