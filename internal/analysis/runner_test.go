package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/bwithai/traffic-analysis/internal/models"
)

type flakyDetector struct {
	failures int
	calls    int
}

func (d *flakyDetector) DetectFrame(_ context.Context, _ []byte) ([]models.Detection, error) {
	d.calls++
	if d.calls <= d.failures {
		return nil, errors.New("detector unavailable")
	}
	return []models.Detection{{Class: 2, Score: 0.9, Box: []float64{0, 0, 10, 10}}}, nil
}

func TestDetectWithRetriesRecovers(t *testing.T) {
	detector := &flakyDetector{failures: 3}
	r := &Runner{detection: detector}

	detections, err := r.detectWithRetries(context.Background(), "a1", []byte("frame"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(detections) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(detections))
	}
	if detector.calls != 4 {
		t.Fatalf("expected 4 calls, got %d", detector.calls)
	}
}

func TestDetectWithRetriesGivesUp(t *testing.T) {
	detector := &flakyDetector{failures: retries + 1}
	r := &Runner{detection: detector}

	if _, err := r.detectWithRetries(context.Background(), "a1", []byte("frame"), 7); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if detector.calls != retries {
		t.Fatalf("expected %d calls, got %d", retries, detector.calls)
	}
}

func TestDetectWithRetriesStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Runner{detection: &flakyDetector{}}
	if _, err := r.detectWithRetries(ctx, "a1", []byte("frame"), 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestResultName(t *testing.T) {
	cases := map[string]string{
		"traffic.mp4":      "traffic_out.mp4",
		"cars.avi":         "cars_out.mp4",
		"nested/video.mp4": "video_out.mp4",
		"noext":            "noext_out.mp4",
	}

	for in, want := range cases {
		if got := resultName(in); got != want {
			t.Errorf("resultName(%q) = %q, want %q", in, got, want)
		}
	}
}
