package render

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/bwithai/traffic-analysis/internal/tracker"
)

func testFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testObjects() []*tracker.Object {
	return []*tracker.Object{
		{
			ID:     1,
			Class:  2,
			Center: tracker.Point{X: 160, Y: 120},
			Box:    []float64{120, 80, 200, 160},
			Path: []tracker.Point{
				{X: 100, Y: 100},
				{X: 130, Y: 110},
				{X: 160, Y: 120},
			},
		},
	}
}

func TestFrameProducesValidJPEG(t *testing.T) {
	frame := testFrame(t, 320, 240)
	line := tracker.Line{A: tracker.Point{X: 0, Y: 120}, B: tracker.Point{X: 320, Y: 120}}

	out, err := Frame(frame, testObjects(), line, Overlay{
		DrawPaths:   true,
		DrawObjects: true,
		TrackBoxes:  true,
		IDSize:      2,
	})
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a valid JPEG: %v", err)
	}
	if cfg.Width != 320 || cfg.Height != 240 {
		t.Fatalf("output dimensions = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestFrameDrawsOverlays(t *testing.T) {
	frame := testFrame(t, 320, 240)

	out, err := Frame(frame, testObjects(), tracker.Line{}, Overlay{TrackBoxes: true})
	if err != nil {
		t.Fatal(err)
	}

	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}

	// Верхняя грань рамки должна заметно отличаться от чёрного фона
	r, g, b, _ := img.At(160, 80).RGBA()
	if (r>>8)+(g>>8)+(b>>8) < 100 {
		t.Fatalf("expected box edge at (160, 80), got rgb(%d, %d, %d)", r>>8, g>>8, b>>8)
	}
}

func TestFrameOutOfBoundsObjectsAreSafe(t *testing.T) {
	frame := testFrame(t, 64, 64)

	objects := []*tracker.Object{
		{
			ID:     7,
			Class:  3,
			Center: tracker.Point{X: -50, Y: 500},
			Box:    []float64{-100, -100, 500, 500},
			Path: []tracker.Point{
				{X: -20, Y: -20},
				{X: 200, Y: 200},
			},
		},
	}

	if _, err := Frame(frame, objects, tracker.Line{}, Overlay{
		DrawPaths:   true,
		DrawObjects: true,
		TrackBoxes:  true,
		IDSize:      1,
	}); err != nil {
		t.Fatal(err)
	}
}

func TestFrameInvalidInput(t *testing.T) {
	if _, err := Frame([]byte("not a jpeg"), nil, tracker.Line{}, Overlay{}); err == nil {
		t.Fatal("expected error for invalid frame data")
	}
}

func TestDownsample(t *testing.T) {
	frame := testFrame(t, 320, 240)

	out, err := Downsample(frame, 2)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 160 || cfg.Height != 120 {
		t.Fatalf("downsampled dimensions = %dx%d", cfg.Width, cfg.Height)
	}

	// ratio 1 не трогает кадр
	same, err := Downsample(frame, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(same, frame) {
		t.Fatal("ratio 1 should return the frame unchanged")
	}
}

func TestClassColorStable(t *testing.T) {
	if classColor(2) != classColor(2) {
		t.Fatal("class color is not stable")
	}
	if classColor(-3) != classColor(3) {
		t.Fatal("negative class should map like positive")
	}
	var _ color.RGBA = classColor(1000)
}
