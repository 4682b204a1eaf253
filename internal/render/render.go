package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"

	"github.com/nfnt/resize"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/bwithai/traffic-analysis/internal/tracker"
)

const jpegQuality = 85

// Overlay что рисовать поверх кадра
type Overlay struct {
	DrawPaths   bool
	DrawObjects bool
	TrackBoxes  bool
	IDSize      int
}

var palette = []color.RGBA{
	{R: 0, G: 200, B: 0, A: 255},
	{R: 220, G: 60, B: 60, A: 255},
	{R: 60, G: 120, B: 230, A: 255},
	{R: 230, G: 180, B: 0, A: 255},
	{R: 180, G: 60, B: 200, A: 255},
	{R: 0, G: 190, B: 190, A: 255},
}

var lineColor = color.RGBA{R: 255, G: 255, B: 0, A: 255}

// classColor цвет объекта по его классу
func classColor(class int) color.RGBA {
	if class < 0 {
		class = -class
	}
	return palette[class%len(palette)]
}

// Frame декодирует JPEG-кадр, рисует оверлеи и кодирует обратно
func Frame(jpegData []byte, objects []*tracker.Object, line tracker.Line, ov Overlay) ([]byte, error) {
	src, err := jpeg.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	img := image.NewRGBA(src.Bounds())
	draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)

	for _, o := range objects {
		col := classColor(o.Class)

		if ov.TrackBoxes && len(o.Box) >= 4 {
			drawRect(img, o.Box, col)
		}

		if ov.DrawObjects {
			drawMarker(img, o.Center, col)
			if ov.IDSize > 0 {
				drawLabel(img, fmt.Sprintf("%d", o.ID), o.Center, col, ov.IDSize)
			}
		}

		if ov.DrawPaths && len(o.Path) > 1 {
			drawPath(img, o.Path, col)
		}
	}

	if !line.IsZero() {
		drawSegment(img, line.A, line.B, lineColor)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	return buf.Bytes(), nil
}

// Downsample уменьшает кадр в ratio раз для живого просмотра
func Downsample(jpegData []byte, ratio int) ([]byte, error) {
	if ratio <= 1 {
		return jpegData, nil
	}

	src, err := jpeg.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	b := src.Bounds()
	scaled := resize.Resize(uint(b.Dx()/ratio), uint(b.Dy()/ratio), src, resize.Bilinear)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	return buf.Bytes(), nil
}

// drawRect рамка bounding box толщиной 2 пикселя
func drawRect(img *image.RGBA, box []float64, col color.RGBA) {
	x1, y1 := int(box[0]), int(box[1])
	x2, y2 := int(box[2]), int(box[3])
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}

	for t := 0; t < 2; t++ {
		for x := x1; x <= x2; x++ {
			setPixel(img, x, y1+t, col)
			setPixel(img, x, y2-t, col)
		}
		for y := y1; y <= y2; y++ {
			setPixel(img, x1+t, y, col)
			setPixel(img, x2-t, y, col)
		}
	}
}

// drawMarker закрашенный квадрат в центре объекта
func drawMarker(img *image.RGBA, center tracker.Point, col color.RGBA) {
	cx, cy := int(center.X), int(center.Y)
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			setPixel(img, cx+dx, cy+dy, col)
		}
	}
}

// drawPath ломаная по прошлым позициям объекта
func drawPath(img *image.RGBA, path []tracker.Point, col color.RGBA) {
	for i := 1; i < len(path); i++ {
		drawSegment(img, path[i-1], path[i], col)
	}
}

// drawSegment отрезок по алгоритму Брезенхэма
func drawSegment(img *image.RGBA, a, b tracker.Point, col color.RGBA) {
	x1, y1 := int(a.X), int(a.Y)
	x2, y2 := int(b.X), int(b.Y)

	dx := int(math.Abs(float64(x2 - x1)))
	dy := -int(math.Abs(float64(y2 - y1)))
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}

	err := dx + dy
	for {
		setPixel(img, x1, y1, col)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x1 += sx
		}
		if e2 <= dx {
			err += dx
			y1 += sy
		}
	}
}

// drawLabel рисует текст метки, масштабированный в size раз
func drawLabel(img *image.RGBA, text string, at tracker.Point, col color.RGBA, size int) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil() + 2
	h := face.Height + 2

	label := image.NewRGBA(image.Rect(0, 0, w, h))
	drawer := font.Drawer{
		Dst:  label,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(1, face.Ascent+1),
	}
	drawer.DrawString(text)

	scaled := image.Image(label)
	if size > 1 {
		scaled = resize.Resize(uint(w*size), uint(h*size), label, resize.NearestNeighbor)
	}

	sb := scaled.Bounds()
	x := int(at.X) - sb.Dx()/2
	y := int(at.Y) - sb.Dy() - 4
	draw.Draw(img, image.Rect(x, y, x+sb.Dx(), y+sb.Dy()), scaled, sb.Min, draw.Over)
}

func setPixel(img *image.RGBA, x, y int, col color.RGBA) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.SetRGBA(x, y, col)
	}
}
