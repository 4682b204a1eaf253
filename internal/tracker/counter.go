package tracker

import "github.com/bwithai/traffic-analysis/internal/models"

// Line линия подсчёта на кадре
type Line struct {
	A Point
	B Point
}

// IsZero сообщает, задана ли линия
func (l Line) IsZero() bool {
	return l.A == l.B
}

// LineCounter считает пересечения линии траекториями объектов, по одному на объект
type LineCounter struct {
	line    Line
	counted map[int]struct{}
	counts  models.CrossingCounts
}

func NewLineCounter(line Line) *LineCounter {
	return &LineCounter{
		line:    line,
		counted: make(map[int]struct{}),
		counts:  make(models.CrossingCounts),
	}
}

// Update проверяет последний отрезок траектории каждого объекта
func (c *LineCounter) Update(objects []*Object) {
	for _, o := range objects {
		if len(o.Path) < 2 {
			continue
		}
		if _, ok := c.counted[o.ID]; ok {
			continue
		}

		prev := o.Path[len(o.Path)-2]
		curr := o.Path[len(o.Path)-1]
		if segmentsCross(prev, curr, c.line.A, c.line.B) {
			c.counted[o.ID] = struct{}{}
			c.counts[o.Class]++
		}
	}
}

// Counts возвращает накопленные счётчики по классам
func (c *LineCounter) Counts() models.CrossingCounts {
	return c.counts
}

// side знак векторного произведения: с какой стороны от ab лежит p
func side(a, b, p Point) float64 {
	return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
}

// segmentsCross строгая проверка пересечения отрезков p1p2 и q1q2
func segmentsCross(p1, p2, q1, q2 Point) bool {
	d1 := side(q1, q2, p1)
	d2 := side(q1, q2, p2)
	d3 := side(p1, p2, q1)
	d4 := side(p1, p2, q2)
	return d1*d2 < 0 && d3*d4 < 0
}
