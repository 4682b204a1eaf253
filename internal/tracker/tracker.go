package tracker

import (
	"math"
	"sort"

	"github.com/bwithai/traffic-analysis/internal/models"
)

// Point координата на кадре
type Point struct {
	X float64
	Y float64
}

// Options параметры трекера
type Options struct {
	// Максимальное евклидово расстояние, при котором детекция сопоставляется с объектом
	DistanceThreshold float64
	// Детекции со score ниже порога игнорируются
	DetectionThreshold float64
	// Сколько совпадений требуется, прежде чем объект получит ID
	InitializationDelay int
	// Верхняя граница счётчика совпадений; объект без совпадений умирает за столько кадров
	HitCounterMax int
	// Сколько прошлых позиций хранить для отрисовки траектории
	PathHistory int
	// Сопоставлять по углам bounding box вместо центров
	TrackBoxes bool
}

// DefaultOptions возвращает параметры трекера по умолчанию
func DefaultOptions() Options {
	return Options{
		DistanceThreshold:   300,
		DetectionThreshold:  0.15,
		InitializationDelay: 3,
		HitCounterMax:       6,
		PathHistory:         70,
	}
}

// Object отслеживаемый объект
type Object struct {
	ID     int // 0 пока объект не подтверждён
	Class  int
	Center Point
	Box    []float64 // [x1, y1, x2, y2], последний сопоставленный bounding box
	Path   []Point   // прошлые позиции, не длиннее PathHistory

	hits      int
	initDelay int
}

// Confirmed сообщает, назначен ли объекту идентификатор
func (o *Object) Confirmed() bool {
	return o.ID > 0
}

// Tracker сопоставляет детекции между кадрами и ведёт объекты
type Tracker struct {
	opts    Options
	objects []*Object
	nextID  int
}

func New(opts Options) *Tracker {
	if opts.DistanceThreshold <= 0 {
		opts.DistanceThreshold = DefaultOptions().DistanceThreshold
	}
	if opts.HitCounterMax <= 0 {
		opts.HitCounterMax = DefaultOptions().HitCounterMax
	}
	if opts.PathHistory <= 0 {
		opts.PathHistory = DefaultOptions().PathHistory
	}

	return &Tracker{
		opts:   opts,
		nextID: 1,
	}
}

// Update сопоставляет детекции кадра с объектами и возвращает подтверждённые объекты
func (t *Tracker) Update(detections []models.Detection) []*Object {
	// Стареем: каждый кадр без совпадения стоит объекту одно очко
	for _, o := range t.objects {
		o.hits--
	}

	matched := make([]bool, len(detections))
	used := make(map[*Object]bool, len(t.objects))

	for i, d := range detections {
		if d.Score < t.opts.DetectionThreshold {
			continue
		}

		cx, cy := d.Center()
		center := Point{X: cx, Y: cy}

		var best *Object
		bestDist := t.opts.DistanceThreshold
		for _, o := range t.objects {
			if used[o] || o.Class != d.Class {
				continue
			}
			if dist := t.distance(o, d, center); dist < bestDist {
				best = o
				bestDist = dist
			}
		}

		if best == nil {
			continue
		}

		matched[i] = true
		used[best] = true

		best.Center = center
		best.Box = d.Box
		best.hits += 2
		if best.hits > t.opts.HitCounterMax {
			best.hits = t.opts.HitCounterMax
		}

		if !best.Confirmed() {
			best.initDelay--
			if best.initDelay <= 0 {
				best.ID = t.nextID
				t.nextID++
			}
		}

		best.Path = append(best.Path, center)
		if len(best.Path) > t.opts.PathHistory {
			best.Path = best.Path[len(best.Path)-t.opts.PathHistory:]
		}
	}

	// Несопоставленные детекции порождают новые объекты
	for i, d := range detections {
		if matched[i] || d.Score < t.opts.DetectionThreshold {
			continue
		}

		cx, cy := d.Center()
		center := Point{X: cx, Y: cy}
		t.objects = append(t.objects, &Object{
			Class:     d.Class,
			Center:    center,
			Box:       d.Box,
			Path:      []Point{center},
			hits:      1,
			initDelay: t.opts.InitializationDelay,
		})
	}

	// Убираем умершие объекты
	alive := t.objects[:0]
	for _, o := range t.objects {
		if o.hits > 0 {
			alive = append(alive, o)
		}
	}
	t.objects = alive

	var confirmed []*Object
	for _, o := range t.objects {
		if o.Confirmed() {
			confirmed = append(confirmed, o)
		}
	}
	sort.Slice(confirmed, func(i, j int) bool {
		return confirmed[i].ID < confirmed[j].ID
	})

	return confirmed
}

// distance расстояние между объектом и детекцией: по углам bounding box
// при TrackBoxes, иначе между центрами
func (t *Tracker) distance(o *Object, d models.Detection, center Point) float64 {
	if t.opts.TrackBoxes && len(o.Box) >= 4 && len(d.Box) >= 4 {
		tl := euclidean(Point{X: o.Box[0], Y: o.Box[1]}, Point{X: d.Box[0], Y: d.Box[1]})
		br := euclidean(Point{X: o.Box[2], Y: o.Box[3]}, Point{X: d.Box[2], Y: d.Box[3]})
		return (tl + br) / 2
	}
	return euclidean(o.Center, center)
}

func euclidean(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
