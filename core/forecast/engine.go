package forecast

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/porttrack/core/geo"
)

// Window names in forecast order.
const (
	Window0To24  = "0-24h"
	Window24To48 = "24-48h"
	Window48To72 = "48-72h"
	WindowBeyond = "72h+"
)

// WindowNames lists the forecast windows in order.
var WindowNames = []string{Window0To24, Window24To48, Window48To72, WindowBeyond}

// Vessel is one entry of a forecast snapshot. Speed is optional.
type Vessel struct {
	ID    string   `json:"id" yaml:"id"`
	Name  string   `json:"name,omitempty" yaml:"name,omitempty"`
	Lat   float64  `json:"lat" yaml:"lat"`
	Lng   float64  `json:"lng" yaml:"lng"`
	Speed *float64 `json:"speed,omitempty" yaml:"speed,omitempty"`
}

// Arrival is the estimated arrival of one vessel at the port.
type Arrival struct {
	VesselID    string    `json:"vessel_id" yaml:"vessel_id"`
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	DistanceNM  float64   `json:"distance_nm" yaml:"distance_nm"`
	SpeedKnots  float64   `json:"speed_knots" yaml:"speed_knots"`
	ETAHours    float64   `json:"eta_hours" yaml:"eta_hours"`
	Window      string    `json:"window" yaml:"window"`
	ArrivalTime time.Time `json:"arrival_time" yaml:"arrival_time"`
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for arrival instants.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// Engine computes forecasts against a fixed port and capacity model.
type Engine struct {
	cfg Config
	now func() time.Time
}

// New creates an Engine. Unset configuration values get their defaults.
func New(cfg Config, opts ...Option) *Engine {
	cfg.SetDefaults()
	e := &Engine{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

type sample struct {
	id    string
	name  string
	point geo.Point
	speed float64
}

// normalize fills the default speed once, at the boundary.
func (e *Engine) normalize(v Vessel) sample {
	s := sample{id: v.ID, name: v.Name, point: geo.Point{Lat: v.Lat, Lng: v.Lng}, speed: e.cfg.DefaultSpeed}
	if v.Speed != nil && *v.Speed > 0 {
		s.speed = *v.Speed
	}
	return s
}

// EstimateArrival computes distance, ETA and window for v.
func (e *Engine) EstimateArrival(v Vessel) Arrival {
	return e.estimate(e.normalize(v), e.now())
}

func (e *Engine) estimate(s sample, now time.Time) Arrival {
	dist := geo.GreatCircleNM(s.point, e.cfg.Port)
	eta := dist / s.speed
	// the window follows the reported ETA so that 23.96h, shown as 24.0,
	// lands in 24-48h
	reported := round1(eta)
	return Arrival{
		VesselID:    s.id,
		Name:        s.name,
		DistanceNM:  round1(dist),
		SpeedKnots:  s.speed,
		ETAHours:    reported,
		Window:      windowFor(reported),
		ArrivalTime: now.Add(time.Duration(eta * float64(time.Hour))),
	}
}

func (e *Engine) arrivals(vs []Vessel) []Arrival {
	now := e.now()
	out := make([]Arrival, len(vs))
	for i, v := range vs {
		out[i] = e.estimate(e.normalize(v), now)
	}
	return out
}

func windowFor(etaHours float64) string {
	switch {
	case etaHours < 24:
		return Window0To24
	case etaHours < 48:
		return Window24To48
	case etaHours < 72:
		return Window48To72
	default:
		return WindowBeyond
	}
}

// Frequency describes how arrivals are spread over time.
type Frequency struct {
	Arrivals        []Arrival `json:"arrivals" yaml:"arrivals"`
	GapsHours       []float64 `json:"gaps_hours" yaml:"gaps_hours"`
	AverageGapHours float64   `json:"average_gap_hours" yaml:"average_gap_hours"`
	ArrivalsPerDay  float64   `json:"arrivals_per_day" yaml:"arrivals_per_day"`
}

// AnalyzeFrequency sorts arrivals by ETA and measures the gaps between
// consecutive ones. Gaps are taken between the reported, rounded ETAs so
// they add up to what a reader sees in Arrivals. Empty input yields a zero result.
func (e *Engine) AnalyzeFrequency(vs []Vessel) Frequency {
	arr := e.arrivals(vs)
	sortArrivals(arr)
	f := Frequency{Arrivals: arr, GapsHours: []float64{}}
	for i := 1; i < len(arr); i++ {
		f.GapsHours = append(f.GapsHours, round1(arr[i].ETAHours-arr[i-1].ETAHours))
	}
	if len(f.GapsHours) == 0 {
		return f
	}
	avg := stat.Mean(f.GapsHours, nil)
	f.AverageGapHours = round1(avg)
	if avg > 0 {
		f.ArrivalsPerDay = round1(24 / avg)
	}
	return f
}

func sortArrivals(arr []Arrival) {
	sort.SliceStable(arr, func(i, j int) bool {
		if arr[i].ETAHours != arr[j].ETAHours {
			return arr[i].ETAHours < arr[j].ETAHours
		}
		return arr[i].VesselID < arr[j].VesselID
	})
}

// Pair is the great-circle distance between two vessels.
type Pair struct {
	A          string  `json:"a" yaml:"a"`
	B          string  `json:"b" yaml:"b"`
	DistanceNM float64 `json:"distance_nm" yaml:"distance_nm"`
}

// SpacingMatrix returns every unordered pair of vessels sorted by distance,
// closest first.
func (e *Engine) SpacingMatrix(vs []Vessel) []Pair {
	pairs := make([]Pair, 0, len(vs)*(len(vs)-1)/2)
	for i := 0; i < len(vs); i++ {
		for j := i + 1; j < len(vs); j++ {
			a, b := vs[i], vs[j]
			if b.ID < a.ID {
				a, b = b, a
			}
			d := geo.GreatCircleNM(geo.Point{Lat: a.Lat, Lng: a.Lng}, geo.Point{Lat: b.Lat, Lng: b.Lng})
			pairs = append(pairs, Pair{A: a.ID, B: b.ID, DistanceNM: round1(d)})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].DistanceNM != pairs[j].DistanceNM {
			return pairs[i].DistanceNM < pairs[j].DistanceNM
		}
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	return pairs
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
