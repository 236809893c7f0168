package forecast

import "math"

// Level is the qualitative congestion of a forecast window.
type Level string

const (
	LevelHigh     Level = "high"
	LevelModerate Level = "moderate"
	LevelNormal   Level = "normal"
	LevelLow      Level = "low"
)

var levelLabels = map[Level]string{
	LevelHigh:     "High congestion expected",
	LevelModerate: "Moderate congestion",
	LevelNormal:   "Normal traffic",
	LevelLow:      "Low traffic",
}

// Label returns the human readable description of l.
func (l Level) Label() string { return levelLabels[l] }

// Classify maps a surge score to a congestion level. A window exactly at
// capacity (score 1.0) is moderate; the other bounds are exclusive.
func Classify(score float64) Level {
	switch {
	case score > 1.5:
		return LevelHigh
	case score >= 1.0:
		return LevelModerate
	case score > 0.7:
		return LevelNormal
	default:
		return LevelLow
	}
}

// Window is one bucket of the forecast. Surge fields are nil for the
// open-ended window. Level is derived from the exact count/capacity ratio;
// SurgeScore is that ratio rounded to two decimals.
type Window struct {
	Name       string    `json:"name" yaml:"name"`
	Vessels    []Arrival `json:"vessels" yaml:"vessels"`
	Count      int       `json:"count" yaml:"count"`
	SurgeScore *float64  `json:"surge_score,omitempty" yaml:"surge_score,omitempty"`
	Level      *Level    `json:"level,omitempty" yaml:"level,omitempty"`
	Label      string    `json:"label,omitempty" yaml:"label,omitempty"`
}

// GenerateForecast buckets every vessel into exactly one window.
func (e *Engine) GenerateForecast(vs []Vessel) []Window {
	arr := e.arrivals(vs)
	sortArrivals(arr)
	idx := make(map[string]int, len(WindowNames))
	windows := make([]Window, len(WindowNames))
	for i, name := range WindowNames {
		idx[name] = i
		windows[i] = Window{Name: name, Vessels: []Arrival{}}
	}
	for _, a := range arr {
		w := &windows[idx[a.Window]]
		w.Vessels = append(w.Vessels, a)
		w.Count++
	}
	for i := range windows {
		if windows[i].Name == WindowBeyond {
			continue
		}
		ratio := float64(windows[i].Count) / e.cfg.DailyCapacity
		level := Classify(ratio)
		score := round2(ratio)
		windows[i].SurgeScore = &score
		windows[i].Level = &level
		windows[i].Label = level.Label()
	}
	return windows
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
