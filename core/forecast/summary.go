package forecast

import "time"

// Summary is the display snapshot combining every forecast view.
type Summary struct {
	WindowCounts    map[string]int `json:"window_counts" yaml:"window_counts"`
	TotalVessels    int            `json:"total_vessels" yaml:"total_vessels"`
	AverageGapHours float64        `json:"average_gap_hours" yaml:"average_gap_hours"`
	ArrivalsPerDay  float64        `json:"arrivals_per_day" yaml:"arrivals_per_day"`
	ClosestPair     *Pair          `json:"closest_pair,omitempty" yaml:"closest_pair,omitempty"`
	CongestionLevel Level          `json:"congestion_level" yaml:"congestion_level"`
	CongestionLabel string         `json:"congestion_label" yaml:"congestion_label"`
	GeneratedAt     time.Time      `json:"generated_at" yaml:"generated_at"`
}

// Summarize composes the window counts, frequency statistics, closest pair
// and the 0-24h congestion level.
func (e *Engine) Summarize(vs []Vessel) Summary {
	windows := e.GenerateForecast(vs)
	freq := e.AnalyzeFrequency(vs)
	s := Summary{
		WindowCounts:    make(map[string]int, len(windows)),
		TotalVessels:    len(vs),
		AverageGapHours: freq.AverageGapHours,
		ArrivalsPerDay:  freq.ArrivalsPerDay,
		GeneratedAt:     e.now(),
	}
	for _, w := range windows {
		s.WindowCounts[w.Name] = w.Count
		if w.Name == Window0To24 && w.Level != nil {
			s.CongestionLevel = *w.Level
			s.CongestionLabel = w.Label
		}
	}
	if pairs := e.SpacingMatrix(vs); len(pairs) > 0 {
		p := pairs[0]
		s.ClosestPair = &p
	}
	return s
}
