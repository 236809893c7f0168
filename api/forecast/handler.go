// Package forecast serves arrival forecasts computed over the vessels the
// tracker currently sees heading to port.
package forecast

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	coreforecast "github.com/kilianp07/porttrack/core/forecast"
	coremetrics "github.com/kilianp07/porttrack/core/metrics"
	"github.com/kilianp07/porttrack/infra/logger"
)

// Source returns the current forecast input.
type Source func() []coreforecast.Vessel

// Handler serves /api/forecast.
type Handler struct {
	engine *coreforecast.Engine
	source Source
	rec    coremetrics.ForecastRecorder
	log    logger.Logger
}

// New returns a Handler. rec may be nil.
func New(engine *coreforecast.Engine, source Source, rec coremetrics.ForecastRecorder) *Handler {
	return &Handler{engine: engine, source: source, rec: rec, log: logger.New("forecast-api")}
}

// Register mounts every endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("/api/forecast/summary", get(h.summary))
	mux.Handle("/api/forecast/windows", get(h.windows))
	mux.Handle("/api/forecast/frequency", get(h.frequency))
	mux.Handle("/api/forecast/spacing", get(h.spacing))
}

func get(fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		fn(w, r)
	})
}

func (h *Handler) summary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.engine.Summarize(h.source()))
}

func (h *Handler) windows(w http.ResponseWriter, _ *http.Request) {
	windows := h.engine.GenerateForecast(h.source())
	h.record(windows)
	writeJSON(w, map[string]any{"windows": windows})
}

func (h *Handler) frequency(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.engine.AnalyzeFrequency(h.source()))
}

func (h *Handler) spacing(w http.ResponseWriter, r *http.Request) {
	pairs := h.engine.SpacingMatrix(h.source())
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if n < len(pairs) {
			pairs = pairs[:n]
		}
	}
	writeJSON(w, map[string]any{"pairs": pairs, "count": len(pairs)})
}

func (h *Handler) record(windows []coreforecast.Window) {
	if h.rec == nil {
		return
	}
	if err := h.rec.RecordForecast(RecordEvent(windows, time.Now())); err != nil {
		h.log.Warnf("record forecast: %v", err)
	}
}

// RecordEvent converts windows into a metrics event.
func RecordEvent(windows []coreforecast.Window, at time.Time) coremetrics.ForecastEvent {
	ev := coremetrics.ForecastEvent{Time: at, Windows: make([]coremetrics.ForecastWindow, 0, len(windows))}
	for _, w := range windows {
		fw := coremetrics.ForecastWindow{Name: w.Name, Count: w.Count, SurgeScore: w.SurgeScore}
		if w.Level != nil {
			fw.Level = string(*w.Level)
		}
		ev.Windows = append(ev.Windows, fw)
	}
	return ev
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
