// Package tracker exposes the tracking store over HTTP. The document
// endpoints double as the server side of the remote sync contract.
package tracker

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/porttrack/core/model"
	coretracker "github.com/kilianp07/porttrack/core/tracker"
	"github.com/kilianp07/porttrack/infra/logger"
)

const defaultHistoryLimit = 50

// Option customises a Handler.
type Option func(*Handler)

// WithToken requires "Authorization: Bearer <token>" on POST endpoints.
func WithToken(token string) Option { return func(h *Handler) { h.token = token } }

// WithMaxBody bounds request bodies.
func WithMaxBody(n int64) Option { return func(h *Handler) { h.maxBody = n } }

// WithOnChange registers a callback run after reports, imports and sweeps
// modify the store and the store was persisted. Remote merges do not
// trigger it.
func WithOnChange(fn func()) Option { return func(h *Handler) { h.onChange = fn } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(h *Handler) { h.log = l } }

// Handler serves /api/ship-tracker.
type Handler struct {
	tr       *coretracker.Tracker
	token    string
	maxBody  int64
	onChange func()
	log      logger.Logger
}

// New returns a Handler backed by tr.
func New(tr *coretracker.Tracker, opts ...Option) *Handler {
	h := &Handler{tr: tr, maxBody: 8 << 20, onChange: func() {}, log: logger.NopLogger{}}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register mounts every endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("/api/ship-tracker", http.HandlerFunc(h.document))
	mux.Handle("/api/ship-tracker/vessels", get(h.vessels))
	mux.Handle("/api/ship-tracker/docked", get(h.docked))
	mux.Handle("/api/ship-tracker/history", get(h.history))
	mux.Handle("/api/ship-tracker/stats", get(h.stats))
	mux.Handle("/api/ship-tracker/reports", h.post(h.reports))
	mux.Handle("/api/ship-tracker/sweep", h.post(h.sweep))
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

func (h *Handler) post(fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !h.authorized(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
		fn(w, r)
	})
}

func (h *Handler) authorized(r *http.Request) bool {
	return h.token == "" || r.Header.Get("Authorization") == "Bearer "+h.token
}

func (h *Handler) document(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.tr.Export())
	case http.MethodPost:
		h.post(h.upload).ServeHTTP(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// upload replaces the store, or merges into it when the body carries
// "merge": true.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	var flags struct {
		Merge bool `json:"merge"`
	}
	if err := json.Unmarshal(raw, &flags); err != nil {
		http.Error(w, "invalid JSON document", http.StatusBadRequest)
		return
	}
	if flags.Merge {
		var doc model.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			http.Error(w, "invalid JSON document", http.StatusBadRequest)
			return
		}
		if _, err := h.tr.Merge(r.Context(), doc); err != nil {
			h.log.Errorf("merge: %v", err)
		}
	} else {
		err := h.tr.Import(r.Context(), raw)
		switch {
		case errors.Is(err, coretracker.ErrInvalidDocument):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			h.log.Errorf("import: %v", err)
		default:
			h.onChange()
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"vessels_count": len(h.tr.Export().Vessels),
	})
}

func (h *Handler) vessels(w http.ResponseWriter, r *http.Request) {
	var out []model.VesselRecord
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := model.ParseStatus(strings.ToLower(s))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out = h.tr.VesselsByStatus(st)
	} else {
		out = h.tr.Vessels()
	}
	writeJSON(w, http.StatusOK, map[string]any{"vessels": out, "count": len(out)})
}

func (h *Handler) docked(w http.ResponseWriter, _ *http.Request) {
	docked := h.tr.Docked()
	byTerminal := make(map[string]int, len(docked))
	total := 0
	for name, vs := range docked {
		byTerminal[name] = len(vs)
		total += len(vs)
	}
	writeJSON(w, http.StatusOK, map[string]any{"docked": docked, "count": total, "by_terminal": byTerminal})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	events := h.tr.History(limit)
	writeJSON(w, http.StatusOK, map[string]any{"history": events, "count": len(events)})
}

func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.tr.Stats())
}

func (h *Handler) reports(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	b, err := coretracker.DecodeBatch(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	updated, err := h.tr.ApplyBatch(r.Context(), b)
	switch {
	case errors.Is(err, coretracker.ErrStaleBatch):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		// the store is updated in memory; only persisting failed, so nothing
		// is pushed until a later mutation persists
		h.log.Errorf("apply reports: %v", err)
	default:
		h.onChange()
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated, "count": len(updated)})
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	var olderThan time.Duration
	if s := r.URL.Query().Get("older_than"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			http.Error(w, "older_than must be a positive duration", http.StatusBadRequest)
			return
		}
		olderThan = d
	}
	removed, err := h.tr.Sweep(r.Context(), olderThan)
	if err != nil {
		h.log.Errorf("sweep: %v", err)
	}
	if removed == nil {
		removed = []string{}
	}
	if err == nil && len(removed) > 0 {
		h.onChange()
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed, "count": len(removed)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.New("api").Errorf("encode response: %v", err)
	}
}
