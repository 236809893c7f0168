// Package tracker maintains per-vessel status records and the transition log.
// A Tracker is built explicitly by the caller and owns the whole tracking
// store; every mutation recomputes the statistics and persists the store as a
// single document.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/porttrack/core/logger"
	"github.com/kilianp07/porttrack/core/model"
	"github.com/kilianp07/porttrack/internal/eventbus"
)

var (
	// ErrNoDocument is returned by a Persister when nothing has been stored yet.
	ErrNoDocument = errors.New("no stored document")
	// ErrInvalidDocument is returned by Import when required fields are missing.
	ErrInvalidDocument = errors.New("document must contain vessels and history")
	// ErrStaleBatch is returned when a sequenced batch is older than the last applied one.
	ErrStaleBatch = errors.New("stale batch")
	// ErrNotFound is returned for unknown vessel identifiers.
	ErrNotFound = errors.New("vessel not found")
)

// UnknownTerminal groups docked vessels without a terminal.
const UnknownTerminal = "Unknown"

// Persister reads and writes the whole tracking store.
type Persister interface {
	Load(ctx context.Context) (model.Document, error)
	Save(ctx context.Context, doc model.Document) error
}

// Batch is a set of reports tagged with a caller supplied sequence number.
// Seq zero disables the staleness check.
type Batch struct {
	Seq     uint64         `json:"seq"`
	Reports []model.Report `json:"reports"`
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(t *Tracker) { t.log = l } }

// WithBus publishes every appended transition event on bus.
func WithBus(bus *eventbus.TypedBus[model.TransitionEvent]) Option {
	return func(t *Tracker) { t.bus = bus }
}

// Tracker owns the tracking store.
type Tracker struct {
	cfg        Config
	classifier *Classifier
	store      Persister
	log        logger.Logger
	bus        *eventbus.TypedBus[model.TransitionEvent]
	now        func() time.Time

	mu      sync.RWMutex
	doc     model.Document
	lastSeq uint64
}

// New creates a Tracker with an empty store. Call Load to read persisted state.
func New(cfg Config, store Persister, opts ...Option) *Tracker {
	cfg.SetDefaults()
	t := &Tracker{
		cfg:        cfg,
		classifier: NewClassifier(cfg.Classifier, cfg.Terminals),
		store:      store,
		log:        logger.Nop{},
		now:        time.Now,
		doc:        model.EmptyDocument(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Load reads the persisted store. Missing or unreadable data yields an empty
// store; Load never fails.
func (t *Tracker) Load(ctx context.Context) {
	doc := model.EmptyDocument()
	if t.store != nil {
		loaded, err := t.store.Load(ctx)
		switch {
		case errors.Is(err, ErrNoDocument):
			t.log.Infof("no stored tracking data, starting empty")
		case err != nil:
			t.log.Warnf("discarding unreadable tracking data: %v", err)
		default:
			doc = t.sanitize(loaded)
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.doc = doc
	t.lastSeq = doc.LastSeq
	t.doc.Stats = computeStats(t.doc, t.now())
	t.log.Infof("loaded %d vessels and %d events", len(t.doc.Vessels), len(t.doc.History))
}

// ApplyReports classifies each report and updates the store. Reports without
// an identifier are skipped. The returned records follow input order. A
// non-nil error only signals that persisting failed; the in-memory store is
// already updated.
func (t *Tracker) ApplyReports(ctx context.Context, reports []model.Report) ([]model.VesselRecord, error) {
	t.mu.Lock()
	updated, events := t.applyLocked(reports)
	err := t.persistLocked(ctx)
	t.mu.Unlock()

	t.publish(events)
	if err != nil {
		return updated, fmt.Errorf("persist tracking store: %w", err)
	}
	return updated, nil
}

// ApplyBatch applies b unless its sequence number is not newer than the last
// applied sequenced batch. The last sequence number is persisted with the
// store, so the check survives restarts.
func (t *Tracker) ApplyBatch(ctx context.Context, b Batch) ([]model.VesselRecord, error) {
	if b.Seq != 0 {
		t.mu.Lock()
		if b.Seq <= t.lastSeq {
			last := t.lastSeq
			t.mu.Unlock()
			return nil, fmt.Errorf("%w: seq %d, last applied %d", ErrStaleBatch, b.Seq, last)
		}
		t.lastSeq = b.Seq
		t.doc.LastSeq = b.Seq
		t.mu.Unlock()
	}
	return t.ApplyReports(ctx, b.Reports)
}

func (t *Tracker) applyLocked(reports []model.Report) ([]model.VesselRecord, []model.TransitionEvent) {
	now := t.now()
	updated := make([]model.VesselRecord, 0, len(reports))
	var events []model.TransitionEvent
	for _, r := range reports {
		if !r.Valid() {
			t.log.Debugf("skipping report without identifier")
			continue
		}
		var prior *model.VesselRecord
		if p, ok := t.doc.Vessels[r.ID]; ok {
			prior = &p
		}
		sample := r.Normalize(prior, now)
		c := t.classifier.Classify(sample, prior)
		rec, ev := t.nextRecord(sample, c, prior)
		if ev != nil {
			events = append(events, *ev)
			t.doc.History = append(t.doc.History, *ev)
		}
		t.doc.Vessels[rec.ID] = rec
		updated = append(updated, rec.Clone())
	}
	if over := len(t.doc.History) - t.cfg.MaxEvents; over > 0 {
		t.doc.History = append([]model.TransitionEvent(nil), t.doc.History[over:]...)
	}
	t.doc.Stats = computeStats(t.doc, now)
	return updated, events
}

// nextRecord builds the refreshed record and the transition event, if any.
func (t *Tracker) nextRecord(s model.Sample, c Classification, prior *model.VesselRecord) (model.VesselRecord, *model.TransitionEvent) {
	rec := model.VesselRecord{
		ID:          s.ID,
		Name:        s.Name,
		Type:        s.Type,
		Flag:        s.Flag,
		Lat:         s.Point.Lat,
		Lng:         s.Point.Lng,
		Speed:       s.Speed,
		Heading:     s.Heading,
		Destination: s.Destination,
		Status:      c.Status,
		Terminal:    c.TerminalName(),
		Annotation:  c.Annotation,
		FirstSeen:   s.Time,
		LastSeen:    s.Time,
	}
	prevStatus := model.StatusInbound
	if prior != nil {
		rec.FirstSeen = prior.FirstSeen
		if rec.LastSeen.Before(rec.FirstSeen) {
			rec.LastSeen = rec.FirstSeen
		}
		rec.Positions = append(rec.Positions, prior.Positions...)
		rec.DockedAt = prior.DockedAt
		rec.UnloadingStarted = prior.UnloadingStarted
		if prior.Status != "" {
			prevStatus = prior.Status
		}
	}
	rec.Positions = append(rec.Positions, model.Position{
		Lat:       s.Point.Lat,
		Lng:       s.Point.Lng,
		Speed:     s.Speed,
		Heading:   s.Heading,
		Timestamp: s.Time,
	})
	t.capPositions(&rec)

	if c.Status == prevStatus {
		return rec, nil
	}
	now := s.Time
	switch c.Status {
	case model.StatusDocked:
		// a vessel still at the same berth keeps its original docking time
		if !prevStatus.AtBerth() || rec.DockedAt == nil {
			rec.DockedAt = &now
		}
		rec.UnloadingStarted = nil
	case model.StatusUnloading:
		rec.UnloadingStarted = &now
	default:
		rec.DockedAt = nil
		rec.UnloadingStarted = nil
	}
	ev := &model.TransitionEvent{
		ID:        uuid.NewString(),
		VesselID:  rec.ID,
		Name:      rec.Name,
		From:      prevStatus,
		To:        c.Status,
		Terminal:  rec.Terminal,
		Timestamp: now,
	}
	t.log.Debugw("status transition", map[string]any{
		"vessel": rec.ID, "from": prevStatus.String(), "to": c.Status.String(), "rule": c.Rule,
	})
	return rec, ev
}

// Vessel returns the record for id.
func (t *Tracker) Vessel(id string) (model.VesselRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.doc.Vessels[id]
	if !ok {
		return model.VesselRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v.Clone(), nil
}

// Vessels returns every record sorted by identifier.
func (t *Tracker) Vessels() []model.VesselRecord {
	return t.filter(func(model.VesselRecord) bool { return true })
}

// VesselsByStatus returns the records currently in status st.
func (t *Tracker) VesselsByStatus(st model.Status) []model.VesselRecord {
	return t.filter(func(v model.VesselRecord) bool { return v.Status == st })
}

// Docked groups the vessels at berth by terminal.
func (t *Tracker) Docked() map[string][]model.VesselRecord {
	res := map[string][]model.VesselRecord{}
	for _, v := range t.filter(func(v model.VesselRecord) bool { return v.Status.AtBerth() }) {
		name := v.TerminalName()
		if name == "" {
			name = UnknownTerminal
		}
		res[name] = append(res[name], v)
	}
	return res
}

func (t *Tracker) filter(keep func(model.VesselRecord) bool) []model.VesselRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	res := make([]model.VesselRecord, 0, len(t.doc.Vessels))
	for _, v := range t.doc.Vessels {
		if keep(v) {
			res = append(res, v.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// History returns up to limit events, most recent first. A limit <= 0
// returns the whole log.
func (t *Tracker) History(limit int) []model.TransitionEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := len(t.doc.History)
	if limit <= 0 || limit > n {
		limit = n
	}
	res := make([]model.TransitionEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		res = append(res, t.doc.History[i])
	}
	return res
}

// Stats returns the current statistics snapshot.
func (t *Tracker) Stats() model.Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.doc.Clone().Stats
}

// Sweep removes every record not seen within olderThan. A non-positive
// olderThan uses the configured horizon. The removed identifiers are
// returned sorted.
func (t *Tracker) Sweep(ctx context.Context, olderThan time.Duration) ([]string, error) {
	if olderThan <= 0 {
		olderThan = t.cfg.StaleAfter()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	cutoff := now.Add(-olderThan)
	var removed []string
	for id, v := range t.doc.Vessels {
		if v.LastSeen.Before(cutoff) {
			delete(t.doc.Vessels, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	t.doc.Stats = computeStats(t.doc, now)
	if len(removed) > 0 {
		t.log.Infof("swept %d stale vessels", len(removed))
	}
	if err := t.persistLocked(ctx); err != nil {
		return removed, fmt.Errorf("persist tracking store: %w", err)
	}
	return removed, nil
}

// Export returns a deep copy of the whole store.
func (t *Tracker) Export() model.Document {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.doc.Clone()
}

func (t *Tracker) persistLocked(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	return t.store.Save(ctx, t.doc.Clone())
}

func (t *Tracker) publish(events []model.TransitionEvent) {
	if t.bus == nil {
		return
	}
	for _, ev := range events {
		t.bus.Publish(ev)
	}
}

// sanitize repairs a decoded document so the store invariants hold,
// including the retention caps.
func (t *Tracker) sanitize(doc model.Document) model.Document {
	if doc.Vessels == nil {
		doc.Vessels = map[string]model.VesselRecord{}
	}
	if doc.History == nil {
		doc.History = []model.TransitionEvent{}
	}
	for id, v := range doc.Vessels {
		if v.ID == "" {
			v.ID = id
		}
		t.capPositions(&v)
		doc.Vessels[id] = v
	}
	if over := len(doc.History) - t.cfg.MaxEvents; over > 0 {
		doc.History = append([]model.TransitionEvent(nil), doc.History[over:]...)
	}
	return doc
}

// capPositions keeps the newest MaxPositions positions of v.
func (t *Tracker) capPositions(v *model.VesselRecord) {
	if over := len(v.Positions) - t.cfg.MaxPositions; over > 0 {
		v.Positions = append([]model.Position(nil), v.Positions[over:]...)
	}
}
