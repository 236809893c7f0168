package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kilianp07/porttrack/core/model"
)

// Import replaces the store with the document encoded in raw. The document
// must contain both a vessel mapping and an event log; otherwise
// ErrInvalidDocument is returned and the store is left untouched.
func (t *Tracker) Import(ctx context.Context, raw []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	for _, k := range []string{"vessels", "history"} {
		v, ok := keys[k]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return fmt.Errorf("%w: missing %s", ErrInvalidDocument, k)
		}
	}
	var doc model.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return t.Replace(ctx, doc)
}

// Replace swaps the whole store for doc and persists it.
func (t *Tracker) Replace(ctx context.Context, doc model.Document) error {
	doc = t.sanitize(doc.Clone())
	t.mu.Lock()
	defer t.mu.Unlock()
	// an imported document never lowers the batch fence
	if doc.LastSeq < t.lastSeq {
		doc.LastSeq = t.lastSeq
	}
	t.lastSeq = doc.LastSeq
	t.doc = doc
	t.doc.Stats = computeStats(t.doc, t.now())
	t.log.Infof("imported %d vessels and %d events", len(doc.Vessels), len(doc.History))
	if err := t.persistLocked(ctx); err != nil {
		return fmt.Errorf("persist tracking store: %w", err)
	}
	return nil
}

// Merge folds a remote copy of the store into the local one. Vessel records
// are overwritten by identifier unless the local record was seen more
// recently; history is deduplicated by vessel and timestamp and capped. A
// remote document without vessels is ignored. Merge reports whether anything
// was merged.
func (t *Tracker) Merge(ctx context.Context, remote model.Document) (bool, error) {
	if len(remote.Vessels) == 0 {
		return false, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, rv := range remote.Vessels {
		if rv.ID == "" {
			rv.ID = id
		}
		if lv, ok := t.doc.Vessels[id]; ok && lv.LastSeen.After(rv.LastSeen) {
			continue
		}
		rv = rv.Clone()
		t.capPositions(&rv)
		t.doc.Vessels[id] = rv
	}
	t.doc.History = mergeHistory(t.doc.History, remote.History, t.cfg.MaxEvents)
	t.doc.Stats = computeStats(t.doc, t.now())
	t.log.Infof("merged %d remote vessels", len(remote.Vessels))
	if err := t.persistLocked(ctx); err != nil {
		return true, fmt.Errorf("persist tracking store: %w", err)
	}
	return true, nil
}

func historyKey(ev model.TransitionEvent) string {
	return ev.VesselID + "|" + ev.Timestamp.UTC().Format("2006-01-02T15:04:05.999999999Z")
}

func mergeHistory(local, remote []model.TransitionEvent, limit int) []model.TransitionEvent {
	seen := make(map[string]struct{}, len(local)+len(remote))
	out := make([]model.TransitionEvent, 0, len(local)+len(remote))
	for _, src := range [][]model.TransitionEvent{local, remote} {
		for _, ev := range src {
			k := historyKey(ev)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
