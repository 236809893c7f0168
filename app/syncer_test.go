package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	coremetrics "github.com/kilianp07/porttrack/core/metrics"
	"github.com/kilianp07/porttrack/core/model"
)

type fakeRemote struct {
	mu      sync.Mutex
	pushed  []model.Document
	pull    model.Document
	pushErr error
	pullErr error
}

func (f *fakeRemote) Push(_ context.Context, doc model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, doc)
	return f.pushErr
}

func (f *fakeRemote) Pull(context.Context) (model.Document, error) {
	return f.pull, f.pullErr
}

func (f *fakeRemote) pushes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushed)
}

type fakeTarget struct {
	doc     model.Document
	merged  []model.Document
	changed bool
}

func (f *fakeTarget) Export() model.Document { return f.doc }

func (f *fakeTarget) Merge(_ context.Context, remote model.Document) (bool, error) {
	f.merged = append(f.merged, remote)
	return f.changed, nil
}

type syncRecorder struct {
	mu     sync.Mutex
	events []coremetrics.SyncEvent
}

func (r *syncRecorder) RecordSync(ev coremetrics.SyncEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func docWith(ids ...string) model.Document {
	doc := model.EmptyDocument()
	for _, id := range ids {
		doc.Vessels[id] = model.VesselRecord{ID: id, Status: model.StatusInbound}
	}
	return doc
}

func TestSyncerPushRecords(t *testing.T) {
	remote := &fakeRemote{}
	rec := &syncRecorder{}
	s := NewSyncer(remote, &fakeTarget{doc: docWith("A")}, 0, time.Second, rec, nil)
	if !s.Push(context.Background()) {
		t.Fatalf("push should succeed")
	}
	if remote.pushes() != 1 || len(remote.pushed[0].Vessels) != 1 {
		t.Fatalf("unexpected pushes %+v", remote.pushed)
	}
	if len(rec.events) != 1 || rec.events[0].Direction != coremetrics.SyncPush || !rec.events[0].Success {
		t.Fatalf("unexpected events %+v", rec.events)
	}
}

func TestSyncerPushFailure(t *testing.T) {
	remote := &fakeRemote{pushErr: errors.New("boom")}
	rec := &syncRecorder{}
	s := NewSyncer(remote, &fakeTarget{doc: docWith("A")}, 0, time.Second, rec, nil)
	if s.Push(context.Background()) {
		t.Fatalf("push should fail")
	}
	if rec.events[0].Success || rec.events[0].Error != "boom" {
		t.Fatalf("failure not recorded: %+v", rec.events[0])
	}
}

func TestSyncerThrottlesPushes(t *testing.T) {
	remote := &fakeRemote{}
	s := NewSyncer(remote, &fakeTarget{doc: docWith("A")}, 1, time.Second, nil, nil)
	if !s.Push(context.Background()) {
		t.Fatalf("first push should go through")
	}
	if s.Push(context.Background()) {
		t.Fatalf("second push should be throttled")
	}
	if remote.pushes() != 1 {
		t.Fatalf("expected 1 push, got %d", remote.pushes())
	}
}

func TestSyncerPullMerges(t *testing.T) {
	target := &fakeTarget{changed: true}
	s := NewSyncer(&fakeRemote{pull: docWith("R")}, target, 0, time.Second, nil, nil)
	if !s.Pull(context.Background()) {
		t.Fatalf("pull should report a change")
	}
	if len(target.merged) != 1 {
		t.Fatalf("expected a merge")
	}
}

func TestSyncerPullEmptyIsNoop(t *testing.T) {
	target := &fakeTarget{changed: true}
	s := NewSyncer(&fakeRemote{pull: model.EmptyDocument()}, target, 0, time.Second, nil, nil)
	if s.Pull(context.Background()) {
		t.Fatalf("empty remote should not change anything")
	}
	if len(target.merged) != 0 {
		t.Fatalf("empty remote must not be merged")
	}
}

func TestSyncerPullError(t *testing.T) {
	target := &fakeTarget{}
	rec := &syncRecorder{}
	s := NewSyncer(&fakeRemote{pullErr: errors.New("down")}, target, 0, time.Second, rec, nil)
	if s.Pull(context.Background()) {
		t.Fatalf("pull should fail")
	}
	if len(target.merged) != 0 || rec.events[0].Direction != coremetrics.SyncPull || rec.events[0].Success {
		t.Fatalf("unexpected state %+v %+v", target.merged, rec.events)
	}
}

func TestSyncerTriggerWait(t *testing.T) {
	remote := &fakeRemote{pull: docWith("R")}
	target := &fakeTarget{doc: docWith("A")}
	s := NewSyncer(remote, target, 0, time.Second, nil, nil)
	s.Trigger()
	s.Wait()
	if remote.pushes() != 1 || len(target.merged) != 1 {
		t.Fatalf("trigger should push then pull: pushes=%d merges=%d", remote.pushes(), len(target.merged))
	}
}
