package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/porttrack/core/model"
	"github.com/kilianp07/porttrack/internal/eventbus"
)

type memStore struct {
	mu      sync.Mutex
	doc     *model.Document
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load(context.Context) (model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return model.Document{}, m.loadErr
	}
	if m.doc == nil {
		return model.Document{}, ErrNoDocument
	}
	return m.doc.Clone(), nil
}

func (m *memStore) Save(_ context.Context, doc model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	d := doc.Clone()
	m.doc = &d
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newTestTracker(t *testing.T, opts ...Option) (*Tracker, *memStore, *fakeClock) {
	t.Helper()
	store := &memStore{}
	clock := &fakeClock{t: t0}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	tr := New(Config{}, store, opts...)
	tr.Load(context.Background())
	return tr, store, clock
}

func dockedReport(id string) model.Report {
	return model.Report{ID: id, Lat: 29.7234, Lng: -95.0012, Speed: model.Float(0.2), Name: "Maersk " + id}
}

func TestApplyReports_DockedAtBarboursCut(t *testing.T) {
	tr, store, _ := newTestTracker(t)
	out, err := tr.ApplyReports(context.Background(), []model.Report{dockedReport("V1")})
	require.NoError(t, err)
	require.Len(t, out, 1)

	v := out[0]
	assert.Equal(t, model.StatusDocked, v.Status)
	require.NotNil(t, v.Terminal)
	assert.Equal(t, "Barbours Cut", *v.Terminal)
	require.NotNil(t, v.DockedAt)
	assert.True(t, v.DockedAt.Equal(t0))

	hist := tr.History(0)
	require.Len(t, hist, 1)
	assert.Equal(t, model.StatusInbound, hist[0].From)
	assert.Equal(t, model.StatusDocked, hist[0].To)
	assert.NotEmpty(t, hist[0].ID)

	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 1, tr.Stats().CurrentlyDocked)
}

func TestApplyReports_SkipsMissingIdentifier(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	out, err := tr.ApplyReports(context.Background(), []model.Report{
		{Lat: 29.7, Lng: -95.0},
		dockedReport("V1"),
		{Lat: 25, Lng: -94},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "V1", out[0].ID)
	assert.Len(t, tr.Vessels(), 1)
	assert.Len(t, tr.History(0), 1)
}

func TestApplyReports_SameReportTwiceAddsNoEvent(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()
	_, err := tr.ApplyReports(ctx, []model.Report{dockedReport("V1")})
	require.NoError(t, err)
	_, err = tr.ApplyReports(ctx, []model.Report{dockedReport("V1")})
	require.NoError(t, err)
	assert.Len(t, tr.History(0), 1)

	v, err := tr.Vessel("V1")
	require.NoError(t, err)
	assert.Len(t, v.Positions, 2)
}

func TestApplyReports_UnloadingAfterHalfHour(t *testing.T) {
	tr, _, clock := newTestTracker(t)
	ctx := context.Background()
	_, err := tr.ApplyReports(ctx, []model.Report{dockedReport("V1")})
	require.NoError(t, err)

	clock.Advance(5 * time.Hour)
	out, err := tr.ApplyReports(ctx, []model.Report{dockedReport("V1")})
	require.NoError(t, err)
	v := out[0]
	assert.Equal(t, model.StatusUnloading, v.Status)
	require.NotNil(t, v.DockedAt)
	require.NotNil(t, v.UnloadingStarted)
	assert.True(t, v.DockedAt.Equal(t0))
	assert.True(t, v.UnloadingStarted.Equal(t0.Add(5*time.Hour)))
	assert.False(t, v.UnloadingStarted.Before(*v.DockedAt))

	// still moored after a day: back to docked, flagged, same docking time
	clock.Advance(25 * time.Hour)
	out, err = tr.ApplyReports(ctx, []model.Report{dockedReport("V1")})
	require.NoError(t, err)
	v = out[0]
	assert.Equal(t, model.StatusDocked, v.Status)
	assert.Equal(t, model.AnnotationExtendedStay, v.Annotation)
	assert.True(t, v.DockedAt.Equal(t0))

	hist := tr.History(0)
	require.Len(t, hist, 3)
	assert.Equal(t, model.StatusUnloading, hist[0].From)
	assert.Equal(t, model.StatusDocked, hist[0].To)
}

func TestApplyReports_DockedExtendedStay(t *testing.T) {
	tr, _, clock := newTestTracker(t)
	ctx := context.Background()
	_, err := tr.ApplyReports(ctx, []model.Report{dockedReport("V1")})
	require.NoError(t, err)

	clock.Advance(30 * time.Hour)
	out, err := tr.ApplyReports(ctx, []model.Report{dockedReport("V1")})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDocked, out[0].Status)
	assert.Equal(t, model.AnnotationExtendedStay, out[0].Annotation)
	assert.Len(t, tr.History(0), 1)
}

func TestApplyReports_InheritsMissingFields(t *testing.T) {
	tr, _, clock := newTestTracker(t)
	ctx := context.Background()
	_, err := tr.ApplyReports(ctx, []model.Report{{
		ID: "V2", Lat: 29.5, Lng: -94.9, Speed: model.Float(12), Heading: model.Float(320),
		Name: "Ever Given", Type: "container", Flag: "PA", Destination: "USHOU",
	}})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	out, err := tr.ApplyReports(ctx, []model.Report{{ID: "V2", Lat: 29.51, Lng: -94.91}})
	require.NoError(t, err)
	v := out[0]
	assert.Equal(t, "Ever Given", v.Name)
	assert.Equal(t, "container", v.Type)
	assert.Equal(t, "PA", v.Flag)
	assert.Equal(t, "USHOU", v.Destination)
	assert.Equal(t, 12.0, v.Speed)
	assert.Equal(t, 320.0, v.Heading)
	assert.Equal(t, model.StatusApproaching, v.Status)
	assert.True(t, v.FirstSeen.Equal(t0))
	assert.True(t, v.LastSeen.Equal(t0.Add(time.Minute)))
}

func TestApplyReports_CapsPositionsAndHistory(t *testing.T) {
	tr, _, clock := newTestTracker(t)
	tr.cfg.MaxEvents = 5
	ctx := context.Background()
	for i := 0; i < 60; i++ {
		clock.Advance(time.Minute)
		speed := 12.0
		if i%2 == 0 {
			speed = 2
		}
		// alternate between docking and approaching inside Barbours Cut
		_, err := tr.ApplyReports(ctx, []model.Report{{ID: "V3", Lat: 29.7234, Lng: -95.0012, Speed: model.Float(speed)}})
		require.NoError(t, err)
	}
	v, err := tr.Vessel("V3")
	require.NoError(t, err)
	assert.Len(t, v.Positions, 50)
	assert.True(t, v.Positions[49].Timestamp.Equal(clock.Now()))
	assert.Len(t, tr.History(0), 5)
}

func TestApplyReports_ReturnsPersistError(t *testing.T) {
	tr, store, _ := newTestTracker(t)
	store.saveErr = errors.New("disk full")
	out, err := tr.ApplyReports(context.Background(), []model.Report{dockedReport("V1")})
	require.Error(t, err)
	assert.Len(t, out, 1)
	_, err = tr.Vessel("V1")
	assert.NoError(t, err, "local state must survive a failed write")
}

func TestApplyReports_PublishesTransitions(t *testing.T) {
	bus := eventbus.NewTyped[model.TransitionEvent](4)
	sub := bus.Subscribe()
	tr, _, _ := newTestTracker(t, WithBus(bus))
	_, err := tr.ApplyReports(context.Background(), []model.Report{dockedReport("V1")})
	require.NoError(t, err)
	select {
	case ev := <-sub:
		assert.Equal(t, "V1", ev.VesselID)
		assert.Equal(t, model.StatusDocked, ev.To)
	case <-time.After(time.Second):
		t.Fatal("no transition published")
	}
}

func TestApplyBatch_RejectsStaleSequence(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()
	_, err := tr.ApplyBatch(ctx, Batch{Seq: 2, Reports: []model.Report{dockedReport("V1")}})
	require.NoError(t, err)
	_, err = tr.ApplyBatch(ctx, Batch{Seq: 2, Reports: []model.Report{dockedReport("V2")}})
	assert.ErrorIs(t, err, ErrStaleBatch)
	_, err = tr.ApplyBatch(ctx, Batch{Seq: 1, Reports: []model.Report{dockedReport("V2")}})
	assert.ErrorIs(t, err, ErrStaleBatch)
	_, err = tr.ApplyBatch(ctx, Batch{Reports: []model.Report{dockedReport("V3")}})
	assert.NoError(t, err)
	_, err = tr.Vessel("V2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyBatch_SequenceSurvivesRestart(t *testing.T) {
	tr, store, _ := newTestTracker(t)
	ctx := context.Background()
	_, err := tr.ApplyBatch(ctx, Batch{Seq: 5, Reports: []model.Report{dockedReport("V1")}})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), store.doc.LastSeq)

	again := New(Config{}, store)
	again.Load(ctx)
	_, err = again.ApplyBatch(ctx, Batch{Seq: 5, Reports: []model.Report{dockedReport("V2")}})
	assert.ErrorIs(t, err, ErrStaleBatch)
	_, err = again.ApplyBatch(ctx, Batch{Seq: 6, Reports: []model.Report{dockedReport("V2")}})
	assert.NoError(t, err)

	// importing an older document keeps the fence
	require.NoError(t, again.Replace(ctx, model.EmptyDocument()))
	_, err = again.ApplyBatch(ctx, Batch{Seq: 6, Reports: []model.Report{dockedReport("V3")}})
	assert.ErrorIs(t, err, ErrStaleBatch)
}

func TestLoad_AppliesRetentionCaps(t *testing.T) {
	doc := model.EmptyDocument()
	v := model.VesselRecord{ID: "V1", Status: model.StatusInbound, LastSeen: t0}
	for i := 0; i < 80; i++ {
		v.Positions = append(v.Positions, model.Position{Lat: float64(i), Timestamp: t0.Add(time.Duration(i) * time.Minute)})
	}
	doc.Vessels["V1"] = v
	for i := 0; i < 600; i++ {
		doc.History = append(doc.History, model.TransitionEvent{
			VesselID: "V1", From: model.StatusInbound, To: model.StatusApproaching,
			Timestamp: t0.Add(time.Duration(i) * time.Second),
		})
	}
	store := &memStore{doc: &doc}
	tr := New(Config{}, store)
	tr.Load(context.Background())

	got, err := tr.Vessel("V1")
	require.NoError(t, err)
	require.Len(t, got.Positions, 50)
	assert.Equal(t, 30.0, got.Positions[0].Lat, "oldest positions dropped")
	hist := tr.History(0)
	require.Len(t, hist, 500)
	assert.Equal(t, t0.Add(599*time.Second), hist[0].Timestamp)
}

func TestLoad_CorruptStoreStartsEmpty(t *testing.T) {
	store := &memStore{loadErr: fmt.Errorf("invalid character '}'")}
	tr := New(Config{}, store)
	tr.Load(context.Background())
	assert.Empty(t, tr.Vessels())
	assert.Empty(t, tr.History(0))
}

func TestLoad_RestoresPersistedStore(t *testing.T) {
	tr, store, _ := newTestTracker(t)
	_, err := tr.ApplyReports(context.Background(), []model.Report{dockedReport("V1")})
	require.NoError(t, err)

	again := New(Config{}, store)
	again.Load(context.Background())
	v, err := again.Vessel("V1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDocked, v.Status)
	assert.Equal(t, 1, again.Stats().TotalTracked)
}

func TestQueries(t *testing.T) {
	tr, _, clock := newTestTracker(t)
	ctx := context.Background()
	_, err := tr.ApplyReports(ctx, []model.Report{
		dockedReport("B"),
		dockedReport("A"),
		{ID: "C", Lat: 28.0, Lng: -94.5, Speed: model.Float(14), Heading: model.Float(10)},
		{ID: "D", Lat: 28.0, Lng: -94.5, Speed: model.Float(14), Heading: model.Float(180)},
	})
	require.NoError(t, err)
	clock.Advance(time.Minute)

	docked := tr.VesselsByStatus(model.StatusDocked)
	require.Len(t, docked, 2)
	assert.Equal(t, "A", docked[0].ID)
	assert.Equal(t, "B", docked[1].ID)

	assert.Len(t, tr.VesselsByStatus(model.StatusInbound), 1)
	assert.Len(t, tr.VesselsByStatus(model.StatusOutbound), 1)
	assert.Len(t, tr.Docked()["Barbours Cut"], 2)

	hist := tr.History(2)
	require.Len(t, hist, 2)
	assert.Equal(t, "D", hist[0].VesselID, "most recent first")

	st := tr.Stats()
	assert.Equal(t, 4, st.TotalTracked)
	assert.Equal(t, 2, st.CurrentlyDocked)
	assert.Equal(t, 1, st.Inbound)
	assert.Equal(t, 1, st.DepartedToday)
	assert.Equal(t, 2, st.ByTerminal["Barbours Cut"])
}

func TestSweep(t *testing.T) {
	tr, store, clock := newTestTracker(t)
	ctx := context.Background()
	_, err := tr.ApplyReports(ctx, []model.Report{dockedReport("OLD")})
	require.NoError(t, err)
	clock.Advance(40 * time.Hour)
	_, err = tr.ApplyReports(ctx, []model.Report{dockedReport("NEW")})
	require.NoError(t, err)
	clock.Advance(10 * time.Hour)

	saves := store.saves
	removed, err := tr.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"OLD"}, removed)
	assert.Equal(t, 1, tr.Stats().TotalTracked)
	assert.Equal(t, saves+1, store.saves)

	removed, err = tr.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"NEW"}, removed)
}
