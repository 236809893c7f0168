package app

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	coremetrics "github.com/kilianp07/porttrack/core/metrics"
	"github.com/kilianp07/porttrack/core/model"
	"github.com/kilianp07/porttrack/infra/logger"
)

// RemoteStore is the far side of the sync contract.
type RemoteStore interface {
	Push(ctx context.Context, doc model.Document) error
	Pull(ctx context.Context) (model.Document, error)
}

// SyncTarget is the local store kept in step with the remote one.
type SyncTarget interface {
	Export() model.Document
	Merge(ctx context.Context, remote model.Document) (bool, error)
}

// Syncer pushes the local document to a RemoteStore and merges back what the
// remote holds. Failures are logged and never touch local state.
type Syncer struct {
	remote  RemoteStore
	target  SyncTarget
	rec     coremetrics.SyncRecorder
	log     logger.Logger
	limiter *rate.Limiter
	timeout time.Duration
	now     func() time.Time

	wg sync.WaitGroup
}

// NewSyncer returns a Syncer allowing at most perMinute pushes per minute.
// A non-positive perMinute disables throttling. rec may be nil.
func NewSyncer(remote RemoteStore, target SyncTarget, perMinute int, timeout time.Duration, rec coremetrics.SyncRecorder, log logger.Logger) *Syncer {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Syncer{
		remote:  remote,
		target:  target,
		rec:     rec,
		log:     log,
		limiter: rate.NewLimiter(limit, 1),
		timeout: timeout,
		now:     time.Now,
	}
}

// Push sends the whole local document with the merge flag set. It reports
// false when the push failed or was throttled.
func (s *Syncer) Push(ctx context.Context) bool {
	if !s.limiter.Allow() {
		s.log.Debugf("push throttled")
		return false
	}
	start := s.now()
	err := s.remote.Push(ctx, s.target.Export())
	s.record(coremetrics.SyncPush, start, err, false)
	if err != nil {
		s.log.Warnf("remote push: %v", err)
		return false
	}
	return true
}

// Pull fetches the remote document and merges it locally. It reports whether
// the local store changed.
func (s *Syncer) Pull(ctx context.Context) bool {
	start := s.now()
	doc, err := s.remote.Pull(ctx)
	if err != nil {
		s.record(coremetrics.SyncPull, start, err, false)
		s.log.Warnf("remote pull: %v", err)
		return false
	}
	if len(doc.Vessels) == 0 {
		s.record(coremetrics.SyncPull, start, nil, false)
		return false
	}
	changed, err := s.target.Merge(ctx, doc)
	s.record(coremetrics.SyncPull, start, err, changed)
	if err != nil {
		s.log.Warnf("merge remote document: %v", err)
		return false
	}
	return changed
}

// Sync pushes then pulls.
func (s *Syncer) Sync(ctx context.Context) {
	s.Push(ctx)
	s.Pull(ctx)
}

// Trigger runs Sync in the background, bounded by the configured timeout.
func (s *Syncer) Trigger() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := context.Background()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		s.Sync(ctx)
	}()
}

// Wait blocks until every triggered sync has finished.
func (s *Syncer) Wait() { s.wg.Wait() }

func (s *Syncer) record(direction string, start time.Time, err error, changed bool) {
	if s.rec == nil {
		return
	}
	ev := coremetrics.SyncEvent{
		Direction: direction,
		Success:   err == nil,
		Changed:   changed,
		Latency:   s.now().Sub(start),
		Time:      start,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if rerr := s.rec.RecordSync(ev); rerr != nil {
		s.log.Warnf("record sync: %v", rerr)
	}
}
