package correlator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"segment-correlator/internal/platform/metrics"
)

// DefaultTickInterval is how often the engine drives the watermark
// tracker's time-based behavior (progress, expiry).
const DefaultTickInterval = 250 * time.Millisecond

// EngineConfig carries the engine's tunables. Zero values select defaults.
type EngineConfig struct {
	PollInterval    time.Duration
	WatermarkExpiry time.Duration
	TickInterval    time.Duration
}

// Engine is the live segment correlation core. It owns the three mutable
// pieces of state — current segment, watermark, latest snapshot — and
// funnels every write through a single owner: fragment events through
// handleFragment, snapshots through the poller, the watermark through
// Deploy/Observe/Tick. Reads assemble whole immutable views.
type Engine struct {
	log     *slog.Logger
	metrics *metrics.Metrics
	poller  *StatusPoller
	tracker *WatermarkTracker
	session *FeedSessionManager

	tickInterval time.Duration

	mu             sync.Mutex
	currentSegment SegmentID

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine wires the core together. factory creates players on feed
// switches; fetcher feeds the status poller. Metrics may be nil.
func NewEngine(factory PlayerFactory, fetcher StatusFetcher, cfg EngineConfig, log *slog.Logger, m *metrics.Metrics) *Engine {
	e := &Engine{
		log:          log,
		metrics:      m,
		tracker:      NewWatermarkTracker(cfg.WatermarkExpiry),
		tickInterval: cfg.TickInterval,
	}
	if e.tickInterval <= 0 {
		e.tickInterval = DefaultTickInterval
	}
	e.poller = NewStatusPoller(fetcher, cfg.PollInterval, log, m)
	e.session = NewFeedSessionManager(factory, log, e.handleFragment)
	return e
}

// Start attaches the initial processed-feed session, starts the status
// poller, and begins driving watermark expiry.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.SwitchFeed(FeedProcessed); err != nil {
		return err
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.poller.Start(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.mu.Lock()
				e.tracker.Tick()
				e.mu.Unlock()
			}
		}
	}()
	return nil
}

// Stop tears down the session, halts polling, and stops the expiry driver.
// No state changes after Stop returns.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.poller.Stop()
	e.session.Close()
}

// SwitchFeed attaches the player to the given feed. The current segment is
// owned by the session, so it resets to "none" whenever a new session is
// created; switching to the already-active feed changes nothing.
func (e *Engine) SwitchFeed(feed FeedKind) error {
	if active, ok := e.session.ActiveFeed(); ok && active == feed {
		return nil
	}
	if err := e.session.SwitchTo(feed); err != nil {
		return err
	}

	e.mu.Lock()
	e.currentSegment = 0
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.IncFeedSwitches()
	}
	return nil
}

// ActiveFeed returns the feed currently attached, if any.
func (e *Engine) ActiveFeed() (FeedKind, bool) {
	return e.session.ActiveFeed()
}

// Deploy arms the watermark for a just-applied code change expected to
// first appear in segment firstNewSegment. Ids of zero or below are rejected
// as a no-op, reported by the false return. A true return means a watermark
// for that id is in place — either newly armed or already waiting on it.
func (e *Engine) Deploy(firstNewSegment SegmentID) bool {
	if firstNewSegment <= 0 {
		return false
	}

	e.mu.Lock()
	armed := e.tracker.Deploy(firstNewSegment)
	e.mu.Unlock()

	if armed {
		if e.metrics != nil {
			e.metrics.IncWatermarkDeploys()
		}
		e.log.Info("watermark armed", slog.Int64("first_new_segment", int64(firstNewSegment)))
	}
	return true
}

// DeployInferred arms a watermark for a deploy notification that carried no
// explicit segment id, the way the code-save workflow derives it: one past
// the newest ready segment in the latest snapshot. ok=false means nothing
// was armed because there is no snapshot (or no ready segments) to infer
// from yet.
func (e *Engine) DeployInferred() (SegmentID, bool) {
	snap, _ := e.poller.Snapshot()
	id := InferWatermark(snap)
	if id == 0 {
		e.log.Warn("cannot infer watermark, no ready segments in snapshot")
		return 0, false
	}
	return id, e.Deploy(id)
}

// Stale reports whether the most recent status poll failed.
func (e *Engine) Stale() bool {
	return e.poller.Stale()
}

// View assembles the current read-only state for rendering: the projected
// timeline, watermark view, health summary and staleness flag.
func (e *Engine) View() TimelineView {
	snap, _ := e.poller.Snapshot()
	stale := e.poller.Stale()
	feed, _ := e.session.ActiveFeed()

	e.mu.Lock()
	current := e.currentSegment
	wm := e.tracker.View()
	e.mu.Unlock()

	return TimelineView{
		Feed:           feed,
		CurrentSegment: current,
		Stale:          stale,
		Watermark:      wm,
		Segments:       ProjectTimeline(snap, current, wm),
		Health:         ProjectHealth(snap),
	}
}

// Snapshot exposes the poller's latest status document.
func (e *Engine) Snapshot() (*StatusSnapshot, bool) {
	return e.poller.Snapshot()
}

// handleFragment is the single write path for the current segment. Fragment
// URLs that match neither naming convention are dropped silently; they occur
// transiently during feed switches and are not an error. Raw-feed fragments
// update the current segment but never satisfy a waiting watermark.
func (e *Engine) handleFragment(feed FeedKind, fragmentURL string) {
	id, ok := ParseSegmentID(fragmentURL)
	if !ok {
		if e.metrics != nil {
			e.metrics.IncFragmentsUnparsed()
		}
		e.log.Debug("unparseable fragment url", slog.String("url", fragmentURL))
		return
	}

	e.mu.Lock()
	e.currentSegment = id
	verified := e.tracker.Observe(id, feed)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.IncFragmentsObserved()
		e.metrics.SetCurrentSegment(int64(id))
	}
	if verified {
		if e.metrics != nil {
			e.metrics.IncWatermarkVerified()
		}
		e.log.Info("first new segment is now playing",
			slog.Int64("segment", int64(id)))
	}
}
