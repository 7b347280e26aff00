package correlator

import (
	"testing"
)

func newTestEngine(t *testing.T) (*Engine, *fakeFactory) {
	t.Helper()
	factory := &fakeFactory{}
	e := NewEngine(factory.create, &stubFetcher{}, EngineConfig{}, testLogger(), nil)
	if err := e.SwitchFeed(FeedProcessed); err != nil {
		t.Fatalf("initial feed switch: %v", err)
	}
	return e, factory
}

func TestEngine_fragment_updates_current_segment(t *testing.T) {
	e, _ := newTestEngine(t)

	e.handleFragment(FeedProcessed, "http://localhost:8000/api/segments/102.ts")
	if v := e.View(); v.CurrentSegment != 102 {
		t.Errorf("current segment = %d, want 102", v.CurrentSegment)
	}
}

func TestEngine_unparseable_fragment_ignored(t *testing.T) {
	e, _ := newTestEngine(t)

	e.handleFragment(FeedProcessed, "http://localhost:8000/api/segments/102.ts")
	e.handleFragment(FeedProcessed, "http://localhost:8000/api/stream")
	if v := e.View(); v.CurrentSegment != 102 {
		t.Errorf("unparseable fragment changed current segment to %d", v.CurrentSegment)
	}
}

func TestEngine_deploy_then_observe_crossing(t *testing.T) {
	e, _ := newTestEngine(t)
	e.handleFragment(FeedProcessed, "/segments/102.ts")

	if !e.Deploy(105) {
		t.Fatal("Deploy(105) should arm")
	}
	if st := e.View().Watermark.State; st != WatermarkWaiting {
		t.Fatalf("state = %s, want waiting", st)
	}

	e.handleFragment(FeedProcessed, "/segments/104.ts")
	if st := e.View().Watermark.State; st != WatermarkWaiting {
		t.Errorf("state = %s after 104 < 105, want waiting", st)
	}

	e.handleFragment(FeedProcessed, "/segments/105.ts")
	if st := e.View().Watermark.State; st != WatermarkVerified {
		t.Errorf("state = %s after 105, want verified", st)
	}
}

func TestEngine_deploy_zero_rejected(t *testing.T) {
	e, _ := newTestEngine(t)
	if e.Deploy(0) {
		t.Error("Deploy(0) must be a no-op")
	}
	if st := e.View().Watermark.State; st != WatermarkIdle {
		t.Errorf("state = %s, want idle", st)
	}
}

func TestEngine_raw_feed_freezes_watermark(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Deploy(105)

	if err := e.SwitchFeed(FeedRaw); err != nil {
		t.Fatalf("SwitchFeed(raw): %v", err)
	}
	e.handleFragment(FeedRaw, "https://cdn.example.com/prefix/106.ts")

	v := e.View()
	if v.Watermark.State != WatermarkWaiting {
		t.Errorf("state = %s, want waiting (raw feed must not verify)", v.Watermark.State)
	}
	// The raw feed still drives the current-segment display.
	if v.CurrentSegment != 106 {
		t.Errorf("current segment = %d, want 106", v.CurrentSegment)
	}
}

func TestEngine_switch_resets_current_segment(t *testing.T) {
	e, _ := newTestEngine(t)
	e.handleFragment(FeedProcessed, "/segments/102.ts")

	if err := e.SwitchFeed(FeedRaw); err != nil {
		t.Fatalf("SwitchFeed: %v", err)
	}
	if v := e.View(); v.CurrentSegment != 0 {
		t.Errorf("current segment = %d after switch, want 0 (none)", v.CurrentSegment)
	}
}

func TestEngine_same_feed_switch_keeps_current_segment(t *testing.T) {
	e, factory := newTestEngine(t)
	e.handleFragment(FeedProcessed, "/segments/102.ts")

	if err := e.SwitchFeed(FeedProcessed); err != nil {
		t.Fatalf("SwitchFeed: %v", err)
	}
	if v := e.View(); v.CurrentSegment != 102 {
		t.Errorf("no-op switch reset current segment to %d", v.CurrentSegment)
	}
	if len(factory.players) != 1 {
		t.Errorf("no-op switch created a session (players = %d)", len(factory.players))
	}
}

func TestEngine_deploy_inferred_from_snapshot(t *testing.T) {
	e, _ := newTestEngine(t)
	e.poller.apply(1, &StatusSnapshot{ReadySegments: []SegmentID{103, 102, 101}}, nil)

	id, ok := e.DeployInferred()
	if !ok || id != 104 {
		t.Fatalf("DeployInferred = %d, %v; want 104, true", id, ok)
	}
	if v := e.View(); v.Watermark.State != WatermarkWaiting || v.Watermark.WatermarkID != 104 {
		t.Errorf("watermark = %+v, want waiting on 104", v.Watermark)
	}
}

func TestEngine_deploy_inferred_without_snapshot(t *testing.T) {
	e, _ := newTestEngine(t)
	if _, ok := e.DeployInferred(); ok {
		t.Error("inference must fail with no snapshot")
	}
	if st := e.View().Watermark.State; st != WatermarkIdle {
		t.Errorf("state = %s, want idle", st)
	}
}

func TestEngine_view_projects_snapshot(t *testing.T) {
	e, _ := newTestEngine(t)
	e.poller.apply(1, &StatusSnapshot{
		Running:       true,
		ReadySegments: []SegmentID{103, 102, 101},
		TotalReady:    3,
	}, nil)
	e.handleFragment(FeedProcessed, "/segments/102.ts")

	v := e.View()
	if v.Feed != FeedProcessed || v.Stale {
		t.Errorf("view header wrong: %+v", v)
	}
	if len(v.Segments) != 3 || !v.Segments[1].IsPlaying || !v.Segments[2].HasPlayed {
		t.Errorf("projected segments wrong: %+v", v.Segments)
	}
	if v.Health == nil || !v.Health.Running {
		t.Errorf("health missing: %+v", v.Health)
	}
}

func TestEngine_view_without_snapshot(t *testing.T) {
	e, _ := newTestEngine(t)
	v := e.View()
	if v.Segments != nil || v.Health != nil {
		t.Errorf("empty view expected before first poll, got %+v", v)
	}
}
