package correlator

import (
	"reflect"
	"testing"
)

func TestProjectTimeline_nil_snapshot(t *testing.T) {
	if out := ProjectTimeline(nil, 102, WatermarkView{State: WatermarkIdle}); out != nil {
		t.Errorf("nil snapshot must project to nil, got %v", out)
	}
}

func TestProjectTimeline_played_playing_pending(t *testing.T) {
	snap := &StatusSnapshot{ReadySegments: []SegmentID{103, 102, 101}}
	out := ProjectTimeline(snap, 102, WatermarkView{State: WatermarkIdle})

	want := []AnnotatedSegment{
		{ID: 103, IsPlaying: false, HasPlayed: false},
		{ID: 102, IsPlaying: true, HasPlayed: false},
		{ID: 101, IsPlaying: false, HasPlayed: true},
	}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("got %+v\nwant %+v", out, want)
	}
}

func TestProjectTimeline_no_current_segment(t *testing.T) {
	snap := &StatusSnapshot{ReadySegments: []SegmentID{103, 102}}
	out := ProjectTimeline(snap, 0, WatermarkView{State: WatermarkIdle})

	for _, seg := range out {
		if seg.IsPlaying || seg.HasPlayed {
			t.Errorf("segment %d marked playing/played with no current segment", seg.ID)
		}
	}
}

func TestProjectTimeline_new_code_marking(t *testing.T) {
	snap := &StatusSnapshot{ReadySegments: []SegmentID{106, 105, 104}}
	wm := WatermarkView{State: WatermarkWaiting, WatermarkID: 105}
	out := ProjectTimeline(snap, 104, wm)

	marks := map[SegmentID]bool{}
	for _, seg := range out {
		marks[seg.ID] = seg.HasNewCode
	}
	if !marks[106] || !marks[105] || marks[104] {
		t.Errorf("new-code marks wrong: %v (want 106 and 105 marked, 104 not)", marks)
	}
}

func TestProjectTimeline_idle_watermark_marks_nothing(t *testing.T) {
	snap := &StatusSnapshot{ReadySegments: []SegmentID{106, 105}}
	// An idle view may still carry a stale id of 0; nothing gets marked.
	out := ProjectTimeline(snap, 0, WatermarkView{State: WatermarkIdle})
	for _, seg := range out {
		if seg.HasNewCode {
			t.Errorf("segment %d marked has-new-code while idle", seg.ID)
		}
	}
}

func TestProjectTimeline_caps_depth(t *testing.T) {
	ready := make([]SegmentID, 15)
	for i := range ready {
		ready[i] = SegmentID(200 - i)
	}
	out := ProjectTimeline(&StatusSnapshot{ReadySegments: ready}, 0, WatermarkView{State: WatermarkIdle})
	if len(out) != TimelineDepth {
		t.Errorf("timeline length = %d, want %d", len(out), TimelineDepth)
	}
	if out[0].ID != 200 {
		t.Errorf("order changed: first = %d, want 200 (as delivered)", out[0].ID)
	}
}

func TestProjectTimeline_deterministic(t *testing.T) {
	snap := &StatusSnapshot{ReadySegments: []SegmentID{103, 102, 101}}
	wm := WatermarkView{State: WatermarkWaiting, WatermarkID: 103}
	a := ProjectTimeline(snap, 102, wm)
	b := ProjectTimeline(snap, 102, wm)
	if !reflect.DeepEqual(a, b) {
		t.Error("identical inputs produced different projections")
	}
}

func TestProjectHealth(t *testing.T) {
	if ProjectHealth(nil) != nil {
		t.Error("nil snapshot must project to nil health")
	}

	h := ProjectHealth(&StatusSnapshot{
		Running:           true,
		TotalReady:        12,
		AvgDownloadTime:   1.2,
		AvgProcessingTime: 2.1,
		AvgTotalTime:      3.3,
	})
	if !h.Running || h.TotalReady != 12 || h.Lagging {
		t.Errorf("unexpected health: %+v", h)
	}

	lagging := ProjectHealth(&StatusSnapshot{AvgTotalTime: 6.5})
	if !lagging.Lagging {
		t.Error("avg total above segment duration must flag lagging")
	}
}

func TestInferWatermark(t *testing.T) {
	if id := InferWatermark(nil); id != 0 {
		t.Errorf("nil snapshot inferred %d, want 0", id)
	}
	if id := InferWatermark(&StatusSnapshot{}); id != 0 {
		t.Errorf("empty ready list inferred %d, want 0", id)
	}
	// One past the newest ready segment, wherever it sits in the list.
	if id := InferWatermark(&StatusSnapshot{ReadySegments: []SegmentID{103, 102, 101}}); id != 104 {
		t.Errorf("inferred %d, want 104", id)
	}
	if id := InferWatermark(&StatusSnapshot{ReadySegments: []SegmentID{101, 103, 102}}); id != 104 {
		t.Errorf("inferred %d from unordered list, want 104", id)
	}
}
