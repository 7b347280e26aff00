package correlator

// TimelineDepth caps how many ready segments the projected timeline shows.
const TimelineDepth = 10

// HealthView summarizes pipeline health for the operator header.
type HealthView struct {
	Running         bool    `json:"running"`
	TotalProcessed  int     `json:"total_processed"`
	TotalReady      int     `json:"total_ready"`
	AvgDownloadTime float64 `json:"avg_download_time"`
	AvgProcessTime  float64 `json:"avg_processing_time"`
	AvgTotalTime    float64 `json:"avg_total_time"`
	Lagging         bool    `json:"lagging"`
}

// TimelineView is the read-only value the renderer consumes. The core
// exposes no mutation surface through it.
type TimelineView struct {
	Feed           FeedKind           `json:"feed"`
	CurrentSegment SegmentID          `json:"current_segment,omitempty"`
	Stale          bool               `json:"stale"`
	Watermark      WatermarkView      `json:"watermark"`
	Segments       []AnnotatedSegment `json:"segments"`
	Health         *HealthView        `json:"health,omitempty"`
}

// ProjectTimeline combines the latest status snapshot, the segment currently
// playing, and the watermark state into the annotated timeline. It is pure:
// identical inputs always yield identical output. A nil snapshot projects to
// nil — absence of data is itself the signal and renders as a placeholder.
//
// Ready segments are taken as delivered (most-recent-first), capped to
// TimelineDepth.
func ProjectTimeline(snapshot *StatusSnapshot, currentSegment SegmentID, wm WatermarkView) []AnnotatedSegment {
	if snapshot == nil {
		return nil
	}

	ready := snapshot.ReadySegments
	if len(ready) > TimelineDepth {
		ready = ready[:TimelineDepth]
	}

	out := make([]AnnotatedSegment, 0, len(ready))
	for _, id := range ready {
		out = append(out, AnnotatedSegment{
			ID:         id,
			IsPlaying:  currentSegment != 0 && id == currentSegment,
			HasPlayed:  currentSegment != 0 && id < currentSegment,
			HasNewCode: wm.State != WatermarkIdle && id >= wm.WatermarkID,
		})
	}
	return out
}

// ProjectHealth derives the header health summary from a snapshot.
// Nil in, nil out.
func ProjectHealth(snapshot *StatusSnapshot) *HealthView {
	if snapshot == nil {
		return nil
	}
	return &HealthView{
		Running:         snapshot.Running,
		TotalProcessed:  snapshot.TotalProcessed,
		TotalReady:      snapshot.TotalReady,
		AvgDownloadTime: snapshot.AvgDownloadTime,
		AvgProcessTime:  snapshot.AvgProcessingTime,
		AvgTotalTime:    snapshot.AvgTotalTime,
		Lagging:         snapshot.Lagging(),
	}
}

// InferWatermark derives the first segment expected to carry a change that
// was applied right now: one past the newest ready segment. Zero means no
// watermark can be inferred (no snapshot or no ready segments yet).
func InferWatermark(snapshot *StatusSnapshot) SegmentID {
	if snapshot == nil || len(snapshot.ReadySegments) == 0 {
		return 0
	}
	newest := snapshot.ReadySegments[0]
	for _, id := range snapshot.ReadySegments[1:] {
		if id > newest {
			newest = id
		}
	}
	return newest + 1
}
