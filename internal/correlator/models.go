package correlator

import "time"

// SegmentID identifies one media segment in the encode sequence.
// Higher values are later; ids are not guaranteed to be contiguous.
// Zero means "no segment" throughout this package.
type SegmentID int64

// FeedKind names one of the two streams the operator can preview.
type FeedKind string

const (
	// FeedRaw is the unprocessed input stream.
	FeedRaw FeedKind = "raw"
	// FeedProcessed is the pipeline's output stream.
	FeedProcessed FeedKind = "processed"
)

// ParseFeedKind validates a feed name from external input.
func ParseFeedKind(s string) (FeedKind, bool) {
	switch FeedKind(s) {
	case FeedRaw, FeedProcessed:
		return FeedKind(s), true
	}
	return "", false
}

// StatusSnapshot is the aggregate pipeline-status document polled from the
// backend. Each successful poll supersedes the previous snapshot wholesale;
// snapshots are never merged field by field. The JSON field names match the
// backend's status endpoint.
type StatusSnapshot struct {
	Running           bool        `json:"running"`
	RecentSegments    []SegmentID `json:"recent_segments"`
	ReadySegments     []SegmentID `json:"ready_segments"`
	TotalProcessed    int         `json:"total_processed"`
	TotalReady        int         `json:"total_ready"`
	AvgProcessingTime float64     `json:"avg_processing_time"`
	AvgDownloadTime   float64     `json:"avg_download_time"`
	AvgTotalTime      float64     `json:"avg_total_time"`
}

// laggingThreshold is the average segment turnaround above which the
// pipeline can no longer keep up with real time (segments are 6 s long).
const laggingThreshold = 6.0

// Lagging reports whether the pipeline's average turnaround exceeds the
// segment duration, meaning the processed feed is falling behind live.
func (s *StatusSnapshot) Lagging() bool {
	return s.AvgTotalTime > laggingThreshold
}

// WatermarkState is the deployment watermark's lifecycle state. Transitions
// only move forward: Idle -> Waiting -> Verified -> (expiry) Idle.
type WatermarkState string

const (
	// WatermarkIdle means no deployment is being tracked.
	WatermarkIdle WatermarkState = "idle"
	// WatermarkWaiting means a deployment was armed and playback has not
	// yet reached its first new segment.
	WatermarkWaiting WatermarkState = "waiting"
	// WatermarkVerified means the first new segment has been observed
	// playing; the state expires back to Idle after a short hold.
	WatermarkVerified WatermarkState = "verified"
)

// WatermarkView is an immutable copy of the tracker's externally visible
// state, safe to hand to the projector and to render paths.
type WatermarkView struct {
	State       WatermarkState `json:"state"`
	WatermarkID SegmentID      `json:"watermark_id,omitempty"`
	Progress    int            `json:"progress"`
	VerifiedAt  *time.Time     `json:"verified_at,omitempty"`
}

// AnnotatedSegment is one entry of the projected timeline.
type AnnotatedSegment struct {
	ID         SegmentID `json:"id"`
	IsPlaying  bool      `json:"is_playing"`
	HasPlayed  bool      `json:"has_played"`
	HasNewCode bool      `json:"has_new_code"`
}
