package correlator

import (
	"time"
)

// DefaultWatermarkExpiry is how long the Verified state is held before the
// tracker returns to Idle.
const DefaultWatermarkExpiry = 2 * time.Second

// progressHorizon is the wait duration mapped to 95% display progress while
// Waiting. The remaining 5% is reserved for the verification itself, so the
// bar never appears complete before the new segment actually plays.
const progressHorizon = 12 * time.Second

// WatermarkTracker tracks whether a just-deployed code change has become
// visible in playback. It is a three-state machine (Idle, Waiting, Verified)
// driven by Deploy, Observe and Tick. The tracker is not safe for concurrent
// use; the engine funnels all calls through its own lock.
type WatermarkTracker struct {
	state       WatermarkState
	watermarkID SegmentID
	armedAt     time.Time
	verifiedAt  time.Time
	progress    int
	expiry      time.Duration

	now func() time.Time // injectable for tests
}

// NewWatermarkTracker returns an Idle tracker whose Verified state expires
// after the given duration. expiry <= 0 selects DefaultWatermarkExpiry.
func NewWatermarkTracker(expiry time.Duration) *WatermarkTracker {
	if expiry <= 0 {
		expiry = DefaultWatermarkExpiry
	}
	return &WatermarkTracker{
		state:  WatermarkIdle,
		expiry: expiry,
		now:    time.Now,
	}
}

// Deploy arms the tracker: the code change is expected to first appear in
// segment watermarkID. The newest deployment is authoritative, so Deploy
// re-arms from any state, discarding an in-flight watermark or cutting a
// Verified hold short. Two exceptions, both reported by the false return:
// a zero id is rejected, and re-deploying the identical id while already
// Waiting is a no-op (progress is not reset a second time).
func (t *WatermarkTracker) Deploy(watermarkID SegmentID) bool {
	if watermarkID <= 0 {
		return false
	}
	if t.state == WatermarkWaiting && t.watermarkID == watermarkID {
		return false
	}

	t.state = WatermarkWaiting
	t.watermarkID = watermarkID
	t.armedAt = t.now()
	t.verifiedAt = time.Time{}
	t.progress = 0
	return true
}

// Observe feeds one played segment id to the tracker. It returns true only
// on the single Waiting -> Verified transition: the first processed-feed
// segment at or past the watermark. Everything else is a no-op — raw-feed
// ids (not a reliable signal of processed-code effects), segments below the
// watermark, and any observation while Idle or already Verified.
func (t *WatermarkTracker) Observe(segmentID SegmentID, feed FeedKind) bool {
	if t.state != WatermarkWaiting || feed != FeedProcessed {
		return false
	}
	if segmentID < t.watermarkID {
		return false
	}

	t.state = WatermarkVerified
	t.verifiedAt = t.now()
	t.progress = 100
	return true
}

// Tick advances time-driven behavior: the monotone display progress while
// Waiting, and the Verified -> Idle expiry. The engine calls it on a short
// interval; tests drive it through an injected clock.
func (t *WatermarkTracker) Tick() {
	now := t.now()
	switch t.state {
	case WatermarkWaiting:
		if p := waitingProgress(now.Sub(t.armedAt)); p > t.progress {
			t.progress = p
		}
	case WatermarkVerified:
		if now.Sub(t.verifiedAt) >= t.expiry {
			t.state = WatermarkIdle
			t.watermarkID = 0
			t.verifiedAt = time.Time{}
			t.progress = 0
		}
	}
}

// State returns the current lifecycle state.
func (t *WatermarkTracker) State() WatermarkState {
	return t.state
}

// View returns an immutable copy of the externally visible state.
func (t *WatermarkTracker) View() WatermarkView {
	v := WatermarkView{
		State:       t.state,
		WatermarkID: t.watermarkID,
		Progress:    t.progress,
	}
	if !t.verifiedAt.IsZero() {
		at := t.verifiedAt
		v.VerifiedAt = &at
	}
	return v
}

// waitingProgress maps elapsed wait time to 0..95.
func waitingProgress(elapsed time.Duration) int {
	if elapsed <= 0 {
		return 0
	}
	p := int(elapsed * 95 / progressHorizon)
	if p > 95 {
		p = 95
	}
	return p
}
