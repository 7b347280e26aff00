// Package player provides a concrete playback-side fragment source: an HLS
// media-playlist monitor. It does not decode media; it follows the feed's
// playlist and reports each newly appended fragment URL in order, which is
// all the correlation core needs from a player.
package player

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/grafov/m3u8"
)

// DefaultRefreshInterval is how often the playlist is re-fetched. Half a
// typical live target duration keeps fragment notifications timely without
// hammering the origin.
const DefaultRefreshInterval = 2 * time.Second

// Monitor polls an HLS playlist and emits each new media fragment URI
// exactly once, in playlist order. It implements the correlator's Player
// contract: listeners are registered before Start, and no listener fires
// after Close returns.
type Monitor struct {
	playlistURL string
	interval    time.Duration
	client      *resty.Client
	log         *slog.Logger

	fragFn func(fragmentURL string)
	errFn  func(err error)

	lastSeq uint64
	hasLast bool

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewMonitor returns a monitor for the given playlist URL. interval <= 0
// selects DefaultRefreshInterval.
func NewMonitor(playlistURL string, interval time.Duration, log *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Monitor{
		playlistURL: playlistURL,
		interval:    interval,
		client:      resty.New().SetTimeout(interval * 2),
		log:         log,
	}
}

// OnFragment registers the fragment listener. Must be called before Start.
func (m *Monitor) OnFragment(fn func(fragmentURL string)) {
	m.fragFn = fn
}

// OnError registers the error listener. Must be called before Start.
func (m *Monitor) OnError(fn func(err error)) {
	m.errFn = fn
}

// Start begins following the playlist.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("monitor already started")
	}
	m.started = true

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go m.run(ctx)
	return nil
}

// Close stops the monitor. When it returns, no listener will fire again.
func (m *Monitor) Close() error {
	m.mu.Lock()
	m.closed = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	return nil
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

func (m *Monitor) refresh(ctx context.Context) {
	if err := m.refreshOnce(ctx); err != nil && ctx.Err() == nil {
		m.emitError(err)
	}
}

func (m *Monitor) refreshOnce(ctx context.Context) error {
	resp, err := m.client.R().SetContext(ctx).Get(m.playlistURL)
	if err != nil {
		return fmt.Errorf("fetch playlist: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("playlist endpoint returned %s", resp.Status())
	}

	pl, listType, err := m3u8.DecodeFrom(bytes.NewReader(resp.Body()), true)
	if err != nil {
		return fmt.Errorf("decode playlist: %w", err)
	}

	switch listType {
	case m3u8.MASTER:
		// Follow the first variant; the dashboard previews a single
		// rendition per feed.
		master := pl.(*m3u8.MasterPlaylist)
		if len(master.Variants) == 0 {
			return fmt.Errorf("master playlist has no variants")
		}
		variant, err := resolveURL(m.playlistURL, master.Variants[0].URI)
		if err != nil {
			return err
		}
		m.playlistURL = variant
		return m.refreshOnce(ctx)

	case m3u8.MEDIA:
		media := pl.(*m3u8.MediaPlaylist)
		m.emitNewSegments(media)
		return nil
	}
	return fmt.Errorf("unrecognized playlist type")
}

// emitNewSegments reports, in order, every fragment whose media sequence is
// past the last one already reported. On the first refresh everything in
// the window is reported so playback state catches up immediately.
func (m *Monitor) emitNewSegments(media *m3u8.MediaPlaylist) {
	seq := media.SeqNo
	for _, seg := range media.Segments {
		if seg == nil {
			// Decoded playlists hold segments contiguously from index 0;
			// the first nil marks the end of the window.
			break
		}
		if !m.hasLast || seq > m.lastSeq {
			uri, err := resolveURL(m.playlistURL, seg.URI)
			if err != nil {
				m.emitError(err)
			} else {
				m.emitFragment(uri)
			}
			m.lastSeq = seq
			m.hasLast = true
		}
		seq++
	}
}

func (m *Monitor) emitFragment(uri string) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed || m.fragFn == nil {
		return
	}
	m.fragFn(uri)
}

func (m *Monitor) emitError(err error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}
	if m.errFn != nil {
		m.errFn(err)
		return
	}
	m.log.Warn("playlist monitor error", slog.String("error", err.Error()))
}

// resolveURL resolves a possibly relative playlist or fragment URI against
// the playlist it came from.
func resolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse playlist url: %w", err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse fragment url %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}
