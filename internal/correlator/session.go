package correlator

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Player is the boundary to the underlying media-playback engine. The
// engine that actually fetches and demuxes the stream is external to this
// package; the correlator only consumes its fragment-change notifications.
// Callbacks must be registered before Start and are invoked serially.
type Player interface {
	// OnFragment registers the fragment-change listener. It is called with
	// the raw fragment URL; interpretation is the caller's business.
	OnFragment(fn func(fragmentURL string))
	// OnError registers the playback-error listener.
	OnError(fn func(err error))
	// Start begins playback-side activity (and with it, notifications).
	Start() error
	// Close releases the player. No callback fires after Close returns.
	Close() error
}

// PlayerFactory creates a player attached to the given feed.
type PlayerFactory func(feed FeedKind) (Player, error)

// feedSession is one live player attachment. The closed flag is what lets
// the manager drop fragment events that race with teardown.
type feedSession struct {
	id     uuid.UUID
	feed   FeedKind
	player Player

	mu     sync.Mutex
	closed bool
}

func (s *feedSession) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *feedSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// FeedSessionManager owns the lifecycle of the single player attachment.
// At most one session is alive at any time: switching feeds tears the old
// session down completely before the new one is created. Player errors are
// logged and never tear a session down; retry is the player's own business.
type FeedSessionManager struct {
	factory    PlayerFactory
	log        *slog.Logger
	onFragment func(feed FeedKind, fragmentURL string)

	mu     sync.Mutex
	active *feedSession
}

// NewFeedSessionManager returns a manager with no active session.
// onFragment receives every fragment-change notification from the live
// session, tagged with the feed it belongs to; it is never invoked for a
// session that has been torn down.
func NewFeedSessionManager(factory PlayerFactory, log *slog.Logger, onFragment func(feed FeedKind, fragmentURL string)) *FeedSessionManager {
	return &FeedSessionManager{
		factory:    factory,
		log:        log,
		onFragment: onFragment,
	}
}

// SwitchTo attaches a player to the given feed. Switching to the feed that
// is already active is a no-op. Otherwise any existing session is destroyed
// first — listener detached, player released — and only then is the new one
// created, so two sessions are never alive at once.
func (m *FeedSessionManager) SwitchTo(feed FeedKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && m.active.feed == feed {
		return nil
	}
	m.teardownLocked()

	player, err := m.factory(feed)
	if err != nil {
		return fmt.Errorf("create %s player: %w", feed, err)
	}

	session := &feedSession{
		id:     uuid.New(),
		feed:   feed,
		player: player,
	}

	player.OnFragment(func(fragmentURL string) {
		// A notification can race teardown: the player may already have
		// been handed a fragment when Close is called. Drop it.
		if session.isClosed() {
			return
		}
		m.onFragment(session.feed, fragmentURL)
	})
	player.OnError(func(err error) {
		m.log.Warn("player error",
			slog.String("session_id", session.id.String()),
			slog.String("feed", string(session.feed)),
			slog.String("error", err.Error()))
	})

	if err := player.Start(); err != nil {
		session.markClosed()
		_ = player.Close()
		return fmt.Errorf("start %s player: %w", feed, err)
	}

	m.active = session
	m.log.Info("feed session started",
		slog.String("session_id", session.id.String()),
		slog.String("feed", string(feed)))
	return nil
}

// ActiveFeed returns the feed of the live session, if any.
func (m *FeedSessionManager) ActiveFeed() (FeedKind, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return "", false
	}
	return m.active.feed, true
}

// Close destroys the active session, if any.
func (m *FeedSessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

func (m *FeedSessionManager) teardownLocked() {
	if m.active == nil {
		return
	}
	session := m.active
	m.active = nil

	// Mark closed before releasing the player so the fragment listener
	// rejects anything already in flight.
	session.markClosed()
	if err := session.player.Close(); err != nil {
		m.log.Warn("player close failed",
			slog.String("session_id", session.id.String()),
			slog.String("feed", string(session.feed)),
			slog.String("error", err.Error()))
	}
	m.log.Info("feed session destroyed",
		slog.String("session_id", session.id.String()),
		slog.String("feed", string(session.feed)))
}
