package correlator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"segment-correlator/internal/platform/metrics"

	"github.com/go-resty/resty/v2"
)

// DefaultPollInterval matches the backend's expectation of one status poll
// per second.
const DefaultPollInterval = time.Second

// StatusFetcher retrieves one pipeline-status document. Implementations may
// block; the poller always calls it with a cancelable context.
type StatusFetcher interface {
	FetchStatus(ctx context.Context) (*StatusSnapshot, error)
}

// HTTPStatusFetcher fetches the status document from the backend's status
// endpoint over HTTP.
type HTTPStatusFetcher struct {
	client *resty.Client
	url    string
}

// NewHTTPStatusFetcher returns a fetcher for the given status URL. The
// timeout bounds each individual request; zero disables it.
func NewHTTPStatusFetcher(url string, timeout time.Duration) *HTTPStatusFetcher {
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &HTTPStatusFetcher{client: client, url: url}
}

// FetchStatus implements StatusFetcher. Network failures, non-2xx statuses
// and malformed bodies all surface as errors; the poller maps every error
// to "keep the previous snapshot".
func (f *HTTPStatusFetcher) FetchStatus(ctx context.Context) (*StatusSnapshot, error) {
	var snap StatusSnapshot
	resp, err := f.client.R().
		SetContext(ctx).
		SetResult(&snap).
		ForceContentType("application/json").
		Get(f.url)
	if err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("status endpoint returned %s", resp.Status())
	}
	return &snap, nil
}

// StatusPoller periodically fetches the pipeline status and holds the latest
// snapshot. A successful poll replaces the snapshot wholesale and clears the
// stale flag; a failed poll keeps the previous snapshot and sets it. Polls
// are tagged with an issue generation, and a resolved response is only
// applied if no response from a later-issued poll has been applied already,
// so a slow out-of-order response can never overwrite newer data.
type StatusPoller struct {
	fetcher  StatusFetcher
	interval time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	snapshot *StatusSnapshot
	stale    bool
	lastGen  uint64
	nextGen  uint64
	stopped  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStatusPoller returns a poller that is not yet running. interval <= 0
// selects DefaultPollInterval. Metrics may be nil (e.g. in tests).
func NewStatusPoller(fetcher StatusFetcher, interval time.Duration, log *slog.Logger, m *metrics.Metrics) *StatusPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &StatusPoller{
		fetcher:  fetcher,
		interval: interval,
		log:      log,
		metrics:  m,
	}
}

// Start begins polling: one fetch immediately, then one per interval, until
// Stop is called or ctx is canceled.
func (p *StatusPoller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop halts polling and discards the result of any fetch still in flight.
// After Stop returns, the held snapshot no longer changes.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Snapshot returns the latest applied snapshot, or ok=false if no poll has
// succeeded yet. The returned value is never mutated afterwards.
func (p *StatusPoller) Snapshot() (*StatusSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot, p.snapshot != nil
}

// Stale reports whether the most recent poll outcome was a failure.
func (p *StatusPoller) Stale() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stale
}

func (p *StatusPoller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.issue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Fetch in its own goroutine so a slow response never delays
			// the next poll; ordering is enforced at apply time.
			p.issue(ctx)
		}
	}
}

func (p *StatusPoller) issue(ctx context.Context) {
	p.mu.Lock()
	p.nextGen++
	gen := p.nextGen
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		snap, err := p.fetcher.FetchStatus(ctx)
		p.apply(gen, snap, err)
	}()
}

// apply records the outcome of the poll issued as generation gen. Outcomes
// from polls issued before the last applied one are discarded, as is
// anything arriving after Stop.
func (p *StatusPoller) apply(gen uint64, snap *StatusSnapshot, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || gen <= p.lastGen {
		return
	}
	p.lastGen = gen

	if err != nil {
		p.stale = true
		if p.metrics != nil {
			p.metrics.IncPollFailures()
		}
		p.log.Warn("status poll failed, keeping previous snapshot", "error", err)
		return
	}

	p.snapshot = snap
	p.stale = false
	if p.metrics != nil {
		p.metrics.IncPollSuccesses()
	}
}
