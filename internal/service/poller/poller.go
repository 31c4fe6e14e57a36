package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"media-transcription-proxy/internal/models"
)

// TimeoutMessage is shown to users when polling gives up.
const TimeoutMessage = "Transcription timed out. Try a shorter file or use the URL method."

var (
	// ErrNotReady is returned by a StatusFetcher while the result is pending.
	ErrNotReady = errors.New("transcription not ready")
	// ErrTimeout ends polling after the schedule's timeout.
	ErrTimeout = errors.New("transcription timed out")
)

// StatusFetcher retrieves a result. It returns ErrNotReady for "not found".
type StatusFetcher interface {
	FetchStatus(ctx context.Context, resultID string) (*models.TranscriptionResult, error)
}

// Update is reported after every poll.
type Update struct {
	State   State
	Attempt int
	Elapsed time.Duration
	Next    time.Duration
}

// Poller runs polling loops against a StatusFetcher.
type Poller struct {
	fetcher  StatusFetcher
	schedule Schedule
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	observe  func(Update)
}

type Option func(*Poller)

// WithSchedule overrides DefaultSchedule.
func WithSchedule(s Schedule) Option {
	return func(p *Poller) { p.schedule = s }
}

// WithClock overrides the time source and the wait between polls.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) {
		p.now = now
		p.sleep = sleep
	}
}

// WithObserver receives an Update after every poll. It runs on the polling
// goroutine and must not block.
func WithObserver(fn func(Update)) Option {
	return func(p *Poller) { p.observe = fn }
}

// New creates a Poller.
func New(f StatusFetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  f,
		schedule: DefaultSchedule(),
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Handle controls one running polling loop.
type Handle struct {
	lc     *Lifecycle
	cancel context.CancelFunc
	done   chan struct{}
	now    func() time.Time

	mu      sync.Mutex
	result  *models.TranscriptionResult
	err     error
	started time.Time
	ended   time.Time
}

// Stop cancels polling and waits for the loop to exit. Safe to call more than once.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

// Wait blocks until the loop ends and returns its outcome.
func (h *Handle) Wait() (*models.TranscriptionResult, error) {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.err
}

// Done is closed when the loop ends.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// State returns the lifecycle state.
func (h *Handle) State() State {
	return h.lc.State()
}

// Elapsed is the time spent polling so far, or in total once finished.
func (h *Handle) Elapsed() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.ended.IsZero() {
		return h.ended.Sub(h.started)
	}
	return h.now().Sub(h.started)
}

// Start begins polling for the lifecycle's result id. lc must be processing.
func (p *Poller) Start(ctx context.Context, lc *Lifecycle) (*Handle, error) {
	if lc.State() != StateProcessing {
		return nil, ErrNotProcessing
	}
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		lc:      lc,
		cancel:  cancel,
		done:    make(chan struct{}),
		now:     p.now,
		started: p.now(),
	}
	go p.run(ctx, h)
	return h, nil
}

// Poll is Start followed by Wait for a known result id.
func (p *Poller) Poll(ctx context.Context, resultID string) (*models.TranscriptionResult, error) {
	lc := NewLifecycle()
	if err := lc.Accept(resultID); err != nil {
		return nil, err
	}
	h, err := p.Start(ctx, lc)
	if err != nil {
		return nil, err
	}
	return h.Wait()
}

func (p *Poller) run(ctx context.Context, h *Handle) {
	defer close(h.done)
	defer h.cancel()

	id := h.lc.ResultID()
	interval := p.schedule.Initial
	attempt := 0

	for {
		if err := p.sleep(ctx, interval); err != nil {
			p.finish(h, nil, err)
			return
		}

		attempt++
		res, err := p.fetcher.FetchStatus(ctx, id)
		elapsed := p.now().Sub(h.started)

		switch {
		case err == nil:
			p.finish(h, res, nil)
			p.notify(h, attempt, elapsed, 0)
			return
		case errors.Is(err, ErrNotReady):
		case ctx.Err() != nil:
			p.finish(h, nil, ctx.Err())
			return
		default:
			p.finish(h, nil, err)
			p.notify(h, attempt, elapsed, 0)
			return
		}

		next, ok := p.schedule.Next(attempt, elapsed, interval)
		if !ok {
			p.finish(h, nil, ErrTimeout)
			p.notify(h, attempt, elapsed, 0)
			return
		}
		interval = next
		p.notify(h, attempt, elapsed, interval)
	}
}

func (p *Poller) finish(h *Handle, res *models.TranscriptionResult, err error) {
	if err == nil {
		_ = h.lc.Complete()
	} else {
		h.lc.Fail(err)
	}
	h.mu.Lock()
	h.result = res
	h.err = err
	h.ended = p.now()
	h.mu.Unlock()
}

func (p *Poller) notify(h *Handle, attempt int, elapsed, next time.Duration) {
	if p.observe == nil {
		return
	}
	p.observe(Update{State: h.lc.State(), Attempt: attempt, Elapsed: elapsed, Next: next})
}
