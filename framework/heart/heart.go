package heart

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ErrAlreadyRunning is returned by Start on a running heart.
var ErrAlreadyRunning = errors.New("heart already running")

// Heart calls a beat function on a fixed interval and on demand. Beats run
// one at a time on the heart's own goroutine.
type Heart struct {
	interval time.Duration
	beat     func(context.Context)
	logger   *slog.Logger
	trigger  chan struct{}
	beats    atomic.Int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a heart. An interval <= 0 disables the ticker so only Trigger
// causes beats.
func New(interval time.Duration, beat func(context.Context), logger *slog.Logger) *Heart {
	if logger == nil {
		logger = slog.Default()
	}
	return &Heart{
		interval: interval,
		beat:     beat,
		logger:   logger.With("component", "heart"),
		trigger:  make(chan struct{}, 1),
	}
}

// Interval returns the configured beat interval.
func (h *Heart) Interval() time.Duration { return h.interval }

// Start launches the beat loop. It stops when ctx is done or Stop is called.
func (h *Heart) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	h.running = true
	h.cancel = cancel
	h.done = done
	go h.loop(loopCtx, done)
	h.logger.Info("heart started", "interval", h.interval)
	return nil
}

// Stop halts the loop and waits for an in-flight beat to return. Stopping
// a stopped heart is a no-op.
func (h *Heart) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	cancel, done := h.cancel, h.done
	h.running = false
	h.mu.Unlock()

	cancel()
	<-done
	h.logger.Info("heart stopped", "beats", h.beats.Load())
	return nil
}

// Running reports whether the loop is active.
func (h *Heart) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Trigger queues a manual beat. It returns false when a beat is already
// pending, in which case the request is merged into it.
func (h *Heart) Trigger() bool {
	select {
	case h.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Beats returns how many beats have run.
func (h *Heart) Beats() int64 { return h.beats.Load() }

func (h *Heart) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		h.mu.Lock()
		if h.done == done {
			h.running = false
		}
		h.mu.Unlock()
		close(done)
	}()

	var tick <-chan time.Time
	if h.interval > 0 {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			// A pending trigger is satisfied by this beat.
			select {
			case <-h.trigger:
			default:
			}
			h.fire(ctx, "interval")
		case <-h.trigger:
			select {
			case <-tick:
			default:
			}
			h.fire(ctx, "manual")
		}
	}
}

func (h *Heart) fire(ctx context.Context, source string) {
	if ctx.Err() != nil {
		return
	}
	n := h.beats.Add(1)
	h.logger.Debug("beat", "source", source, "count", n)
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("beat panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	h.beat(ctx)
}
