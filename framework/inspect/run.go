package inspect

import (
	"context"
	"sync"

	"github.com/lexcodex/codebase/framework"
)

// Run is a single inspection started by Inspector.Start.
//
// Its events must be consumed, either through Drain, by ranging over
// Events, or by calling Wait which discards them. Done closes after the
// event channel does.
type Run struct {
	id      string
	events  chan Event
	done    chan struct{}
	discard chan struct{}
	once    sync.Once
	wake    chan struct{}
	release func()

	mu       sync.Mutex
	pending  []Event
	finished bool
	result   Result
}

func newRun(id string, release func()) *Run {
	r := &Run{
		id:      id,
		events:  make(chan Event),
		done:    make(chan struct{}),
		discard: make(chan struct{}),
		wake:    make(chan struct{}, 1),
		release: release,
	}
	go r.pump()
	return r
}

// ID returns the run's unique identifier.
func (r *Run) ID() string { return r.id }

// Events returns the progress stream. The first event is EventStart.
func (r *Run) Events() <-chan Event { return r.events }

// Done is closed once the run finished and its events were delivered.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes or ctx is done. Events nobody has
// received yet are dropped.
func (r *Run) Wait(ctx context.Context) (Result, error) {
	r.once.Do(func() { close(r.discard) })
	select {
	case <-r.done:
		return r.snapshot(), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Drain delivers the run's events to sink on the calling goroutine and
// returns the result once OnComplete has been called.
func (r *Run) Drain(sink Sink) Result {
	if sink == nil {
		sink = SinkFuncs{}
	}
	for ev := range r.events {
		switch ev.Kind {
		case EventStart:
			sink.OnStart(r.id)
		case EventStage:
			sink.OnUpdate(ev.Stage, ev.State)
		}
	}
	<-r.done
	res := r.snapshot()
	sink.OnComplete(res)
	return res
}

func (r *Run) snapshot() Result {
	res := r.result
	res.Projects = framework.CloneProjects(r.result.Projects)
	return res
}

func (r *Run) emit(ev Event) {
	r.mu.Lock()
	r.pending = append(r.pending, ev)
	r.mu.Unlock()
	r.signal()
}

func (r *Run) finish(res Result) {
	r.mu.Lock()
	r.result = res
	r.finished = true
	r.mu.Unlock()
	r.signal()
}

func (r *Run) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// pump moves queued events to the unbuffered channel so the coordinator
// never blocks on a slow reader.
func (r *Run) pump() {
	defer func() {
		close(r.events)
		if r.release != nil {
			r.release()
		}
		close(r.done)
	}()
	discard := r.discard
	for {
		r.mu.Lock()
		batch := r.pending
		r.pending = nil
		finished := r.finished
		r.mu.Unlock()

		for _, ev := range batch {
			if discard == nil {
				break
			}
			select {
			case r.events <- ev:
			case <-discard:
				discard = nil
			}
		}
		if finished {
			return
		}
		select {
		case <-r.wake:
		case <-discard:
			discard = nil
		}
	}
}
