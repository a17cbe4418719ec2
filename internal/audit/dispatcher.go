package audit

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/goTrust/internal/logging"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// Logger reports dropped events. Nil discards the reports.
	Logger logging.Logger
}

// Dispatcher relays events to a sink from a single goroutine, so sinks see
// events in Emit order and never run on a request path.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	log       logging.Logger
	queue     chan queued
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// queued keeps the request id next to the event so the sink context carries
// it after the request has finished.
type queued struct {
	requestID string
	event     Event
}

func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop{}
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		log:   log.With("component", "audit"),
		queue: make(chan queued, cfg.BufferSize),
		done:  make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case q := <-d.queue:
			d.deliver(q)
		case <-d.done:
			for {
				select {
				case q := <-d.queue:
					d.deliver(q)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(q queued) {
	d.sink.Emit(logging.WithRequestID(context.Background(), q.requestID), q.event)
}

// Emit queues event. A missing RequestID is taken from ctx. Without
// DropIfFull, Emit waits for buffer space until ctx ends.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.RequestID == "" {
		event.RequestID = logging.RequestID(ctx)
	}
	q := queued{requestID: event.RequestID, event: event}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- q:
		case <-d.done:
		default:
			d.drop(ctx, event)
		}
		return
	}

	select {
	case d.queue <- q:
	case <-ctx.Done():
		d.drop(ctx, event)
	case <-d.done:
	}
}

// drop counts a lost event and logs at powers of two so a saturated sink
// cannot flood the log.
func (d *Dispatcher) drop(ctx context.Context, event Event) {
	n := d.dropped.Add(1)
	if n&(n-1) == 0 {
		d.log.Warn(ctx, "goTrust: audit event dropped",
			"event_type", event.EventType,
			"account_id", event.AccountID,
			"dropped_total", n)
	}
}

// Close delivers what is buffered and stops the relay goroutine.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
		if n := d.dropped.Load(); n > 0 {
			d.log.Warn(context.Background(), "goTrust: audit dispatcher closed with drops", "dropped_total", n)
		}
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
