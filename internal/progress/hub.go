package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/business-discovery/internal/metrics"
)

// Drop reasons reported to metrics.
const (
	DropBackpressure = "backpressure"
	DropInvalid      = "invalid"
	DropClosed       = "closed"
)

// Config tunes the Hub. Zero values fall back to defaults.
type Config struct {
	// BufferSize is the queue depth between Emit and the sinks.
	BufferSize int
	// MaxBatchEvents flushes a batch once it holds this many events.
	MaxBatchEvents int
	// MaxBatchWait bounds how long the first event of a batch waits for
	// company. Complete and error events never wait.
	MaxBatchWait time.Duration
	// SinkTimeout bounds each Consume call.
	SinkTimeout time.Duration
	BaseContext context.Context
	Logger      *zap.Logger
}

const (
	defaultBufferSize     = 1024
	defaultMaxBatchEvents = 64
	defaultMaxBatchWait   = 250 * time.Millisecond
	defaultSinkTimeout    = 10 * time.Second
	dropWarnEvery         = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.MaxBatchEvents <= 0 {
		c.MaxBatchEvents = defaultMaxBatchEvents
	}
	if c.MaxBatchWait <= 0 {
		c.MaxBatchWait = defaultMaxBatchWait
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = defaultSinkTimeout
	}
	if c.BaseContext == nil {
		c.BaseContext = context.Background()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Hub queues run events from any number of discovery runs and hands them to
// sinks in batches on a single goroutine. Emit never blocks.
type Hub struct {
	cfg   Config
	sinks []Sink
	queue chan Event
	log   *zap.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	closed   atomic.Bool
	// closeCtx is written before stop is closed and read only after.
	closeCtx context.Context

	pendingDrops atomic.Int64
	lastDropWarn atomic.Int64
}

// NewHub starts a Hub that delivers to sinks. Nil sinks are skipped.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	cfg = cfg.withDefaults()
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	h := &Hub{
		cfg:   cfg,
		sinks: kept,
		queue: make(chan Event, cfg.BufferSize),
		log:   cfg.Logger,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go h.loop()
	return h
}

// Emit queues evt. Anything that cannot be queued is counted in metrics and
// discarded.
func (h *Hub) Emit(evt Event) {
	if h == nil {
		return
	}
	if h.closed.Load() {
		metrics.ObserveProgressDropped(DropClosed, 1)
		return
	}
	if err := evt.Validate(); err != nil {
		metrics.ObserveProgressDropped(DropInvalid, 1)
		h.log.Debug("discarding malformed run event", zap.String("run_id", evt.RunID), zap.Error(err))
		return
	}
	select {
	case h.queue <- evt:
	default:
		metrics.ObserveProgressDropped(DropBackpressure, 1)
		h.pendingDrops.Add(1)
		h.warnDrops(time.Now())
	}
}

func (h *Hub) warnDrops(now time.Time) {
	last := h.lastDropWarn.Load()
	if now.UnixNano()-last < int64(dropWarnEvery) {
		return
	}
	if !h.lastDropWarn.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	h.log.Warn("run events dropped, sinks are falling behind",
		zap.Int64("dropped", h.pendingDrops.Swap(0)),
		zap.Int("queue_depth", len(h.queue)))
}

// Close stops intake and waits until queued events reach the sinks and the
// sinks are closed. Repeated calls only wait.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.stopOnce.Do(func() {
		h.closed.Store(true)
		h.closeCtx = ctx
		close(h.stop)
	})
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close progress hub: %w", ctx.Err())
	}
}

// loop owns the pending batch. The deadline starts with the first event of a
// batch and is not extended by later ones.
func (h *Hub) loop() {
	defer close(h.done)

	pending := make([]Event, 0, h.cfg.MaxBatchEvents)
	deadline := time.NewTimer(h.cfg.MaxBatchWait)
	deadline.Stop()
	var expired <-chan time.Time

	flush := func() {
		if len(pending) > 0 {
			h.deliver(pending)
			pending = make([]Event, 0, h.cfg.MaxBatchEvents)
		}
		deadline.Stop()
		expired = nil
	}

	for {
		select {
		case evt := <-h.queue:
			pending = append(pending, evt)
			switch {
			case len(pending) >= h.cfg.MaxBatchEvents, terminal(evt):
				flush()
			case expired == nil:
				deadline.Reset(h.cfg.MaxBatchWait)
				expired = deadline.C
			}
		case <-expired:
			expired = nil
			flush()
		case <-h.stop:
			h.drain(pending)
			h.closeSinks()
			return
		}
	}
}

func (h *Hub) drain(pending []Event) {
	for {
		select {
		case evt := <-h.queue:
			pending = append(pending, evt)
			if len(pending) >= h.cfg.MaxBatchEvents {
				h.deliver(pending)
				pending = nil
			}
		default:
			if len(pending) > 0 {
				h.deliver(pending)
			}
			return
		}
	}
}

// terminal reports whether evt ends a run. Those are delivered at once so
// completion notices are not held back by the batch deadline.
func terminal(evt Event) bool {
	return evt.Name == NameComplete || evt.Name == NameError
}

// deliver hands batch to every sink in order. Sinks may keep batch but must
// not modify it. Failures are logged, never retried.
func (h *Hub) deliver(batch []Event) {
	for _, sink := range h.sinks {
		ctx, cancel := context.WithTimeout(h.cfg.BaseContext, h.cfg.SinkTimeout)
		err := sink.Consume(ctx, batch)
		cancel()
		if err != nil {
			h.log.Warn("progress sink rejected batch",
				zap.Int("events", len(batch)),
				zap.String("first_run_id", batch[0].RunID),
				zap.Error(err))
		}
	}
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if err := sink.Close(ctx); err != nil {
			h.log.Warn("progress sink close failed", zap.Error(err))
		}
	}
}
