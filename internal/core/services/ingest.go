package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driven"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.IngestService = (*EventBuffer)(nil)

// BufferSignalType classifies buffer lifecycle signals
type BufferSignalType string

const (
	// SignalBufferFull fires on an emergency flush so callers can apply
	// backpressure upstream
	SignalBufferFull BufferSignalType = "buffer_full"

	// SignalFlushError fires when a transactional flush fails. The taken
	// events are restored; the surrounding system is expected to alert on
	// repeated flush errors rather than the buffer dropping data.
	SignalFlushError BufferSignalType = "flush_error"
)

// BufferSignal is one emitted buffer event
type BufferSignal struct {
	Type  BufferSignalType
	Count int
	Err   error
}

// EventBuffer decouples high-frequency event emission from storage write
// cost. Ingestion appends to an in-memory slice and never blocks on I/O;
// flushes take up to BatchSize events off the front and write them in one
// transaction through the EventStore. At most one flush is in flight at a
// time; a trigger arriving during a flush is a no-op and the running flush
// drains the accumulated backlog itself.
//
// Delivery is at-least-once: a failed flush pushes the taken events back
// onto the front in order, and data is lost only if the process dies
// before a successful flush.
type EventBuffer struct {
	store    driven.EventStore
	logger   *slog.Logger
	onSignal func(BufferSignal)

	batchSize     int
	maxBufferSize int
	flushInterval time.Duration

	mu           sync.Mutex
	buf          []*domain.ConnectorEvent
	isProcessing bool
	closed       bool
	stopCh       chan struct{}
	doneCh       chan struct{}
	started      bool
}

// EventBufferConfig holds configuration for the EventBuffer.
type EventBufferConfig struct {
	Store  driven.EventStore
	Logger *slog.Logger

	// OnSignal receives buffer_full and flush_error signals (optional)
	OnSignal func(BufferSignal)

	// BatchSize is the normal flush threshold and batch size (default: 100)
	BatchSize int

	// MaxBufferSize is the emergency flush threshold (default: 10x BatchSize)
	MaxBufferSize int

	// FlushInterval is the wall-clock flush cadence (default: 5s)
	FlushInterval time.Duration
}

// NewEventBuffer creates an event buffer. Call Start to begin the flush
// timer; ingestion works before Start but relies on size triggers only.
func NewEventBuffer(cfg EventBufferConfig) *EventBuffer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	maxBufferSize := cfg.MaxBufferSize
	if maxBufferSize <= batchSize {
		maxBufferSize = batchSize * 10
	}

	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}

	return &EventBuffer{
		store:         cfg.Store,
		logger:        logger,
		onSignal:      cfg.OnSignal,
		batchSize:     batchSize,
		maxBufferSize: maxBufferSize,
		flushInterval: flushInterval,
	}
}

// Start begins the periodic flush timer.
func (b *EventBuffer) Start() {
	b.mu.Lock()
	if b.started || b.closed {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})
	b.mu.Unlock()

	go b.run()
}

func (b *EventBuffer) run() {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.mu.Lock()
			pending := len(b.buf)
			b.mu.Unlock()
			if pending > 0 {
				b.processBuffer()
			}
		}
	}
}

// IngestEvent appends one event to the buffer. Synchronous and never
// blocks on I/O; any resulting flush runs asynchronously.
func (b *EventBuffer) IngestEvent(event *domain.ConnectorEvent) error {
	return b.IngestEvents([]*domain.ConnectorEvent{event})
}

// IngestEvents appends events to the buffer and fires whichever flush
// trigger applies first: batch-size or emergency max-buffer.
func (b *EventBuffer) IngestEvents(events []*domain.ConnectorEvent) error {
	if len(events) == 0 {
		return nil
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return domain.ErrBufferClosed
	}
	b.buf = append(b.buf, events...)
	size := len(b.buf)
	b.mu.Unlock()

	if size >= b.maxBufferSize {
		b.emit(BufferSignal{Type: SignalBufferFull, Count: size})
		b.logger.Warn("event buffer at emergency capacity", "buffered", size)
		go b.processBuffer()
	} else if size >= b.batchSize {
		go b.processBuffer()
	}

	return nil
}

// Len returns the number of buffered, unflushed events.
func (b *EventBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// processBuffer performs flushes until the buffer drops below one batch or
// a flush fails. The isProcessing guard makes concurrent calls no-ops, so
// the buffer slice is only ever taken from by one flusher.
func (b *EventBuffer) processBuffer() {
	b.mu.Lock()
	if b.isProcessing || b.closed || len(b.buf) == 0 {
		b.mu.Unlock()
		return
	}
	b.isProcessing = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.isProcessing = false
		b.mu.Unlock()
	}()

	for {
		b.mu.Lock()
		if len(b.buf) == 0 {
			b.mu.Unlock()
			return
		}
		take := b.batchSize
		if take > len(b.buf) {
			take = len(b.buf)
		}
		batch := make([]*domain.ConnectorEvent, take)
		copy(batch, b.buf[:take])
		b.buf = b.buf[take:]
		b.mu.Unlock()

		if err := b.store.InsertBatch(context.Background(), batch); err != nil {
			// Restore the taken events to the front, preserving order, so
			// the next flush attempt replays them before anything newer
			b.mu.Lock()
			b.buf = append(batch, b.buf...)
			b.mu.Unlock()

			b.logger.Error("event flush failed", "batch_size", len(batch), "error", err)
			b.emit(BufferSignal{Type: SignalFlushError, Count: len(batch), Err: err})
			return
		}

		b.mu.Lock()
		backlog := len(b.buf)
		b.mu.Unlock()
		if backlog < b.batchSize {
			return
		}
	}
}

// Shutdown stops the flush timer and performs one final best-effort flush.
// Further ingestion returns domain.ErrBufferClosed.
func (b *EventBuffer) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	started := b.started
	b.mu.Unlock()

	if started {
		close(b.stopCh)
		<-b.doneCh
	}

	// An in-flight flush may still fail and restore its batch; wait for it
	// to settle before taking the buffer so those events make the final
	// drain. New flushers no longer start once closed is set.
	for {
		b.mu.Lock()
		busy := b.isProcessing
		b.mu.Unlock()
		if !busy {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}

	b.mu.Lock()
	remaining := b.buf
	b.buf = nil
	b.mu.Unlock()

	if len(remaining) == 0 {
		return nil
	}

	if err := b.store.InsertBatch(ctx, remaining); err != nil {
		b.logger.Error("final flush failed", "dropped", len(remaining), "error", err)
		return err
	}

	b.logger.Info("event buffer drained", "flushed", len(remaining))
	return nil
}

func (b *EventBuffer) emit(sig BufferSignal) {
	if b.onSignal != nil {
		b.onSignal(sig)
	}
}
