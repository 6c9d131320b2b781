package observability

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Recorder defaults.
const (
	DefaultBufferSize    = 1000
	DefaultFlushInterval = 5 * time.Second
	// BatchFlushThreshold flushes early once this many traces are pending.
	BatchFlushThreshold = 100
)

var (
	// ErrRecorderClosed is returned by Record calls after Close.
	ErrRecorderClosed = errors.New("trace recorder closed")
	// ErrBufferFull is returned when the trace could not be queued without blocking.
	ErrBufferFull = errors.New("trace buffer full")
)

// TraceStore persists batches of traces.
type TraceStore interface {
	WriteBatch(ctx context.Context, traces []*Trace) error
	Flush(ctx context.Context) error
	Close() error
}

// RecorderConfig tunes the recorder.
type RecorderConfig struct {
	BufferSize    int
	FlushInterval time.Duration
	ProjectName   string
}

// Recorder is the Tracer that queues traces on a buffered channel and writes
// them to a TraceStore from a single background goroutine, either when a
// batch fills up or at each flush interval.
type Recorder struct {
	store   TraceStore
	config  RecorderConfig
	metrics *Metrics
	now     func() time.Time

	buffer chan *Trace
	done   chan struct{}
	wg     sync.WaitGroup
	writes sync.WaitGroup // in-flight enqueue calls
	closed atomic.Bool
}

// NewRecorder starts the flush goroutine. metrics may be nil.
func NewRecorder(store TraceStore, cfg RecorderConfig, metrics *Metrics) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}

	r := &Recorder{
		store:   store,
		config:  cfg,
		metrics: metrics,
		now:     time.Now,
		buffer:  make(chan *Trace, cfg.BufferSize),
		done:    make(chan struct{}),
	}

	r.wg.Add(1)
	go r.flushLoop()

	return r
}

// RecordDecision queues the decision trace, plus the workout_safety_check
// trace for workout decisions. It returns the joined enqueue errors.
func (r *Recorder) RecordDecision(_ context.Context, d Decision) error {
	var errs []error
	for _, t := range DecisionTraces(d, r.now().UTC()) {
		if err := r.enqueue(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordConstraintCheck queues a constraint_validation trace.
func (r *Recorder) RecordConstraintCheck(_ context.Context, c ConstraintCheck) error {
	return r.enqueue(ConstraintTrace(c, r.now().UTC()))
}

// RecordOrchestration queues a multi_agent_workflow trace.
func (r *Recorder) RecordOrchestration(_ context.Context, o Orchestration) error {
	return r.enqueue(OrchestrationTrace(o, r.now().UTC()))
}

// enqueue never blocks. A full buffer or a closed recorder drops the trace.
func (r *Recorder) enqueue(t *Trace) error {
	if r.closed.Load() {
		r.metrics.TraceDropped()
		return ErrRecorderClosed
	}

	r.writes.Add(1)
	defer r.writes.Done()

	// Close may have run between the first check and Add(1).
	if r.closed.Load() {
		r.metrics.TraceDropped()
		return ErrRecorderClosed
	}

	if t.ProjectName == "" {
		t.ProjectName = r.config.ProjectName
	}

	select {
	case r.buffer <- t:
		return nil
	default:
		r.metrics.TraceDropped()
		slog.Warn("trace buffer full, dropping trace", "name", t.Name, "id", t.ID)
		return ErrBufferFull
	}
}

// Close drains queued traces, flushes and closes the store. Idempotent.
func (r *Recorder) Close() error {
	if r.closed.Swap(true) {
		return nil
	}

	r.writes.Wait()
	close(r.done)
	r.wg.Wait()

	return r.store.Close()
}

func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*Trace, 0, BatchFlushThreshold)

	for {
		select {
		case t := <-r.buffer:
			batch = append(batch, t)
			if len(batch) >= BatchFlushThreshold {
				r.flushBatch(batch)
				batch = make([]*Trace, 0, BatchFlushThreshold)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				r.flushBatch(batch)
				batch = make([]*Trace, 0, BatchFlushThreshold)
			}

		case <-r.done:
			close(r.buffer)
			for t := range r.buffer {
				batch = append(batch, t)
			}
			if len(batch) > 0 {
				r.flushBatch(batch)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := r.store.Flush(ctx); err != nil {
				slog.Error("failed to flush trace store", "error", err)
			}
			cancel()
			return
		}
	}
}

func (r *Recorder) flushBatch(batch []*Trace) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := r.store.WriteBatch(ctx, batch); err != nil {
		slog.Error("failed to write trace batch", "error", err, "count", len(batch))
	}
}

// multiStore fans a batch out to several stores.
type multiStore []TraceStore

func (m multiStore) WriteBatch(ctx context.Context, traces []*Trace) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteBatch(ctx, traces); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiStore) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiStore) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
