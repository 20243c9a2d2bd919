package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
	"github.com/sergiocoding96/order-pipeline/internal/core/ports"
)

type QueueConfig struct {
	Concurrency int
	MaxAttempts int
	RetryDelay  time.Duration
}

func (c QueueConfig) normalize() QueueConfig {
	out := c
	if out.Concurrency <= 0 {
		out.Concurrency = 3
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 3
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = 5 * time.Second
	}
	return out
}

// ProcessingQueue owns all mutable pipeline state: pending items ordered by
// (priority asc, creation time asc), the concurrency bound, and per-item
// retry/failure transitions. Items are mutated only by the worker loop.
type ProcessingQueue struct {
	cfg        QueueConfig
	classifier ports.ItemClassifier
	processor  ports.ItemProcessor
	notifier   ports.Notifier
	metrics    ports.PipelineMetrics
	log        *slog.Logger

	mu       sync.Mutex
	pending  []*domain.QueueItem
	items    map[string]*domain.QueueItem
	inFlight int
	running  bool

	wake chan struct{}
}

func NewProcessingQueue(
	cfg QueueConfig,
	classifier ports.ItemClassifier,
	processor ports.ItemProcessor,
	notifier ports.Notifier,
	metrics ports.PipelineMetrics,
	log *slog.Logger,
) *ProcessingQueue {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &ProcessingQueue{
		cfg:        cfg.normalize(),
		classifier: classifier,
		processor:  processor,
		notifier:   notifier,
		metrics:    metrics,
		log:        log,
		items:      make(map[string]*domain.QueueItem),
		wake:       make(chan struct{}, 1),
	}
}

// Enqueue always accepts the item. Priority comes from the classification's
// primary descriptor type.
func (q *ProcessingQueue) Enqueue(item *domain.IngestedItem, cls domain.Classification) *domain.QueueItem {
	now := time.Now().UTC()
	queued := &domain.QueueItem{
		ID:             uuid.NewString(),
		Item:           item,
		Classification: cls,
		Status:         domain.QueuePending,
		Priority:       q.classifier.Priority(cls),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	q.mu.Lock()
	q.pending = append(q.pending, queued)
	q.sortPendingLocked()
	q.items[queued.ID] = queued
	q.observeDepthLocked()
	q.mu.Unlock()

	q.signal()
	return queued
}

// Status is a non-blocking read-only snapshot.
func (q *ProcessingQueue) Status() domain.QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return domain.QueueStatus{
		Pending:  len(q.pending),
		InFlight: q.inFlight,
		Running:  q.running,
	}
}

// Item returns a copy of a tracked queue item.
func (q *ProcessingQueue) Item(id string) (domain.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok {
		return domain.QueueItem{}, false
	}
	return *item, true
}

// Run drives dispatching until the context ends. Dispatched items run to
// completion; there is no per-item cancel.
func (q *ProcessingQueue) Run(ctx context.Context) {
	q.mu.Lock()
	q.running = true
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
	}()

	for {
		q.dispatch(ctx)
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
	}
}

// dispatch pulls from the sorted head while a concurrency slot is free.
func (q *ProcessingQueue) dispatch(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.inFlight < q.cfg.Concurrency && len(q.pending) > 0 {
		item := q.pending[0]
		q.pending = q.pending[1:]
		q.inFlight++

		item.Status = domain.QueueProcessing
		item.Attempts++
		item.UpdatedAt = time.Now().UTC()
		if item.Attempts == 1 {
			q.metrics.QueueLag(time.Since(item.CreatedAt).Seconds())
		}

		go q.runItem(ctx, item)
	}
	q.observeDepthLocked()
}

func (q *ProcessingQueue) runItem(ctx context.Context, item *domain.QueueItem) {
	start := time.Now()
	q.metrics.ItemStarted()

	err := q.processor.Process(ctx, item)

	q.mu.Lock()
	q.inFlight--
	item.UpdatedAt = time.Now().UTC()

	var outcome string
	switch {
	case err == nil:
		item.Status = domain.QueueCompleted
		item.Error = ""
		outcome = "completed"
	case q.isTerminal(err) || item.Attempts >= q.cfg.MaxAttempts:
		item.Status = domain.QueueFailed
		item.Error = err.Error()
		outcome = "failed"
	default:
		// Recoverable: exactly one re-insertion after the fixed delay.
		item.Status = domain.QueuePending
		item.Error = err.Error()
		outcome = "retry"
		q.scheduleRetryLocked(item)
	}
	q.observeDepthLocked()
	q.mu.Unlock()

	q.metrics.ItemFinished(outcome, time.Since(start).Seconds())

	switch outcome {
	case "completed":
		q.log.Info("item completed", "queue_id", item.ID, "attempts", item.Attempts)
		q.notify(ctx, item, true)
	case "failed":
		q.log.Error("item failed", "queue_id", item.ID, "attempts", item.Attempts, "error", err)
		q.notify(ctx, item, false)
	case "retry":
		q.log.Warn("item scheduled for retry",
			"queue_id", item.ID, "attempts", item.Attempts, "max_attempts", q.cfg.MaxAttempts, "error", err)
	}

	q.signal()
}

func (q *ProcessingQueue) isTerminal(err error) bool {
	return domain.IsKind(err, domain.ErrNotProcessable) || domain.IsKind(err, domain.ErrInvalidInput)
}

func (q *ProcessingQueue) scheduleRetryLocked(item *domain.QueueItem) {
	time.AfterFunc(q.cfg.RetryDelay, func() {
		q.mu.Lock()
		q.pending = append(q.pending, item)
		q.sortPendingLocked()
		q.observeDepthLocked()
		q.mu.Unlock()
		q.signal()
	})
}

// sortPendingLocked keeps the total order: priority ascending, creation time
// ascending, insertion order for exact ties.
func (q *ProcessingQueue) sortPendingLocked() {
	sort.SliceStable(q.pending, func(i, j int) bool {
		if q.pending[i].Priority != q.pending[j].Priority {
			return q.pending[i].Priority < q.pending[j].Priority
		}
		return q.pending[i].CreatedAt.Before(q.pending[j].CreatedAt)
	})
}

func (q *ProcessingQueue) observeDepthLocked() {
	q.metrics.QueueDepth(len(q.pending), q.inFlight)
}

func (q *ProcessingQueue) notify(ctx context.Context, item *domain.QueueItem, completed bool) {
	if q.notifier == nil {
		return
	}
	var err error
	if completed {
		err = q.notifier.OrderCompleted(ctx, item)
	} else {
		err = q.notifier.OrderFailed(ctx, item)
	}
	if err != nil {
		// Best-effort only.
		q.log.Warn("notification delivery failed", "queue_id", item.ID, "error", err)
	}
}

func (q *ProcessingQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
