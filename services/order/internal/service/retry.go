package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Skotchmaster/storefront/pkg/events"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
)

const (
	maxBackoff   = time.Hour
	claimLease   = 2 * time.Minute
	claimBatch   = 50
	maxErrLength = 500
)

// RetryQueue records failed best-effort steps in the durable retry table.
// A nil queue only logs.
type RetryQueue struct {
	store SagaStore
}

func NewRetryQueue(store SagaStore) *RetryQueue {
	return &RetryQueue{store: store}
}

func (q *RetryQueue) Enqueue(ctx context.Context, kind string, orderID int64, payload any) {
	l := logging.FromContext(ctx).With("kind", kind, "order_id", orderID)
	if q == nil || q.store == nil {
		l.Error("retry_task_dropped", "reason", "no retry store")
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		l.Error("retry_task_dropped", "reason", "encode payload", "error", err)
		return
	}
	task := &models.RetryTask{Kind: kind, OrderID: orderID, Payload: string(raw)}
	if err := q.store.EnqueueTask(ctx, task); err != nil {
		l.Error("retry_task_dropped", "reason", "store", "error", err)
		return
	}
	l.Info("retry_task_enqueued", "task_id", task.ID)
}

// TaskExecutor runs one retry task. It may rewrite task.Payload to record
// progress for the next attempt.
type TaskExecutor interface {
	Execute(ctx context.Context, task *models.RetryTask) error
}

type RetryWorker struct {
	store       SagaStore
	exec        TaskExecutor
	pub         Publisher
	interval    time.Duration
	maxAttempts int
	baseBackoff time.Duration
	clock       models.Clock
}

func NewRetryWorker(store SagaStore, exec TaskExecutor, pub Publisher, interval time.Duration, maxAttempts int) *RetryWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &RetryWorker{
		store:       store,
		exec:        exec,
		pub:         pub,
		interval:    interval,
		maxAttempts: maxAttempts,
		baseBackoff: interval,
	}
}

func (w *RetryWorker) Run(ctx context.Context) {
	l := logging.FromContext(ctx).With("component", "retry_worker")
	l.Info("retry_worker_started", "interval", w.interval.String(), "max_attempts", w.maxAttempts)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			l.Error("retry_poll_error", "error", err)
		}
		select {
		case <-ctx.Done():
			l.Info("retry_worker_stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce executes every due task once and returns how many succeeded.
func (w *RetryWorker) RunOnce(ctx context.Context) (int, error) {
	now := w.clock.Now().UTC()
	tasks, err := w.store.ClaimDue(ctx, now, claimLease, claimBatch)
	if err != nil {
		return 0, fmt.Errorf("claim retry tasks: %w", err)
	}

	done := 0
	for i := range tasks {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if w.runTask(ctx, &tasks[i]) {
			done++
		}
	}
	return done, nil
}

func (w *RetryWorker) runTask(ctx context.Context, task *models.RetryTask) bool {
	l := logging.FromContext(ctx).With("task_id", task.ID, "kind", task.Kind, "order_id", task.OrderID)

	err := w.exec.Execute(ctx, task)
	task.Attempts++
	now := w.clock.Now().UTC()

	if err == nil {
		task.Status = models.TaskDone
		task.LastError = ""
		l.Info("retry_task_done", "attempts", task.Attempts)
	} else {
		task.LastError = truncate(err.Error(), maxErrLength)
		if task.Attempts >= w.maxAttempts {
			task.Status = models.TaskDead
			l.Error("retry_task_dead", "attempts", task.Attempts, "error", err)
			w.publishDead(ctx, task)
		} else {
			task.NextRunAt = now.Add(backoff(w.baseBackoff, task.Attempts))
			l.Warn("retry_task_failed", "attempts", task.Attempts, "next_run_at", task.NextRunAt, "error", err)
		}
	}

	if serr := w.store.SaveTask(ctx, task); serr != nil {
		l.Error("retry_task_save_error", "error", serr)
	}
	return err == nil
}

func (w *RetryWorker) publishDead(ctx context.Context, task *models.RetryTask) {
	ev := events.Event{
		Type:    events.TypeRetryTaskDead,
		OrderID: task.OrderID,
		Data: map[string]any{
			"task_id":    task.ID,
			"kind":       task.Kind,
			"attempts":   task.Attempts,
			"last_error": task.LastError,
		},
	}
	if err := w.pub.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("publish_event_error", "type", ev.Type, "error", err)
	}
}

// backoff doubles base for every attempt after the first, capped at maxBackoff.
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
