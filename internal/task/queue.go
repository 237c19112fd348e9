// Package task serializes and retries per-account sync work. Concurrent
// requests for the same account coalesce into one task, which is what keeps
// two fetches from racing on the same cached session.
package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ImadMoka/Maily-app-v1-sub001/internal/fetch"
	"github.com/ImadMoka/Maily-app-v1-sub001/pkg/types"
)

// Status is the lifecycle state of a sync task
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// taskRetention is how long terminal tasks stay visible to GetStatus before
// the enqueue-time sweep drops them
const taskRetention = time.Hour

// Runner executes one account sync end to end
type Runner interface {
	SyncAccount(ctx context.Context, userID, accountID string) (types.ContactProcessingResult, error)
}

// Options configures the queue's retry policy
type Options struct {
	// MaxRetries bounds re-runs after transient failures
	MaxRetries int
	// RetryDelay is the pause before a retried attempt
	RetryDelay time.Duration
	// IsTransient classifies errors as retryable; defaults to fetch.IsTransient
	IsTransient func(error) bool
}

// Snapshot is a point-in-time view of one task
type Snapshot struct {
	ID          string                         `json:"id"`
	UserID      string                         `json:"user_id"`
	AccountID   string                         `json:"account_id"`
	RequestedAt time.Time                      `json:"requested_at"`
	Status      Status                         `json:"status"`
	Retries     int                            `json:"retries"`
	Result      *types.ContactProcessingResult `json:"result,omitempty"`
	Error       string                         `json:"error,omitempty"`
}

type task struct {
	id          string
	userID      string
	accountID   string
	requestedAt time.Time
	status      Status
	retries     int
	result      *types.ContactProcessingResult
	err         string
}

// Queue accepts sync requests per account and drives them through the
// pending → running → {succeeded, failed} state machine
type Queue struct {
	runner Runner
	opts   Options
	logger *logrus.Logger

	mu        sync.Mutex
	tasks     map[string]*task
	byAccount map[string]string
	wg        sync.WaitGroup

	drainOnce sync.Once
	drained   chan struct{}
}

// NewQueue creates a new sync task queue
func NewQueue(runner Runner, opts Options, logger *logrus.Logger) *Queue {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.IsTransient == nil {
		opts.IsTransient = fetch.IsTransient
	}

	return &Queue{
		runner:    runner,
		opts:      opts,
		logger:    logger,
		tasks:     make(map[string]*task),
		byAccount: make(map[string]string),
		drained:   make(chan struct{}),
	}
}

// Enqueue requests a sync for an account and returns the task ID. A request
// for an account whose task is still pending or running is coalesced onto
// the existing task instead of starting a duplicate fetch.
func (q *Queue) Enqueue(ctx context.Context, userID, accountID string) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Amortized sweep of consumed terminal tasks
	for id, t := range q.tasks {
		if (t.status == StatusSucceeded || t.status == StatusFailed) && time.Since(t.requestedAt) > taskRetention {
			delete(q.tasks, id)
		}
	}

	if id, ok := q.byAccount[accountID]; ok {
		if t := q.tasks[id]; t != nil && (t.status == StatusPending || t.status == StatusRunning) {
			q.logger.WithFields(logrus.Fields{
				"account": accountID,
				"task":    id,
			}).Debug("Coalesced duplicate sync request")
			return id
		}
	}

	t := &task{
		id:          uuid.NewString(),
		userID:      userID,
		accountID:   accountID,
		requestedAt: time.Now(),
		status:      StatusPending,
	}
	q.tasks[t.id] = t
	q.byAccount[accountID] = t.id

	q.wg.Add(1)
	go q.run(ctx, t)

	return t.id
}

// GetStatus returns a snapshot of a task
func (q *Queue) GetStatus(taskID string) (Snapshot, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[taskID]
	if !ok {
		return Snapshot{}, false
	}
	return t.snapshot(), true
}

// Shutdown waits for in-flight tasks to reach a terminal state, bounded by
// ctx. A timed-out call may be retried; every call shares one drain waiter.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.drainOnce.Do(func() {
		go func() {
			q.wg.Wait()
			close(q.drained)
		}()
	})

	select {
	case <-q.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) run(ctx context.Context, t *task) {
	defer q.wg.Done()
	defer q.releaseAccount(t)

	for {
		q.setStatus(t, StatusRunning)

		result, err := q.runner.SyncAccount(ctx, t.userID, t.accountID)
		if err == nil {
			q.mu.Lock()
			t.status = StatusSucceeded
			t.result = &result
			q.mu.Unlock()

			q.logger.WithFields(logrus.Fields{
				"account": t.accountID,
				"saved":   result.Saved,
				"fetched": result.Fetched,
			}).Info("Sync succeeded")
			return
		}

		if ctx.Err() != nil {
			q.fail(t, err)
			return
		}

		// Transient failures re-enter pending until the retry budget runs
		// out; anything else (bad credentials, protocol errors) fails now
		if !q.opts.IsTransient(err) || t.retries >= q.opts.MaxRetries {
			q.fail(t, err)
			return
		}

		q.mu.Lock()
		t.retries++
		t.status = StatusPending
		q.mu.Unlock()

		q.logger.WithError(err).WithFields(logrus.Fields{
			"account": t.accountID,
			"retry":   t.retries,
		}).Warn("Transient sync failure, retrying")

		select {
		case <-ctx.Done():
			q.fail(t, ctx.Err())
			return
		case <-time.After(q.opts.RetryDelay):
		}
	}
}

func (q *Queue) setStatus(t *task, status Status) {
	q.mu.Lock()
	t.status = status
	q.mu.Unlock()
}

func (q *Queue) fail(t *task, err error) {
	q.mu.Lock()
	t.status = StatusFailed
	t.err = err.Error()
	q.mu.Unlock()

	q.logger.WithError(err).WithField("account", t.accountID).Error("Sync failed")
}

// releaseAccount frees the account's coalescing slot once its task is
// terminal, unless a newer task has already claimed it
func (q *Queue) releaseAccount(t *task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.byAccount[t.accountID] == t.id {
		delete(q.byAccount, t.accountID)
	}
}

func (t *task) snapshot() Snapshot {
	return Snapshot{
		ID:          t.id,
		UserID:      t.userID,
		AccountID:   t.accountID,
		RequestedAt: t.requestedAt,
		Status:      t.status,
		Retries:     t.retries,
		Result:      t.result,
		Error:       t.err,
	}
}
