// Package migration implements the migration engine: a
// state machine driving a scanner, a bounded worker pool, retry with
// fixed backoff, a token-bucket throttle, and atomic checkpointing, so
// that a topology generation change can be drained without starving
// client requests.
package migration

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/cuemby/objectcore/pkg/errs"
	"github.com/cuemby/objectcore/pkg/log"
	"github.com/cuemby/objectcore/pkg/metrics"
	"github.com/cuemby/objectcore/pkg/placement"
)

// State is the migration job's lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateScanning   State = "scanning"
	StateMigrating  State = "migrating"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

// DefaultWorkerCount and DefaultQueueCapacity match the engine's default config.
const (
	DefaultWorkerCount   = 16
	DefaultQueueCapacity = 10_000
	MaxAttempts          = 3
	FailureThreshold     = 0.10 // >= 10% permanently failed tasks fails the job
)

// RetryBackoff is the fixed 3-element backoff table: 100ms, 500ms, 2500ms.
var RetryBackoff = []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 2500 * time.Millisecond}

// Task is one object that must move from its old set to its new set.
type Task struct {
	Bucket       string
	Key          string
	VersionID    string
	Size         int64
	OldSet       string
	NewSet       string
	Attempts     int
	PermanentErr error
}

// MoveFunc performs one task's read-source/write-destination/update-
// registry/delete-source sequence. Each step must be idempotent: a
// MoveFunc that has already taken effect must return nil, not an error,
// when retried.
type MoveFunc func(ctx context.Context, task Task) error

// Counters tracks job progress. Safe for concurrent use.
type Counters struct {
	Scanned   int64
	Queued    int64
	Completed int64
	Failed    int64
	Bytes     int64
}

// Checkpoint is the durable job-state snapshot persisted to disk.
type Checkpoint struct {
	JobID           string    `json:"job_id"`
	GenerationFrom  uint64    `json:"generation_from"`
	GenerationTo    uint64    `json:"generation_to"`
	State           State     `json:"state"`
	Counters        Counters  `json:"counters"`
	RemainingCursor string    `json:"remaining_cursor"`
	SavedAt         time.Time `json:"saved_at"`
}

// Orchestrator drives one migration job end to end.
type Orchestrator struct {
	jobID          string
	genFrom, genTo uint64
	move           MoveFunc
	workerCount    int
	queueCapacity  int
	limiter        *rate.Limiter

	mu    sync.Mutex
	state State
	ctrs  Counters

	checkpointFn       func(ck Checkpoint) error
	checkpointEvery    int
	checkpointInterval time.Duration
	lastCheckpoint     time.Time
	completedSince     int64

	stopCh chan struct{}
}

// Config configures an Orchestrator.
type Config struct {
	JobID              string
	GenerationFrom     uint64
	GenerationTo       uint64
	Move               MoveFunc
	WorkerCount        int
	QueueCapacity      int
	ThrottleRateBps     float64
	ThrottleBurstBytes  int
	CheckpointFn       func(ck Checkpoint) error
	CheckpointEvery    int
	CheckpointInterval time.Duration
}

// NewOrchestrator constructs an Orchestrator from cfg, applying spec
// defaults for zero-valued fields.
func NewOrchestrator(cfg Config) *Orchestrator {
	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = DefaultWorkerCount
	}
	queue := cfg.QueueCapacity
	if queue <= 0 {
		queue = DefaultQueueCapacity
	}
	every := cfg.CheckpointEvery
	if every <= 0 {
		every = 1000
	}
	interval := cfg.CheckpointInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	var limiter *rate.Limiter
	if cfg.ThrottleRateBps > 0 {
		burst := cfg.ThrottleBurstBytes
		if burst <= 0 {
			burst = int(cfg.ThrottleRateBps)
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.ThrottleRateBps), burst)
	}

	return &Orchestrator{
		jobID:              cfg.JobID,
		genFrom:            cfg.GenerationFrom,
		genTo:              cfg.GenerationTo,
		move:               cfg.Move,
		workerCount:        workers,
		queueCapacity:      queue,
		limiter:            limiter,
		state:              StateIdle,
		checkpointFn:       cfg.CheckpointFn,
		checkpointEvery:    every,
		checkpointInterval: interval,
		stopCh:             make(chan struct{}),
	}
}

// RecordScan adds scanned (objects examined) and queued (tasks handed to
// Run) to the job's counters. Callers driving a Scanner call this once
// with its Scan result before feeding the returned tasks to Run.
func (o *Orchestrator) RecordScan(scanned, queued int64) {
	o.mu.Lock()
	o.ctrs.Scanned += scanned
	o.ctrs.Queued += queued
	o.mu.Unlock()
}

// Resume restores the orchestrator's counters and state from a previously
// saved checkpoint.
func (o *Orchestrator) Resume(ck Checkpoint) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = ck.State
	o.ctrs = ck.Counters
}

// State returns the orchestrator's current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Counters returns a snapshot of the job's progress counters.
func (o *Orchestrator) Counters() Counters {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ctrs
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Throttle acquires n bytes worth of tokens before an I/O step, blocking
// until the token bucket can satisfy the request, or until ctx is done.
func (o *Orchestrator) Throttle(ctx context.Context, n int) error {
	if o.limiter == nil {
		return nil
	}
	if err := o.limiter.WaitN(ctx, n); err != nil {
		return errs.Wrap(errs.Timeout, "migration.Throttle", err)
	}
	return nil
}

// SetThrottleRate changes the token bucket's refill rate at runtime.
// Passing rateBps <= 0 disables throttling.
func (o *Orchestrator) SetThrottleRate(rateBps float64, burstBytes int) {
	if rateBps <= 0 {
		o.limiter = nil
		return
	}
	if o.limiter == nil {
		o.limiter = rate.NewLimiter(rate.Limit(rateBps), burstBytes)
		return
	}
	o.limiter.SetLimit(rate.Limit(rateBps))
	o.limiter.SetBurst(burstBytes)
}

// Run drains tasks (produced by a Scanner and fed through the returned
// channel by the caller) with o.workerCount workers, retrying transient
// failures per RetryBackoff, checkpointing periodically, and failing the
// job if permanent failures exceed FailureThreshold.
func (o *Orchestrator) Run(ctx context.Context, tasks <-chan Task) error {
	o.setState(StateMigrating)
	o.lastCheckpoint = time.Now()

	var wg sync.WaitGroup
	var totalTasks, permFailed int64
	errCh := make(chan error, 1)

	for i := 0; i < o.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-o.stopCh:
					return
				case task, ok := <-tasks:
					if !ok {
						return
					}
					atomic.AddInt64(&totalTasks, 1)
					if err := o.runTask(ctx, task); err != nil {
						atomic.AddInt64(&permFailed, 1)
						metrics.MigrationTasksTotal.WithLabelValues("failed").Inc()
						log.WithJob(o.jobID).Error().Err(err).Str("key", task.Key).Msg("migration task permanently failed")
					}
					o.maybeCheckpoint()
					metrics.MigrationQueueDepth.Set(float64(len(tasks)))
				}
			}
		}()
	}

	wg.Wait()
	close(errCh)

	if totalTasks > 0 && float64(permFailed)/float64(totalTasks) >= FailureThreshold {
		o.setState(StateFailed)
		return errs.New(errs.Internal, "migration.Run: failure threshold exceeded")
	}

	o.setState(StateComplete)
	return nil
}

// runTask first acquires task.Size bytes of throttle tokens, then calls
// o.move up to MaxAttempts times, waiting RetryBackoff[i] before retry
// i+1; a non-retryable error ends the task at once. Throughput metrics
// are recorded on success.
func (o *Orchestrator) runTask(ctx context.Context, task Task) error {
	// Tokens are taken in burst-sized pieces so an object larger than the
	// bucket's burst can still pass.
	for remaining := task.Size; remaining > 0 && o.limiter != nil; {
		n := int64(o.limiter.Burst())
		if n <= 0 || remaining < n {
			n = remaining
		}
		if err := o.Throttle(ctx, int(n)); err != nil {
			return err
		}
		remaining -= n
	}

	var lastErr error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(RetryBackoff[attempt-1]):
			case <-ctx.Done():
				return ctx.Err()
			}
			metrics.MigrationTasksTotal.WithLabelValues("retried").Inc()
		}
		if err := o.move(ctx, task); err != nil {
			lastErr = err
			if !errs.Retryable(err) {
				o.mu.Lock()
				o.ctrs.Failed++
				o.mu.Unlock()
				return err
			}
			continue
		}
		o.mu.Lock()
		o.ctrs.Completed++
		o.ctrs.Bytes += task.Size
		o.mu.Unlock()
		metrics.MigrationTasksTotal.WithLabelValues("completed").Inc()
		metrics.MigrationBytesTotal.Add(float64(task.Size))
		atomic.AddInt64(&o.completedSince, 1)
		return nil
	}
	o.mu.Lock()
	o.ctrs.Failed++
	o.mu.Unlock()
	return lastErr
}

func (o *Orchestrator) maybeCheckpoint() {
	if o.checkpointFn == nil {
		return
	}
	due := atomic.LoadInt64(&o.completedSince) >= int64(o.checkpointEvery) ||
		time.Since(o.lastCheckpoint) >= o.checkpointInterval
	if !due {
		return
	}
	o.mu.Lock()
	ck := Checkpoint{
		JobID:          o.jobID,
		GenerationFrom: o.genFrom,
		GenerationTo:   o.genTo,
		State:          o.state,
		Counters:       o.ctrs,
		SavedAt:        time.Now(),
	}
	o.mu.Unlock()

	if err := o.checkpointFn(ck); err != nil {
		log.WithJob(o.jobID).Error().Err(err).Msg("checkpoint write failed")
		return
	}
	o.lastCheckpoint = time.Now()
	atomic.StoreInt64(&o.completedSince, 0)
}

// Stop signals all workers to exit after their current task.
func (o *Orchestrator) Stop() {
	close(o.stopCh)
}

// affectedByGenerationChange reports whether key maps to a different set
// under ringTo than it did under ringFrom — the scanner's core test.
func affectedByGenerationChange(key string, ringFrom, ringTo *placement.Ring) (oldNode, newNode string, affected bool, err error) {
	oldNode, err = ringFrom.Lookup(key)
	if err != nil {
		return "", "", false, err
	}
	newNode, err = ringTo.Lookup(key)
	if err != nil {
		return "", "", false, err
	}
	return oldNode, newNode, oldNode != newNode, nil
}
