// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/semaphore"

	"github.com/poiesic/chunkit/chunker"
	"github.com/poiesic/chunkit/core"
	"github.com/poiesic/chunkit/governor"
)

// Processor executes one admitted task end to end. The facade supplies
// the cache-then-chunk pipeline; tests supply stubs.
type Processor func(ctx context.Context, task *core.Task) (*chunker.Result, error)

// Config holds the scheduler bounds.
type Config struct {
	// MaxConcurrentTasks bounds in-flight tasks. Zero means one worker
	// per available core.
	MaxConcurrentTasks int

	// QueueSize bounds pending tasks across all priority tiers.
	QueueSize int

	// BatchSize bounds how many tasks the batch optimizer packs into
	// one batch.
	BatchSize int

	// BatchByteBudget bounds the total content bytes per batch.
	BatchByteBudget int
}

// DefaultConfig returns the scheduler configuration used when the
// caller does not supply one.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentTasks: runtime.NumCPU(),
		QueueSize:          64,
		BatchSize:          16,
		BatchByteBudget:    4 << 20,
	}
}

// TaskResult pairs a task's document with its outcome, for streaming
// consumers that correlate by document ID.
type TaskResult struct {
	DocumentID string
	Result     *chunker.Result
	Err        error
}

type outcome struct {
	result *chunker.Result
	err    error
}

// Future resolves to a single task's result.
type Future struct {
	documentID string
	ch         chan outcome
}

// Wait blocks until the task completes or the context is cancelled.
// Cancellation abandons the wait; the task itself runs to completion.
func (f *Future) Wait(ctx context.Context) (*chunker.Result, error) {
	select {
	case o := <-f.ch:
		return o.result, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) resolve(result *chunker.Result, err error) {
	f.ch <- outcome{result: result, err: err}
}

type queued struct {
	task       *core.Task
	future     *Future
	enqueuedAt time.Time
}

// Stats is a point-in-time snapshot of scheduler throughput.
type Stats struct {
	Submitted      uint64        `json:"submitted"`
	Completed      uint64        `json:"completed"`
	Failed         uint64        `json:"failed"`
	Rejected       uint64        `json:"rejected"`
	QueueDepth     int           `json:"queue_depth"`
	Running        int           `json:"running"`
	BytesProcessed uint64        `json:"bytes_processed"`
	AverageLatency time.Duration `json:"average_latency"`
	SuccessRate    float64       `json:"success_rate"`
}

// Scheduler admits chunking tasks through a counting semaphore, drains
// four FIFO priority tiers highest first, and executes tasks on a
// bounded worker pool. Under Elevated pressure the pool is tuned down;
// under Critical pressure admission fails fast.
type Scheduler struct {
	config    Config
	processor Processor
	pool      *ants.Pool
	sem       *semaphore.Weighted
	governor  *governor.Governor
	optimizer *BatchOptimizer
	logger    *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.Mutex
	cond      *sync.Cond
	tiers     [4][]*queued
	pending   int
	closed    bool
	poolCap   int
	submitted uint64
	completed uint64
	failed    uint64
	rejected  uint64
	bytes     uint64
	latency   time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler) error

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) error {
		s.logger = logger
		return nil
	}
}

// WithGovernor attaches a resource governor. Without one the scheduler
// admits on queue capacity alone.
func WithGovernor(g *governor.Governor) Option {
	return func(s *Scheduler) error {
		s.governor = g
		return nil
	}
}

// New creates a scheduler and starts its dispatcher.
func New(cfg Config, processor Processor, opts ...Option) (*Scheduler, error) {
	if processor == nil {
		return nil, fmt.Errorf("scheduler: nil processor")
	}
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = runtime.NumCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.BatchByteBudget <= 0 {
		cfg.BatchByteBudget = DefaultConfig().BatchByteBudget
	}

	s := &Scheduler{
		config:    cfg,
		processor: processor,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrentTasks)),
		optimizer: NewBatchOptimizer(cfg.BatchSize, cfg.BatchByteBudget),
		logger:    slog.Default(),
		poolCap:   cfg.MaxConcurrentTasks,
	}
	s.cond = sync.NewCond(&s.mu)
	s.baseCtx, s.cancel = context.WithCancel(context.Background())

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(cfg.MaxConcurrentTasks,
		ants.WithPanicHandler(func(v interface{}) {
			s.logger.Error("worker panic escaped task recovery", "panic", v)
		}))
	if err != nil {
		return nil, err
	}
	s.pool = pool

	s.wg.Add(1)
	go s.dispatch()
	return s, nil
}

// Submit enqueues one task and returns a future for its result. It
// fails fast with ErrPressureRejected under Critical pressure and with
// ErrQueueFull when the pending queue is at capacity.
func (s *Scheduler) Submit(ctx context.Context, task *core.Task) (*Future, error) {
	if err := core.ValidateTask(task); err != nil {
		return nil, err
	}
	if s.governor != nil {
		if err := s.governor.Admit(); err != nil {
			s.countRejected()
			return nil, err
		}
	}
	if task.SubmittedAt.IsZero() {
		task.SubmittedAt = time.Now().UTC()
	}
	pri := task.Priority
	if pri < core.PriorityLow || pri > core.PriorityCritical {
		pri = core.PriorityNormal
	}

	q := &queued{
		task:       task,
		future:     &Future{documentID: task.DocumentID, ch: make(chan outcome, 1)},
		enqueuedAt: time.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, core.ErrSchedulerClosed
	}
	if s.pending >= s.config.QueueSize {
		s.rejected++
		s.mu.Unlock()
		return nil, core.ErrQueueFull
	}
	s.tiers[pri] = append(s.tiers[pri], q)
	s.pending++
	s.submitted++
	s.mu.Unlock()
	s.cond.Signal()

	return q.future, nil
}

// SubmitStream submits a set of tasks, ordered by the batch optimizer,
// and yields results in completion order. Tasks rejected at submission
// appear in the stream with their error; the stream closes once every
// task has a result.
func (s *Scheduler) SubmitStream(ctx context.Context, tasks []*core.Task) <-chan TaskResult {
	out := make(chan TaskResult, len(tasks))
	var wg sync.WaitGroup

	for _, batch := range s.optimizer.Batches(tasks) {
		for _, task := range batch {
			future, err := s.Submit(ctx, task)
			if err != nil {
				out <- TaskResult{DocumentID: task.DocumentID, Err: err}
				continue
			}
			wg.Add(1)
			go func(f *Future) {
				defer wg.Done()
				result, err := f.Wait(ctx)
				out <- TaskResult{DocumentID: f.documentID, Result: result, Err: err}
			}(future)
		}
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Stats returns a snapshot of scheduler throughput.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Submitted:      s.submitted,
		Completed:      s.completed,
		Failed:         s.failed,
		Rejected:       s.rejected,
		QueueDepth:     s.pending,
		Running:        s.pool.Running(),
		BytesProcessed: s.bytes,
	}
	if done := s.completed + s.failed; done > 0 {
		st.AverageLatency = s.latency / time.Duration(done)
		st.SuccessRate = float64(s.completed) / float64(done)
	}
	return st
}

// Close stops accepting work, fails every pending task with
// ErrSchedulerClosed, and waits for in-flight tasks to finish.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var drained []*queued
	for i := range s.tiers {
		drained = append(drained, s.tiers[i]...)
		s.tiers[i] = nil
	}
	s.pending = 0
	s.mu.Unlock()
	s.cond.Broadcast()

	for _, q := range drained {
		q.future.resolve(nil, core.ErrSchedulerClosed)
	}

	// Wait for in-flight tasks, then release the dispatcher's
	// semaphore wait and the pool.
	_ = s.sem.Acquire(context.Background(), int64(s.config.MaxConcurrentTasks))
	s.sem.Release(int64(s.config.MaxConcurrentTasks))
	s.cancel()
	s.wg.Wait()
	s.pool.Release()
}

// dispatch drains the priority tiers, highest tier first and FIFO
// within a tier. A slot is acquired before a task is picked, so the
// pick always reflects the priorities pending at the moment a worker
// frees up.
func (s *Scheduler) dispatch() {
	defer s.wg.Done()
	for {
		if err := s.sem.Acquire(s.baseCtx, 1); err != nil {
			return
		}

		s.mu.Lock()
		for s.pending == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			s.sem.Release(1)
			return
		}
		q := s.popLocked()
		s.mu.Unlock()

		s.throttle()

		if err := s.pool.Submit(func() { s.run(q) }); err != nil {
			s.sem.Release(1)
			q.future.resolve(nil, fmt.Errorf("worker pool submit: %w", err))
			s.countFailed(0, 0)
		}
	}
}

func (s *Scheduler) popLocked() *queued {
	for pri := core.PriorityCritical; pri >= core.PriorityLow; pri-- {
		if tier := s.tiers[pri]; len(tier) > 0 {
			q := tier[0]
			s.tiers[pri] = tier[1:]
			s.pending--
			return q
		}
	}
	return nil
}

// throttle tunes the pool toward the governor's recommendation. The
// semaphore keeps the hard upper bound; tuning only shrinks effective
// parallelism under pressure.
func (s *Scheduler) throttle() {
	if s.governor == nil {
		return
	}
	rec := s.governor.RecommendedConcurrency(s.config.MaxConcurrentTasks)

	s.mu.Lock()
	changed := rec != s.poolCap
	s.poolCap = rec
	s.mu.Unlock()

	if changed {
		s.pool.Tune(rec)
		s.logger.Debug("worker pool tuned", "capacity", rec)
	}
}

// run executes one task on a worker. A panic in the processor is
// confined to the task and the semaphore slot is always released.
func (s *Scheduler) run(q *queued) {
	defer s.sem.Release(1)

	if s.governor != nil {
		if err := s.governor.Admit(); err != nil {
			q.future.resolve(nil, err)
			s.countRejected()
			return
		}
		s.governor.TaskStarted()
		defer s.governor.TaskFinished()
	}

	var result *chunker.Result
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", core.ErrTaskPanicked, r)
				s.logger.Error("task panicked",
					"document_id", q.task.DocumentID, "panic", r)
			}
		}()
		result, err = s.processor(s.baseCtx, q.task)
	}()

	elapsed := time.Since(q.enqueuedAt)
	if err != nil {
		s.countFailed(elapsed, 0)
	} else {
		s.countCompleted(elapsed, uint64(len(q.task.Content)))
	}
	q.future.resolve(result, err)
}

func (s *Scheduler) countCompleted(elapsed time.Duration, bytes uint64) {
	s.mu.Lock()
	s.completed++
	s.bytes += bytes
	s.latency += elapsed
	s.mu.Unlock()
}

func (s *Scheduler) countFailed(elapsed time.Duration, bytes uint64) {
	s.mu.Lock()
	s.failed++
	s.bytes += bytes
	s.latency += elapsed
	s.mu.Unlock()
}

func (s *Scheduler) countRejected() {
	s.mu.Lock()
	s.rejected++
	s.mu.Unlock()
}
