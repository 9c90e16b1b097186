package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/chunkit/chunker"
	"github.com/poiesic/chunkit/core"
	"github.com/poiesic/chunkit/governor"
)

func okProcessor(ctx context.Context, task *core.Task) (*chunker.Result, error) {
	return &chunker.Result{
		Chunks: []*core.Chunk{{DocumentID: task.DocumentID, Content: task.Content}},
	}, nil
}

func task(id string, pri core.TaskPriority) *core.Task {
	return &core.Task{DocumentID: id, Content: "content of " + id, Priority: pri}
}

func TestSubmitAndWait(t *testing.T) {
	s, err := New(DefaultConfig(), okProcessor)
	require.NoError(t, err)
	defer s.Close()

	future, err := s.Submit(context.Background(), task("doc1", core.PriorityNormal))
	require.NoError(t, err)

	result, err := future.Wait(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, "doc1", result.Chunks[0].DocumentID)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Submitted)
	assert.Equal(t, uint64(1), stats.Completed)
	assert.Equal(t, float64(1), stats.SuccessRate)
}

func TestSubmitRejectsInvalidTasks(t *testing.T) {
	s, err := New(DefaultConfig(), okProcessor)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Submit(context.Background(), &core.Task{Content: "x"})
	assert.ErrorIs(t, err, core.ErrEmptyDocumentID)

	_, err = s.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrEmptyDocumentID)
}

func TestConcurrencyBound(t *testing.T) {
	const maxTasks = 3
	var running, peak atomic.Int64
	release := make(chan struct{})

	cfg := DefaultConfig()
	cfg.MaxConcurrentTasks = maxTasks
	cfg.QueueSize = 16
	s, err := New(cfg, func(ctx context.Context, task *core.Task) (*chunker.Result, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return &chunker.Result{}, nil
	})
	require.NoError(t, err)
	defer s.Close()

	futures := make([]*Future, 0, maxTasks+1)
	for i := 0; i < maxTasks+1; i++ {
		f, err := s.Submit(context.Background(), task(fmt.Sprintf("doc%d", i), core.PriorityNormal))
		require.NoError(t, err)
		futures = append(futures, f)
	}

	require.Eventually(t, func() bool {
		return running.Load() == maxTasks
	}, time.Second, time.Millisecond)
	assert.Equal(t, int64(maxTasks), peak.Load())

	close(release)
	for _, f := range futures {
		_, err := f.Wait(context.Background())
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, peak.Load(), int64(maxTasks))
}

func TestQueueFull(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	cfg := DefaultConfig()
	cfg.MaxConcurrentTasks = 1
	cfg.QueueSize = 1
	s, err := New(cfg, func(ctx context.Context, task *core.Task) (*chunker.Result, error) {
		close(started)
		<-release
		return &chunker.Result{}, nil
	})
	require.NoError(t, err)
	defer s.Close()
	defer close(release)

	ctx := context.Background()
	_, err = s.Submit(ctx, task("running", core.PriorityNormal))
	require.NoError(t, err)
	<-started

	// The worker is busy; fill the single queue slot, then overflow.
	_, err = s.Submit(ctx, task("queued", core.PriorityNormal))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := s.Submit(ctx, task("overflow", core.PriorityNormal))
		return err != nil
	}, time.Second, time.Millisecond)
	_, err = s.Submit(ctx, task("overflow2", core.PriorityNormal))
	assert.ErrorIs(t, err, core.ErrQueueFull)
	assert.GreaterOrEqual(t, s.Stats().Rejected, uint64(1))
}

func TestPriorityOrdering(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	var mu sync.Mutex
	var order []string

	cfg := DefaultConfig()
	cfg.MaxConcurrentTasks = 1
	cfg.QueueSize = 16
	s, err := New(cfg, func(ctx context.Context, task *core.Task) (*chunker.Result, error) {
		if task.DocumentID == "blocker" {
			close(started)
			<-release
			return &chunker.Result{}, nil
		}
		mu.Lock()
		order = append(order, task.DocumentID)
		mu.Unlock()
		return &chunker.Result{}, nil
	})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	blocker, err := s.Submit(ctx, task("blocker", core.PriorityNormal))
	require.NoError(t, err)
	<-started

	// Queued while the only worker is busy: the critical task must be
	// picked before the earlier low-priority one.
	low, err := s.Submit(ctx, task("low", core.PriorityLow))
	require.NoError(t, err)
	critical, err := s.Submit(ctx, task("critical", core.PriorityCritical))
	require.NoError(t, err)

	close(release)
	_, err = blocker.Wait(ctx)
	require.NoError(t, err)
	_, err = low.Wait(ctx)
	require.NoError(t, err)
	_, err = critical.Wait(ctx)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"critical", "low"}, order)
}

func TestTaskPanicConfined(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentTasks = 1
	s, err := New(cfg, func(ctx context.Context, task *core.Task) (*chunker.Result, error) {
		if task.DocumentID == "boom" {
			panic("kaput")
		}
		return &chunker.Result{}, nil
	})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	f, err := s.Submit(ctx, task("boom", core.PriorityNormal))
	require.NoError(t, err)
	_, err = f.Wait(ctx)
	assert.ErrorIs(t, err, core.ErrTaskPanicked)

	// The slot was released; later tasks still run.
	f, err = s.Submit(ctx, task("after", core.PriorityNormal))
	require.NoError(t, err)
	_, err = f.Wait(ctx)
	assert.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(1), stats.Completed)
}

func TestPressureRejection(t *testing.T) {
	gcfg := governor.DefaultConfig()
	gcfg.SampleInterval = 0
	gcfg.MemoryLimit = 1000
	g, err := governor.New(gcfg, governor.WithCPUProbe(func() float64 { return 0 }))
	require.NoError(t, err)
	defer g.Close()

	g.RecordUsage(governor.Snapshot{MemoryUsed: 990, MemoryLimit: 1000, SampledAt: time.Now()})
	require.Equal(t, governor.Critical, g.PressureState())

	s, err := New(DefaultConfig(), okProcessor, WithGovernor(g))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Submit(context.Background(), task("doc1", core.PriorityNormal))
	assert.ErrorIs(t, err, core.ErrPressureRejected)

	// Recovery re-opens admission.
	g.RecordUsage(governor.Snapshot{MemoryUsed: 100, MemoryLimit: 1000, SampledAt: time.Now()})
	f, err := s.Submit(context.Background(), task("doc2", core.PriorityNormal))
	require.NoError(t, err)
	_, err = f.Wait(context.Background())
	assert.NoError(t, err)
}

func TestSubmitStream(t *testing.T) {
	s, err := New(DefaultConfig(), okProcessor)
	require.NoError(t, err)
	defer s.Close()

	tasks := []*core.Task{
		task("doc1", core.PriorityNormal),
		task("doc2", core.PriorityNormal),
		task("doc3", core.PriorityHigh),
	}

	seen := make(map[string]bool)
	for result := range s.SubmitStream(context.Background(), tasks) {
		require.NoError(t, result.Err)
		require.NotNil(t, result.Result)
		seen[result.DocumentID] = true
	}
	assert.Len(t, seen, 3)
}

func TestSubmitStreamReportsPerTaskFailures(t *testing.T) {
	s, err := New(DefaultConfig(), func(ctx context.Context, task *core.Task) (*chunker.Result, error) {
		if task.DocumentID == "bad" {
			return nil, fmt.Errorf("no good")
		}
		return &chunker.Result{}, nil
	})
	require.NoError(t, err)
	defer s.Close()

	tasks := []*core.Task{task("ok", core.PriorityNormal), task("bad", core.PriorityNormal)}

	failures := 0
	results := 0
	for result := range s.SubmitStream(context.Background(), tasks) {
		results++
		if result.Err != nil {
			failures++
			assert.Equal(t, "bad", result.DocumentID)
		}
	}
	assert.Equal(t, 2, results)
	assert.Equal(t, 1, failures)
}

func TestCloseFailsPending(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	cfg := DefaultConfig()
	cfg.MaxConcurrentTasks = 1
	cfg.QueueSize = 8
	s, err := New(cfg, func(ctx context.Context, task *core.Task) (*chunker.Result, error) {
		close(started)
		<-release
		return &chunker.Result{}, nil
	})
	require.NoError(t, err)

	ctx := context.Background()
	running, err := s.Submit(ctx, task("running", core.PriorityNormal))
	require.NoError(t, err)
	<-started
	pending, err := s.Submit(ctx, task("pending", core.PriorityNormal))
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	s.Close()

	// In-flight work completed; queued work was failed.
	_, err = running.Wait(ctx)
	assert.NoError(t, err)
	_, err = pending.Wait(ctx)
	assert.ErrorIs(t, err, core.ErrSchedulerClosed)

	_, err = s.Submit(ctx, task("late", core.PriorityNormal))
	assert.ErrorIs(t, err, core.ErrSchedulerClosed)
}

func TestBatchOptimizerBuckets(t *testing.T) {
	o := NewBatchOptimizer(16, 4<<20)

	small := &core.Task{DocumentID: "s", Content: "tiny"}
	medium := &core.Task{DocumentID: "m", Content: string(make([]byte, 10<<10))}
	large := &core.Task{DocumentID: "l", Content: string(make([]byte, 100<<10))}

	batches := o.Batches([]*core.Task{small, medium, large})
	require.Len(t, batches, 3)
	for _, batch := range batches {
		assert.Len(t, batch, 1)
	}
}

func TestBatchOptimizerBounds(t *testing.T) {
	o := NewBatchOptimizer(2, 1<<20)

	var tasks []*core.Task
	for i := 0; i < 5; i++ {
		tasks = append(tasks, &core.Task{DocumentID: fmt.Sprintf("d%d", i), Content: "x"})
	}
	batches := o.Batches(tasks)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	assert.Len(t, batches[2], 1)

	// Byte budget splits even a two-task batch.
	big := string(make([]byte, 700<<10))
	batches = o.Batches([]*core.Task{
		{DocumentID: "a", Content: big},
		{DocumentID: "b", Content: big},
	})
	require.Len(t, batches, 2)
}

func TestBatchOptimizerEmpty(t *testing.T) {
	assert.Nil(t, NewBatchOptimizer(4, 1<<20).Batches(nil))
}
