package scheduler

import "github.com/poiesic/chunkit/core"

// sizeBucket groups tasks by document size so one batch carries
// similarly sized work. Mixing a handful of huge documents into a
// stream of small ones would otherwise starve the large ones behind
// many cheap completions.
type sizeBucket int

const (
	bucketSmall  sizeBucket = iota // < 4 KiB
	bucketMedium                   // < 64 KiB
	bucketLarge                    // < 512 KiB
	bucketXLarge
)

func bucketFor(task *core.Task) sizeBucket {
	switch n := len(task.Content); {
	case n < 4<<10:
		return bucketSmall
	case n < 64<<10:
		return bucketMedium
	case n < 512<<10:
		return bucketLarge
	default:
		return bucketXLarge
	}
}

// BatchOptimizer packs submitted tasks into batches bounded by count
// and by total content bytes, bucketed by document size.
type BatchOptimizer struct {
	maxTasks   int
	byteBudget int
}

// NewBatchOptimizer creates an optimizer with the given bounds.
func NewBatchOptimizer(maxTasks, byteBudget int) *BatchOptimizer {
	return &BatchOptimizer{maxTasks: maxTasks, byteBudget: byteBudget}
}

// Batches groups tasks into size-homogeneous batches, interleaved
// across buckets so small documents cannot monopolize the head of the
// queue. Submission order within a bucket is preserved.
func (o *BatchOptimizer) Batches(tasks []*core.Task) [][]*core.Task {
	if len(tasks) == 0 {
		return nil
	}

	var buckets [4][][]*core.Task
	for _, task := range tasks {
		b := bucketFor(task)
		buckets[b] = appendToBatch(buckets[b], task, o.maxTasks, o.byteBudget)
	}

	// Round-robin across buckets, one batch at a time.
	var out [][]*core.Task
	for i := 0; ; i++ {
		took := false
		for b := 0; b < len(buckets); b++ {
			if i < len(buckets[b]) {
				out = append(out, buckets[b][i])
				took = true
			}
		}
		if !took {
			return out
		}
	}
}

// appendToBatch adds a task to the bucket's open batch, starting a new
// batch when either bound would be exceeded. A single oversized task
// always gets a batch of its own rather than being rejected.
func appendToBatch(batches [][]*core.Task, task *core.Task, maxTasks, byteBudget int) [][]*core.Task {
	if n := len(batches); n > 0 {
		open := batches[n-1]
		if len(open) < maxTasks && batchBytes(open)+len(task.Content) <= byteBudget {
			batches[n-1] = append(open, task)
			return batches
		}
	}
	return append(batches, []*core.Task{task})
}

func batchBytes(batch []*core.Task) int {
	total := 0
	for _, task := range batch {
		total += len(task.Content)
	}
	return total
}
