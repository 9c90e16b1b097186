// Package scheduler runs chunking tasks on a bounded worker pool. Work
// is admitted through a counting semaphore and four FIFO priority
// tiers; pending work beyond the queue bound is rejected rather than
// buffered without limit. A resource governor, when attached, rejects
// admissions outright under Critical pressure and shrinks the
// effective pool under Elevated pressure.
package scheduler
