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


package core

import "errors"

// Domain errors
var (
	// ErrInvalidConfig indicates a ChunkingConfig failed validation.
	// It is fatal at construction; callers must not proceed with an
	// invalid configuration.
	ErrInvalidConfig = errors.New("invalid chunking config")

	// ErrUnknownStrategy indicates an unrecognized strategy name.
	ErrUnknownStrategy = errors.New("unknown chunking strategy")

	// ErrEmptyDocumentID indicates a task without a document identifier.
	ErrEmptyDocumentID = errors.New("document id cannot be empty")

	// ErrQueueFull indicates the scheduler queue is at capacity and the
	// task was rejected rather than queued unboundedly. Callers should
	// retry with backoff.
	ErrQueueFull = errors.New("task queue is full")

	// ErrPressureRejected indicates the resource governor is in the
	// Critical state and refused admission. Callers should retry with
	// backoff once pressure subsides.
	ErrPressureRejected = errors.New("admission rejected under resource pressure")

	// ErrTaskPanicked indicates a worker panicked while processing a
	// task. The failure is confined to that task; the worker slot is
	// released.
	ErrTaskPanicked = errors.New("task panicked during processing")

	// ErrSchedulerClosed indicates a submission after Close.
	ErrSchedulerClosed = errors.New("scheduler is closed")

	// ErrCacheUnavailable indicates a cache tier failed; callers treat
	// it as a miss, never as a chunking failure.
	ErrCacheUnavailable = errors.New("cache unavailable")
)
