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

import "fmt"

// ValidateConfig validates a ChunkingConfig according to domain rules.
//
// Validation rules:
//   - all sizes must be positive
//   - MinChunkSize <= TargetChunkSize <= MaxChunkSize
//   - OverlapSize < MinChunkSize
//   - quality weights and threshold must lie in [0, 1]
//
// A config that fails validation is a hard error at construction; the
// pipeline never runs with one.
func ValidateConfig(cfg *ChunkingConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	if cfg.TargetChunkSize <= 0 || cfg.MinChunkSize <= 0 || cfg.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: chunk sizes must be positive", ErrInvalidConfig)
	}

	if cfg.MinChunkSize > cfg.TargetChunkSize {
		return fmt.Errorf("%w: min_chunk_size %d exceeds target_chunk_size %d",
			ErrInvalidConfig, cfg.MinChunkSize, cfg.TargetChunkSize)
	}

	if cfg.TargetChunkSize > cfg.MaxChunkSize {
		return fmt.Errorf("%w: target_chunk_size %d exceeds max_chunk_size %d",
			ErrInvalidConfig, cfg.TargetChunkSize, cfg.MaxChunkSize)
	}

	if cfg.OverlapSize < 0 || cfg.OverlapSize >= cfg.MinChunkSize {
		return fmt.Errorf("%w: overlap_size %d must be smaller than min_chunk_size %d",
			ErrInvalidConfig, cfg.OverlapSize, cfg.MinChunkSize)
	}

	if cfg.Quality.Enabled {
		if cfg.Quality.PassThreshold < 0 || cfg.Quality.PassThreshold > 1 {
			return fmt.Errorf("%w: quality pass threshold must be in [0,1]", ErrInvalidConfig)
		}
		weights := []float64{
			cfg.Quality.CoherenceWeight,
			cfg.Quality.DensityWeight,
			cfg.Quality.CompletenessWeight,
			cfg.Quality.IntegrityWeight,
			cfg.Quality.LengthWeight,
		}
		for _, w := range weights {
			if w < 0 || w > 1 {
				return fmt.Errorf("%w: quality weights must be in [0,1]", ErrInvalidConfig)
			}
		}
	}

	return nil
}

// ValidateTask validates a Task before it enters the scheduler queue.
func ValidateTask(task *Task) error {
	if task == nil {
		return fmt.Errorf("%w: task is nil", ErrEmptyDocumentID)
	}
	if task.DocumentID == "" {
		return ErrEmptyDocumentID
	}
	return nil
}
