package core

import (
	"errors"
	"testing"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ChunkingConfig)
		wantErr error
	}{
		{
			name:    "default config is valid",
			mutate:  func(c *ChunkingConfig) {},
			wantErr: nil,
		},
		{
			name:    "min above target",
			mutate:  func(c *ChunkingConfig) { c.MinChunkSize = c.TargetChunkSize + 1 },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "target above max",
			mutate:  func(c *ChunkingConfig) { c.TargetChunkSize = c.MaxChunkSize + 1 },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "overlap equals min",
			mutate:  func(c *ChunkingConfig) { c.OverlapSize = c.MinChunkSize },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "negative overlap",
			mutate:  func(c *ChunkingConfig) { c.OverlapSize = -1 },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "zero target",
			mutate:  func(c *ChunkingConfig) { c.TargetChunkSize = 0 },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *ChunkingConfig) { c.Quality.PassThreshold = 1.5 },
			wantErr: ErrInvalidConfig,
		},
		{
			name: "threshold ignored when quality disabled",
			mutate: func(c *ChunkingConfig) {
				c.Quality.Enabled = false
				c.Quality.PassThreshold = 1.5
			},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateConfigNil(t *testing.T) {
	if err := ValidateConfig(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for nil config, got %v", err)
	}
}

func TestValidateTask(t *testing.T) {
	if err := ValidateTask(&Task{DocumentID: "doc1", Content: "x"}); err != nil {
		t.Fatalf("expected valid task, got %v", err)
	}
	if err := ValidateTask(&Task{Content: "x"}); !errors.Is(err, ErrEmptyDocumentID) {
		t.Fatalf("expected ErrEmptyDocumentID, got %v", err)
	}
	if err := ValidateTask(nil); err == nil {
		t.Fatal("expected error for nil task")
	}
}
