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


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/chunkit"
	"github.com/poiesic/chunkit/ai"
	"github.com/poiesic/chunkit/ai/openai"
	"github.com/poiesic/chunkit/core"
	"github.com/poiesic/chunkit/scheduler"
)

func main() {
	app := &cli.App{
		Name:  "chunkit",
		Usage: "Intelligent document chunking for retrieval pipelines",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "chunk",
				Usage:     "Chunk a single markdown document",
				ArgsUsage: "<file>",
				Action:    chunkCommand,
				Flags: append(chunkingFlags(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Emit full chunk set as JSON",
					},
				),
			},
			{
				Name:      "batch",
				Usage:     "Chunk many documents concurrently, reporting a per-file tally",
				ArgsUsage: "<file>...",
				Action:    batchCommand,
				Flags: append(chunkingFlags(),
					&cli.IntFlag{
						Name:  "max-concurrent",
						Usage: "Maximum tasks processed in parallel (0 = one per core)",
					},
				),
			},
			{
				Name:   "stats",
				Usage:  "Print cache statistics for a cache directory",
				Action: statsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "cache",
						Aliases:  []string{"c"},
						Usage:    "Path to the cache directory",
						Required: true,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func chunkingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "strategy",
			Aliases: []string{"s"},
			Usage:   "Chunking strategy (simple, structural, semantic, hybrid, adaptive)",
			Value:   "adaptive",
		},
		&cli.IntFlag{
			Name:  "target-size",
			Usage: "Target chunk size in bytes",
			Value: 1000,
		},
		&cli.IntFlag{
			Name:  "min-size",
			Usage: "Minimum chunk size in bytes",
			Value: 100,
		},
		&cli.IntFlag{
			Name:  "max-size",
			Usage: "Maximum chunk size in bytes",
			Value: 1500,
		},
		&cli.IntFlag{
			Name:  "overlap",
			Usage: "Overlap lead in bytes applied to each chunk after the first",
			Value: 50,
		},
		&cli.StringFlag{
			Name:    "cache",
			Aliases: []string{"c"},
			Usage:   "Cache directory for persistent results (omit for in-memory only)",
		},
		&cli.StringFlag{
			Name:  "embed-host",
			Usage: "OpenAI-compatible endpoint for chunk embeddings (omit to skip embedding)",
		},
		&cli.StringFlag{
			Name:  "embed-model",
			Usage: "Embedding model identifier",
			Value: "embeddinggemma",
		},
	}
}

func configFromFlags(c *cli.Context) (*core.ChunkingConfig, error) {
	strategy, err := core.ParseStrategy(c.String("strategy"))
	if err != nil {
		return nil, err
	}
	cfg := core.DefaultConfig()
	cfg.Strategy = strategy
	cfg.TargetChunkSize = c.Int("target-size")
	cfg.MinChunkSize = c.Int("min-size")
	cfg.MaxChunkSize = c.Int("max-size")
	cfg.OverlapSize = c.Int("overlap")
	return cfg, nil
}

func newService(c *cli.Context, cfg *core.ChunkingConfig, opts ...chunkit.ServiceOption) (*chunkit.Service, error) {
	if path := c.String("cache"); path != "" {
		opts = append(opts, chunkit.WithCachePath(path))
	}
	if host := c.String("embed-host"); host != "" {
		embedder, err := openai.NewEmbedder(ai.NewConfig(
			ai.WithHost(host),
			ai.WithModel(c.String("embed-model")),
		))
		if err != nil {
			return nil, fmt.Errorf("failed to build embedder: %w", err)
		}
		opts = append(opts, chunkit.WithEmbedder(embedder))
	}
	return chunkit.NewService(cfg, opts...)
}

func chunkCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}
	path := c.Args().First()

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	cfg, err := configFromFlags(c)
	if err != nil {
		return err
	}
	service, err := newService(c, cfg)
	if err != nil {
		return err
	}
	defer service.Close()

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	result, err := service.ChunkDocument(context.Background(), path, title, string(content))
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Chunks)
	}

	stats := result.Statistics
	fmt.Printf("Document: %s\n", path)
	fmt.Printf("Strategy: %s\n", stats.StrategyUsed)
	fmt.Printf("Chunks:   %d (avg %.0f bytes, min %d, max %d)\n",
		stats.TotalChunks, stats.AverageChunkSize, stats.MinChunkSize, stats.MaxChunkSize)
	fmt.Printf("Quality:  %.2f average\n", stats.AverageQualityScore)
	fmt.Printf("Elapsed:  %s\n", stats.ProcessingTime)
	for i, chunk := range result.Chunks {
		fmt.Printf("\n[%d] %s  %d bytes  kind=%s  quality=%.2f\n",
			i, strings.Join(chunk.SectionPath, " > "), len(chunk.Content),
			chunk.Kind, chunk.QualityScore)
		if i < len(result.Assessments) {
			for _, rec := range result.Assessments[i].Recommendations {
				fmt.Printf("    hint: %s\n", rec.Description)
			}
		}
	}
	return nil
}

func batchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("expected at least one file argument")
	}

	cfg, err := configFromFlags(c)
	if err != nil {
		return err
	}

	var opts []chunkit.ServiceOption
	if n := c.Int("max-concurrent"); n > 0 {
		schedCfg := scheduler.DefaultConfig()
		schedCfg.MaxConcurrentTasks = n
		opts = append(opts, chunkit.WithSchedulerConfig(schedCfg))
	}
	service, err := newService(c, cfg, opts...)
	if err != nil {
		return err
	}
	defer service.Close()

	var tasks []*core.Task
	for _, path := range c.Args().Slice() {
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", path, err)
			continue
		}
		tasks = append(tasks, &core.Task{
			DocumentID: path,
			Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Content:    string(content),
			Priority:   core.PriorityNormal,
		})
	}
	if len(tasks) == 0 {
		return fmt.Errorf("no readable documents")
	}

	succeeded, failed := 0, 0
	for result := range service.SubmitStream(context.Background(), tasks) {
		if result.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", result.DocumentID, result.Err)
			continue
		}
		succeeded++
		stats := result.Result.Statistics
		fmt.Printf("OK   %s: %d chunks, strategy %s, quality %.2f\n",
			result.DocumentID, stats.TotalChunks, stats.StrategyUsed, stats.AverageQualityScore)
	}

	fmt.Printf("\n%d succeeded, %d failed\n", succeeded, failed)
	svcStats := service.Stats(context.Background())
	fmt.Printf("cache: %d hits, %d misses (%.0f%% hit rate)\n",
		svcStats.Cache.Hits, svcStats.Cache.Misses, svcStats.Cache.HitRate*100)
	return nil
}

func statsCommand(c *cli.Context) error {
	service, err := chunkit.NewService(nil, chunkit.WithCachePath(c.String("cache")))
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer service.Close()

	stats := service.Stats(context.Background())
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
