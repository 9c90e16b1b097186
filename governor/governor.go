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


// Package governor observes process resource usage and classifies it
// into pressure states consumed by the scheduler's admission check.
// The governor allocates nothing and enforces nothing itself; it is
// purely advisory.
package governor

import (
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/poiesic/chunkit/core"
)

// PressureState classifies current resource load.
type PressureState int

const (
	// Normal means admission proceeds unrestricted.
	Normal PressureState = iota
	// Elevated means the scheduler should throttle concurrency but
	// keep admitting.
	Elevated
	// Critical means new admissions are rejected until recovery.
	Critical
)

func (s PressureState) String() string {
	switch s {
	case Normal:
		return "normal"
	case Elevated:
		return "elevated"
	case Critical:
		return "critical"
	}
	return "unknown"
}

// Trend classifies how pressure is moving across the sample window.
type Trend int

const (
	TrendStable Trend = iota
	TrendIncreasing
	TrendDecreasing
)

func (t Trend) String() string {
	switch t {
	case TrendStable:
		return "stable"
	case TrendIncreasing:
		return "increasing"
	case TrendDecreasing:
		return "decreasing"
	}
	return "unknown"
}

// Snapshot is one observation of process resource usage.
type Snapshot struct {
	MemoryUsed  uint64    `json:"memory_used"`
	MemoryLimit uint64    `json:"memory_limit"`
	CPUFraction float64   `json:"cpu_fraction"`
	InFlight    int       `json:"in_flight_tasks"`
	SampledAt   time.Time `json:"sampled_at"`
}

// MemoryFraction returns memory usage relative to the limit, in [0, 1].
func (s Snapshot) MemoryFraction() float64 {
	if s.MemoryLimit == 0 {
		return 0
	}
	f := float64(s.MemoryUsed) / float64(s.MemoryLimit)
	if f > 1 {
		return 1
	}
	return f
}

// pressure is the dominating fraction across resources.
func (s Snapshot) pressure() float64 {
	p := s.MemoryFraction()
	if s.CPUFraction > p {
		p = s.CPUFraction
	}
	return p
}

// CPUProbe reports current CPU load as a fraction in [0, 1]. It is
// injectable so tests can drive the governor deterministically.
type CPUProbe func() float64

// Config holds the governor thresholds and sampling cadence.
type Config struct {
	// SampleInterval is how often usage is sampled. Zero or negative
	// disables the background sampler; usage must then be recorded
	// explicitly.
	SampleInterval time.Duration

	// WindowSize bounds the trend window, in samples.
	WindowSize int

	// ElevatedThreshold and CriticalThreshold are pressure fractions.
	ElevatedThreshold float64
	CriticalThreshold float64

	// RecoveryMargin is the hysteresis band: a state is left only once
	// pressure drops this far below the threshold that entered it, so
	// the governor does not flap on a noisy boundary.
	RecoveryMargin float64

	// MemoryLimit in bytes. Zero means use the runtime's soft memory
	// limit when one is set, else a 4 GiB default.
	MemoryLimit uint64
}

// DefaultConfig returns the governor configuration used when the
// caller does not supply one.
func DefaultConfig() Config {
	return Config{
		SampleInterval:    time.Second,
		WindowSize:        10,
		ElevatedThreshold: 0.80,
		CriticalThreshold: 0.95,
		RecoveryMargin:    0.05,
	}
}

// Governor samples resource usage and exposes pressure state, trend
// and a concurrency recommendation.
type Governor struct {
	config Config
	probe  CPUProbe
	logger *slog.Logger

	mu       sync.RWMutex
	window   []Snapshot
	state    PressureState
	inFlight int

	done chan struct{}
	wg   sync.WaitGroup
}

// Option configures a Governor.
type Option func(*Governor) error

// WithLogger sets the logger for state transition diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Governor) error {
		g.logger = logger
		return nil
	}
}

// WithCPUProbe replaces the default CPU probe.
func WithCPUProbe(probe CPUProbe) Option {
	return func(g *Governor) error {
		g.probe = probe
		return nil
	}
}

// New creates a governor and, when a sample interval is configured,
// starts its background sampler.
func New(cfg Config, opts ...Option) (*Governor, error) {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultConfig().WindowSize
	}
	if cfg.ElevatedThreshold <= 0 {
		cfg.ElevatedThreshold = DefaultConfig().ElevatedThreshold
	}
	if cfg.CriticalThreshold <= cfg.ElevatedThreshold {
		cfg.CriticalThreshold = DefaultConfig().CriticalThreshold
	}
	if cfg.RecoveryMargin <= 0 {
		cfg.RecoveryMargin = DefaultConfig().RecoveryMargin
	}
	if cfg.MemoryLimit == 0 {
		cfg.MemoryLimit = defaultMemoryLimit()
	}

	g := &Governor{
		config: cfg,
		probe:  defaultCPUProbe,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}

	if cfg.SampleInterval > 0 {
		g.wg.Add(1)
		go g.sampleLoop()
	}
	return g, nil
}

// Close stops the background sampler.
func (g *Governor) Close() {
	close(g.done)
	g.wg.Wait()
}

// Admit reports whether a new task may start. At Critical pressure it
// returns ErrPressureRejected; in-flight tasks are never preempted.
func (g *Governor) Admit() error {
	if g.PressureState() == Critical {
		return core.ErrPressureRejected
	}
	return nil
}

// PressureState returns the current classification.
func (g *Governor) PressureState() PressureState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// RecordUsage folds one snapshot into the trend window and updates the
// pressure state. The background sampler calls this on its interval;
// tests call it directly.
func (g *Governor) RecordUsage(s Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.window = append(g.window, s)
	if len(g.window) > g.config.WindowSize {
		g.window = g.window[1:]
	}

	prev := g.state
	g.state = g.classifyLocked(s.pressure())
	if g.state != prev {
		g.logger.Info("pressure state changed",
			"from", prev.String(),
			"to", g.state.String(),
			"memory_fraction", s.MemoryFraction(),
			"cpu_fraction", s.CPUFraction)
	}
}

// classifyLocked applies thresholds with recovery hysteresis: a state
// entered at its threshold is only left once pressure falls below the
// threshold minus the margin.
func (g *Governor) classifyLocked(p float64) PressureState {
	cfg := g.config
	switch g.state {
	case Critical:
		if p >= cfg.CriticalThreshold-cfg.RecoveryMargin {
			return Critical
		}
		if p >= cfg.ElevatedThreshold {
			return Elevated
		}
		return Normal
	case Elevated:
		if p >= cfg.CriticalThreshold {
			return Critical
		}
		if p >= cfg.ElevatedThreshold-cfg.RecoveryMargin {
			return Elevated
		}
		return Normal
	default:
		if p >= cfg.CriticalThreshold {
			return Critical
		}
		if p >= cfg.ElevatedThreshold {
			return Elevated
		}
		return Normal
	}
}

// Trend compares the older and newer halves of the sample window.
func (g *Governor) Trend() Trend {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := len(g.window)
	if n < 4 {
		return TrendStable
	}
	half := n / 2
	var older, newer float64
	for i := 0; i < half; i++ {
		older += g.window[i].pressure()
	}
	for i := n - half; i < n; i++ {
		newer += g.window[i].pressure()
	}
	older /= float64(half)
	newer /= float64(half)

	const band = 0.05
	switch {
	case newer-older > band:
		return TrendIncreasing
	case older-newer > band:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// RecommendedConcurrency returns the worker count the scheduler should
// run given the configured maximum. Normal keeps the maximum, Critical
// drops to one, Elevated scales with remaining headroom below the
// critical threshold.
func (g *Governor) RecommendedConcurrency(maxWorkers int) int {
	if maxWorkers <= 1 {
		return 1
	}
	g.mu.RLock()
	state := g.state
	var p float64
	if len(g.window) > 0 {
		p = g.window[len(g.window)-1].pressure()
	}
	g.mu.RUnlock()

	switch state {
	case Critical:
		return 1
	case Elevated:
		span := g.config.CriticalThreshold - g.config.ElevatedThreshold
		headroom := (g.config.CriticalThreshold - p) / span
		if headroom < 0 {
			headroom = 0
		}
		if headroom > 1 {
			headroom = 1
		}
		n := int(headroom * float64(maxWorkers))
		if n < 1 {
			n = 1
		}
		return n
	default:
		return maxWorkers
	}
}

// Snapshot returns the most recent observation, or a zero value when
// none has been recorded yet.
func (g *Governor) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.window) == 0 {
		return Snapshot{}
	}
	return g.window[len(g.window)-1]
}

// TaskStarted and TaskFinished let the scheduler report in-flight
// counts so snapshots carry them.
func (g *Governor) TaskStarted() {
	g.mu.Lock()
	g.inFlight++
	g.mu.Unlock()
}

func (g *Governor) TaskFinished() {
	g.mu.Lock()
	if g.inFlight > 0 {
		g.inFlight--
	}
	g.mu.Unlock()
}

func (g *Governor) sampleLoop() {
	defer g.wg.Done()
	ticker := time.NewTicker(g.config.SampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			g.RecordUsage(g.sample())
		}
	}
}

func (g *Governor) sample() Snapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	g.mu.RLock()
	inFlight := g.inFlight
	g.mu.RUnlock()

	return Snapshot{
		MemoryUsed:  ms.HeapAlloc,
		MemoryLimit: g.config.MemoryLimit,
		CPUFraction: g.probe(),
		InFlight:    inFlight,
		SampledAt:   time.Now().UTC(),
	}
}

// defaultMemoryLimit prefers the runtime's soft memory limit when the
// operator set one, else assumes 4 GiB.
func defaultMemoryLimit() uint64 {
	const fallback = 4 << 30
	limit := debug.SetMemoryLimit(-1)
	if limit <= 0 || limit == int64(^uint64(0)>>1) {
		return fallback
	}
	return uint64(limit)
}

// defaultCPUProbe approximates CPU load from scheduler occupancy. It
// is deliberately coarse; deployments wanting real CPU accounting
// inject their own probe.
func defaultCPUProbe() float64 {
	procs := runtime.GOMAXPROCS(0)
	if procs <= 0 {
		return 0
	}
	f := float64(runtime.NumGoroutine()) / float64(procs*32)
	if f > 1 {
		return 1
	}
	return f
}
