package governor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/chunkit/core"
)

func manualGovernor(t *testing.T) *Governor {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SampleInterval = 0 // no background sampler; tests drive RecordUsage
	cfg.MemoryLimit = 1000
	g, err := New(cfg, WithCPUProbe(func() float64 { return 0 }))
	require.NoError(t, err)
	t.Cleanup(g.Close)
	return g
}

func snap(memUsed uint64, cpu float64) Snapshot {
	return Snapshot{
		MemoryUsed:  memUsed,
		MemoryLimit: 1000,
		CPUFraction: cpu,
		SampledAt:   time.Now().UTC(),
	}
}

func TestPressureStates(t *testing.T) {
	g := manualGovernor(t)

	assert.Equal(t, Normal, g.PressureState())

	g.RecordUsage(snap(500, 0))
	assert.Equal(t, Normal, g.PressureState())

	g.RecordUsage(snap(850, 0))
	assert.Equal(t, Elevated, g.PressureState())

	g.RecordUsage(snap(960, 0))
	assert.Equal(t, Critical, g.PressureState())
}

func TestCPUDominatesMemory(t *testing.T) {
	g := manualGovernor(t)

	g.RecordUsage(snap(100, 0.97))
	assert.Equal(t, Critical, g.PressureState())
}

func TestRecoveryHysteresis(t *testing.T) {
	g := manualGovernor(t)

	g.RecordUsage(snap(960, 0))
	require.Equal(t, Critical, g.PressureState())

	// Just under the critical threshold but inside the margin: stays
	// Critical rather than flapping.
	g.RecordUsage(snap(920, 0))
	assert.Equal(t, Critical, g.PressureState())

	g.RecordUsage(snap(850, 0))
	assert.Equal(t, Elevated, g.PressureState())

	// Inside the elevated margin: still Elevated.
	g.RecordUsage(snap(780, 0))
	assert.Equal(t, Elevated, g.PressureState())

	g.RecordUsage(snap(500, 0))
	assert.Equal(t, Normal, g.PressureState())
}

func TestAdmit(t *testing.T) {
	g := manualGovernor(t)

	require.NoError(t, g.Admit())

	g.RecordUsage(snap(990, 0))
	assert.ErrorIs(t, g.Admit(), core.ErrPressureRejected)

	// Elevated still admits.
	g.RecordUsage(snap(850, 0))
	assert.NoError(t, g.Admit())
}

func TestTrend(t *testing.T) {
	g := manualGovernor(t)
	assert.Equal(t, TrendStable, g.Trend())

	for _, mem := range []uint64{100, 200, 400, 600, 800, 900} {
		g.RecordUsage(snap(mem, 0))
	}
	assert.Equal(t, TrendIncreasing, g.Trend())

	g2 := manualGovernor(t)
	for _, mem := range []uint64{900, 800, 600, 400, 200, 100} {
		g2.RecordUsage(snap(mem, 0))
	}
	assert.Equal(t, TrendDecreasing, g2.Trend())

	g3 := manualGovernor(t)
	for i := 0; i < 6; i++ {
		g3.RecordUsage(snap(500, 0))
	}
	assert.Equal(t, TrendStable, g3.Trend())
}

func TestRecommendedConcurrency(t *testing.T) {
	g := manualGovernor(t)

	g.RecordUsage(snap(100, 0))
	assert.Equal(t, 8, g.RecommendedConcurrency(8))

	// Halfway between the elevated and critical thresholds: roughly
	// half the workers.
	g.RecordUsage(snap(875, 0))
	got := g.RecommendedConcurrency(8)
	assert.GreaterOrEqual(t, got, 3)
	assert.LessOrEqual(t, got, 5)

	g.RecordUsage(snap(990, 0))
	assert.Equal(t, 1, g.RecommendedConcurrency(8))

	assert.Equal(t, 1, g.RecommendedConcurrency(1))
}

func TestInFlightTracking(t *testing.T) {
	g := manualGovernor(t)

	g.TaskStarted()
	g.TaskStarted()
	g.TaskFinished()

	g.RecordUsage(g.sample())
	assert.Equal(t, 1, g.Snapshot().InFlight)
}

func TestBackgroundSampler(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleInterval = 5 * time.Millisecond
	cfg.MemoryLimit = 1 << 40
	g, err := New(cfg, WithCPUProbe(func() float64 { return 0 }))
	require.NoError(t, err)
	defer g.Close()

	require.Eventually(t, func() bool {
		return !g.Snapshot().SampledAt.IsZero()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, Normal, g.PressureState())
}
