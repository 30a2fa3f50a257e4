package resource

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriflow-io/veriflow/pkg/models"
)

func newTestManager(config PoolConfig) *Manager {
	return NewManager(slog.Default(), config)
}

func requirement(compute, memory, io, network int64) models.ResourceRequirement {
	return models.ResourceRequirement{
		models.ResourceCompute: compute,
		models.ResourceMemory:  memory,
		models.ResourceIO:      io,
		models.ResourceNetwork: network,
	}
}

func TestAllocate_ReservesAndReleases(t *testing.T) {
	m := newTestManager(DefaultPoolConfig())

	baseline := map[models.ResourceKind]int64{
		models.ResourceCompute: m.Available(models.ResourceCompute),
		models.ResourceMemory:  m.Available(models.ResourceMemory),
		models.ResourceIO:      m.Available(models.ResourceIO),
		models.ResourceNetwork: m.Available(models.ResourceNetwork),
	}

	allocation, err := m.Allocate("exec-1", requirement(4, 8, 2, 2))
	require.NoError(t, err)
	require.NotNil(t, allocation)

	assert.Equal(t, baseline[models.ResourceMemory]-8, m.Available(models.ResourceMemory))
	assert.Equal(t, baseline[models.ResourceIO]-2, m.Available(models.ResourceIO))

	m.Release(allocation)

	// Occupancy returns to the pre-allocation baseline on every pool.
	for kind, free := range baseline {
		assert.Equal(t, free, m.Available(kind), "pool %s did not return to baseline", kind)
	}
}

func TestAllocate_ExhaustedLeavesNoPartialReservation(t *testing.T) {
	m := newTestManager(PoolConfig{
		Compute:          64,
		Memory:           8,
		IO:               1,
		Network:          32,
		ParallelismLimit: 8,
	})

	// Memory fits, io does not.
	_, err := m.Allocate("exec-1", requirement(4, 8, 2, 2))
	require.Error(t, err)

	var exhausted *ExhaustedError

	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, models.ResourceIO, exhausted.Kind)
	assert.Equal(t, int64(2), exhausted.Requested)
	assert.Equal(t, int64(1), exhausted.Available)

	// Nothing was reserved from any pool.
	assert.Equal(t, int64(64), m.Available(models.ResourceCompute))
	assert.Equal(t, int64(8), m.Available(models.ResourceMemory))
	assert.Equal(t, int64(1), m.Available(models.ResourceIO))
	assert.Equal(t, int64(32), m.Available(models.ResourceNetwork))
}

func TestAllocate_ComputeExhausted(t *testing.T) {
	m := newTestManager(PoolConfig{
		Compute:          models.StepComputeUnits - 1,
		Memory:           64,
		IO:               16,
		Network:          16,
		ParallelismLimit: 4,
	})

	_, err := m.Allocate("exec-1", requirement(models.StepComputeUnits, 4, 1, 1))
	require.Error(t, err)

	var exhausted *ExhaustedError

	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, models.ResourceCompute, exhausted.Kind)
}

func TestAllocate_ComputeClampedToGrantedParallelism(t *testing.T) {
	// Compute capacity covers exactly one concurrent step. Three steps
	// worth of compute demand is clamped: only one quantum is reserved
	// and the extra steps queue inside their level.
	m := newTestManager(PoolConfig{
		Compute:          2,
		Memory:           64,
		IO:               16,
		Network:          16,
		ParallelismLimit: 8,
	})

	steps := []*models.StepDefinition{
		{Name: "a", Type: models.StepTypeTransform},
		{Name: "b", Type: models.StepTypeTransform},
		{Name: "c", Type: models.StepTypeTransform},
	}

	allocation, err := m.Allocate("exec-1", models.RequirementForSteps(steps))
	require.NoError(t, err)

	assert.Equal(t, 1, allocation.MaxParallelSteps)
	assert.Equal(t, int64(2), allocation.Reserved[models.ResourceCompute])
	assert.Equal(t, int64(0), m.Available(models.ResourceCompute))

	m.Release(allocation)

	assert.Equal(t, int64(2), m.Available(models.ResourceCompute))
}

func TestAllocate_ParallelismCeiling(t *testing.T) {
	m := newTestManager(PoolConfig{
		Compute:          100,
		Memory:           100,
		IO:               100,
		Network:          100,
		ParallelismLimit: 3,
	})

	allocation, err := m.Allocate("exec-1", requirement(40, 20, 5, 5))
	require.NoError(t, err)

	assert.Equal(t, 3, allocation.MaxParallelSteps)
	assert.Equal(t, 3*models.StepComputeUnits, allocation.Reserved[models.ResourceCompute])
}

func TestAllocate_DuplicateExecutionID(t *testing.T) {
	m := newTestManager(DefaultPoolConfig())

	allocation, err := m.Allocate("exec-1", requirement(2, 4, 1, 1))
	require.NoError(t, err)

	_, err = m.Allocate("exec-1", requirement(2, 4, 1, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already holds an allocation")

	m.Release(allocation)

	// The ID is free again once released.
	allocation, err = m.Allocate("exec-1", requirement(2, 4, 1, 1))
	require.NoError(t, err)
	m.Release(allocation)
}

func TestRelease_PanicsOnDoubleRelease(t *testing.T) {
	m := newTestManager(DefaultPoolConfig())

	allocation, err := m.Allocate("exec-1", requirement(2, 4, 1, 1))
	require.NoError(t, err)

	m.Release(allocation)

	assert.Panics(t, func() {
		m.Release(allocation)
	})

	// The accounting survived the panic untouched.
	assert.Equal(t, m.Capacity(models.ResourceCompute), m.Available(models.ResourceCompute))
	assert.Equal(t, m.Capacity(models.ResourceMemory), m.Available(models.ResourceMemory))
}

func TestRelease_NilAllocationIsNoop(t *testing.T) {
	m := newTestManager(DefaultPoolConfig())

	assert.NotPanics(t, func() {
		m.Release(nil)
	})
}

func TestAllocate_ConcurrentExecutionsShareThePools(t *testing.T) {
	m := newTestManager(PoolConfig{
		Compute:          8,
		Memory:           16,
		IO:               8,
		Network:          8,
		ParallelismLimit: 8,
	})

	first, err := m.Allocate("exec-1", requirement(4, 8, 2, 2))
	require.NoError(t, err)

	second, err := m.Allocate("exec-2", requirement(4, 8, 2, 2))
	require.NoError(t, err)

	// The pools are fully committed; a third execution cannot start.
	_, err = m.Allocate("exec-3", requirement(2, 4, 1, 1))
	require.Error(t, err)

	m.Release(first)
	m.Release(second)

	assert.Equal(t, int64(8), m.Available(models.ResourceCompute))
	assert.Equal(t, int64(16), m.Available(models.ResourceMemory))
}

func TestRequirementForSteps(t *testing.T) {
	steps := []*models.StepDefinition{
		{Name: "a", Type: models.StepTypeScan},
		{Name: "b", Type: models.StepTypeCustomScript},
	}

	req := models.RequirementForSteps(steps)

	assert.Equal(t, 2*models.StepComputeUnits+models.ScriptExtraComputeUnits, req[models.ResourceCompute])
	assert.Equal(t, 2*models.StepMemoryUnits, req[models.ResourceMemory])
	assert.Equal(t, 2*models.StepIOUnits, req[models.ResourceIO])
	assert.Equal(t, 2*models.StepNetworkUnits, req[models.ResourceNetwork])
}
