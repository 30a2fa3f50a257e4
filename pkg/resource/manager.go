// Package resource tracks bounded pools of abstract capacity units shared
// across concurrent workflow executions.
package resource

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/veriflow-io/veriflow/pkg/models"
)

// ExhaustedError is returned when a pool cannot satisfy a requirement.
// No partial allocation is left behind.
type ExhaustedError struct {
	Kind      models.ResourceKind
	Requested int64
	Available int64
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("resource pool %q exhausted: requested %d, available %d",
		e.Kind, e.Requested, e.Available)
}

// PoolConfig sets the capacity of each pool and the per-execution
// parallelism ceiling.
type PoolConfig struct {
	Compute          int64 `json:"compute"`
	Memory           int64 `json:"memory"`
	IO               int64 `json:"io"`
	Network          int64 `json:"network"`
	ParallelismLimit int   `json:"parallelism_limit"`
}

// DefaultPoolConfig mirrors a small single-node deployment.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Compute:          64,
		Memory:           256,
		IO:               32,
		Network:          32,
		ParallelismLimit: 8,
	}
}

// Manager grants and returns allocations against the shared pools. It is
// an explicitly constructed service: engines under test each get their own
// instance, never a process-wide singleton.
type Manager struct {
	logger   *slog.Logger
	capacity map[models.ResourceKind]int64
	used     map[models.ResourceKind]*atomic.Int64
	ceiling  int

	mu     sync.Mutex
	active map[string]*Allocation
}

// Allocation is a create-once/release-once reservation for one execution.
type Allocation struct {
	ExecutionID      string
	Reserved         models.ResourceRequirement
	MaxParallelSteps int

	released atomic.Bool
	manager  *Manager
}

// NewManager creates a manager with the given pool capacities.
func NewManager(logger *slog.Logger, config PoolConfig) *Manager {
	m := &Manager{
		logger: logger.With("module", "resource_manager"),
		capacity: map[models.ResourceKind]int64{
			models.ResourceCompute: config.Compute,
			models.ResourceMemory:  config.Memory,
			models.ResourceIO:      config.IO,
			models.ResourceNetwork: config.Network,
		},
		used:    make(map[models.ResourceKind]*atomic.Int64),
		ceiling: config.ParallelismLimit,
		active:  make(map[string]*Allocation),
	}

	for kind := range m.capacity {
		m.used[kind] = &atomic.Int64{}
	}

	return m
}

// Allocate reserves capacity for the execution, or returns
// *ExhaustedError without reserving anything. Memory, io and network are
// reserved for the full requirement. Compute is reserved for the
// concurrency actually granted: steps beyond MaxParallelSteps queue
// inside their level instead of holding idle compute units. Allocating
// twice for the same execution is a programming error.
func (m *Manager) Allocate(executionID string, req models.ResourceRequirement) (*Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[executionID]; exists {
		return nil, fmt.Errorf("execution %s already holds an allocation", executionID)
	}

	availableCompute := m.capacity[models.ResourceCompute] - m.used[models.ResourceCompute].Load()

	maxParallel := m.ceiling
	if maxParallel < 1 {
		maxParallel = 1
	}

	if byCompute := int(availableCompute / models.StepComputeUnits); byCompute < maxParallel {
		maxParallel = byCompute
	}

	if maxParallel < 1 {
		return nil, &ExhaustedError{
			Kind:      models.ResourceCompute,
			Requested: models.StepComputeUnits,
			Available: availableCompute,
		}
	}

	reserved := make(models.ResourceRequirement, len(req))

	for kind, units := range req {
		capacity, known := m.capacity[kind]
		if !known {
			return nil, fmt.Errorf("unknown resource kind %q", kind)
		}

		if kind == models.ResourceCompute {
			if grant := int64(maxParallel) * models.StepComputeUnits; units > grant {
				units = grant
			}

			reserved[kind] = units

			continue
		}

		// Check before touching any counter so a failure leaves no
		// partial reservation.
		available := capacity - m.used[kind].Load()
		if units > available {
			return nil, &ExhaustedError{Kind: kind, Requested: units, Available: available}
		}

		reserved[kind] = units
	}

	for kind, units := range reserved {
		m.used[kind].Add(units)
	}

	allocation := &Allocation{
		ExecutionID:      executionID,
		Reserved:         reserved,
		MaxParallelSteps: m.maxParallelSteps(reserved),
		manager:          m,
	}

	m.active[executionID] = allocation

	m.logger.Debug("Allocated resources",
		"execution_id", executionID,
		"reserved", reserved,
		"max_parallel_steps", allocation.MaxParallelSteps)

	return allocation, nil
}

// Release returns the reserved units to the pools. It is safe to call
// exactly once per allocation; a second call panics because double
// release corrupts the accounting.
func (m *Manager) Release(allocation *Allocation) {
	if allocation == nil {
		return
	}

	if !allocation.released.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("resource allocation for execution %s released twice", allocation.ExecutionID))
	}

	for kind, units := range allocation.Reserved {
		m.used[kind].Add(-units)
	}

	m.mu.Lock()
	delete(m.active, allocation.ExecutionID)
	m.mu.Unlock()

	m.logger.Debug("Released resources", "execution_id", allocation.ExecutionID)
}

// Available returns the free units of one pool.
func (m *Manager) Available(kind models.ResourceKind) int64 {
	return m.capacity[kind] - m.used[kind].Load()
}

// Capacity returns the configured size of one pool.
func (m *Manager) Capacity(kind models.ResourceKind) int64 {
	return m.capacity[kind]
}

// maxParallelSteps bounds per-execution concurrency by the compute quanta
// actually reserved: min(configured ceiling, reservedCompute / perStepCompute).
func (m *Manager) maxParallelSteps(reserved models.ResourceRequirement) int {
	limit := m.ceiling
	if limit < 1 {
		limit = 1
	}

	byCompute := int(reserved[models.ResourceCompute] / models.StepComputeUnits)
	if byCompute >= 1 && byCompute < limit {
		limit = byCompute
	}

	return limit
}
