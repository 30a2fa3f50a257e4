package models

// ResourceKind identifies one abstract capacity pool.
type ResourceKind string

const (
	ResourceCompute ResourceKind = "compute"
	ResourceMemory  ResourceKind = "memory"
	ResourceIO      ResourceKind = "io"
	ResourceNetwork ResourceKind = "network"
)

// ResourceRequirement is the number of units an execution reserves from
// each pool, computed from step count and type mix.
type ResourceRequirement map[ResourceKind]int64

// Add accumulates another requirement into this one.
func (r ResourceRequirement) Add(other ResourceRequirement) {
	for kind, units := range other {
		r[kind] += units
	}
}

// Per-step reservation quanta. Custom-script steps reserve more compute
// because their workload is unbounded by the engine.
const (
	StepComputeUnits        int64 = 2
	StepMemoryUnits         int64 = 4
	StepIOUnits             int64 = 1
	StepNetworkUnits        int64 = 1
	ScriptExtraComputeUnits int64 = 2
)

// RequirementForSteps computes the reservation for a set of steps.
func RequirementForSteps(steps []*StepDefinition) ResourceRequirement {
	req := ResourceRequirement{
		ResourceCompute: 0,
		ResourceMemory:  0,
		ResourceIO:      0,
		ResourceNetwork: 0,
	}

	for _, step := range steps {
		req[ResourceCompute] += StepComputeUnits
		req[ResourceMemory] += StepMemoryUnits
		req[ResourceIO] += StepIOUnits
		req[ResourceNetwork] += StepNetworkUnits

		if step.Type == StepTypeCustomScript {
			req[ResourceCompute] += ScriptExtraComputeUnits
		}
	}

	return req
}
