package models

import "time"

// StepType is the closed set of executor capabilities a step may declare.
type StepType string

const (
	StepTypeScan            StepType = "scan"
	StepTypeValidate        StepType = "validate"
	StepTypeTransform       StepType = "transform"
	StepTypeQualityCheck    StepType = "quality-check"
	StepTypeComplianceCheck StepType = "compliance-check"
	StepTypeClassify        StepType = "classify"
	StepTypeNotify          StepType = "notify"
	StepTypeCustomScript    StepType = "custom-script"
	StepTypeCondition       StepType = "condition"
	StepTypeLoop            StepType = "loop"
	StepTypeParallelGroup   StepType = "parallel-group"
)

// KnownStepTypes lists every step type the dispatcher can resolve.
var KnownStepTypes = []StepType{
	StepTypeScan,
	StepTypeValidate,
	StepTypeTransform,
	StepTypeQualityCheck,
	StepTypeComplianceCheck,
	StepTypeClassify,
	StepTypeNotify,
	StepTypeCustomScript,
	StepTypeCondition,
	StepTypeLoop,
	StepTypeParallelGroup,
}

// IsKnownStepType reports whether t belongs to the closed capability set.
func IsKnownStepType(t StepType) bool {
	for _, known := range KnownStepTypes {
		if t == known {
			return true
		}
	}

	return false
}

// StepDefinition declares one unit of work inside a workflow. Dependencies
// reference other steps of the same workflow by name.
type StepDefinition struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"          validate:"required,min=1"`
	Type          StepType       `json:"type"          validate:"required"`
	Order         int            `json:"order"` // Hint only; scheduling follows the DAG
	DependsOn     []string       `json:"depends_on,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty"`
	Retry         *RetryPolicy   `json:"retry,omitempty"`
	Timeout       time.Duration  `json:"timeout,omitempty"`
	Condition     string         `json:"condition,omitempty"` // Gating expression, evaluated against the execution context
	Critical      bool           `json:"critical"`            // Hard-fails the execution when exhausted
	Disabled      bool           `json:"disabled,omitempty"`  // Disabled steps are skipped, never dispatched
}

// EffectiveTimeout resolves the step timeout against the workflow default.
func (s *StepDefinition) EffectiveTimeout(workflowDefault time.Duration) time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}

	return workflowDefault
}

// RetryPolicy controls how a failed step is retried before the failure
// is classified by the recovery manager.
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts" validate:"min=1"`
	Backoff     time.Duration `json:"backoff"`
	Multiplier  float64       `json:"multiplier,omitempty"`
}

// Valid reports whether the policy can be applied. A malformed policy
// means "hard failure, no retry" rather than looping indefinitely.
func (p *RetryPolicy) Valid() bool {
	if p == nil {
		return false
	}

	if p.MaxAttempts < 1 || p.Backoff < 0 {
		return false
	}

	if p.Multiplier < 0 {
		return false
	}

	return true
}

// BackoffFor returns the delay before the given retry attempt (1-based).
func (p *RetryPolicy) BackoffFor(attempt int) time.Duration {
	if p == nil || p.Backoff <= 0 {
		return 0
	}

	delay := p.Backoff
	multiplier := p.Multiplier

	if multiplier <= 1 {
		return delay
	}

	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * multiplier)
	}

	return delay
}
