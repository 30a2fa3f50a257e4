package graph

import (
	"fmt"
	"strings"
)

// CyclicDependencyError reports a dependency cycle, naming the steps on it.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency detected: %s", strings.Join(e.Cycle, " -> "))
}

// UnknownDependencyError reports a dependency on a step that does not exist.
type UnknownDependencyError struct {
	StepName   string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("step %q depends on unknown step %q", e.StepName, e.Dependency)
}

// DuplicateStepNameError reports two steps sharing one name.
type DuplicateStepNameError struct {
	StepName string
}

func (e *DuplicateStepNameError) Error() string {
	return fmt.Sprintf("duplicate step name %q", e.StepName)
}

// EmptyWorkflowError reports a workflow with no steps.
type EmptyWorkflowError struct{}

func (e *EmptyWorkflowError) Error() string {
	return "workflow has no steps"
}
