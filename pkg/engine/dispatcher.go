package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/veriflow-io/veriflow/pkg/execution"
	"github.com/veriflow-io/veriflow/pkg/models"
	"github.com/veriflow-io/veriflow/pkg/registry"
	"github.com/veriflow-io/veriflow/pkg/template"
)

// StepTimeoutError marks a step that exceeded its timeout. The underlying
// executor call is cancelled and abandoned, never silently ignored.
type StepTimeoutError struct {
	StepName string
	Timeout  time.Duration
}

func (e *StepTimeoutError) Error() string {
	return fmt.Sprintf("step %q timed out after %s", e.StepName, e.Timeout)
}

// Dispatcher resolves a step's declared type to its registered executor
// capability and invokes it, honoring the step timeout. It records only
// status, timing and result or error payloads; side effects belong to the
// invoked capability.
type Dispatcher struct {
	registry *registry.Registry
	logger   *slog.Logger
}

func NewDispatcher(reg *registry.Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		logger:   logger.With("module", "step_dispatcher"),
	}
}

type stepOutcome struct {
	result map[string]any
	err    error
}

// Dispatch runs one step to completion, failure or timeout. The step's
// configuration is template-rendered against the execution context before
// the executor sees it.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	step *models.StepDefinition,
	defaultTimeout time.Duration,
	executionCtx *execution.Context,
	logger *slog.Logger,
) (map[string]any, error) {
	config, err := template.RenderConfig(step.Configuration, executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render configuration for step %q: %w", step.Name, err)
	}

	executor, err := d.registry.CreateExecutor(step.Type, config)
	if err != nil {
		return nil, err
	}

	timeout := step.EffectiveTimeout(defaultTimeout)

	stepCtx := ctx

	var cancel context.CancelFunc
	if timeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stepLogger := logger.With("step", step.Name, "step_type", step.Type)

	// The executor runs in its own goroutine so a timeout can abandon
	// it. stepCtx is cancelled at the deadline, which tells a
	// well-behaved executor to stop; the buffered channel lets a
	// misbehaving one finish without blocking forever.
	outcomeCh := make(chan stepOutcome, 1)

	start := time.Now()

	go func() {
		result, execErr := executor.Execute(stepCtx, executionCtx, stepLogger)
		outcomeCh <- stepOutcome{result: result, err: execErr}
	}()

	select {
	case outcome := <-outcomeCh:
		executionCtx.RecordStepTiming(step.Name, time.Since(start))

		return outcome.result, outcome.err
	case <-stepCtx.Done():
		executionCtx.RecordStepTiming(step.Name, time.Since(start))

		if ctx.Err() != nil {
			// The whole execution was cancelled, not just this step.
			return nil, ctx.Err()
		}

		return nil, &StepTimeoutError{StepName: step.Name, Timeout: timeout}
	}
}
