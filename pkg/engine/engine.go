// Package engine turns a validated workflow definition into a
// correctly-ordered, resource-bounded, partially-parallel execution.
//
// Steps are executed level by level: every step of a level is dispatched
// concurrently (bounded by the resource-derived parallelism limit) and
// the level is fully drained before the next begins. Failures are routed
// through the recovery manager, which retries per policy and classifies
// exhausted failures as soft (skip downstream) or hard (abort).
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/veriflow-io/veriflow/pkg/eventbus"
	"github.com/veriflow-io/veriflow/pkg/events"
	"github.com/veriflow-io/veriflow/pkg/execution"
	"github.com/veriflow-io/veriflow/pkg/graph"
	"github.com/veriflow-io/veriflow/pkg/models"
	"github.com/veriflow-io/veriflow/pkg/otelhelper"
	"github.com/veriflow-io/veriflow/pkg/persistence"
	"github.com/veriflow-io/veriflow/pkg/plan"
	"github.com/veriflow-io/veriflow/pkg/registry"
	"github.com/veriflow-io/veriflow/pkg/resource"
	"github.com/veriflow-io/veriflow/pkg/template"
)

// ErrWorkflowNotExecutable is returned when executing a definition that
// has not been activated.
var ErrWorkflowNotExecutable = errors.New("workflow is not active")

// ErrExecutionNotRunning is returned when cancelling an execution that is
// not in flight.
var ErrExecutionNotRunning = errors.New("execution is not running")

// Engine coordinates graph building, planning, resource allocation and
// level-by-level dispatch for workflow executions.
type Engine struct {
	logger      *slog.Logger
	registry    *registry.Registry
	resources   *resource.Manager
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	dispatcher  *Dispatcher
	recovery    *RecoveryManager
	tracer      trace.Tracer

	mu          sync.Mutex
	running     map[string]context.CancelFunc
	cancelledBy map[string]string
}

// NewEngine wires an engine from explicitly constructed collaborators.
// Nothing is ambient: multiple engines can run side by side in tests
// without cross-contamination.
func NewEngine(
	logger *slog.Logger,
	reg *registry.Registry,
	resources *resource.Manager,
	store persistence.Persistence,
	publisher eventbus.EventPublisher,
) *Engine {
	return &Engine{
		logger:      logger.With("module", "engine"),
		registry:    reg,
		resources:   resources,
		persistence: store,
		publisher:   publisher,
		dispatcher:  NewDispatcher(reg, logger),
		recovery:    NewRecoveryManager(logger),
		running:     make(map[string]context.CancelFunc),
		cancelledBy: make(map[string]string),
	}
}

// WithTracer attaches an OpenTelemetry tracer; spans are then emitted per
// execution and per step.
func (e *Engine) WithTracer(tracer trace.Tracer) *Engine {
	e.tracer = tracer

	return e
}

// run carries the mutable state of one in-flight execution.
type run struct {
	exec     *models.WorkflowExecution
	def      *models.WorkflowDefinition
	graph    *graph.Graph
	plan     *plan.Plan
	execCtx  *execution.Context
	stepExec map[string]*models.StepExecution

	mu          sync.Mutex
	softFailed  map[string]bool
	failSkipped map[string]bool
}

// Execute runs the workflow to a terminal status. Definition and resource
// errors surface synchronously before any step runs; step errors are
// recorded on the execution record and only escalate per the recovery
// manager's classification.
func (e *Engine) Execute(ctx context.Context, def *models.WorkflowDefinition, parameters map[string]any) (*models.WorkflowExecution, error) {
	return e.ExecuteWithID(ctx, "exec-"+uuid.New().String(), def, parameters)
}

// ExecuteWithID runs the workflow under a caller-chosen execution ID, so
// callers that start executions asynchronously can hand out the ID
// before the run finishes.
func (e *Engine) ExecuteWithID(ctx context.Context, executionID string, def *models.WorkflowDefinition, parameters map[string]any) (*models.WorkflowExecution, error) {
	if !def.IsExecutable() {
		return nil, ErrWorkflowNotExecutable
	}

	g, err := graph.Build(def.Steps)
	if err != nil {
		return nil, fmt.Errorf("invalid workflow %s: %w", def.ID, err)
	}

	p := plan.Compute(g, def.DefaultTimeout)

	allocation, err := e.resources.Allocate(executionID, models.RequirementForSteps(def.Steps))
	if err != nil {
		return nil, fmt.Errorf("cannot start execution of workflow %s: %w", def.ID, err)
	}

	// Released exactly once, whatever terminal status the execution
	// reaches.
	defer e.resources.Release(allocation)

	logger := e.logger.With("workflow_id", def.ID, "execution_id", executionID)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	e.running[executionID] = cancel
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.running, executionID)
		delete(e.cancelledBy, executionID)
		e.mu.Unlock()
	}()

	if e.tracer != nil {
		var span trace.Span

		runCtx, span = otelhelper.StartSpan(runCtx, e.tracer, "workflow.execute",
			attribute.String(otelhelper.WorkflowIDKey, def.ID),
			attribute.String(otelhelper.WorkflowNameKey, def.Name),
			attribute.String(otelhelper.ExecutionIDKey, executionID),
		)
		defer span.End()
	}

	r := e.newRun(executionID, def, g, p, parameters)

	now := time.Now().UTC()
	r.exec.Status = models.ExecutionStatusRunning
	r.exec.StartedAt = &now

	e.saveExecution(ctx, r)

	e.publish(runCtx, def.ID, events.ExecutionStarted{
		BaseEvent:    events.NewBaseEvent(events.ExecutionStartedEvent, def.ID, executionID),
		WorkflowName: def.Name,
		Parameters:   parameters,
		StepCount:    g.Len(),
		LevelCount:   p.LevelCount(),
	})

	logger.Info("Started workflow execution",
		"steps", g.Len(),
		"levels", p.LevelCount(),
		"max_parallel_steps", allocation.MaxParallelSteps,
		"critical_path", p.CriticalPath)

	aborted := e.runLevels(runCtx, r, allocation.MaxParallelSteps, logger)

	e.finish(ctx, runCtx, r, aborted, logger)

	return r.exec, nil
}

// Cancel signals all in-flight step invocations of an execution to stop,
// marks unstarted steps Cancelled and releases the resource allocation.
func (e *Engine) Cancel(executionID, cancelledBy string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cancel, ok := e.running[executionID]
	if !ok {
		return fmt.Errorf("cancel %s: %w", executionID, ErrExecutionNotRunning)
	}

	e.cancelledBy[executionID] = cancelledBy
	cancel()

	return nil
}

func (e *Engine) newRun(executionID string, def *models.WorkflowDefinition, g *graph.Graph, p *plan.Plan, parameters map[string]any) *run {
	exec := &models.WorkflowExecution{
		ID:         executionID,
		WorkflowID: def.ID,
		Snapshot:   def,
		Status:     models.ExecutionStatusPending,
		Parameters: parameters,
		CreatedAt:  time.Now().UTC(),
	}

	stepExec := make(map[string]*models.StepExecution, g.Len())

	for _, name := range g.Steps() {
		step, _ := g.Step(name)

		record := &models.StepExecution{
			ID:          "step-" + uuid.New().String(),
			ExecutionID: executionID,
			StepName:    name,
			StepType:    step.Type,
			Status:      models.StepStatusPending,
		}

		stepExec[name] = record
		exec.Steps = append(exec.Steps, record)
	}

	return &run{
		exec:        exec,
		def:         def,
		graph:       g,
		plan:        p,
		execCtx:     execution.NewContext(executionID, def.ID, def.Variables, parameters),
		stepExec:    stepExec,
		softFailed:  make(map[string]bool),
		failSkipped: make(map[string]bool),
	}
}

// runLevels drives the level loop. It returns true when the execution was
// aborted by a hard failure.
func (e *Engine) runLevels(ctx context.Context, r *run, maxParallel int, logger *slog.Logger) bool {
	for level := 0; level < r.plan.LevelCount(); level++ {
		if ctx.Err() != nil {
			return false
		}

		names := r.plan.Levels[level]

		dispatchable := e.gateLevel(ctx, r, level, names, logger)

		e.dispatchLevel(ctx, r, level, dispatchable, maxParallel, logger)

		r.exec.Metrics.LevelsRun++

		if ctx.Err() != nil {
			return false
		}

		// The level is drained; route failures through recovery.
		if abort := e.recoverLevel(ctx, r, dispatchable, logger); abort {
			return true
		}
	}

	return false
}

// gateLevel resolves which steps of a level actually dispatch: disabled
// steps, steps whose gating condition is false and steps downstream of an
// unexcused failure are skipped immediately.
func (e *Engine) gateLevel(ctx context.Context, r *run, level int, names []string, logger *slog.Logger) []string {
	dispatchable := make([]string, 0, len(names))

	for _, name := range names {
		step, _ := r.graph.Step(name)

		if step.Disabled {
			e.skipStep(ctx, r, name, "step disabled", false)

			continue
		}

		if reason, blocked := r.blockedByDependency(name); blocked {
			e.skipStep(ctx, r, name, reason, true)

			continue
		}

		proceed, err := e.evaluateCondition(step, r.execCtx)
		if err != nil {
			logger.Warn("Condition evaluation failed, skipping step", "step", name, "error", err)
			r.execCtx.AppendWarning(name, "condition evaluation failed: "+err.Error())
			e.skipStep(ctx, r, name, "condition evaluation failed: "+err.Error(), false)

			continue
		}

		if !proceed {
			e.skipStep(ctx, r, name, "condition evaluated to false", false)

			continue
		}

		dispatchable = append(dispatchable, name)
	}

	return dispatchable
}

// dispatchLevel runs all dispatchable steps of one level concurrently,
// bounded by maxParallel, and waits for every one of them to reach a
// terminal per-step status. The wait is the level synchronization
// barrier: no cross-level concurrency exists.
func (e *Engine) dispatchLevel(ctx context.Context, r *run, level int, names []string, maxParallel int, logger *slog.Logger) {
	if len(names) == 0 {
		return
	}

	semaphore := make(chan struct{}, maxParallel)

	var wg sync.WaitGroup

	for _, name := range names {
		wg.Add(1)

		go func(stepName string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			e.runStep(ctx, r, level, stepName, logger)
		}(name)
	}

	wg.Wait()
}

// runStep drives one step through its attempt loop to a terminal status.
func (e *Engine) runStep(ctx context.Context, r *run, level int, name string, logger *slog.Logger) {
	step, _ := r.graph.Step(name)
	record := r.stepExec[name]

	if ctx.Err() != nil {
		e.markCancelled(r, name)

		return
	}

	attempt := 0

	for {
		attempt++

		e.markRunning(ctx, r, name, attempt)

		e.publish(ctx, r.def.ID, events.StepStarted{
			BaseEvent: events.NewBaseEvent(events.StepStartedEvent, r.def.ID, r.exec.ID),
			StepName:  name,
			StepType:  step.Type,
			Level:     level,
			Attempt:   attempt,
		})

		stepCtx := ctx

		var span trace.Span
		if e.tracer != nil {
			stepCtx, span = otelhelper.StartSpan(ctx, e.tracer, "step.execute",
				attribute.String(otelhelper.StepNameKey, name),
				attribute.String(otelhelper.StepTypeKey, string(step.Type)),
				attribute.Int(otelhelper.LevelKey, level),
				attribute.Int(otelhelper.AttemptKey, attempt),
			)
		}

		result, err := e.dispatcher.Dispatch(stepCtx, step, r.def.DefaultTimeout, r.execCtx, logger)

		if span != nil {
			if err != nil {
				otelhelper.SetError(span, err)
			}

			span.End()
		}

		if err == nil {
			e.markCompleted(ctx, r, name, result)

			e.publish(ctx, r.def.ID, events.StepCompleted{
				BaseEvent:  events.NewBaseEvent(events.StepCompletedEvent, r.def.ID, r.exec.ID),
				StepName:   name,
				StepType:   step.Type,
				DurationMs: record.DurationMs,
				Result:     result,
			})

			return
		}

		if ctx.Err() != nil {
			e.markCancelled(r, name)

			return
		}

		r.execCtx.AppendError(name, err.Error())

		retry, backoff := e.recovery.ShouldRetry(step, attempt)
		if !retry {
			e.markFailed(ctx, r, name, err, attempt)

			e.publish(ctx, r.def.ID, events.StepFailed{
				BaseEvent:  events.NewBaseEvent(events.StepFailedEvent, r.def.ID, r.exec.ID),
				StepName:   name,
				StepType:   step.Type,
				DurationMs: record.DurationMs,
				Error:      err.Error(),
				Attempts:   attempt,
				Critical:   step.Critical,
			})

			return
		}

		logger.Warn("Step failed, retrying",
			"step", name,
			"attempt", attempt,
			"backoff", backoff,
			"error", err)

		e.setStatus(ctx, r, models.ExecutionStatusRetrying)

		e.publish(ctx, r.def.ID, events.StepRetrying{
			BaseEvent: events.NewBaseEvent(events.StepRetryingEvent, r.def.ID, r.exec.ID),
			StepName:  name,
			Attempt:   attempt,
			Backoff:   backoff,
			LastError: err.Error(),
		})

		r.mu.Lock()
		r.exec.Metrics.RetriesTotal++
		r.mu.Unlock()

		if backoff > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				e.markCancelled(r, name)

				return
			}
		}

		e.setStatus(ctx, r, models.ExecutionStatusRunning)
	}
}

// recoverLevel classifies the exhausted failures of a drained level. A
// hard failure aborts the execution; soft failures let it continue, with
// their dependents skipped in later levels.
func (e *Engine) recoverLevel(ctx context.Context, r *run, names []string, logger *slog.Logger) bool {
	for _, name := range names {
		record := r.stepExec[name]
		if record.Status != models.StepStatusFailed {
			continue
		}

		step, _ := r.graph.Step(name)

		switch e.recovery.Classify(step) {
		case FailureHard:
			logger.Error("Critical step failed, aborting execution", "step", name)

			return true
		case FailureSoft:
			logger.Warn("Step failed softly, downstream steps will be skipped", "step", name)

			r.mu.Lock()
			r.softFailed[name] = true
			r.mu.Unlock()
		}
	}

	return false
}

// finish resolves the terminal status, stamps metrics and publishes the
// final event.
func (e *Engine) finish(ctx, runCtx context.Context, r *run, aborted bool, logger *slog.Logger) {
	cancelled := runCtx.Err() != nil && !aborted

	var failedSteps []string

	for _, record := range r.exec.Steps {
		switch record.Status {
		case models.StepStatusPending:
			record.Status = models.StepStatusCancelled
		case models.StepStatusFailed:
			failedSteps = append(failedSteps, record.StepName)
		case models.StepStatusCompleted:
			r.exec.Metrics.StepsCompleted++
		case models.StepStatusSkipped:
			r.exec.Metrics.StepsSkipped++
		}
	}

	r.exec.Metrics.StepsFailed = len(failedSteps)
	r.exec.Metrics.DurationMs = r.execCtx.Elapsed().Milliseconds()

	now := time.Now().UTC()
	r.exec.FinishedAt = &now

	switch {
	case cancelled:
		r.exec.Status = models.ExecutionStatusCancelled

		e.mu.Lock()
		r.exec.CancelledBy = e.cancelledBy[r.exec.ID]
		e.mu.Unlock()

		e.publish(ctx, r.def.ID, events.ExecutionCancelled{
			BaseEvent:   events.NewBaseEvent(events.ExecutionCancelledEvent, r.def.ID, r.exec.ID),
			DurationMs:  r.exec.Metrics.DurationMs,
			CancelledBy: r.exec.CancelledBy,
		})

		logger.Info("Execution cancelled")
	case len(failedSteps) > 0:
		r.exec.Status = models.ExecutionStatusFailed
		r.exec.Error = fmt.Sprintf("%d step(s) failed: %v", len(failedSteps), failedSteps)

		e.publish(ctx, r.def.ID, events.ExecutionFailed{
			BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, r.def.ID, r.exec.ID),
			DurationMs:  r.exec.Metrics.DurationMs,
			Error:       r.exec.Error,
			FailedSteps: failedSteps,
			Metrics:     r.exec.Metrics,
		})

		logger.Error("Execution failed", "failed_steps", failedSteps)
	default:
		r.exec.Status = models.ExecutionStatusCompleted

		e.publish(ctx, r.def.ID, events.ExecutionCompleted{
			BaseEvent:  events.NewBaseEvent(events.ExecutionCompletedEvent, r.def.ID, r.exec.ID),
			DurationMs: r.exec.Metrics.DurationMs,
			Metrics:    r.exec.Metrics,
		})

		logger.Info("Execution completed", "duration_ms", r.exec.Metrics.DurationMs)
	}

	e.saveExecution(ctx, r)
}

// blockedByDependency reports whether a step must be skipped because a
// dependency failed without being excused, directly or transitively. A
/// soft failure cascades through its whole downstream closure: a step
// skipped over a failed dependency blocks its own dependents in turn.
// Skips from gating decisions (disabled steps, false conditions) do not
// block dependents.
func (r *run) blockedByDependency(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, dep := range r.graph.Dependencies(name) {
		if r.softFailed[dep] {
			return fmt.Sprintf("dependency %q failed", dep), true
		}

		if r.failSkipped[dep] {
			return fmt.Sprintf("dependency %q was skipped after an upstream failure", dep), true
		}
	}

	return "", false
}

func (e *Engine) evaluateCondition(step *models.StepDefinition, execCtx *execution.Context) (bool, error) {
	if step.Condition == "" {
		return true, nil
	}

	rendered, err := renderCondition(step.Condition, execCtx)
	if err != nil {
		return false, err
	}

	interpreter := models.GetConditional("simple")

	return interpreter.Evaluate(rendered)
}

// renderCondition resolves a gating expression against the execution
// context. Plain literals pass through untouched.
func renderCondition(condition string, execCtx *execution.Context) (any, error) {
	if !strings.Contains(condition, "{{") {
		return condition, nil
	}

	return template.RenderWithContext(condition, execCtx)
}

// skipStep marks a step Skipped. fromFailure records whether the skip
// originates in a failed dependency, which makes it block dependents.
func (e *Engine) skipStep(ctx context.Context, r *run, name, reason string, fromFailure bool) {
	record := r.stepExec[name]

	r.mu.Lock()
	record.Status = models.StepStatusSkipped
	record.SkipReason = reason

	if fromFailure {
		r.failSkipped[name] = true
	}
	r.mu.Unlock()

	e.publish(ctx, r.def.ID, events.StepSkipped{
		BaseEvent: events.NewBaseEvent(events.StepSkippedEvent, r.def.ID, r.exec.ID),
		StepName:  name,
		Reason:    reason,
	})

	e.saveExecution(ctx, r)
}

func (e *Engine) markRunning(ctx context.Context, r *run, name string, attempt int) {
	record := r.stepExec[name]
	now := time.Now().UTC()

	r.mu.Lock()
	record.Status = models.StepStatusRunning
	record.Attempts = attempt

	if record.StartedAt == nil {
		record.StartedAt = &now
	}
	r.mu.Unlock()

	e.saveExecution(ctx, r)
}

func (e *Engine) markCompleted(ctx context.Context, r *run, name string, result map[string]any) {
	record := r.stepExec[name]
	now := time.Now().UTC()

	r.execCtx.SetStepResult(name, result)

	r.mu.Lock()
	record.Status = models.StepStatusCompleted
	record.FinishedAt = &now
	record.Result = result

	if elapsed, ok := r.execCtx.StepTiming(name); ok {
		record.DurationMs = elapsed.Milliseconds()
	}
	r.mu.Unlock()

	e.saveExecution(ctx, r)
}

func (e *Engine) markFailed(ctx context.Context, r *run, name string, err error, attempts int) {
	record := r.stepExec[name]
	now := time.Now().UTC()

	r.mu.Lock()
	record.Status = models.StepStatusFailed
	record.FinishedAt = &now
	record.Error = err.Error()
	record.Attempts = attempts

	if elapsed, ok := r.execCtx.StepTiming(name); ok {
		record.DurationMs = elapsed.Milliseconds()
	}
	r.mu.Unlock()

	e.saveExecution(ctx, r)
}

func (e *Engine) markCancelled(r *run, name string) {
	record := r.stepExec[name]
	now := time.Now().UTC()

	r.mu.Lock()
	record.Status = models.StepStatusCancelled
	record.FinishedAt = &now
	r.mu.Unlock()
}

func (e *Engine) setStatus(ctx context.Context, r *run, status models.ExecutionStatus) {
	r.mu.Lock()
	if !r.exec.Status.IsTerminal() {
		r.exec.Status = status
	}
	r.mu.Unlock()

	e.saveExecution(ctx, r)
}

// saveExecution persists the current execution record. Persistence
// failures are logged, never allowed to crash the engine.
func (e *Engine) saveExecution(ctx context.Context, r *run) {
	if e.persistence == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := e.persistence.ExecutionRepository().Save(ctx, r.exec); err != nil {
		e.logger.Error("Failed to persist execution record",
			"execution_id", r.exec.ID,
			"error", err)
	}
}

// publish emits a monitoring event, best effort. The workflow ID keys
// the event so consumers see one workflow's events in order.
func (e *Engine) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, workflowID, event); err != nil {
		e.logger.Warn("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
