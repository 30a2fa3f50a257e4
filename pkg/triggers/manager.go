// Package triggers connects workflow trigger definitions to running
// trigger instances that start executions.
package triggers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/veriflow-io/veriflow/pkg/models"
	"github.com/veriflow-io/veriflow/pkg/protocol"
	"github.com/veriflow-io/veriflow/pkg/registry"
)

// Starter begins an asynchronous workflow execution. The execution
// service satisfies it.
type Starter interface {
	StartWorkflow(ctx context.Context, workflowID string, parameters map[string]any) (string, error)
}

// Manager owns the running trigger instances of active workflows. Each
// trigger fires into the starter, so a cron tick or a queue message
// becomes a background execution of its workflow.
type Manager struct {
	registry *registry.Registry
	starter  Starter
	logger   *slog.Logger

	mu      sync.Mutex
	running map[string]protocol.Trigger
}

// NewManager creates a trigger manager over the given registry and
// starter.
func NewManager(reg *registry.Registry, starter Starter, logger *slog.Logger) *Manager {
	return &Manager{
		registry: reg,
		starter:  starter,
		logger:   logger.With("module", "trigger_manager"),
		running:  make(map[string]protocol.Trigger),
	}
}

// StartWorkflowTriggers instantiates and starts every trigger attached
// to the definition. Triggers of workflows that are not active are
// refused: only activated definitions may be executed.
func (m *Manager) StartWorkflowTriggers(ctx context.Context, def *models.WorkflowDefinition) error {
	if !def.IsExecutable() {
		return fmt.Errorf("workflow %s is not active, refusing to start triggers", def.ID)
	}

	for _, td := range def.Triggers {
		if err := m.startTrigger(ctx, def, td); err != nil {
			return err
		}
	}

	return nil
}

func (m *Manager) startTrigger(ctx context.Context, def *models.WorkflowDefinition, td *models.TriggerDefinition) error {
	config := make(map[string]any, len(td.Configuration)+2)
	for key, value := range td.Configuration {
		config[key] = value
	}

	config["id"] = td.ID
	config["workflow_id"] = def.ID

	trigger, err := m.registry.CreateTrigger(td.Type, config)
	if err != nil {
		return fmt.Errorf("trigger %s of workflow %s: %w", td.ID, def.ID, err)
	}

	if err := trigger.Start(ctx, m.callback(def.ID, td.ID)); err != nil {
		return fmt.Errorf("start trigger %s of workflow %s: %w", td.ID, def.ID, err)
	}

	m.mu.Lock()
	m.running[td.ID] = trigger
	m.mu.Unlock()

	m.logger.Info("Started trigger",
		"trigger_id", td.ID,
		"trigger_type", td.Type,
		"workflow_id", def.ID)

	return nil
}

// callback adapts a trigger firing into a background execution start.
// The trigger payload becomes the execution parameters.
func (m *Manager) callback(workflowID, triggerID string) protocol.TriggerCallback {
	return func(ctx context.Context, data map[string]any) error {
		executionID, err := m.starter.StartWorkflow(ctx, workflowID, data)
		if err != nil {
			m.logger.Error("Trigger failed to start execution",
				"trigger_id", triggerID,
				"workflow_id", workflowID,
				"error", err)

			return err
		}

		m.logger.Info("Trigger started execution",
			"trigger_id", triggerID,
			"workflow_id", workflowID,
			"execution_id", executionID)

		return nil
	}
}

// StopWorkflowTriggers stops the running triggers of one workflow's
// definition. Unknown trigger IDs are ignored.
func (m *Manager) StopWorkflowTriggers(ctx context.Context, def *models.WorkflowDefinition) {
	for _, td := range def.Triggers {
		m.mu.Lock()
		trigger, ok := m.running[td.ID]
		delete(m.running, td.ID)
		m.mu.Unlock()

		if !ok {
			continue
		}

		if err := trigger.Stop(ctx); err != nil {
			m.logger.Error("Error stopping trigger", "trigger_id", td.ID, "error", err)
		}
	}
}

// StopAll stops every running trigger.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, trigger := range m.running {
		if err := trigger.Stop(ctx); err != nil {
			m.logger.Error("Error stopping trigger", "trigger_id", id, "error", err)
		}

		delete(m.running, id)
	}

	m.logger.Info("All triggers stopped")
}

// Running reports the number of live trigger instances.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.running)
}
