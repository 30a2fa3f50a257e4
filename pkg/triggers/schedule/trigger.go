// Package schedule provides a cron-based workflow trigger.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/veriflow-io/veriflow/pkg/protocol"
)

// Trigger starts workflow executions on a cron schedule.
type Trigger struct {
	ID         string
	CronExpr   string
	WorkflowID string

	cron     *cron.Cron
	callback protocol.TriggerCallback
	logger   *slog.Logger
}

// NewTrigger creates a schedule trigger from configuration.
func NewTrigger(config map[string]any, logger *slog.Logger) (*Trigger, error) {
	id, _ := config["id"].(string)
	cronExpr, _ := config["cron"].(string)
	workflowID, _ := config["workflow_id"].(string)

	trigger := &Trigger{
		ID:         id,
		CronExpr:   cronExpr,
		WorkflowID: workflowID,
		logger: logger.With(
			"module", "schedule_trigger",
			"id", id,
			"cron", cronExpr,
			"workflow_id", workflowID,
		),
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	return trigger, nil
}

// Validate checks the trigger configuration.
func (t *Trigger) Validate() error {
	if t.ID == "" {
		return errors.New("schedule trigger ID is required")
	}

	if t.CronExpr == "" {
		return errors.New("schedule trigger cron expression is required")
	}

	if _, err := cron.ParseStandard(t.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

// Start begins firing the callback per the cron expression. Overlapping
// runs of the same trigger are skipped.
func (t *Trigger) Start(_ context.Context, callback protocol.TriggerCallback) error {
	t.logger.Info("Starting schedule trigger")
	t.callback = callback

	t.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := t.cron.AddFunc(t.CronExpr, t.run)
	if err != nil {
		return fmt.Errorf("failed to add cron job for trigger %s: %w", t.ID, err)
	}

	t.cron.Start()

	return nil
}

func (t *Trigger) run() {
	t.logger.Info("Cron job fired")

	triggerData := map[string]any{
		"trigger":   "schedule",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := t.callback(context.Background(), triggerData); err != nil {
		t.logger.Error("Error executing workflow for trigger", "error", err)
	}
}

// Stop halts the schedule. In-flight callbacks finish on their own.
func (t *Trigger) Stop(_ context.Context) error {
	t.logger.Info("Stopping schedule trigger", "id", t.ID)

	if t.cron != nil {
		t.cron.Stop()
	}

	return nil
}
