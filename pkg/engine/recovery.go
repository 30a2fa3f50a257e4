package engine

import (
	"log/slog"
	"time"

	"github.com/veriflow-io/veriflow/pkg/models"
)

// FailureSeverity classifies an exhausted step failure.
type FailureSeverity string

const (
	// FailureSoft lets the workflow continue; downstream steps that
	// depend on the failed step become Skipped.
	FailureSoft FailureSeverity = "soft"

	// FailureHard aborts the whole execution immediately.
	FailureHard FailureSeverity = "hard"
)

// RecoveryManager decides, deterministically from policy and state, how
// to react to step failures: retry, skip-and-continue, or abort.
type RecoveryManager struct {
	logger *slog.Logger
}

func NewRecoveryManager(logger *slog.Logger) *RecoveryManager {
	return &RecoveryManager{
		logger: logger.With("module", "recovery_manager"),
	}
}

// ShouldRetry reports whether the step may be attempted again after the
// given attempt count (1-based), and the backoff to wait before it. A
// missing or malformed retry policy means no retry at all.
func (r *RecoveryManager) ShouldRetry(step *models.StepDefinition, attempt int) (bool, time.Duration) {
	policy := step.Retry

	if policy == nil || !policy.Valid() {
		return false, 0
	}

	if attempt >= policy.MaxAttempts {
		return false, 0
	}

	return true, policy.BackoffFor(attempt)
}

// Classify determines the severity of an exhausted failure. Steps marked
// critical hard-fail the execution; a step whose retry policy is present
// but malformed also hard-fails, since its intent cannot be honored.
// Everything else soft-fails: the open policy question of unmarked steps
// is resolved as soft by default.
func (r *RecoveryManager) Classify(step *models.StepDefinition) FailureSeverity {
	if step.Critical {
		return FailureHard
	}

	if step.Retry != nil && !step.Retry.Valid() {
		r.logger.Warn("Malformed retry policy treated as hard failure", "step", step.Name)

		return FailureHard
	}

	return FailureSoft
}
