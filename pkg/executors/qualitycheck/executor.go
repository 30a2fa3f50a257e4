package qualitycheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/veriflow-io/veriflow/pkg/execution"
	"github.com/veriflow-io/veriflow/pkg/template"
)

// ErrMetricRequired is returned when the configuration lacks a metric
// expression.
var ErrMetricRequired = errors.New("missing or invalid 'metric' in configuration")

// ErrThresholdRequired is returned when the configuration lacks a
// threshold.
var ErrThresholdRequired = errors.New("missing or invalid 'threshold' in configuration")

// ErrQualityCheckFailed is returned when the metric does not satisfy the
// threshold.
var ErrQualityCheckFailed = errors.New("quality check failed")

// Executor compares a measured metric against a configured threshold.
type Executor struct {
	Metric    string
	Operator  string
	Threshold float64
}

// NewExecutor creates a quality-check executor from configuration.
func NewExecutor(config map[string]any) (*Executor, error) {
	metric, ok := config["metric"].(string)
	if !ok || metric == "" {
		return nil, ErrMetricRequired
	}

	threshold, ok := toFloat(config["threshold"])
	if !ok {
		return nil, ErrThresholdRequired
	}

	operator, _ := config["operator"].(string)
	if operator == "" {
		operator = "gte"
	}

	switch operator {
	case "gt", "gte", "lt", "lte", "eq":
	default:
		return nil, fmt.Errorf("unknown operator %q", operator)
	}

	return &Executor{
		Metric:    metric,
		Operator:  operator,
		Threshold: threshold,
	}, nil
}

// Execute resolves the metric and fails the step when the threshold is
// not met.
func (e *Executor) Execute(ctx context.Context, executionCtx *execution.Context, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("executor", "quality_check")

	rendered, err := template.RenderWithContext(e.Metric, executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve metric: %w", err)
	}

	value, ok := toFloat(rendered)
	if !ok {
		return nil, fmt.Errorf("metric %q did not resolve to a number (got %v)", e.Metric, rendered)
	}

	passed := compare(value, e.Operator, e.Threshold)

	logger.InfoContext(ctx, "Quality check evaluated",
		"value", value,
		"operator", e.Operator,
		"threshold", e.Threshold,
		"passed", passed)

	if !passed {
		return nil, fmt.Errorf("%w: %v %s %v does not hold", ErrQualityCheckFailed, value, e.Operator, e.Threshold)
	}

	return map[string]any{
		"value":     value,
		"threshold": e.Threshold,
		"passed":    true,
	}, nil
}

func compare(value float64, operator string, threshold float64) bool {
	switch operator {
	case "gt":
		return value > threshold
	case "gte":
		return value >= threshold
	case "lt":
		return value < threshold
	case "lte":
		return value <= threshold
	case "eq":
		return value == threshold
	default:
		return false
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}

		return parsed, true
	default:
		return 0, false
	}
}
