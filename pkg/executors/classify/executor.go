package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/veriflow-io/veriflow/pkg/execution"
	"github.com/veriflow-io/veriflow/pkg/template"
)

// ErrValueRequired is returned when the configuration lacks a value
// expression.
var ErrValueRequired = errors.New("missing or invalid 'value' in configuration")

// ErrRulesRequired is returned when the configuration lacks rules.
var ErrRulesRequired = errors.New("missing or invalid 'rules' in configuration")

// Rule maps a minimum value to a label.
type Rule struct {
	Label string
	Min   float64
}

// Executor assigns a label to a numeric value based on ordered rules.
type Executor struct {
	Value        string
	Rules        []Rule
	DefaultLabel string
}

// NewExecutor creates a classify executor from configuration.
func NewExecutor(config map[string]any) (*Executor, error) {
	value, ok := config["value"].(string)
	if !ok || value == "" {
		return nil, ErrValueRequired
	}

	rawRules, ok := config["rules"].([]any)
	if !ok || len(rawRules) == 0 {
		return nil, ErrRulesRequired
	}

	rules := make([]Rule, 0, len(rawRules))

	for _, raw := range rawRules {
		ruleMap, ok := raw.(map[string]any)
		if !ok {
			return nil, ErrRulesRequired
		}

		label, ok := ruleMap["label"].(string)
		if !ok || label == "" {
			return nil, ErrRulesRequired
		}

		minValue, ok := toFloat(ruleMap["min"])
		if !ok {
			return nil, ErrRulesRequired
		}

		rules = append(rules, Rule{Label: label, Min: minValue})
	}

	// Highest minimum first, so the strictest matching rule wins.
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Min > rules[j].Min
	})

	defaultLabel, _ := config["default_label"].(string)
	if defaultLabel == "" {
		defaultLabel = "unclassified"
	}

	return &Executor{
		Value:        value,
		Rules:        rules,
		DefaultLabel: defaultLabel,
	}, nil
}

// Execute resolves the value and returns the matching label.
func (e *Executor) Execute(ctx context.Context, executionCtx *execution.Context, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("executor", "classify")

	rendered, err := template.RenderWithContext(e.Value, executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve value: %w", err)
	}

	value, ok := toFloat(rendered)
	if !ok {
		return nil, fmt.Errorf("value %q did not resolve to a number (got %v)", e.Value, rendered)
	}

	label := e.DefaultLabel

	for _, rule := range e.Rules {
		if value >= rule.Min {
			label = rule.Label

			break
		}
	}

	logger.InfoContext(ctx, "Value classified", "value", value, "label", label)

	return map[string]any{
		"value": value,
		"label": label,
	}, nil
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
