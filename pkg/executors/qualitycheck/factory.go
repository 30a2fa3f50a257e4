// Package qualitycheck provides the quality-check step executor, which
// compares a measured metric against a threshold.
package qualitycheck

import (
	"github.com/veriflow-io/veriflow/pkg/protocol"
)

// Factory creates quality-check executors.
type Factory struct{}

// NewFactory creates a new quality-check executor factory.
func NewFactory() *Factory {
	return &Factory{}
}

// ID returns the step type this factory serves.
func (*Factory) ID() string {
	return "quality-check"
}

// Create creates a quality-check executor from configuration.
func (f *Factory) Create(config map[string]any) (protocol.StepExecutor, error) {
	return NewExecutor(config)
}

// Schema returns the JSON schema for the executor configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"metric": map[string]any{
				"type":        "string",
				"description": "Expression resolving to the numeric metric under check. Supports templating.",
				"examples":    []string{"{{.step_results.scan_files.count}}"},
			},
			"operator": map[string]any{
				"type":        "string",
				"description": "Comparison applied between metric and threshold.",
				"default":     "gte",
				"enum":        []string{"gt", "gte", "lt", "lte", "eq"},
			},
			"threshold": map[string]any{
				"type":        "number",
				"description": "Threshold the metric is compared against.",
			},
		},
		"required": []string{"metric", "threshold"},
	}
}
