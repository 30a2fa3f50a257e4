// Package condition provides the condition step executor, which
// evaluates an expression and publishes the boolean outcome for
// downstream gating.
package condition

import (
	"github.com/veriflow-io/veriflow/pkg/protocol"
)

// Factory creates condition executors.
type Factory struct{}

// NewFactory creates a new condition executor factory.
func NewFactory() *Factory {
	return &Factory{}
}

// ID returns the step type this factory serves.
func (*Factory) ID() string {
	return "condition"
}

// Create creates a condition executor from configuration.
func (f *Factory) Create(config map[string]any) (protocol.StepExecutor, error) {
	return NewExecutor(config)
}

// Schema returns the JSON schema for the executor configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Expression evaluated to a boolean. Supports templating.",
				"examples": []string{
					"{{gt (index .step_results.scan_files \"count\") 0}}",
					"{{.variables.strict_mode}}",
				},
			},
			"language": map[string]any{
				"type":        "string",
				"description": "Conditional interpreter used for the final value.",
				"default":     "simple",
				"enum":        []string{"simple"},
			},
		},
		"required": []string{"expression"},
	}
}
