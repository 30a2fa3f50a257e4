// Package transform provides the transform step executor, which reshapes
// step results with template expressions.
package transform

import (
	"github.com/veriflow-io/veriflow/pkg/protocol"
)

// Factory creates transform executors.
type Factory struct{}

// NewFactory creates a new transform executor factory.
func NewFactory() *Factory {
	return &Factory{}
}

// ID returns the step type this factory serves.
func (*Factory) ID() string {
	return "transform"
}

// Create creates a transform executor from configuration.
func (f *Factory) Create(config map[string]any) (protocol.StepExecutor, error) {
	return NewExecutor(config)
}

// Schema returns the JSON schema for the executor configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"description": "Input data source expression. If empty, uses all step results. Supports templating.",
				"examples": []string{
					"",
					"{{.step_results.scan_files}}",
				},
			},
			"expression": map[string]any{
				"type":        "string",
				"format":      "code",
				"description": "Template expression applied to the input data.",
				"examples": []string{
					"{{.count}}",
					"{{len .files}}",
				},
			},
		},
		"required": []string{"expression"},
	}
}
