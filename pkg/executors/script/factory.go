// Package script provides the custom-script step executor, which runs a
// template program against the execution context.
package script

import (
	"github.com/veriflow-io/veriflow/pkg/protocol"
)

// Factory creates custom-script executors.
type Factory struct{}

// NewFactory creates a new custom-script executor factory.
func NewFactory() *Factory {
	return &Factory{}
}

// ID returns the step type this factory serves.
func (*Factory) ID() string {
	return "custom-script"
}

// Create creates a custom-script executor from configuration.
func (f *Factory) Create(config map[string]any) (protocol.StepExecutor, error) {
	return NewExecutor(config)
}

// Schema returns the JSON schema for the executor configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"script": map[string]any{
				"type":        "string",
				"format":      "code",
				"description": "Template program producing the step output. JSON output is decoded into structured data.",
				"examples": []string{
					`{"total": {{.step_results.scan_files.count}}}`,
					`{{printf "%s-%s" .workflow_id .execution_id}}`,
				},
			},
		},
		"required": []string{"script"},
	}
}
