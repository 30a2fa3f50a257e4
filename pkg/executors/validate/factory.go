// Package validate provides the validate step executor, which checks
// that upstream data carries the fields downstream steps rely on.
package validate

import (
	"github.com/veriflow-io/veriflow/pkg/protocol"
)

// Factory creates validate executors.
type Factory struct{}

// NewFactory creates a new validate executor factory.
func NewFactory() *Factory {
	return &Factory{}
}

// ID returns the step type this factory serves.
func (*Factory) ID() string {
	return "validate"
}

// Create creates a validate executor from configuration.
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
				"description": "Expression selecting the data to validate. If empty, uses all step results.",
			},
			"required_fields": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Fields that must be present and non-nil in the input.",
			},
			"fail_on_invalid": map[string]any{
				"type":        "boolean",
				"default":     true,
				"description": "When true, missing fields fail the step instead of only being reported.",
			},
		},
		"required": []string{"required_fields"},
	}
}
