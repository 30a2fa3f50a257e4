// Package classify provides the classify step executor, which assigns a
// label to a measured value based on ordered rules.
package classify

import (
	"github.com/veriflow-io/veriflow/pkg/protocol"
)

// Factory creates classify executors.
type Factory struct{}

// NewFactory creates a new classify executor factory.
func NewFactory() *Factory {
	return &Factory{}
}

// ID returns the step type this factory serves.
func (*Factory) ID() string {
	return "classify"
}

// Create creates a classify executor from configuration.
func (f *Factory) Create(config map[string]any) (protocol.StepExecutor, error) {
	return NewExecutor(config)
}

// Schema returns the JSON schema for the executor configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": map[string]any{
				"type":        "string",
				"description": "Expression resolving to the numeric value to classify. Supports templating.",
			},
			"rules": map[string]any{
				"type":        "array",
				"description": "Ordered rules; the first rule whose minimum the value meets wins.",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"label": map[string]any{"type": "string"},
						"min":   map[string]any{"type": "number"},
					},
					"required": []string{"label", "min"},
				},
			},
			"default_label": map[string]any{
				"type":        "string",
				"description": "Label used when no rule matches.",
				"default":     "unclassified",
			},
		},
		"required": []string{"value", "rules"},
	}
}
