// Package notify provides the notify step executor, which posts a JSON
// payload to a webhook endpoint.
package notify

import (
	"github.com/veriflow-io/veriflow/pkg/protocol"
)

// Factory creates notify executors.
type Factory struct{}

// NewFactory creates a new notify executor factory.
func NewFactory() *Factory {
	return &Factory{}
}

// ID returns the step type this factory serves.
func (*Factory) ID() string {
	return "notify"
}

// Create creates a notify executor from configuration.
func (f *Factory) Create(config map[string]any) (protocol.StepExecutor, error) {
	return NewExecutor(config)
}

// Schema returns the JSON schema for the executor configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Webhook URL that receives the notification.",
				"examples":    []string{"https://hooks.example.com/pipeline"},
			},
			"message": map[string]any{
				"type":        "string",
				"description": "Notification message. Supports templating.",
				"examples": []string{
					"Pipeline finished",
					"Processed {{.step_results.scan_files.count}} files",
				},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Additional HTTP headers.",
			},
		},
		"required": []string{"url", "message"},
	}
}
