// Package scan provides the scan step executor, which enumerates source
// files for downstream steps.
package scan

import (
	"github.com/veriflow-io/veriflow/pkg/protocol"
)

// Factory creates scan executors.
type Factory struct{}

// NewFactory creates a new scan executor factory.
func NewFactory() *Factory {
	return &Factory{}
}

// ID returns the step type this factory serves.
func (*Factory) ID() string {
	return "scan"
}

// Create creates a scan executor from configuration.
func (f *Factory) Create(config map[string]any) (protocol.StepExecutor, error) {
	return NewExecutor(config)
}

// Schema returns the JSON schema for the executor configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"source_dir": map[string]any{
				"type":        "string",
				"description": "Directory to scan for input files.",
			},
			"pattern": map[string]any{
				"type":        "string",
				"description": "Glob pattern applied to file names.",
				"default":     "*",
				"examples":    []string{"*.csv", "*.json", "batch-*.parquet"},
			},
		},
		"required": []string{"source_dir"},
	}
}
