// Package registry maps declared step types to registered executor
// capabilities and trigger factories.
package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/veriflow-io/veriflow/pkg/models"
	"github.com/veriflow-io/veriflow/pkg/protocol"
)

// UnsupportedStepTypeError is returned when a step declares a type with
// no registered executor capability.
type UnsupportedStepTypeError struct {
	StepType models.StepType
}

func (e *UnsupportedStepTypeError) Error() string {
	return fmt.Sprintf("unsupported step type %q", e.StepType)
}

// Registry holds executor and trigger factories keyed by type tag. The
// step-type set is closed: registering an executor for a type outside
// models.KnownStepTypes is rejected.
type Registry struct {
	logger            *slog.Logger
	executorFactories map[models.StepType]protocol.ExecutorFactory
	triggerFactories  map[string]protocol.TriggerFactory
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:            logger.With("module", "registry"),
		executorFactories: make(map[models.StepType]protocol.ExecutorFactory),
		triggerFactories:  make(map[string]protocol.TriggerFactory),
	}
}

// RegisterExecutor registers a factory for one step type.
func (r *Registry) RegisterExecutor(factory protocol.ExecutorFactory) error {
	stepType := models.StepType(factory.ID())

	if !models.IsKnownStepType(stepType) {
		return &UnsupportedStepTypeError{StepType: stepType}
	}

	r.executorFactories[stepType] = factory
	r.logger.Debug("Registered step executor", "step_type", stepType)

	return nil
}

// RegisterTrigger registers a trigger factory.
func (r *Registry) RegisterTrigger(factory protocol.TriggerFactory) {
	r.triggerFactories[factory.ID()] = factory
}

// CreateExecutor resolves a step type to its capability and instantiates
// it with the step's configuration, validating the configuration against
// the factory's JSON schema first.
func (r *Registry) CreateExecutor(stepType models.StepType, config map[string]any) (protocol.StepExecutor, error) {
	factory, ok := r.executorFactories[stepType]
	if !ok {
		return nil, &UnsupportedStepTypeError{StepType: stepType}
	}

	if schema := factory.Schema(); schema != nil {
		if err := validateConfig(config, schema); err != nil {
			return nil, fmt.Errorf("invalid configuration for step type %q: %w", stepType, err)
		}
	}

	return factory.Create(config)
}

// CreateTrigger instantiates a registered trigger.
func (r *Registry) CreateTrigger(triggerID string, config map[string]any) (protocol.Trigger, error) {
	factory, ok := r.triggerFactories[triggerID]
	if !ok {
		return nil, fmt.Errorf("trigger type %q not registered", triggerID)
	}

	return factory.Create(config, r.logger)
}

// RegisteredStepTypes returns the step types with a registered executor.
func (r *Registry) RegisteredStepTypes() []models.StepType {
	types := make([]models.StepType, 0, len(r.executorFactories))
	for stepType := range r.executorFactories {
		types = append(types, stepType)
	}

	return types
}

// HasExecutor reports whether a step type is registered.
func (r *Registry) HasExecutor(stepType models.StepType) bool {
	_, ok := r.executorFactories[stepType]

	return ok
}

// HealthCheck reports whether the registry is usable.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.executorFactories) == 0 {
		return "No step executors registered", false
	}

	return fmt.Sprintf("%d step executor(s) registered", len(r.executorFactories)), true
}

// validateConfig validates a configuration payload against a JSON schema.
func validateConfig(config, schema map[string]any) error {
	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			messages = append(messages, resultError.String())
		}

		return fmt.Errorf("JSON schema validation failed: %s", strings.Join(messages, "; "))
	}

	return nil
}
