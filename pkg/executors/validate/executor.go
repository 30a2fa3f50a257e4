package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/veriflow-io/veriflow/pkg/execution"
	"github.com/veriflow-io/veriflow/pkg/template"
)

// ErrRequiredFieldsMissing is returned when the configuration lacks the
// field list.
var ErrRequiredFieldsMissing = errors.New("missing or invalid 'required_fields' in configuration")

// ErrValidationFailed is returned when the input is missing required
// fields and fail_on_invalid is set.
var ErrValidationFailed = errors.New("validation failed")

// Executor checks that an input document carries a set of required
// fields.
type Executor struct {
	Input          string
	RequiredFields []string
	FailOnInvalid  bool
}

// NewExecutor creates a validate executor from configuration.
func NewExecutor(config map[string]any) (*Executor, error) {
	rawFields, ok := config["required_fields"].([]any)
	if !ok || len(rawFields) == 0 {
		return nil, ErrRequiredFieldsMissing
	}

	fields := make([]string, 0, len(rawFields))

	for _, raw := range rawFields {
		field, ok := raw.(string)
		if !ok || field == "" {
			return nil, ErrRequiredFieldsMissing
		}

		fields = append(fields, field)
	}

	input, _ := config["input"].(string)

	failOnInvalid := true
	if v, ok := config["fail_on_invalid"].(bool); ok {
		failOnInvalid = v
	}

	return &Executor{
		Input:          input,
		RequiredFields: fields,
		FailOnInvalid:  failOnInvalid,
	}, nil
}

// Execute checks the required fields and reports the missing ones.
func (e *Executor) Execute(ctx context.Context, executionCtx *execution.Context, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("executor", "validate")
	logger.InfoContext(ctx, "Validating input", "required_fields", e.RequiredFields)

	data, err := e.extract(executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get input data: %w", err)
	}

	document, ok := data.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: input is not an object", ErrValidationFailed)
	}

	missing := make([]string, 0)

	for _, field := range e.RequiredFields {
		if value, present := document[field]; !present || value == nil {
			missing = append(missing, field)
		}
	}

	valid := len(missing) == 0

	if !valid && e.FailOnInvalid {
		return nil, fmt.Errorf("%w: missing fields: %s", ErrValidationFailed, strings.Join(missing, ", "))
	}

	logger.InfoContext(ctx, "Validation completed", "valid", valid, "missing", missing)

	return map[string]any{
		"valid":   valid,
		"missing": missing,
	}, nil
}

func (e *Executor) extract(executionCtx *execution.Context) (any, error) {
	if e.Input == "" {
		results := executionCtx.StepResults()
		document := make(map[string]any, len(results))

		for name, result := range results {
			document[name] = result
		}

		return document, nil
	}

	return template.RenderWithContext(e.Input, executionCtx)
}
