// Package template renders step configuration values against the live
// execution context before dispatch.
package template

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/veriflow-io/veriflow/pkg/execution"
)

// RenderWithContext renders a template string with the execution's
// variables, step results and trigger data exposed as top-level fields.
func RenderWithContext(input string, executionCtx *execution.Context) (any, error) {
	data := map[string]any{
		"step_results": executionCtx.StepResults(),
		"variables":    executionCtx.Variables(),
		"vars":         executionCtx.Variables(),
		"trigger_data": executionCtx.TriggerData,
		"env":          getEnvVars(),
		"execution": map[string]any{
			"id":          executionCtx.ID,
			"workflow_id": executionCtx.WorkflowID,
		},
	}

	return Render(input, data)
}

// Render parses and executes a template string. If the rendered output is
// valid JSON it is decoded, so templates can produce structured values.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("config").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	rendered := buf.String()

	var decoded any
	if json.Unmarshal([]byte(rendered), &decoded) == nil {
		return decoded, nil
	}

	return rendered, nil
}

// RenderConfig renders every string value of a configuration map,
// recursing into nested maps and slices.
func RenderConfig(config map[string]any, executionCtx *execution.Context) (map[string]any, error) {
	out := make(map[string]any, len(config))

	for key, value := range config {
		rendered, err := renderValue(value, executionCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to render config key %q: %w", key, err)
		}

		out[key] = rendered
	}

	return out, nil
}

func renderValue(value any, executionCtx *execution.Context) (any, error) {
	switch v := value.(type) {
	case string:
		if !strings.Contains(v, "{{") {
			return v, nil
		}

		return RenderWithContext(v, executionCtx)
	case map[string]any:
		return RenderConfig(v, executionCtx)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			rendered, err := renderValue(item, executionCtx)
			if err != nil {
				return nil, err
			}

			out[i] = rendered
		}

		return out, nil
	default:
		return value, nil
	}
}

func getEnvVars() map[string]string {
	env := make(map[string]string)

	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			env[parts[0]] = parts[1]
		}
	}

	return env
}

// ToString coerces a rendered value back to its string form.
func ToString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(encoded)
	}
}
