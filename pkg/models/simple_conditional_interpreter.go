package models

import (
	"fmt"
	"strconv"
)

// SimpleConditionalInterpreter coerces literal values to booleans. It
// covers the forms template rendering produces for step conditions:
// bools, boolean-ish strings, and numbers. Nil and the empty string
// mean "no condition" and evaluate to true.
type SimpleConditionalInterpreter struct{}

func (s SimpleConditionalInterpreter) Evaluate(exp any) (bool, error) {
	switch v := exp.(type) {
	case nil:
		return true, nil
	case bool:
		return v, nil
	case string:
		if v == "" {
			return true, nil
		}

		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("condition %q is not a boolean literal: %w", v, err)
		}

		return parsed, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("condition of type %T cannot be evaluated as a boolean", exp)
	}
}
