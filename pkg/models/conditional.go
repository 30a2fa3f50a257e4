package models

// Conditional evaluates a gating expression result to a boolean.
type Conditional interface {
	Evaluate(exp any) (bool, error)
}

// GetConditional returns the interpreter for the given language.
func GetConditional(language string) Conditional {
	if language == "simple" || language == "" {
		return &SimpleConditionalInterpreter{}
	}

	return nil
}
