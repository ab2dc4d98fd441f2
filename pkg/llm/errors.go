package llm

import "errors"

var (
	// ErrEmptyCompletion indicates the model returned no usable text
	ErrEmptyCompletion = errors.New("empty completion")

	// ErrNoEndpoint indicates no endpoint could be resolved for the role
	ErrNoEndpoint = errors.New("no LLM endpoint for role")
)
