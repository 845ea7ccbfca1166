// Package llm provides access to chat-completion language models for
// suggestion generation. Callers treat all model output as untrusted text
// and degrade to empty suggestions when the model misbehaves.
package llm

import "context"

// Request is a single-turn completion request.
type Request struct {
	System string
	Prompt string
}

// Client produces free-text completions.
type Client interface {
	Complete(ctx context.Context, request Request) (string, error)
}
