// Package llm holds the boundary to the external text-completion service.
package llm

import "context"

// Completer is the minimal text-completion surface the pipeline needs.
// Topic extraction and the evaluation loop both run through it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
