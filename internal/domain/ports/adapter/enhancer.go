package adapter

import "context"

// PromptEnhancer rewrites a drafted JSON prompt into a richer one. Premium
// generations go through it when a provider is configured; failures fall
// back to the drafted artifact, never to a user-visible error.
type PromptEnhancer interface {
	Name() string
	Enhance(ctx context.Context, draft string) (string, error)
}
