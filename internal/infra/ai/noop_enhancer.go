package ai

import (
	"context"

	"jsonprompt-saas/internal/domain/ports/adapter"
)

var _ adapter.PromptEnhancer = (*NoopEnhancer)(nil)

// NoopEnhancer returns the draft unchanged. Used when no API key is
// configured and in tests.
type NoopEnhancer struct{}

func (NoopEnhancer) Name() string { return "noop" }

func (NoopEnhancer) Enhance(_ context.Context, draft string) (string, error) {
	return draft, nil
}
