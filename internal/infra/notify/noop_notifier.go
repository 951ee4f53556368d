package notify

import (
	"context"

	"github.com/rs/zerolog"

	"jsonprompt-saas/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

// NoopNotifier logs instead of sending. Used when no email key is configured.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(log *zerolog.Logger) *NoopNotifier {
	return &NoopNotifier{log: log}
}

func (n *NoopNotifier) Send(_ context.Context, email string, kind adapter.NotificationKind, planName string) error {
	n.log.Info().Str("email", email).Str("kind", string(kind)).Str("plan", planName).
		Msg("notification suppressed (no mail provider configured)")
	return nil
}
