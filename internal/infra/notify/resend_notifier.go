package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"jsonprompt-saas/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*ResendNotifier)(nil)

// ResendNotifier sends lifecycle emails through Resend. Delivery is
// best-effort; the reconciler has already committed by the time this runs.
type ResendNotifier struct {
	client *resend.Client
	from   string
	log    *zerolog.Logger
}

func NewResendNotifier(apiKey, from string, log *zerolog.Logger) (*ResendNotifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key empty")
	}
	return &ResendNotifier{client: resend.NewClient(apiKey), from: from, log: log}, nil
}

func (n *ResendNotifier) Send(_ context.Context, email string, kind adapter.NotificationKind, planName string) error {
	subject, html := render(kind, planName)
	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{email},
		Subject: subject,
		Html:    html,
	}
	sent, err := n.client.Emails.Send(params)
	if err != nil {
		return err
	}
	n.log.Debug().Str("email_id", sent.Id).Str("kind", string(kind)).Msg("notification sent")
	return nil
}

func render(kind adapter.NotificationKind, planName string) (subject, html string) {
	switch kind {
	case adapter.NotifyPlanActivated:
		return fmt.Sprintf("Your %s plan is active", planName),
			fmt.Sprintf("<p>Your <b>%s</b> plan is now active. Happy prompting!</p>", planName)
	case adapter.NotifyPlanRenewed:
		return fmt.Sprintf("Your %s plan renewed", planName),
			fmt.Sprintf("<p>Your <b>%s</b> plan renewed and your credits were refreshed.</p>", planName)
	case adapter.NotifyPlanCanceled:
		return "Your plan was canceled",
			"<p>Your plan was canceled. You are back on the free tier.</p>"
	case adapter.NotifyPaymentFailed:
		return "Payment failed",
			"<p>We could not collect your latest payment. Please update your payment method to keep your plan.</p>"
	default:
		return "Account update", "<p>Your account was updated.</p>"
	}
}
