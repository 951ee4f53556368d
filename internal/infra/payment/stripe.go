package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"jsonprompt-saas/internal/domain"
	"jsonprompt-saas/internal/domain/model"
)

// StripeNormalizer handles the recurring-subscription provider. Signature
// scheme: Stripe-Signature header carries "t=<unix>,v1=<hex hmac>", where the
// MAC is HMAC-SHA256(secret, "<t>.<payload>").
type StripeNormalizer struct {
	secret string
}

func NewStripeNormalizer(secret string) *StripeNormalizer {
	return &StripeNormalizer{secret: secret}
}

func (s *StripeNormalizer) Provider() string { return "stripe" }

type stripeEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID            string            `json:"id"`
			Customer      string            `json:"customer"`
			CustomerEmail string            `json:"customer_email"`
			Subscription  string            `json:"subscription"`
			Status        string            `json:"status"`
			Metadata      map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (s *StripeNormalizer) Normalize(body []byte, header http.Header) (*model.PaymentEvent, error) {
	if err := s.verify(body, header.Get("Stripe-Signature")); err != nil {
		return nil, err
	}

	var env stripeEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, domain.ErrMalformedEvent
	}

	ev := &model.PaymentEvent{
		Provider:   s.Provider(),
		EventID:    env.ID,
		UserHint:   env.Data.Object.CustomerEmail,
		Plan:       model.PlanName(env.Data.Object.Metadata["plan"]),
		OccurredAt: time.Unix(env.Created, 0).UTC(),
	}

	switch env.Type {
	case "customer.subscription.created":
		ev.Type = model.EventSubscriptionActivated
		ev.CorrelationRef = env.Data.Object.ID
	case "customer.subscription.updated":
		ev.Type = model.EventSubscriptionUpdated
		ev.CorrelationRef = env.Data.Object.ID
		ev.Status = mapStripeStatus(env.Data.Object.Status)
	case "customer.subscription.deleted":
		ev.Type = model.EventSubscriptionCanceled
		ev.CorrelationRef = env.Data.Object.ID
	case "invoice.payment_succeeded":
		ev.Type = model.EventInvoicePaid
		ev.CorrelationRef = env.Data.Object.Subscription
	case "invoice.payment_failed":
		ev.Type = model.EventInvoiceFailed
		ev.CorrelationRef = env.Data.Object.Subscription
	default:
		// Authentic but untracked event type.
		return nil, nil
	}
	return ev, nil
}

func mapStripeStatus(s string) model.SubscriptionStatus {
	switch s {
	case "active", "trialing":
		return model.SubscriptionStatusActive
	case "past_due", "unpaid":
		return model.SubscriptionStatusPastDue
	case "canceled":
		return model.SubscriptionStatusCanceled
	case "incomplete", "incomplete_expired":
		return model.SubscriptionStatusPending
	default:
		return ""
	}
}

func (s *StripeNormalizer) verify(body []byte, sigHeader string) error {
	if s.secret == "" || sigHeader == "" {
		return domain.ErrMalformedEvent
	}
	var ts, v1 string
	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "v1":
			v1 = kv[1]
		}
	}
	if ts == "" || v1 == "" {
		return domain.ErrMalformedEvent
	}
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmacEqual([]byte(expected), []byte(strings.ToLower(v1))) {
		return domain.ErrMalformedEvent
	}
	return nil
}
