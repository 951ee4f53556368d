package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"jsonprompt-saas/internal/domain"
	"jsonprompt-saas/internal/domain/model"
)

// CashfreeNormalizer handles one-time orders. The signature is
// base64(HMAC-SHA256(secret, timestamp + body)) with the timestamp sent in
// x-webhook-timestamp.
type CashfreeNormalizer struct {
	secret string
}

func NewCashfreeNormalizer(secret string) *CashfreeNormalizer {
	return &CashfreeNormalizer{secret: secret}
}

func (c *CashfreeNormalizer) Provider() string { return "cashfree" }

type cashfreeEnvelope struct {
	Type      string `json:"type"`
	EventTime string `json:"event_time"`
	Data      struct {
		Order struct {
			OrderID   string `json:"order_id"`
			OrderTags struct {
				Plan string `json:"plan"`
			} `json:"order_tags"`
		} `json:"order"`
		Customer struct {
			CustomerEmail string `json:"customer_email"`
		} `json:"customer_details"`
		Payment struct {
			CfPaymentID json.Number `json:"cf_payment_id"`
		} `json:"payment"`
	} `json:"data"`
}

func (c *CashfreeNormalizer) Normalize(body []byte, header http.Header) (*model.PaymentEvent, error) {
	ts := header.Get("X-Webhook-Timestamp")
	if err := c.verify(body, ts, header.Get("X-Webhook-Signature")); err != nil {
		return nil, err
	}

	var env cashfreeEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, domain.ErrMalformedEvent
	}

	occurred, _ := time.Parse(time.RFC3339, env.EventTime)

	// Cashfree sends no per-delivery id, so one is derived from the payment
	// id and event type. Redeliveries of the same payment state dedupe to
	// the same id, which is exactly what the ledger wants.
	eventID := env.Data.Payment.CfPaymentID.String() + ":" + env.Type
	if env.Data.Payment.CfPaymentID.String() == "" {
		eventID = env.Data.Order.OrderID + ":" + env.Type
	}

	ev := &model.PaymentEvent{
		Provider:       c.Provider(),
		EventID:        eventID,
		CorrelationRef: env.Data.Order.OrderID,
		UserHint:       env.Data.Customer.CustomerEmail,
		Plan:           model.PlanName(env.Data.Order.OrderTags.Plan),
		OccurredAt:     occurred.UTC(),
	}

	switch env.Type {
	case "ORDER_CREATED_WEBHOOK":
		ev.Type = model.EventOrderCreated
	case "PAYMENT_SUCCESS_WEBHOOK":
		ev.Type = model.EventPaymentSucceeded
	case "PAYMENT_FAILED_WEBHOOK":
		ev.Type = model.EventPaymentFailed
	case "PAYMENT_USER_DROPPED_WEBHOOK":
		ev.Type = model.EventPaymentDropped
	default:
		return nil, nil
	}
	return ev, nil
}

func (c *CashfreeNormalizer) verify(body []byte, ts, sig string) error {
	if c.secret == "" || ts == "" || sig == "" {
		return domain.ErrMalformedEvent
	}
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(ts))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmacEqual([]byte(expected), []byte(sig)) {
		return domain.ErrMalformedEvent
	}
	return nil
}
