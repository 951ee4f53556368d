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

// PayPalNormalizer handles one-time checkout orders. Deliveries carry a
// base64 HMAC-SHA256 of the body in Paypal-Transmission-Sig.
type PayPalNormalizer struct {
	secret string
}

func NewPayPalNormalizer(secret string) *PayPalNormalizer {
	return &PayPalNormalizer{secret: secret}
}

func (p *PayPalNormalizer) Provider() string { return "paypal" }

type paypalEnvelope struct {
	ID         string `json:"id"`
	EventType  string `json:"event_type"`
	CreateTime string `json:"create_time"`
	Resource   struct {
		ID            string `json:"id"`
		CustomID      string `json:"custom_id"`
		InvoiceID     string `json:"invoice_id"`
		Payer         struct {
			EmailAddress string `json:"email_address"`
		} `json:"payer"`
		Amount struct {
			Value string `json:"value"`
		} `json:"amount"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

func (p *PayPalNormalizer) Normalize(body []byte, header http.Header) (*model.PaymentEvent, error) {
	if err := p.verify(body, header.Get("Paypal-Transmission-Sig")); err != nil {
		return nil, err
	}

	var env paypalEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, domain.ErrMalformedEvent
	}

	occurred, _ := time.Parse(time.RFC3339, env.CreateTime)

	// Captures reference their parent order; order events carry the order id
	// directly. The order id is the correlation key for the whole flow.
	ref := env.Resource.SupplementaryData.RelatedIDs.OrderID
	if ref == "" {
		ref = env.Resource.ID
	}

	ev := &model.PaymentEvent{
		Provider:       p.Provider(),
		EventID:        env.ID,
		CorrelationRef: ref,
		UserHint:       env.Resource.Payer.EmailAddress,
		Plan:           model.PlanName(env.Resource.CustomID),
		OccurredAt:     occurred.UTC(),
	}

	switch env.EventType {
	case "CHECKOUT.ORDER.APPROVED":
		ev.Type = model.EventOrderCreated
	case "PAYMENT.CAPTURE.COMPLETED":
		ev.Type = model.EventPaymentSucceeded
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		ev.Type = model.EventPaymentFailed
	case "CHECKOUT.ORDER.VOIDED":
		ev.Type = model.EventPaymentDropped
	default:
		return nil, nil
	}
	return ev, nil
}

func (p *PayPalNormalizer) verify(body []byte, sig string) error {
	if p.secret == "" || sig == "" {
		return domain.ErrMalformedEvent
	}
	mac := hmac.New(sha256.New, []byte(p.secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmacEqual([]byte(expected), []byte(sig)) {
		return domain.ErrMalformedEvent
	}
	return nil
}
