package payment

import (
	"crypto/hmac"
	"net/http"
	"strings"

	"jsonprompt-saas/internal/domain/model"
)

// Normalizer translates one provider's webhook delivery into the canonical
// event shape. Signature verification happens here: nothing unverified may
// reach the reconciler. A (nil, nil) return means "authentic but not an
// event we track"; callers ack and drop.
type Normalizer interface {
	Provider() string
	Normalize(body []byte, header http.Header) (*model.PaymentEvent, error)
}

// Registry holds the configured normalizers keyed by provider path segment.
type Registry struct {
	byName map[string]Normalizer
}

func NewRegistry(ns ...Normalizer) *Registry {
	r := &Registry{byName: make(map[string]Normalizer, len(ns))}
	for _, n := range ns {
		r.byName[n.Provider()] = n
	}
	return r
}

func (r *Registry) ForProvider(name string) (Normalizer, bool) {
	n, ok := r.byName[strings.ToLower(name)]
	return n, ok
}

func hmacEqual(a, b []byte) bool { return hmac.Equal(a, b) }
