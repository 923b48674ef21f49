package payments

import (
	"errors"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	// ErrMissingSignature the Stripe-Signature header was absent.
	ErrMissingSignature = errors.New("missing stripe signature header")
	// ErrInvalidSignature the signature did not verify against the raw
	// body (wrong secret, tampered payload, malformed header).
	ErrInvalidSignature = errors.New("invalid stripe webhook signature")
)

// Verifier authenticates inbound webhook bodies. Verification runs over
// the exact raw bytes received; nothing downstream may see an event
// that did not pass it.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify checks the signature header against the raw payload and
// returns the decoded provider event.
func (v *Verifier) Verify(payload []byte, sigHeader string) (*stripe.Event, error) {
	if sigHeader == "" {
		return nil, ErrMissingSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, ErrInvalidSignature
	}
	return &event, nil
}
