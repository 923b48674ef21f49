package payments

import (
	"encoding/json"
	"fmt"
	"strconv"

	stripe "github.com/stripe/stripe-go/v82"
)

// Event is the closed union of provider events the engine understands.
// One variant per handled type plus Unhandled; dispatch happens on the
// variant, never on the raw type string.
type Event interface {
	isEvent()
	ID() string
}

// CheckoutSessionCompleted — a checkout finished and was paid.
type CheckoutSessionCompleted struct {
	EventID       string
	SessionID     string
	AmountTotal   int64
	PaymentStatus string
}

// PaymentIntentFailed — a payment attempt failed. OrderID comes from
// the intent's metadata and may be absent.
type PaymentIntentFailed struct {
	EventID string
	OrderID int64
	// HasOrderID is false when metadata carried no usable order id.
	HasOrderID bool
}

// InvoicePaymentSucceeded — informational for now.
type InvoicePaymentSucceeded struct {
	EventID string
}

// InvoicePaymentFailed — informational for now.
type InvoicePaymentFailed struct {
	EventID string
}

// Unhandled — a recognized-as-foreign event the engine acknowledges
// without acting on.
type Unhandled struct {
	EventID string
	Type    string
}

func (CheckoutSessionCompleted) isEvent() {}
func (PaymentIntentFailed) isEvent()      {}
func (InvoicePaymentSucceeded) isEvent()  {}
func (InvoicePaymentFailed) isEvent()     {}
func (Unhandled) isEvent()                {}

func (e CheckoutSessionCompleted) ID() string { return e.EventID }
func (e PaymentIntentFailed) ID() string      { return e.EventID }
func (e InvoicePaymentSucceeded) ID() string  { return e.EventID }
func (e InvoicePaymentFailed) ID() string     { return e.EventID }
func (e Unhandled) ID() string                { return e.EventID }

type checkoutSessionPayload struct {
	ID            string `json:"id"`
	AmountTotal   int64  `json:"amount_total"`
	PaymentStatus string `json:"payment_status"`
}

type paymentIntentPayload struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// Decode maps a verified provider event onto the union.
func Decode(ev *stripe.Event) (Event, error) {
	switch ev.Type {
	case "checkout.session.completed":
		var p checkoutSessionPayload
		if err := json.Unmarshal(ev.Data.Raw, &p); err != nil {
			return nil, fmt.Errorf("decode checkout.session: %w", err)
		}
		return CheckoutSessionCompleted{
			EventID:       ev.ID,
			SessionID:     p.ID,
			AmountTotal:   p.AmountTotal,
			PaymentStatus: p.PaymentStatus,
		}, nil
	case "payment_intent.payment_failed":
		var p paymentIntentPayload
		if err := json.Unmarshal(ev.Data.Raw, &p); err != nil {
			return nil, fmt.Errorf("decode payment_intent: %w", err)
		}
		out := PaymentIntentFailed{EventID: ev.ID}
		if raw, ok := p.Metadata["order_id"]; ok {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				out.OrderID = id
				out.HasOrderID = true
			}
		}
		return out, nil
	case "invoice.payment_succeeded":
		return InvoicePaymentSucceeded{EventID: ev.ID}, nil
	case "invoice.payment_failed":
		return InvoicePaymentFailed{EventID: ev.ID}, nil
	default:
		return Unhandled{EventID: ev.ID, Type: string(ev.Type)}, nil
	}
}
