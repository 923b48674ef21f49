package pdf

import (
	"context"
	"fmt"
	"time"
)

// InvoiceData is everything the renderer needs to produce an invoice
// document.
type InvoiceData struct {
	Number       string
	OrderTitle   string
	CustomerName string
	Email        string
	AmountCents  int64
	IssuedAt     time.Time
}

// Renderer is the document-rendering seam. The real PDF engine is an
// external collaborator.
type Renderer interface {
	RenderInvoice(ctx context.Context, data InvoiceData) ([]byte, error)
}

// TextRenderer emits a plain-text stand-in document. Dev/test use only.
type TextRenderer struct{}

func (TextRenderer) RenderInvoice(_ context.Context, data InvoiceData) ([]byte, error) {
	body := fmt.Sprintf(
		"FACTURE %s\nClient: %s <%s>\nPrestation: %s\nMontant: %.2f EUR\nEmise le: %s\n",
		data.Number,
		data.CustomerName,
		data.Email,
		data.OrderTitle,
		float64(data.AmountCents)/100,
		data.IssuedAt.Format("2006-01-02"),
	)
	return []byte(body), nil
}
