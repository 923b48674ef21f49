package server

import (
	"errors"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/krismos64/Staka-livres-sub003/internal/payments"
	"github.com/krismos64/Staka-livres-sub003/internal/service"
)

// registerWebhookRoutes mounts the payment-provider endpoint and, when
// enabled, the dev simulation route.
func registerWebhookRoutes(app *iris.Application, d *Deps) {
	pay := app.Party("/payments")

	// Response contract, pinned: the provider retries on anything but
	// 2xx, and 404 tells it the event does not belong to us.
	pay.Post("/webhook", func(ctx iris.Context) {
		body, err := ctx.GetBody()
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"error": "Corps de requête illisible", "received": false})
			return
		}

		sig := ctx.GetHeader("Stripe-Signature")
		if sig == "" {
			ctx.StopWithJSON(400, iris.Map{"error": "Signature Stripe manquante", "received": false})
			return
		}

		raw, err := d.Verifier.Verify(body, sig)
		if err != nil {
			zap.L().Warn("webhook signature rejected", zap.Error(err))
			ctx.StopWithJSON(400, iris.Map{"error": "Signature webhook invalide", "received": false})
			return
		}

		ev, err := payments.Decode(raw)
		if err != nil {
			zap.L().Warn("webhook payload rejected",
				zap.String("event_id", raw.ID),
				zap.Error(err))
			ctx.StopWithJSON(400, iris.Map{"error": "Événement invalide", "received": false})
			return
		}

		if _, err := d.Reconciler.HandleEvent(ctx.Request().Context(), ev); err != nil {
			if errors.Is(err, service.ErrUnknownSession) {
				ctx.StopWithJSON(404, iris.Map{"error": "Commande non trouvée", "received": false})
				return
			}
			ctx.StopWithJSON(500, iris.Map{"error": err.Error(), "received": false})
			return
		}

		ctx.JSON(iris.Map{"received": true, "eventType": string(raw.Type)})
	})

	if d.Cfg.App.EnableDevEndpoints {
		registerDevRoutes(pay, d)
	}
}

// registerDevRoutes exposes an unsigned event injector for local
// testing. Guarded by app.enable_dev_endpoints; never mounted in
// production.
func registerDevRoutes(pay iris.Party, d *Deps) {
	pay.Post("/dev/simulate", func(ctx iris.Context) {
		var req struct {
			Type          string `json:"type"`
			EventID       string `json:"eventId"`
			SessionID     string `json:"sessionId"`
			AmountTotal   int64  `json:"amountTotal"`
			PaymentStatus string `json:"paymentStatus"`
			OrderID       int64  `json:"orderId"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"error": err.Error(), "received": false})
			return
		}
		if req.EventID == "" {
			req.EventID = "evt_dev_" + req.SessionID
		}

		var ev payments.Event
		switch req.Type {
		case "checkout.session.completed":
			ev = payments.CheckoutSessionCompleted{
				EventID:       req.EventID,
				SessionID:     req.SessionID,
				AmountTotal:   req.AmountTotal,
				PaymentStatus: req.PaymentStatus,
			}
		case "payment_intent.payment_failed":
			ev = payments.PaymentIntentFailed{
				EventID:    req.EventID,
				OrderID:    req.OrderID,
				HasOrderID: req.OrderID > 0,
			}
		default:
			ev = payments.Unhandled{EventID: req.EventID, Type: req.Type}
		}

		if _, err := d.Reconciler.HandleEvent(ctx.Request().Context(), ev); err != nil {
			if errors.Is(err, service.ErrUnknownSession) {
				ctx.StopWithJSON(404, iris.Map{"error": "Commande non trouvée", "received": false})
				return
			}
			ctx.StopWithJSON(500, iris.Map{"error": err.Error(), "received": false})
			return
		}
		ctx.JSON(iris.Map{"received": true, "eventType": req.Type})
	})
}
