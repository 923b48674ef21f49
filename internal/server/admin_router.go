package server

import (
	"errors"

	"github.com/kataras/iris/v12"

	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/notification"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/outbox"
)

// RegisterAdminRoutes mounts the back-office API under /admin. The
// party must already carry the auth middleware; this adds the role
// check on top.
func RegisterAdminRoutes(parent iris.Party, d *Deps) {
	admin := parent.Party("/admin", func(ctx iris.Context) {
		if !isAdmin(ctx) {
			ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": "Accès réservé à l'administration"})
			return
		}
		ctx.Next()
	})

	admin.Get("/orders", func(ctx iris.Context) {
		limit := ctx.URLParamIntDefault("limit", 50)
		list, err := d.OrderRepo.ListRecent(ctx.Request().Context(), limit)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	admin.Get("/pending-orders", func(ctx iris.Context) {
		limit := ctx.URLParamIntDefault("limit", 50)
		list, err := d.Pendings.ListUnprocessed(ctx.Request().Context(), limit)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	admin.Get("/users", func(ctx iris.Context) {
		list, err := d.UserRepo.ListAll(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	admin.Get("/notifications", func(ctx iris.Context) {
		limit := ctx.URLParamIntDefault("limit", 50)
		list, err := d.Notifications.ListByAudience(ctx.Request().Context(), notification.AudienceStaff, limit)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	admin.Get("/outbox", func(ctx iris.Context) {
		limit := ctx.URLParamIntDefault("limit", 50)
		list, err := d.Outbox.ListRecent(ctx.Request().Context(), limit)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	admin.Get("/orders/{id:int64}/outbox", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		list, err := d.Outbox.ListByOrder(ctx.Request().Context(), id)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// Requeue a parked task, then drain immediately so the admin sees
	// the result without waiting for the worker.
	admin.Post("/outbox/{id:int64}/retry", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		if err := d.Outbox.Requeue(ctx.Request().Context(), id); err != nil {
			if errors.Is(err, outbox.ErrNotFound) {
				ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "Tâche introuvable"})
				return
			}
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		if d.Runner != nil {
			if _, err := d.Runner.Drain(ctx.Request().Context()); err != nil {
				ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
				return
			}
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	admin.Get("/metrics", func(ctx iris.Context) {
		if d.Monitor == nil {
			ctx.JSON(iris.Map{"code": 0, "data": iris.Map{}})
			return
		}
		s := d.Monitor.Snapshot()
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"webhookReceived":    s.WebhookReceived,
			"webhookHandled":     s.WebhookHandled,
			"webhookDuplicates":  s.WebhookDuplicates,
			"webhookUnhandled":   s.WebhookUnhandled,
			"webhookFailures":    s.WebhookFailures,
			"tasksProcessed":     s.TasksProcessed,
			"sideEffectFailures": s.SideEffectFailures,
			"amountMismatches":   s.AmountMismatches,
			"lastWebhookAt":      s.LastWebhookAt,
			"lastFailureAt":      s.LastFailureAt,
		}})
	})
}
