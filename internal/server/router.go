package server

import (
	"errors"
	"io"

	"github.com/kataras/iris/v12"

	"github.com/krismos64/Staka-livres-sub003/internal/auth"
	"github.com/krismos64/Staka-livres-sub003/internal/config"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/notification"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/invoice"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/order"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/outbox"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/pendingorder"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/servicepack"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/user"
	"github.com/krismos64/Staka-livres-sub003/internal/payments"
	"github.com/krismos64/Staka-livres-sub003/internal/service"
)

// Deps everything the HTTP layer needs, injected by the binary.
type Deps struct {
	Cfg *config.Config

	Verifier   *payments.Verifier
	Reconciler *service.Reconciler

	Users         *service.UserService
	Activation    *service.ActivationService
	Orders        *service.OrderService
	Guest         *service.GuestCheckoutService
	Conversations *service.ConversationService

	Packs         servicepack.Repository
	Pendings      pendingorder.Repository
	OrderRepo     order.Repository
	UserRepo      user.Repository
	Notifications notification.Repository
	Outbox        outbox.Repository
	Runner        *service.SideEffectRunner
	Monitor       *service.Monitor
}

// RegisterRoutes mounts the public and authenticated API plus the
// payment webhook.
func RegisterRoutes(app *iris.Application, d *Deps) {
	registerWebhookRoutes(app, d)

	api := app.Party("/api")

	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	api.Get("/packs", func(ctx iris.Context) {
		list, err := d.Packs.ListActive(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Post("/register", func(ctx iris.Context) {
		var req service.RegisterInput
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		u, err := d.Users.Register(ctx.Request().Context(), req)
		if err != nil {
			if errors.Is(err, service.ErrEmailTaken) {
				ctx.StopWithJSON(409, iris.Map{"code": 409, "msg": "Cet email est déjà utilisé"})
				return
			}
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": publicUser(u)})
	})

	api.Post("/login", func(ctx iris.Context) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		token, u, err := d.Users.Login(ctx.Request().Context(), req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrAccountInactive):
				ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": "Compte non activé"})
			case errors.Is(err, service.ErrInvalidCredentials):
				ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "Identifiants invalides"})
			default:
				ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			}
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"token": token, "user": publicUser(u)}})
	})

	api.Post("/activate", func(ctx iris.Context) {
		var req struct {
			Token    string `json:"token"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		token, u, err := d.Activation.Activate(ctx.Request().Context(), req.Token, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrActivationExpired):
				ctx.StopWithJSON(410, iris.Map{"code": 410, "msg": "Le lien d'activation a expiré"})
			case errors.Is(err, service.ErrAlreadyActivated):
				ctx.StopWithJSON(409, iris.Map{"code": 409, "msg": "Compte déjà activé"})
			case errors.Is(err, service.ErrActivationInvalid):
				ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": "Lien d'activation invalide"})
			default:
				ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			}
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"token": token, "user": publicUser(u)}})
	})

	api.Post("/guest-checkout", func(ctx iris.Context) {
		var req service.GuestCheckoutInput
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		p, err := d.Guest.Start(ctx.Request().Context(), req)
		if err != nil {
			if errors.Is(err, servicepack.ErrNotFound) {
				ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "Offre introuvable"})
				return
			}
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"pendingOrderId": p.ID}})
	})

	api.Post("/guest-checkout/{id:int64}/files", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		f, header, err := ctx.FormFile("file")
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": "Fichier manquant"})
			return
		}
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		rec, err := d.Guest.AttachFile(ctx.Request().Context(), id, header.Filename, content, ctx.FormValue("note"))
		if err != nil {
			if errors.Is(err, pendingorder.ErrNotFound) {
				ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "Commande en attente introuvable"})
				return
			}
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"fileId": rec.ID, "name": rec.Name}})
	})

	authAPI := api.Party("/", authMiddleware(&d.Cfg.JWT))

	authAPI.Post("/orders", func(ctx iris.Context) {
		var req service.CreateOrderInput
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		o, err := d.Orders.Create(ctx.Request().Context(), callerID(ctx), req)
		if err != nil {
			if errors.Is(err, servicepack.ErrNotFound) {
				ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "Offre introuvable"})
				return
			}
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	authAPI.Get("/orders", func(ctx iris.Context) {
		list, err := d.Orders.ListMine(ctx.Request().Context(), callerID(ctx))
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	authAPI.Get("/orders/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		o, err := d.Orders.Get(ctx.Request().Context(), callerID(ctx), isAdmin(ctx), id)
		if err != nil {
			writeOrderError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	authAPI.Get("/orders/{id:int64}/invoice", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		inv, err := d.Orders.GetInvoice(ctx.Request().Context(), callerID(ctx), isAdmin(ctx), id)
		if err != nil {
			writeOrderError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": inv})
	})

	authAPI.Get("/messages", func(ctx iris.Context) {
		afterID := ctx.URLParamInt64Default("after", 0)
		limit := ctx.URLParamIntDefault("limit", 50)
		list, err := d.Conversations.List(ctx.Request().Context(), callerID(ctx), afterID, limit)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	authAPI.Post("/messages", func(ctx iris.Context) {
		var req struct {
			Content string `json:"content"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		m, err := d.Conversations.Post(ctx.Request().Context(), callerID(ctx), authorFor(ctx), req.Content)
		if err != nil {
			if errors.Is(err, service.ErrEmptyMessage) {
				ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": "Message vide"})
				return
			}
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": m})
	})

	authAPI.Get("/notifications", func(ctx iris.Context) {
		uid := callerID(ctx)
		list, err := d.Notifications.ListByUser(ctx.Request().Context(), uid, 50)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	authAPI.Put("/notifications/{id:int64}/read", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		if err := d.Notifications.MarkRead(ctx.Request().Context(), id); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	RegisterAdminRoutes(authAPI, d)
}

// authMiddleware validates the bearer token and stores the claims.
func authMiddleware(jwtCfg *config.JWTConfig) iris.Handler {
	return func(ctx iris.Context) {
		token := ctx.GetHeader("Authorization")
		if len(token) > 7 && token[:7] == "Bearer " {
			token = token[7:]
		}
		if token == "" {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "Authentification requise"})
			return
		}
		claims, err := auth.ParseToken(jwtCfg, token)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "Session invalide"})
			return
		}
		ctx.Values().Set("user_id", claims.UserID)
		ctx.Values().Set("email", claims.Email)
		ctx.Values().Set("role", claims.Role)
		ctx.Next()
	}
}

func callerID(ctx iris.Context) int64 {
	id, _ := ctx.Values().GetInt64("user_id")
	return id
}

func isAdmin(ctx iris.Context) bool {
	return ctx.Values().GetString("role") == user.RoleAdmin
}

func authorFor(ctx iris.Context) string {
	if isAdmin(ctx) {
		return "staff"
	}
	return "client"
}

func publicUser(u *user.User) iris.Map {
	return iris.Map{
		"id":       u.ID,
		"name":     u.Name,
		"email":    u.Email,
		"role":     u.Role,
		"isActive": u.IsActive,
	}
}

func writeOrderError(ctx iris.Context, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound):
		ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "Commande non trouvée"})
	case errors.Is(err, invoice.ErrNotFound):
		ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "Facture non trouvée"})
	case errors.Is(err, service.ErrForbidden):
		ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": "Accès refusé"})
	default:
		ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
	}
}
