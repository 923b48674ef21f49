package main

import (
	"flag"
	"log"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/krismos64/Staka-livres-sub003/internal/config"
	"github.com/krismos64/Staka-livres-sub003/internal/infra/mq"
	"github.com/krismos64/Staka-livres-sub003/internal/infra/redis"
	"github.com/krismos64/Staka-livres-sub003/internal/logging"
	"github.com/krismos64/Staka-livres-sub003/internal/notify"
	"github.com/krismos64/Staka-livres-sub003/internal/payments"
	"github.com/krismos64/Staka-livres-sub003/internal/pdf"
	"github.com/krismos64/Staka-livres-sub003/internal/repository/mysql"
	"github.com/krismos64/Staka-livres-sub003/internal/server"
	"github.com/krismos64/Staka-livres-sub003/internal/service"
	"github.com/krismos64/Staka-livres-sub003/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	debug := flag.Bool("debug", false, "development logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.Init(*debug)
	if err != nil {
		log.Fatalf("init logging: %v", err)
	}
	defer logger.Sync()

	db, err := mysql.New(&cfg.MySQL)
	if err != nil {
		zap.L().Fatal("database unavailable", zap.Error(err))
	}

	// Redis and RabbitMQ are advisory: the engine degrades without them.
	redisClient, err := redis.New(&cfg.Redis)
	if err != nil {
		zap.L().Warn("redis unavailable, dedupe guard disabled", zap.Error(err))
		redisClient = nil
	}
	mqConn, err := mq.New(&cfg.RabbitMQ)
	if err != nil {
		zap.L().Warn("rabbitmq unavailable, worker wakeups disabled", zap.Error(err))
		mqConn = nil
	}

	userRepo := mysql.NewUserRepository(db)
	packRepo := mysql.NewServicePackRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	pendingRepo := mysql.NewPendingOrderRepository(db)
	invoiceRepo := mysql.NewInvoiceRepository(db)
	fileRepo := mysql.NewFileRepository(db)
	messageRepo := mysql.NewMessageRepository(db)
	notificationRepo := mysql.NewNotificationRepository(db)
	outboxRepo := mysql.NewOutboxRepository(db)

	store := storage.NewDiskStore(cfg.App.UploadDir)
	monitor := service.NewMonitor()

	runner := service.NewSideEffectRunner(service.SideEffectDeps{
		Tasks:         outboxRepo,
		Orders:        orderRepo,
		Users:         userRepo,
		Pendings:      pendingRepo,
		Invoices:      invoiceRepo,
		Files:         fileRepo,
		Messages:      messageRepo,
		Notifications: notificationRepo,
		Mailer:        notify.LogMailer{},
		Renderer:      pdf.TextRenderer{},
		Store:         store,
		App:           &cfg.App,
		Monitor:       monitor,
	})

	reconciler := service.NewReconciler(service.ReconcilerDeps{
		Orders:   orderRepo,
		Pendings: pendingRepo,
		Users:    userRepo,
		Packs:    packRepo,
		Guard:    service.NewEventGuard(redisClient),
		Effects:  runner,
		MQConn:   mqConn,
		Monitor:  monitor,
	})

	deps := &server.Deps{
		Cfg:           cfg,
		Verifier:      payments.NewVerifier(cfg.Stripe.WebhookSecret),
		Reconciler:    reconciler,
		Users:         service.NewUserService(userRepo, &cfg.JWT),
		Activation:    service.NewActivationService(pendingRepo, userRepo, &cfg.JWT),
		Orders:        service.NewOrderService(orderRepo, packRepo, invoiceRepo),
		Guest:         service.NewGuestCheckoutService(pendingRepo, packRepo, fileRepo, store),
		Conversations: service.NewConversationService(messageRepo),
		Packs:         packRepo,
		Pendings:      pendingRepo,
		OrderRepo:     orderRepo,
		UserRepo:      userRepo,
		Notifications: notificationRepo,
		Outbox:        outboxRepo,
		Runner:        runner,
		Monitor:       monitor,
	}

	app := iris.New()
	server.RegisterRoutes(app, deps)

	addr := cfg.Server.Addr()
	zap.L().Info("web server listening", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		zap.L().Fatal("server stopped", zap.Error(err))
	}
}
