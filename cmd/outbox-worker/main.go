package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/krismos64/Staka-livres-sub003/internal/config"
	"github.com/krismos64/Staka-livres-sub003/internal/infra/mq"
	"github.com/krismos64/Staka-livres-sub003/internal/logging"
	"github.com/krismos64/Staka-livres-sub003/internal/notify"
	"github.com/krismos64/Staka-livres-sub003/internal/pdf"
	"github.com/krismos64/Staka-livres-sub003/internal/repository/mysql"
	"github.com/krismos64/Staka-livres-sub003/internal/service"
	"github.com/krismos64/Staka-livres-sub003/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	debug := flag.Bool("debug", false, "development logging")
	poll := flag.Duration("poll", 30*time.Second, "outbox poll interval")
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

	mqConn, err := mq.New(&cfg.RabbitMQ)
	if err != nil {
		zap.L().Warn("rabbitmq unavailable, polling only", zap.Error(err))
		mqConn = nil
	}

	runner := service.NewSideEffectRunner(service.SideEffectDeps{
		Tasks:         mysql.NewOutboxRepository(db),
		Orders:        mysql.NewOrderRepository(db),
		Users:         mysql.NewUserRepository(db),
		Pendings:      mysql.NewPendingOrderRepository(db),
		Invoices:      mysql.NewInvoiceRepository(db),
		Files:         mysql.NewFileRepository(db),
		Messages:      mysql.NewMessageRepository(db),
		Notifications: mysql.NewNotificationRepository(db),
		Mailer:        notify.LogMailer{},
		Renderer:      pdf.TextRenderer{},
		Store:         storage.NewDiskStore(cfg.App.UploadDir),
		App:           &cfg.App,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zap.L().Info("outbox worker started", zap.Duration("poll", *poll))
	worker := service.NewOutboxWorker(runner, mqConn, *poll)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		zap.L().Fatal("worker stopped", zap.Error(err))
	}
	zap.L().Info("outbox worker stopped")
}
