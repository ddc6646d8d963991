package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/outreach-engine/internal/config"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/envelope"
	"github.com/kursadbilgin/outreach-engine/internal/handler"
	"github.com/kursadbilgin/outreach-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/outreach-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/outreach-engine/internal/infra/redis"
	"github.com/kursadbilgin/outreach-engine/internal/observability"
	"github.com/kursadbilgin/outreach-engine/internal/provider"
	"github.com/kursadbilgin/outreach-engine/internal/queue"
	"github.com/kursadbilgin/outreach-engine/internal/quota"
	"github.com/kursadbilgin/outreach-engine/internal/repository"
	"github.com/kursadbilgin/outreach-engine/internal/service"
	"github.com/kursadbilgin/outreach-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	consumerPrefetch = 8
	shutdownTimeout  = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("outreach-engine stopped with error", zap.Error(err))
	}
	logger.Info("outreach-engine stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, postgresql.DefaultPoolConfig(), logger)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL, logger)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer mq.Close()

	consumer := queue.NewRabbitMQConsumer(mq, consumerPrefetch, logger)
	defer consumer.Close()
	publisher := queue.NewRabbitMQPublisher(mq)
	defer publisher.Close()

	metrics := observability.NewMetrics()

	leads := repository.NewGormLeadRepo(db)
	campaigns := repository.NewGormCampaignRepo(db)
	emails := repository.NewGormEmailRepo(db)
	warmup := repository.NewGormWarmupRepo(db)

	suppressions, err := infraredis.NewSuppressionCache(rdb, repository.NewGormSuppressionRepo(db), logger)
	if err != nil {
		return err
	}

	tracker, err := quota.NewTracker(emails)
	if err != nil {
		return err
	}

	renderer, err := envelope.NewTextRenderer()
	if err != nil {
		return err
	}

	settings, err := service.NewSettingsLoader(domain.SendSettings{
		DailyLimit: cfg.DailySendLimit,
		Warmup:     domain.Warmup{Enabled: cfg.WarmupEnabled},
		Sender:     cfg.Sender(),
		Profile:    cfg.Profile(),
	}, warmup, logger)
	if err != nil {
		return err
	}

	propagator, err := service.NewStatusPropagator(leads, campaigns, emails, logger)
	if err != nil {
		return err
	}

	dispatcher, err := service.NewDispatcher(service.DispatcherDeps{
		Settings:     settings,
		Tracker:      tracker,
		Suppressions: suppressions,
		Renderer:     renderer,
		Sender:       newSender(cfg, logger),
		Notifier:     propagator,
		Leads:        leads,
		Campaigns:    campaigns,
	}, cfg.SendDelay(), logger)
	if err != nil {
		return err
	}
	dispatcher.SetMetrics(metrics)

	campaignService, err := service.NewCampaignService(campaigns, leads, logger)
	if err != nil {
		return err
	}

	batches, err := service.NewBatchRunner(ctx, dispatcher, logger)
	if err != nil {
		return err
	}

	replyWorker, err := service.NewReplyWorker(consumer, propagator, suppressions, cfg.ReplyWorkerConcurrency, logger)
	if err != nil {
		return err
	}
	replyWorker.SetMetrics(metrics)

	replyIntake, err := service.NewReplyIntake(publisher, logger)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:               "outreach-engine",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app,
		handler.PostgresCheck(sqlDB),
		handler.RedisCheck(rdb),
		handler.ReadinessCheck{Name: "rabbitmq", Ping: mq.Ping},
	)
	if err := handler.RegisterCampaignRoutes(app, campaignService, batches); err != nil {
		return err
	}
	if err := handler.RegisterSendRoutes(app, dispatcher, suppressions, replyIntake); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return replyWorker.Start(gctx)
	})

	if cfg.WarmupEnabled {
		scheduler, err := service.NewWarmupScheduler(warmup, settings, tracker, cfg.WarmupCheckInterval(), logger)
		if err != nil {
			return err
		}
		scheduler.SetMetrics(metrics)
		g.Go(func() error {
			return scheduler.Start(gctx)
		})
	}

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("outreach-engine api started", zap.String("addr", addr))
		return app.Listen(addr)
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", zap.Error(err))
		}
		if err := batches.Wait(shutdownCtx); err != nil {
			logger.Warn("batches did not drain before shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newSender returns nil when delivery is not configured; sends then fail
// with a credentials error instead of blocking startup.
func newSender(cfg *config.Config, logger *zap.Logger) provider.Sender {
	switch cfg.DeliveryProvider {
	case config.DeliveryProviderHTTP:
		sender, err := provider.NewHTTPSender(cfg.MailAPIURL)
		if err != nil {
			logger.Warn("http delivery provider not configured", zap.Error(err))
			return nil
		}
		return sender
	default:
		sender, err := provider.NewSMTPSender(cfg.SMTP())
		if err != nil {
			logger.Warn("smtp delivery provider not configured", zap.Error(err))
			return nil
		}
		return sender
	}
}
