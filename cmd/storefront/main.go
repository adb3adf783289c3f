package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/example/storefront/gateway"
	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/grpc"
	"github.com/example/storefront/pkg/mail"
	"github.com/example/storefront/pkg/notify"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/shop"
	"github.com/example/storefront/pkg/storage"
	"go.uber.org/zap"
)

func main() {
	configPath := os.Getenv("STOREFRONT_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting storefront",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port),
		zap.String("host", cfg.Server.Host))

	db, err := repository.Open(&cfg.MySQL)
	if err != nil {
		logger.Fatal("Failed to connect to MySQL", zap.Error(err))
	}
	if err := repository.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate schema", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to access MySQL pool", zap.Error(err))
	}
	defer sqlDB.Close()

	ctx := context.Background()

	redisRepo := repository.NewRedisRepository(&cfg.Redis)
	defer redisRepo.Close()
	if err := redisRepo.Ping(ctx); err != nil {
		logger.Warn("Redis connection failed, settings are read from MySQL", zap.Error(err))
	} else {
		logger.Info("Redis connected successfully")
	}

	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoRepo.Close(closeCtx)
	}()
	images := storage.NewGridFSStore(mongoRepo.Database(), cfg.MongoDB.ImageBucket)

	dispatcher, err := notify.NewDispatcher(mail.NewResendSender(cfg.Mail.APIKey, cfg.Mail.From), logger)
	if err != nil {
		logger.Fatal("Failed to start email dispatcher", zap.Error(err))
	}
	defer dispatcher.Stop()

	payments := payment.NewStripeGateway(cfg.Payment.SecretKey, cfg.Payment.WebhookSecret, cfg.Payment.Currency)

	catalogRepo := repository.NewCatalogRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	settingsRepo := repository.NewSettingsRepository(db, redisRepo)
	reviewRepo := repository.NewReviewRepository(db)
	baseURL := cfg.Server.BaseURL

	checks := map[string]grpc.Check{
		"mysql":   func(ctx context.Context) error { return sqlDB.PingContext(ctx) },
		"redis":   redisRepo.Ping,
		"mongodb": mongoRepo.Ping,
	}
	health := make(map[string]gateway.HealthCheck, len(checks))
	for name, check := range checks {
		health[name] = gateway.HealthCheck(check)
	}

	gw := gateway.NewGateway(&cfg.Server, &gateway.Services{
		Checkout:  shop.NewCheckoutService(catalogRepo, orderRepo, couponRepo, settingsRepo, payments, baseURL, logger),
		Orders:    shop.NewOrderService(orderRepo, dispatcher, mongoRepo, baseURL, logger),
		Catalog:   shop.NewCatalogService(catalogRepo, reviewRepo, images, logger),
		Coupons:   shop.NewCouponService(couponRepo),
		Content:   shop.NewContentService(repository.NewContentRepository(db), settingsRepo),
		Community: shop.NewCommunityService(repository.NewWishlistRepository(db), reviewRepo, repository.NewNewsletterRepository(db), logger),
		Payments:  payments,
		Images:    images,
		Audit:     mongoRepo,
		Verifier:  auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AdminClaim),
		Users:     repository.NewUserRepository(db),
		Health:    health,
	}, logger)
	gw.SetupRoutes()

	ops := grpc.NewOpsServer(&cfg.Ops, checks, logger)

	// Start servers in goroutines
	serverErr := make(chan error, 2)
	go func() {
		if err := gw.Start(); err != nil {
			serverErr <- fmt.Errorf("gateway: %w", err)
		}
	}()
	go func() {
		if err := ops.Start(); err != nil {
			serverErr <- fmt.Errorf("ops: %w", err)
		}
	}()

	var (
		sd       *discovery.ServiceDiscovery
		instance *discovery.ServiceInstance
	)
	regCtx, stopKeepAlive := context.WithCancel(ctx)
	defer stopKeepAlive()
	if cfg.Etcd.Enabled {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd)
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else {
			instance = &discovery.ServiceInstance{Name: cfg.Ops.Name, Host: advertisedHost(cfg.Ops.Host), Port: cfg.Ops.Port}
			if err := sd.Register(regCtx, instance); err != nil {
				logger.Warn("Failed to register service", zap.Error(err))
				instance = nil
			} else {
				logger.Info("Service registered in etcd",
					zap.String("name", instance.Name),
					zap.String("address", net.JoinHostPort(instance.Host, strconv.Itoa(instance.Port))))
			}
		}
	}

	logger.Info("Storefront started successfully")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		logger.Error("Server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if sd != nil {
		if instance != nil {
			if err := sd.Deregister(shutdownCtx, instance); err != nil {
				logger.Error("Failed to deregister service", zap.Error(err))
			}
		}
		stopKeepAlive()
		sd.Close()
	}

	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("Gateway shutdown failed", zap.Error(err))
	}
	ops.Stop()

	logger.Info("Storefront stopped")
}

// advertisedHost replaces a wildcard bind address with the machine hostname.
func advertisedHost(host string) string {
	if host != "" && host != "0.0.0.0" && host != "::" {
		return host
	}
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "localhost"
}
