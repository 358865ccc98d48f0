package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webshop/internal/cache"
	"webshop/internal/config"
	"webshop/internal/db"
	"webshop/internal/events"
	"webshop/internal/httpserver"
	"webshop/internal/logger"
	"webshop/internal/observability"
	cartrepo "webshop/internal/repository/cart"
	orderrepo "webshop/internal/repository/order"
	productrepo "webshop/internal/repository/product"
	tokenrepo "webshop/internal/repository/token"
	userrepo "webshop/internal/repository/user"
	authsvc "webshop/internal/service/auth"
	cartsvc "webshop/internal/service/cart"
	ordersvc "webshop/internal/service/order"
	productsvc "webshop/internal/service/product"
)

const tokenPurgeInterval = time.Hour

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.IsProduction() && cfg.JWTSecret == "change-me-in-production" {
		log.Fatal("JWT_SECRET must be set in production")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, log, observability.TracingConfig{
		ServiceName: cfg.OTelServiceName,
		Environment: cfg.AppEnv,
		Exporter:    cfg.OTelExporter,
	})
	if err != nil {
		log.Fatal("init tracing", "error", err)
	}

	dbpool, err := db.Connect(ctx, cfg.DBConnString, log)
	if err != nil {
		log.Fatal("connect to db", "error", err)
	}
	defer dbpool.Close()

	facets := cache.NewCatalog(nil, 0, log)
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr, log)
		if err != nil {
			log.Fatal("connect to redis", "addr", cfg.RedisAddr, "error", err)
		}
		defer client.Close()
		facets = cache.NewCatalog(client, cfg.CatalogCacheTTL, log)
	} else {
		log.Info("catalog cache disabled")
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.DialAMQP(ctx, cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.Fatal("connect to amqp", "error", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	} else {
		log.Info("order events disabled")
	}

	userRepo := userrepo.NewPostgres(dbpool, log)
	tokenRepo := tokenrepo.NewPostgres(dbpool)
	productRepo := productrepo.NewPostgres(dbpool, log)
	cartRepo := cartrepo.NewPostgres(dbpool, log)
	orderRepo := orderrepo.NewPostgres(dbpool, log)

	authService := authsvc.New(userRepo, tokenRepo, authsvc.Options{
		JWTSecret:  cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, log)

	srv, err := httpserver.New(cfg.HTTPAddr, log, dbpool, httpserver.Deps{
		Auth:     authService,
		Products: productsvc.New(productRepo, facets, log),
		Cart:     cartsvc.New(cartRepo, productRepo, log),
		Orders:   ordersvc.New(orderRepo, cartRepo, publisher, log),
	}, httpserver.Options{
		CORSOrigin:  cfg.CORSOrigin,
		ServiceName: cfg.OTelServiceName,
	})
	if err != nil {
		log.Fatal("init server", "error", err)
	}

	go purgeExpiredTokens(ctx, authService, log)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		log.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	} else {
		log.Info("server stopped")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown failed", "error", err)
	}
}

func purgeExpiredTokens(ctx context.Context, auth *authsvc.Service, log *logger.Logger) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := auth.PurgeExpired(ctx)
			if err != nil {
				log.Warn("purge expired refresh tokens", "error", err)
				continue
			}
			if n > 0 {
				log.Info("purged expired refresh tokens", "count", n)
			}
		}
	}
}
