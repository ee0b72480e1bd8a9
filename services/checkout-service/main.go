package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashendes/momo-checkout/internal/config"
	"github.com/ashendes/momo-checkout/internal/handlers"
	"github.com/ashendes/momo-checkout/internal/pawapay"
	"github.com/ashendes/momo-checkout/internal/validation"
	"github.com/ashendes/momo-checkout/internal/webhook"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const serviceName = "checkout-service"

func init() {
	// Initialize logger
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	log.SetLevel(cfg.LogLevel)
	if cfg.LogLevel < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	catalog := validation.DefaultCatalog()
	if cfg.LimitsFile != "" {
		if catalog, err = validation.LoadCatalog(cfg.LimitsFile); err != nil {
			log.Fatal("Failed to load payment catalog: ", err)
		}
	}

	client := pawapay.NewClient(cfg.Provider,
		pawapay.WithCatalog(catalog),
		pawapay.WithMaxConcurrency(cfg.ProviderMaxConcurrency),
	)

	h := handlers.New(handlers.Dependencies{
		Gateway:      client,
		Catalog:      catalog,
		Webhooks:     webhook.NewProcessor(cfg.WebhookSecret, cfg.RequireSignature),
		Sink:         handlers.LoggingSink{},
		Breaker:      client.Breaker(),
		MerchantName: cfg.MerchantName,
	})

	router := handlers.NewRouter(h, handlers.RouterConfig{
		ServiceName:        serviceName,
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithFields(cfg.Fields()).Info("Checkout Service starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down Checkout Service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 35*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}
