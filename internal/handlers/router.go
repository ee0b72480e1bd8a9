package handlers

import (
	"github.com/ashendes/momo-checkout/internal/metrics"
	"github.com/ashendes/momo-checkout/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds the HTTP surface settings
type RouterConfig struct {
	ServiceName        string
	AllowedOrigins     []string
	RateLimitPerSecond float64
}

// NewRouter mounts the checkout API on a gin engine
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "checkout-service"
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery(), middleware.RequestLogger())

	// Add Prometheus middleware
	router.Use(metrics.PrometheusMiddleware(cfg.ServiceName))
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	// Browser-facing routes are rate limited per client IP
	browser := api.Group("")
	if cfg.RateLimitPerSecond > 0 {
		browser.Use(middleware.RateLimitPerIP(cfg.RateLimitPerSecond))
	}
	browser.POST("/payments", h.CreatePayment)
	browser.GET("/payments", h.GetPayment)
	browser.GET("/check-payment-status", h.CheckPaymentStatus)
	browser.GET("/countries", h.ListCountries)
	browser.GET("/correspondents", h.ListCountries)
	browser.GET("/provider/status", h.ProviderStatus)

	// Provider callbacks
	api.POST("/webhooks/pawapay", h.ReceiveWebhook)
	api.GET("/webhooks/pawapay", h.WebhookLiveness)

	return router
}
