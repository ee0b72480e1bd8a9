package main

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/ashendes/momo-checkout/internal/metrics"
	"github.com/ashendes/momo-checkout/internal/sandbox"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

func init() {
	// Initialize logger
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal("Failed to read .env: ", err)
	}

	port := getEnv("SANDBOX_PORT", "8082")
	failureRate, err := strconv.ParseFloat(getEnv("SANDBOX_FAILURE_RATE", "0.4"), 64)
	if err != nil {
		log.Fatal("Invalid SANDBOX_FAILURE_RATE: ", err)
	}
	wrapInArray, err := strconv.ParseBool(getEnv("SANDBOX_WRAP_ARRAY", "false"))
	if err != nil {
		log.Fatal("Invalid SANDBOX_WRAP_ARRAY: ", err)
	}

	provider := sandbox.New(sandbox.Config{
		APIToken:      os.Getenv("SANDBOX_API_TOKEN"),
		PublicURL:     getEnv("SANDBOX_PUBLIC_URL", "http://localhost:"+port),
		WebhookURL:    getEnv("SANDBOX_WEBHOOK_URL", "http://localhost:8080/api/webhooks/pawapay"),
		WebhookSecret: os.Getenv("SANDBOX_WEBHOOK_SECRET"),
		FailureRate:   failureRate,
		WrapInArray:   wrapInArray,
	})

	router := gin.Default()

	// Add Prometheus middleware
	router.Use(metrics.PrometheusMiddleware("provider-sandbox"))

	provider.Register(router)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.WithFields(log.Fields{
		"port":          port,
		"failure_rate":  failureRate,
		"wrap_in_array": wrapInArray,
	}).Info("Provider Sandbox starting")
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
