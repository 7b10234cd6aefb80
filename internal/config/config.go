package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr       string
	PGDSN          string
	MongoURI       string
	RedisAddr      string
	RabbitURL      string
	OTLPEndpoint   string
	PaymentBaseURL string
	PaymentAPIKey  string
	CheckoutTTL    time.Duration
	IdempotencyTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	checkoutTTL, _ := time.ParseDuration(os.Getenv("CHECKOUT_TTL"))
	if checkoutTTL == 0 {
		checkoutTTL = 30 * time.Minute
	}
	idempTTL, _ := time.ParseDuration(os.Getenv("IDEMPOTENCY_TTL"))
	if idempTTL == 0 {
		idempTTL = time.Hour
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return &Config{
		HTTPAddr:       addr,
		PGDSN:          os.Getenv("PG_DSN"),
		MongoURI:       os.Getenv("MONGO_URI"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		PaymentBaseURL: os.Getenv("PAYMENT_BASE_URL"),
		PaymentAPIKey:  os.Getenv("PAYMENT_API_KEY"),
		CheckoutTTL:    checkoutTTL,
		IdempotencyTTL: idempTTL,
	}, nil
}
