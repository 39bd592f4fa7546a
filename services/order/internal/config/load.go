package config

import (
	"log"
	"os"
	"time"

	"github.com/Skotchmaster/storefront/pkg/config"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
)

type ServiceConfig struct {
	config.Config

	PaymentBucket    string
	MaxProofBytes    int64
	EventsTopic      string
	StatusIDs        map[models.StatusCode]int64
	RetryInterval    time.Duration
	RetryMaxAttempts int
}

func Load() ServiceConfig {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "order"
	}

	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmpty(cfg.BaaSURL, "BAAS_URL")
	config.MustNonEmpty(cfg.BaaSServiceKey, "BAAS_SERVICE_KEY")
	config.MustNonEmptyBytes(cfg.JWTSecret, "JWT_SECRET")

	ids := models.DefaultStatusIDs()
	if raw := os.Getenv("STATUS_IDS"); raw != "" {
		parsed, err := models.ParseStatusIDs(raw)
		if err != nil {
			log.Fatalf("STATUS_IDS: %v", err)
		}
		for code, id := range parsed {
			ids[code] = id
		}
	}

	return ServiceConfig{
		Config:           cfg,
		PaymentBucket:    config.EnvDefault("PAYMENT_BUCKET", "payment-proofs"),
		MaxProofBytes:    int64(config.EnvIntDefault("MAX_PROOF_BYTES", 5<<20)),
		EventsTopic:      config.EnvDefault("ORDER_EVENTS_TOPIC", "order_events"),
		StatusIDs:        ids,
		RetryInterval:    config.EnvDurationDefault("RETRY_INTERVAL", 30*time.Second),
		RetryMaxAttempts: config.EnvIntDefault("RETRY_MAX_ATTEMPTS", 8),
	}
}
