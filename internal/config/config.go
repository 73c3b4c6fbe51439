// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDatabase string

	AuthHost string
	AuthPort string

	PaymobSecretKey     string
	PaymobPublicKey     string
	PaymobIntegrationID string

	// KafkaBrokers empty disables event publishing.
	KafkaBrokers []string

	// LockTimeout bounds how long a wallet operation may wait on a row lock.
	LockTimeout time.Duration
}

// Load reads a .env file when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:            getenv("HTTP_ADDR", ":8080"),
		PostgresHost:        getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:        getenv("POSTGRES_PORT", "5432"),
		PostgresUser:        os.Getenv("POSTGRES_USER"),
		PostgresPassword:    os.Getenv("POSTGRES_PASSWORD"),
		PostgresDatabase:    os.Getenv("POSTGRES_DATABASE"),
		AuthHost:            os.Getenv("AUTH_HOST"),
		AuthPort:            os.Getenv("AUTH_PORT"),
		PaymobSecretKey:     os.Getenv("PAYMOB_API_SECRET_KEY"),
		PaymobPublicKey:     os.Getenv("PAYMOB_API_PUBLIC_KEY"),
		PaymobIntegrationID: os.Getenv("PAYMOB_INTEGRATION_ID"),
		LockTimeout:         3 * time.Second,
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if raw := os.Getenv("LOCK_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid LOCK_TIMEOUT %q: %w", raw, err)
		}
		cfg.LockTimeout = d
	}

	return cfg, nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDatabase)
}

func (c *Config) AuthBaseURL() string {
	return fmt.Sprintf("http://%s:%s", c.AuthHost, c.AuthPort)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
