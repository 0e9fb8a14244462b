package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/T1collo/agrofresh/database"
)

const (
	dbCredentialsSecret = "agrofresh/DB_CREDENTIALS"
	jwtSecretName       = "agrofresh/JWT_SECRET"
)

// Config holds all configuration for the storefront server.
type Config struct {
	Port            string
	Env             string
	Postgres        database.PostgresConfig
	RedisURL        string
	JWTSecret       string
	CORSOrigins     []string
	AuthSNSTopicARN string
	UseSecrets      bool
}

// secretSource is the part of pkg/aws.SecretsClient LoadConfig needs.
type secretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// LoadConfig reads configuration from the environment (and an optional
// .env file). When secrets is non-nil its values override the database
// credentials and JWT secret.
func LoadConfig(ctx context.Context, secrets secretSource, log *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded", zap.Error(err))
	}

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("APP_ENV", "development"),
		Postgres: database.PostgresConfig{
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Name:     os.Getenv("POSTGRES_DB"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		RedisURL:        os.Getenv("REDIS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		AuthSNSTopicARN: os.Getenv("AUTH_SNS_TOPIC_ARN"),
		UseSecrets:      os.Getenv("AWS_USE_SECRETS") == "true",
	}

	if secrets != nil {
		applySecrets(ctx, cfg, secrets, log)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applySecrets overrides values from Secrets Manager. A missing secret keeps
// the environment value.
func applySecrets(ctx context.Context, cfg *Config, secrets secretSource, log *zap.Logger) {
	if m, err := secrets.GetSecretMap(ctx, dbCredentialsSecret); err != nil {
		log.Warn("db credentials secret unavailable", zap.Error(err))
	} else {
		override(&cfg.Postgres.User, m["POSTGRES_USER"])
		override(&cfg.Postgres.Password, m["POSTGRES_PASSWORD"])
		override(&cfg.Postgres.Name, m["POSTGRES_DB"])
		override(&cfg.Postgres.Host, m["POSTGRES_HOST"])
		override(&cfg.Postgres.Port, m["POSTGRES_PORT"])
	}

	if v, err := secrets.GetSecret(ctx, jwtSecretName); err != nil {
		log.Warn("jwt secret unavailable", zap.Error(err))
	} else {
		override(&cfg.JWTSecret, v)
	}
}

func (c *Config) validate() error {
	var missing []string
	if c.Postgres.Host == "" {
		missing = append(missing, "POSTGRES_HOST")
	}
	if c.Postgres.User == "" {
		missing = append(missing, "POSTGRES_USER")
	}
	if c.Postgres.Password == "" {
		missing = append(missing, "POSTGRES_PASSWORD")
	}
	if c.Postgres.Name == "" {
		missing = append(missing, "POSTGRES_DB")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config incomplete: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
