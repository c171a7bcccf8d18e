package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultDevAPIURL  = "http://localhost:8080/api/v1"
	DefaultProdAPIURL = "https://api.voiceorchestrate.ai/api/v1"
)

type Config struct {
	Env      string
	HTTPAddr string // integrations-service

	// Client side: explicit base URL wins over the env-specific defaults.
	APIURL         string
	DevAPIURL      string
	ProdAPIURL     string
	RequestTimeout time.Duration
	RetryAttempts  int

	// OIDC / JWT
	Issuer   string
	Audience string
	JWKSURL  string

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string

	EncryptionKey      string
	CatalogPath        string
	DispatchPolicyPath string
	TenantSeedJSON     string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                env("HUB_ENV", "dev"),
		HTTPAddr:           env("HUB_HTTP_ADDR", ":8080"),
		APIURL:             env("HUB_API_URL", ""),
		DevAPIURL:          env("HUB_API_URL_DEV", DefaultDevAPIURL),
		ProdAPIURL:         env("HUB_API_URL_PROD", DefaultProdAPIURL),
		RequestTimeout:     envDur("HUB_REQUEST_TIMEOUT_SEC", 30) * time.Second,
		RetryAttempts:      envInt("HUB_RETRY_ATTEMPTS", 3),
		Issuer:             env("OIDC_ISSUER", ""),
		Audience:           env("OIDC_AUDIENCE", "voice-hub"),
		JWKSURL:            env("JWKS_URL", ""),
		RedisURL:           env("REDIS_URL", ""),
		DatabaseURL:        env("DATABASE_URL", ""),
		EncryptionKey:      env("ENCRYPTION_KEY", ""),
		CatalogPath:        env("CATALOG_PATH", ""),
		DispatchPolicyPath: env("DISPATCH_POLICY_PATH", ""),
		TenantSeedJSON:     env("TENANT_SEED_JSON", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set, using in-memory stores")
	}
	return cfg
}

// IsProd reports whether the process runs with production settings.
func (c Config) IsProd() bool { return c.Env == "prod" }

// APIBaseURL resolves the client base URL: HUB_API_URL, else the dev or prod default.
func (c Config) APIBaseURL() string {
	if c.APIURL != "" {
		return strings.TrimRight(c.APIURL, "/")
	}
	if c.IsProd() {
		return strings.TrimRight(c.ProdAPIURL, "/")
	}
	return strings.TrimRight(c.DevAPIURL, "/")
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
