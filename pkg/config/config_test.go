package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HUB_ENV", "")
	t.Setenv("HUB_API_URL", "")
	t.Setenv("HUB_REQUEST_TIMEOUT_SEC", "")
	t.Setenv("HUB_RETRY_ATTEMPTS", "")

	cfg := Load()
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, DefaultDevAPIURL, cfg.APIBaseURL())
}

func TestAPIBaseURL(t *testing.T) {
	cfg := Config{Env: "prod", DevAPIURL: "http://dev/api/v1", ProdAPIURL: "https://prod/api/v1/"}
	assert.Equal(t, "https://prod/api/v1", cfg.APIBaseURL())

	cfg.Env = "dev"
	assert.Equal(t, "http://dev/api/v1", cfg.APIBaseURL())

	cfg.APIURL = "http://override:9000/api/v1/"
	assert.Equal(t, "http://override:9000/api/v1", cfg.APIBaseURL())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HUB_ENV", "prod")
	t.Setenv("HUB_REQUEST_TIMEOUT_SEC", "5")
	t.Setenv("HUB_RETRY_ATTEMPTS", "5")

	cfg := Load()
	assert.True(t, cfg.IsProd())
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.RetryAttempts)
}
