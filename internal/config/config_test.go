package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 30*time.Second, cfg.ListTimeout)
	assert.Equal(t, 10*time.Second, cfg.MutateTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Stagger)
	assert.Equal(t, "d", cfg.Recurrence)
	assert.Equal(t, "UTC", cfg.StartTimezone)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.PushgatewayURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PROBELY_API_URL", "http://localhost:9999")
	t.Setenv("PROBELY_API_TOKEN", "abc")
	t.Setenv("PROBELY_PAGE_SIZE", "500")
	t.Setenv("PROBELY_STAGGER", "5m")
	t.Setenv("PROBELY_START_TZ", "Europe/Lisbon")
	t.Setenv("PROBELY_CONCURRENCY", "4")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999", cfg.APIURL)
	assert.Equal(t, "abc", cfg.APIToken.Unmask())
	assert.Equal(t, 500, cfg.PageSize)
	assert.Equal(t, 5*time.Minute, cfg.Stagger)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "json", cfg.LogFormat)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Lisbon", loc.String())
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"PROBELY_RECURRENCE":      "x",
		"PROBELY_PAGE_SIZE":       "20000",
		"PROBELY_START_TZ":        "Mars/Olympus",
		"LOG_FORMAT":              "xml",
		"PROBELY_CONCURRENCY":     "0",
		"PROBELY_PUSHGATEWAY_URL": "not a url",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, "validate", cfgErr.Stage)
		})
	}
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("PROBELY_STAGGER", "two minutes")

	_, err := Load()
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "parse", cfgErr.Stage)
}

func TestSecretString_Redacts(t *testing.T) {
	s := SecretString("eyJhbGciOi")

	assert.Equal(t, redacted, fmt.Sprint(s))
	assert.Equal(t, redacted, fmt.Sprintf("%v", s))

	b, err := json.Marshal(struct {
		Token SecretString `json:"token"`
	}{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"***REDACTED***"}`, string(b))
	assert.Equal(t, "eyJhbGciOi", s.Unmask())
}
