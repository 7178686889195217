package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8000", cfg.Port)
	require.Equal(t, StoreSQL, cfg.Store)
	require.Equal(t, 12*time.Hour, cfg.TokenTTL)
	require.Equal(t, "1234", cfg.DefaultPin)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("PORT", "9090")
	t.Setenv("STORE", StoreMemory)
	t.Setenv("TOKEN_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, StoreMemory, cfg.Store)
	require.Equal(t, 30*time.Minute, cfg.TokenTTL)
}

func TestValidate(t *testing.T) {
	cfg := Config{Store: StoreSQL, JWTSecret: "short", TokenTTL: time.Hour}
	require.Error(t, cfg.Validate())

	cfg.JWTSecret = "0123456789abcdef"
	require.NoError(t, cfg.Validate())

	cfg.Store = "mongo"
	require.Error(t, cfg.Validate())
}
