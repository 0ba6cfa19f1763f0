package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Address)
	require.Equal(t, StoreSQLite, cfg.Store)
	require.Equal(t, BlobDir, cfg.Blob)
	require.Equal(t, ReviewInline, cfg.Review)
	require.EqualValues(t, 5<<20, cfg.MaxCertificateSize)
	require.Equal(t, []string{"application/pdf", "image/jpeg", "image/png"}, cfg.AllowedTypes)
	require.Equal(t, "/track", cfg.TrackingPath)
	require.Equal(t, 2*time.Second, cfg.RedirectDelay)
	require.Len(t, cfg.SigningSecret, 32)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DOGLICENSE_STORE", StoreRedis)
	t.Setenv("DOGLICENSE_REDIS_DB", "3")
	t.Setenv("DOGLICENSE_ALLOWED_TYPES", "application/pdf, image/png")
	t.Setenv("DOGLICENSE_REDIRECT_DELAY", "500ms")
	t.Setenv("DOGLICENSE_SIGNING_SECRET", "shh")
	t.Setenv("DOGLICENSE_DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, StoreRedis, cfg.Store)
	require.Equal(t, 3, cfg.RedisDB)
	require.Equal(t, []string{"application/pdf", "image/png"}, cfg.AllowedTypes)
	require.Equal(t, 500*time.Millisecond, cfg.RedirectDelay)
	require.Equal(t, []byte("shh"), cfg.SigningSecret)
	require.True(t, cfg.Debug)
}

func TestLoadIgnoresBadValues(t *testing.T) {
	t.Setenv("DOGLICENSE_REVIEW_WORKERS", "-4")
	t.Setenv("DOGLICENSE_MAX_CERTIFICATE_BYTES", "lots")
	t.Setenv("DOGLICENSE_SIGNED_TTL", "0s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, defaultWorkerCount, cfg.ReviewWorkers)
	require.EqualValues(t, defaultMaxCertSize, cfg.MaxCertificateSize)
	require.Equal(t, defaultSignedTTL, cfg.SignedURLTTL)
}
