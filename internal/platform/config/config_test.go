package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	govModels "knomee/internal/governance/models"
	"knomee/pkg/domain"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"KNOMEE_ADDR", "KAFKA_BROKERS", "REDIS_URL", "TX_TIMEOUT", "RATE_LIMIT_COMMANDS", "RATE_LIMIT_WINDOW"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "knomee.audit", cfg.Kafka.AuditTopic)
	assert.Equal(t, 5*time.Second, cfg.TxTimeout)
	assert.Equal(t, RateLimitConfig{Commands: 60, Window: time.Minute}, cfg.RateLimit)
	assert.NotEmpty(t, cfg.Auth.CallerJWTSigningKey)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("KNOMEE_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("IDEMPOTENCY_TTL", "1h")
	t.Setenv("REDIS_POOL_SIZE", "25")
	t.Setenv("DEV_FAUCET", "true")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, 25, cfg.Redis.PoolSize)
	assert.True(t, cfg.DevFaucet)
}

func TestLoadGovernanceParams(t *testing.T) {
	t.Run("empty path yields defaults", func(t *testing.T) {
		p, err := LoadGovernanceParams("")
		require.NoError(t, err)
		assert.Equal(t, govModels.DefaultParams(), p)
	})

	t.Run("file overrides selected keys", func(t *testing.T) {
		path := writeFile(t, "primary_threshold = 7000\nclaim_expiry_seconds = 3600\n")
		p, err := LoadGovernanceParams(path)
		require.NoError(t, err)
		assert.Equal(t, uint16(7000), p.PrimaryThreshold)
		assert.Equal(t, int64(3600), p.ClaimExpirySeconds)
		assert.Equal(t, uint16(5100), p.LinkThreshold)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := writeFile(t, "link_threshold = 5000\n")
		_, err := LoadGovernanceParams(path)
		require.ErrorIs(t, err, domain.ErrInvalidThreshold)
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		path := writeFile(t, "quorum = 3\n")
		_, err := LoadGovernanceParams(path)
		require.ErrorContains(t, err, "quorum")
	})
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "governance.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestFromEnvGovernanceBootstrap(t *testing.T) {
	t.Setenv("GOVERNANCE_AUTHORITY", "authority")
	t.Setenv("GOVERNANCE_FILE", "/etc/knomee/governance.toml")

	cfg := FromEnv()
	assert.Equal(t, "authority", cfg.GovernanceAuthority)
	assert.Equal(t, "/etc/knomee/governance.toml", cfg.GovernanceFile)
}
