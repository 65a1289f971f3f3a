package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.InDelta(t, 0.75, cfg.Verification.MatchThreshold, 1e-9)
	assert.InDelta(t, 0.5, cfg.Verification.ApprovalThreshold, 1e-9)
	assert.Equal(t, 12*time.Second, cfg.Verification.ComparatorTimeout)
	assert.Equal(t, 30*time.Second, cfg.Verification.OuterDeadline)
	assert.Equal(t, 30*24*time.Hour, cfg.Verification.PromotionalPeriod)
	assert.Equal(t, 7*24*time.Hour, cfg.Storage.URLTTL)
	assert.Equal(t, "kyc.audit", cfg.Kafka.AuditTopic)
	assert.False(t, cfg.Providers.ComparatorsConfigured())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "0.8")
	t.Setenv("COMPARATOR_TIMEOUT", "10s")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")
	t.Setenv("DEEP_VERIFY_URL", "http://deepface:5000")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.InDelta(t, 0.8, cfg.Verification.MatchThreshold, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.Verification.ComparatorTimeout)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Providers.ComparatorsConfigured())
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	t.Run("unparseable number", func(t *testing.T) {
		t.Setenv("APPROVAL_THRESHOLD", "half")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "APPROVAL_THRESHOLD")
	})

	t.Run("comparator timeout beyond outer deadline", func(t *testing.T) {
		t.Setenv("COMPARATOR_TIMEOUT", "40s")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "COMPARATOR_TIMEOUT")
	})
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("VENDORKYC_TEST_ADDR_PROBE=1\nLOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("VENDORKYC_TEST_ADDR_PROBE")
		_ = os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}
