package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"HOLD_TTL", "STORAGE_BACKEND", "KAFKA_BROKERS", "CATALOG_SOURCE", "AUDIT_WORKERS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.HoldTTL)
	assert.Equal(t, BackendFile, cfg.StorageBackend)
	assert.Equal(t, CatalogStatic, cfg.CatalogSource)
	assert.False(t, cfg.KafkaEnabled())
	assert.False(t, cfg.NeedsPostgres())
	assert.Equal(t, 4, cfg.AuditWorkers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HOLD_TTL", "90s")
	t.Setenv("STORAGE_BACKEND", "Redis")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CATALOG_SOURCE", "postgres")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.HoldTTL)
	assert.Equal(t, BackendRedis, cfg.StorageBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.True(t, cfg.NeedsPostgres())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"bad ttl":      {"HOLD_TTL", "soon"},
		"negative ttl": {"HOLD_TTL", "-1m"},
		"backend":      {"STORAGE_BACKEND", "floppy"},
		"catalog":      {"CATALOG_SOURCE", "csv"},
		"workers":      {"AUDIT_WORKERS", "many"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
