package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodigy/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prodigy", cfg.App.Name)
	assert.Equal(t, "gpt-4o", cfg.AI.Model)
	assert.Equal(t, "grok-beta", cfg.AI.XAIModel)
	assert.Equal(t, "https://api.x.ai/v1", cfg.AI.XAIBaseURL)
	assert.Equal(t, 3, cfg.AI.MaxAttempts)
	assert.Equal(t, 90*time.Second, cfg.AI.CallTimeout)
	assert.Equal(t, 2, cfg.Counsel.MaxQueriesPerTurn)
	assert.Equal(t, "reports", cfg.Reports.Dir)

	assert.False(t, cfg.Postgres.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.ClickHouse.Enabled())
}

func TestLoadOptionalBackends(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("POSTGRES_HOST", "db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "cache:6379", cfg.Redis.Addr())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Contains(t, cfg.Postgres.DSN(), "host=db port=5432")
}

func TestValidateRejectsZeroAttempts(t *testing.T) {
	t.Setenv("AI_MAX_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
