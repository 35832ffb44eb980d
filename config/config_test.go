package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "clickhouse", cfg.EventSink)
	assert.Equal(t, 10, cfg.Analytics.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Analytics.BatchTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Analytics.SessionIdle)
	assert.Equal(t, 0.1, cfg.Performance.SampleRate)
	assert.Equal(t, 5, cfg.Performance.BatchSize)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "onboarding@resend.dev", cfg.FromEmail())
	assert.False(t, cfg.ShopifyConfigured())
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")
	t.Setenv("EVENT_SINK", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("RESEND_DOMAIN", "nmafoods.com")
	t.Setenv("SHOPIFY_STORE_DOMAIN", "nma.myshopify.com")
	t.Setenv("SHOPIFY_STOREFRONT_ACCESS_TOKEN", "tok")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "kafka", cfg.EventSink)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "send@nmafoods.com", cfg.FromEmail())
	assert.True(t, cfg.ShopifyConfigured())
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown sink", key: "EVENT_SINK", val: "supabase"},
		{name: "sample rate above one", key: "PERFORMANCE_SAMPLE_RATE", val: "1.5"},
		{name: "queue smaller than batch", key: "ANALYTICS_MAX_QUEUE", val: "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET_KEY", "test-secret")
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
