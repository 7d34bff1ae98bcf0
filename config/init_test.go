package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfig_Defaults(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	t.Setenv("PORT", "8080")

	cfg, err := InitConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.AppConfig.APIPort)
	assert.Equal(t, "ko", cfg.AppConfig.Locale)
	assert.Equal(t, []string{"is:unread", "is:read in:inbox -in:sent"}, cfg.CacheConfig.Queries)
	assert.Equal(t, int64(15), cfg.CacheConfig.MaxResultsPerQuery)
	assert.Equal(t, 2, cfg.GeneratorConfig.RetrieverTopK)
	assert.Equal(t, 60*time.Second, cfg.GeminiConfig.Timeout)
	assert.False(t, cfg.Tracing.Enabled)
	assert.True(t, cfg.ClassifierConfig.SkipAutomated)
	assert.Equal(t, "@every 90s", cfg.CronConfig.CronScheduleRefreshThreads)
	assert.True(t, cfg.CronConfig.RefreshOnStart)
}

func TestInitConfig_Overrides(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	t.Setenv("CACHE_LIST_QUERIES", "is:unread label:support")
	t.Setenv("EXTRACTOR_QUOTE_MARKERS", ">|On |Le ")
	t.Setenv("CLASSIFIER_IGNORE_SENDERS", "noreply,mailer-daemon")

	cfg, err := InitConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"is:unread label:support"}, cfg.CacheConfig.Queries)
	assert.Equal(t, []string{">", "On ", "Le "}, cfg.ExtractorConfig.QuoteMarkers)
	assert.Equal(t, []string{"noreply", "mailer-daemon"}, cfg.ClassifierConfig.IgnoreSenders)
}

func TestInitConfig_MissingAPIKey(t *testing.T) {
	t.Setenv("API_KEY", "")
	_, err := InitConfig()
	assert.Error(t, err)
}
