package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
database:
  driver: sqlite
  dsn: "file:regs.db"
search:
  maxResultsPerQuery: 8
  keepUndated: false
timeouts:
  llm: 45s
impact:
  high: ["phase-out"]
logging:
  level: info
topics:
  - id: eu-rohs
    name: EU RoHS
    profiles:
      - authority: European Commission
        queries: ["RoHS exemption renewal"]
        allowedDomains: ["ec.europa.eu"]
        maxArticles: 3
`

func TestParseAndMerge(t *testing.T) {
	fileCfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	cfg := mergeConfig(defaultConfig(), fileCfg)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:regs.db", cfg.Database.DSN)
	assert.Equal(t, 8, cfg.Search.MaxResultsPerQuery)
	assert.False(t, cfg.Search.KeepUndatedHits())
	assert.Equal(t, 45*time.Second, cfg.Timeouts.LLM)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Search, "unset durations keep defaults")
	assert.Equal(t, []string{"phase-out"}, cfg.Impact.High)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	require.Len(t, cfg.Topics, 1)
	assert.Equal(t, "eu-rohs", cfg.Topics[0].ID)
	assert.Equal(t, []string{"ec.europa.eu"}, cfg.Topics[0].Profiles[0].AllowedDomains)
}

func TestKeepUndatedDefaultsToTrue(t *testing.T) {
	t.Parallel()

	assert.True(t, defaultConfig().Search.KeepUndatedHits())
}

func TestLoadAppliesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	t.Setenv(configPathEnv, path)
	t.Setenv(databaseDSNEnv, "postgres://env/db")
	t.Setenv(openAIModelEnv, "gpt-test")
	t.Setenv(keepUndatedEnv, "true")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg := Load()

	assert.Equal(t, "postgres://env/db", cfg.Database.DSN)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "gpt-test", cfg.LLM.Model)
	assert.True(t, cfg.Search.KeepUndatedHits())
	assert.Equal(t, "UTC", cfg.Scheduler.Location().String())
}

func TestBindTimezoneFallsBack(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Scheduler.Timezone = "Mars/Olympus"
	cfg.bindTimezone()

	assert.Equal(t, "UTC", cfg.Scheduler.Location().String())
}
