package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"churnpredict/retention"
)

const sample = `
http:
  port: 9090
  timeout: 10s
artifacts:
  dir: /srv/churn/artifacts
log:
  level: debug
  format: console
database:
  path: /var/lib/churn/predictions.db
kafka:
  brokers: ["kafka-1:9092"]
cache:
  size: 0
retention:
  high_threshold: 0.8
  medium_threshold: 0.5
`

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "churn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, t.TempDir(), sample))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 10*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "/srv/churn/artifacts", cfg.Artifacts.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "/var/lib/churn/predictions.db", cfg.Database.Path)
	assert.True(t, cfg.Database.EnableWAL)
	assert.Equal(t, []string{"kafka-1:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "churn-predictions", cfg.Kafka.Topic)
	assert.Equal(t, 0, cfg.Cache.Size)
	assert.Equal(t, retention.Policy{HighThreshold: 0.8, MediumThreshold: 0.5}, cfg.Retention)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHURN_HTTP_PORT", "7000")
	t.Setenv("CHURN_ARTIFACTS_DIR", "/models/current")
	t.Setenv("CHURN_LOG_LEVEL", "warn")
	t.Setenv("CHURN_DATABASE_PATH", "/tmp/audit.db")
	t.Setenv("CHURN_KAFKA_BROKERS", "a:9092, b:9092,")

	cfg, err := Load(writeConfig(t, t.TempDir(), sample))
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.HTTP.Port)
	assert.Equal(t, "/models/current", cfg.Artifacts.Dir)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/tmp/audit.db", cfg.Database.Path)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "htp:\n  port: 1\n"},
		{"bad port", "http:\n  port: 70000\n"},
		{"bad level", "log:\n  level: chatty\n"},
		{"inverted thresholds", "retention:\n  high_threshold: 0.3\n  medium_threshold: 0.6\n"},
		{"negative cache", "cache:\n  size: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, dir, tt.body))
			assert.Error(t, err)
		})
	}

	t.Run("bad env port", func(t *testing.T) {
		t.Setenv("CHURN_HTTP_PORT", "eighty")
		_, err := Load(writeConfig(t, dir, ""))
		assert.Error(t, err)
	})
	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestPathHonoursEnv(t *testing.T) {
	t.Setenv("CHURN_CONFIG", "")
	assert.Equal(t, DefaultPath, Path())
	t.Setenv("CHURN_CONFIG", "/etc/churn.yaml")
	assert.Equal(t, "/etc/churn.yaml", Path())
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, sample)

	var (
		mu      sync.Mutex
		applied []*Config
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zaptest.NewLogger(t), func(cfg *Config) {
			mu.Lock()
			applied = append(applied, cfg)
			mu.Unlock()
		})
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: nonsense\n"), 0o600))
	time.Sleep(reloadDebounce * 2)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\nretention:\n  high_threshold: 0.9\n  medium_threshold: 0.2\n"), 0o600))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(applied) > 0
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	last := applied[len(applied)-1]
	assert.Equal(t, "error", last.Log.Level)
	assert.Equal(t, 0.9, last.Retention.HighThreshold)
	for _, cfg := range applied {
		assert.NotEqual(t, "nonsense", cfg.Log.Level)
	}
}
