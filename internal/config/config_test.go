package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
database:
  host: db.internal
  user: content
  password: ${CONTENT_DB_PASSWORD}
  dbname: site
`

func TestParse_Defaults(t *testing.T) {
	t.Setenv("CONTENT_DB_PASSWORD", "s3cret")

	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, SnapshotBackendFile, cfg.Snapshot.Backend)
	assert.Equal(t, "data/snapshot.json", cfg.Snapshot.Path)
	assert.Equal(t, 30, cfg.Sync.MaxArticles)
	assert.Equal(t, 30, cfg.Sync.MaxEvents)
	assert.Equal(t, 60*time.Second, cfg.Sync.Timeout)
	assert.Equal(t, time.Duration(0), cfg.Sync.Interval)
	assert.Equal(t, time.Minute, cfg.Sync.RetryAfter)
	assert.Equal(t, 3*time.Second, cfg.Router.RemoteTimeout)
	assert.Equal(t, time.Minute, cfg.Router.CacheTTL)
	assert.False(t, cfg.RabbitMQ.Enabled())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_NoSecretDefaults(t *testing.T) {
	t.Setenv("CONTENT_DB_PASSWORD", "")

	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Empty(t, cfg.Database.Password)
	assert.Empty(t, cfg.RabbitMQ.URL)
	assert.Empty(t, cfg.Server.AdminAPIKey)
}

func TestParse_FullFile(t *testing.T) {
	data := `
database:
  host: localhost
  port: 6543
  user: u
  dbname: d
rabbitmq:
  url: amqp://u:p@mq:5672/
snapshot:
  backend: redis
  redis_url: redis://cache:6379/1
sync:
  interval: 10m
  max_articles: 12
  max_events: 8
  retry_after: 5m
router:
  remote_timeout: 1500ms
  cache_ttl: 30s
server:
  addr: ":9090"
  admin_api_key: key
log_level: debug
`
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, 6543, cfg.Database.Port)
	assert.True(t, cfg.RabbitMQ.Enabled())
	assert.Equal(t, "content", cfg.RabbitMQ.Exchange)
	assert.Equal(t, SnapshotBackendRedis, cfg.Snapshot.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 12, cfg.Sync.MaxArticles)
	assert.Equal(t, 5*time.Minute, cfg.Sync.RetryAfter)
	assert.Equal(t, 1500*time.Millisecond, cfg.Router.RemoteTimeout)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "host=localhost port=6543 user=u password= dbname=d sslmode=disable", cfg.Database.DSN())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{name: "missing database", data: "log_level: info\n", wantErr: "database.host is required"},
		{name: "redis without url", data: minimal + "snapshot:\n  backend: redis\n", wantErr: "snapshot.redis_url"},
		{name: "negative retry", data: minimal + "sync:\n  retry_after: -1s\n", wantErr: "sync.retry_after"},
		{name: "unknown backend", data: minimal + "snapshot:\n  backend: s3\n", wantErr: `"s3" is not supported`},
		{name: "bad yaml", data: "database: [", wantErr: "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
