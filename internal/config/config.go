package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	SnapshotBackendFile  = "file"
	SnapshotBackendRedis = "redis"
)

// Config is the single configuration entry point. Secrets are read from
// the environment through ${VAR} references and never defaulted.
type Config struct {
	Database  DatabaseConfig `yaml:"database"`
	RabbitMQ  RabbitMQConfig `yaml:"rabbitmq"`
	Snapshot  SnapshotConfig `yaml:"snapshot"`
	Sync      SyncConfig     `yaml:"sync"`
	Router    RouterConfig   `yaml:"router"`
	Server    ServerConfig   `yaml:"server"`
	LogLevel  string         `yaml:"log_level"`
	LogFormat string         `yaml:"log_format"`
}

// RabbitMQConfig configures indexing notifications. An empty URL disables them.
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

func (r RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

type DatabaseConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	DBName       string        `yaml:"dbname"`
	SSLMode      string        `yaml:"sslmode"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	MaxLifetime  time.Duration `yaml:"max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type SnapshotConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	RedisKey string `yaml:"redis_key"`
}

type SyncConfig struct {
	// Interval of the scheduled resync. Zero disables the schedule.
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxArticles int           `yaml:"max_articles"`
	MaxEvents   int           `yaml:"max_events"`
	StaleAfter  time.Duration `yaml:"stale_after"`
	// RetryAfter is the pause after a failed background resync before
	// expiry checks may start another one.
	RetryAfter time.Duration `yaml:"retry_after"`
}

type RouterConfig struct {
	RemoteTimeout    time.Duration `yaml:"remote_timeout"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	ListLimit        int           `yaml:"list_limit"`
	ImagePlaceholder string        `yaml:"image_placeholder"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AdminAPIKey     string        `yaml:"admin_api_key"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return Parse(data)
}

// Parse expands environment references in data and decodes it.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.MaxLifetime == 0 {
		c.Database.MaxLifetime = 5 * time.Minute
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "content"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "content.changed"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "content_indexing"
	}
	if c.Snapshot.Backend == "" {
		c.Snapshot.Backend = SnapshotBackendFile
	}
	if c.Snapshot.Path == "" {
		c.Snapshot.Path = "data/snapshot.json"
	}
	if c.Snapshot.RedisKey == "" {
		c.Snapshot.RedisKey = "content:snapshot"
	}
	if c.Sync.Timeout == 0 {
		c.Sync.Timeout = 60 * time.Second
	}
	if c.Sync.MaxArticles == 0 {
		c.Sync.MaxArticles = 30
	}
	if c.Sync.MaxEvents == 0 {
		c.Sync.MaxEvents = 30
	}
	if c.Sync.StaleAfter == 0 {
		c.Sync.StaleAfter = time.Hour
	}
	if c.Sync.RetryAfter == 0 {
		c.Sync.RetryAfter = time.Minute
	}
	if c.Router.RemoteTimeout == 0 {
		c.Router.RemoteTimeout = 3 * time.Second
	}
	if c.Router.CacheTTL == 0 {
		c.Router.CacheTTL = time.Minute
	}
	if c.Router.ListLimit == 0 {
		c.Router.ListLimit = 100
	}
	if c.Router.ImagePlaceholder == "" {
		c.Router.ImagePlaceholder = "/static/placeholder.jpg"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 20 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
}

func (c *Config) Validate() error {
	var errs []error

	if c.Database.Host == "" {
		errs = append(errs, errors.New("database.host is required"))
	}
	if c.Database.DBName == "" {
		errs = append(errs, errors.New("database.dbname is required"))
	}
	if c.Database.User == "" {
		errs = append(errs, errors.New("database.user is required"))
	}
	switch c.Snapshot.Backend {
	case SnapshotBackendFile:
	case SnapshotBackendRedis:
		if c.Snapshot.RedisURL == "" {
			errs = append(errs, errors.New("snapshot.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("snapshot.backend %q is not supported", c.Snapshot.Backend))
	}
	if c.Sync.MaxArticles < 0 || c.Sync.MaxEvents < 0 {
		errs = append(errs, errors.New("sync.max_articles and sync.max_events must be non-negative"))
	}
	if c.Sync.Interval < 0 {
		errs = append(errs, errors.New("sync.interval must be non-negative"))
	}
	if c.Sync.RetryAfter < 0 {
		errs = append(errs, errors.New("sync.retry_after must be non-negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
