package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Notification drivers
const (
	NotificationDriverLog   = "log"
	NotificationDriverRedis = "redis"
	NotificationDriverKafka = "kafka"
)

const envPrefix = "LEORIT"

// Config is the service configuration. Keys are the lower snake case paths
// of the mapstructure tags, e.g. event.poll_interval.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Log          LogConfig          `mapstructure:"log"`
	Event        EventConfig        `mapstructure:"event"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Notification NotificationConfig `mapstructure:"notification"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Policy       PolicyConfig       `mapstructure:"policy"`
	Lifecycle    LifecycleConfig    `mapstructure:"lifecycle"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds settings for validating bearer tokens
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
	// DevTokenTTL is the lifetime of tokens minted with -issue-token
	DevTokenTTL time.Duration `mapstructure:"dev_token_ttl"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// Format is json or console; empty picks by environment
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// EventConfig tunes the outbox relay
type EventConfig struct {
	ProcessorEnabled bool          `mapstructure:"processor_enabled"`
	BatchSize        int           `mapstructure:"batch_size"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	MaxRetries       int           `mapstructure:"max_retries"`
	CleanupEnabled   bool          `mapstructure:"cleanup_enabled"`
	CleanupRetention time.Duration `mapstructure:"cleanup_retention"`
	IdempotencyTTL   time.Duration `mapstructure:"idempotency_ttl"`
}

type HTTPConfig struct {
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"`
	MaxBodySize       int64         `mapstructure:"max_body_size"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
	// An empty origin list allows no cross-origin requests
	CORSAllowOrigins []string `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string `mapstructure:"trusted_proxies"`
}

// NotificationConfig selects where lifecycle notifications are delivered
type NotificationConfig struct {
	Driver       string   `mapstructure:"driver"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
	RedisStream  string   `mapstructure:"redis_stream"`
	// StreamMaxLen caps the Redis stream with approximate trimming
	StreamMaxLen int64 `mapstructure:"stream_max_len"`
}

// StorageConfig holds S3-compatible object storage settings for QC media
type StorageConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Endpoint is empty for AWS and set for MinIO and similar
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	Bucket          string        `mapstructure:"bucket"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UsePathStyle    bool          `mapstructure:"use_path_style"`
	PresignTTL      time.Duration `mapstructure:"presign_ttl"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
}

// PolicyConfig adjusts the role to action authorization matrix
type PolicyConfig struct {
	// AdminIDs, when non-empty, restricts the admin role to these actor IDs
	AdminIDs []string `mapstructure:"admin_ids"`
	// Grants and Revokes add and remove actions, keyed by role name
	Grants  map[string][]string `mapstructure:"grants"`
	Revokes map[string][]string `mapstructure:"revokes"`
}

// LifecycleConfig tunes the compare-and-set retry loop
type LifecycleConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
}

// TelemetryConfig holds OpenTelemetry and profiling settings
type TelemetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	SamplingRatio     float64 `mapstructure:"sampling_ratio"`
	ServiceName       string  `mapstructure:"service_name"`
	// Insecure disables TLS to the collector; development only
	Insecure       bool `mapstructure:"insecure"`
	DBTraceEnabled bool `mapstructure:"db_trace_enabled"`
	// DBLogFullSQL keeps bound variables in spans; refused in production
	DBLogFullSQL          bool          `mapstructure:"db_log_full_sql"`
	DBSlowQueryThresh     time.Duration `mapstructure:"db_slow_query_threshold"`
	MetricsEnabled        bool          `mapstructure:"metrics_enabled"`
	MetricsExportInterval time.Duration `mapstructure:"metrics_export_interval"`
	StateGaugeInterval    time.Duration `mapstructure:"state_gauge_interval"`
	LogsEnabled           bool          `mapstructure:"logs_enabled"`
	ProfilingEnabled      bool          `mapstructure:"profiling_enabled"`
	PyroscopeEndpoint     string        `mapstructure:"pyroscope_endpoint"`
}

// defaults registers every key with viper. Keys without a default are listed
// with a zero value so LEORIT_* variables can still set them.
var defaults = map[string]any{
	"app.name": "leorit-backend",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "leorit",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  time.Hour,
	"database.conn_max_idle_time": 30 * time.Minute,

	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"jwt.secret":        "",
	"jwt.issuer":        "leorit",
	"jwt.dev_token_ttl": 12 * time.Hour,

	"log.level":  "info",
	"log.format": "",
	"log.output": "stdout",

	"event.processor_enabled": true,
	"event.batch_size":        100,
	"event.poll_interval":     5 * time.Second,
	"event.max_retries":       5,
	"event.cleanup_enabled":   true,
	"event.cleanup_retention": 7 * 24 * time.Hour,
	"event.idempotency_ttl":   24 * time.Hour,

	"http.read_timeout":        15 * time.Second,
	"http.write_timeout":       15 * time.Second,
	"http.idle_timeout":        time.Minute,
	"http.max_header_bytes":    1 << 20,
	"http.max_body_size":       1 << 20,
	"http.rate_limit_enabled":  false,
	"http.rate_limit_requests": 100,
	"http.rate_limit_window":   time.Minute,
	"http.cors_allow_origins":  []string{},
	"http.cors_allow_methods":  []string{"GET", "POST", "PUT", "OPTIONS"},
	"http.cors_allow_headers":  []string{"Content-Type", "Authorization", "X-Request-ID"},
	"http.trusted_proxies":     []string{},

	"notification.driver":         NotificationDriverLog,
	"notification.kafka_brokers":  []string{},
	"notification.kafka_topic":    "leorit.order-lifecycle",
	"notification.redis_stream":   "leorit:order-lifecycle",
	"notification.stream_max_len": 100000,

	"storage.enabled":           false,
	"storage.endpoint":          "",
	"storage.region":            "ap-south-1",
	"storage.bucket":            "",
	"storage.access_key_id":     "",
	"storage.secret_access_key": "",
	"storage.use_path_style":    false,
	"storage.presign_ttl":       15 * time.Minute,
	"storage.key_prefix":        "qc",

	"policy.admin_ids": []string{},

	"lifecycle.max_retries":      3,
	"lifecycle.retry_base_delay": 20 * time.Millisecond,
	"lifecycle.retry_max_delay":  500 * time.Millisecond,

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "leorit-backend",
	"telemetry.insecure":                false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
	"telemetry.metrics_enabled":         false,
	"telemetry.metrics_export_interval": time.Minute,
	"telemetry.state_gauge_interval":    time.Minute,
	"telemetry.logs_enabled":            false,
	"telemetry.profiling_enabled":       false,
	"telemetry.pyroscope_endpoint":      "http://localhost:4040",
}

// Load reads configuration. Later sources override earlier ones: built-in
// defaults, config.toml from ., ./config or /etc/leorit, a .env file, then
// LEORIT_* environment variables such as LEORIT_DATABASE_PASSWORD.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, dir := range []string{".", "./config", "/etc/leorit"} {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFile reads configuration from path, still honouring LEORIT_* variables
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	db, n := c.Database, c.Notification
	checks := []struct {
		failed bool
		msg    string
	}{
		{strings.TrimSpace(db.Host) == "", "database.host is required"},
		{db.MaxOpenConns <= 0, "database.max_open_conns must be positive"},
		{db.MaxIdleConns < 0, "database.max_idle_conns cannot be negative"},
		{db.MaxIdleConns > db.MaxOpenConns, fmt.Sprintf(
			"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)},
		{!slices.Contains([]string{NotificationDriverLog, NotificationDriverRedis, NotificationDriverKafka}, n.Driver),
			fmt.Sprintf("unknown notification.driver %q (expected log, redis or kafka)", n.Driver)},
		{n.Driver == NotificationDriverKafka && len(n.KafkaBrokers) == 0,
			"notification.kafka_brokers is required for the kafka driver"},
		{c.Storage.Enabled && c.Storage.Bucket == "", "storage.bucket is required when storage is enabled"},
		{c.Lifecycle.MaxRetries < 0, "lifecycle.max_retries cannot be negative"},
		{c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1, fmt.Sprintf(
			"telemetry.sampling_ratio must be between 0.0 and 1.0, got %g", c.Telemetry.SamplingRatio)},
	}
	for _, ch := range checks {
		if ch.failed {
			return errors.New(ch.msg)
		}
	}
	if c.IsProduction() {
		return c.validateProduction()
	}
	return nil
}

func (c *Config) validateProduction() error {
	switch {
	case c.JWT.Secret == "":
		return errors.New("jwt.secret is required in production")
	case len(c.JWT.Secret) < 32:
		return errors.New("jwt.secret must be at least 32 characters in production")
	case c.Database.Password == "":
		return errors.New("database.password is required in production")
	case c.Database.SSLMode == "disable":
		return errors.New("database.sslmode cannot be disable in production")
	case slices.Contains(c.HTTP.CORSAllowOrigins, "*"):
		return errors.New("http.cors_allow_origins cannot contain * in production")
	case c.Telemetry.DBLogFullSQL:
		return errors.New("telemetry.db_log_full_sql must be off in production")
	}
	return nil
}

// IsProduction reports whether the app runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the postgres URL with user info and query escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}
