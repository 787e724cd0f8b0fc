package webconfig

import (
	"path/filepath"
	"time"

	"github.com/NordCoder/CropSense/internal/obs"
	"github.com/NordCoder/CropSense/internal/obs/retry"
	"github.com/NordCoder/CropSense/internal/repository/kafka"
	pg "github.com/NordCoder/CropSense/internal/repository/postgres"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	Port            int           `mapstructure:"port"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DB struct {
	Driver            string        `mapstructure:"driver"`
	URL               string        `mapstructure:"url"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
}

func (d *DB) AsPostgres() pg.Config {
	return pg.Config{
		URL:               d.URL,
		MaxConns:          d.MaxConns,
		MinConns:          d.MinConns,
		MaxConnLifetime:   d.MaxConnLifetime,
		MaxConnIdleTime:   d.MaxConnIdleTime,
		HealthCheckPeriod: d.HealthCheckPeriod,
		QueryTimeout:      d.QueryTimeout,
	}
}

type Auth struct {
	SessionSecret string        `mapstructure:"session_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	CookieName    string        `mapstructure:"cookie_name"`
	CookieSecure  bool          `mapstructure:"cookie_secure"`
}

type Model struct {
	Path           string `mapstructure:"path"`
	LabelsPath     string `mapstructure:"labels_path"`
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	InputSize      int    `mapstructure:"input_size"`
}

type Storage struct {
	SupabaseURL  string        `mapstructure:"supabase_url"`
	SupabaseKey  string        `mapstructure:"supabase_key"`
	Bucket       string        `mapstructure:"bucket"`
	LocalDir     string        `mapstructure:"local_dir"`
	PublicPrefix string        `mapstructure:"public_prefix"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

func (s *Storage) RemoteEnabled() bool { return s.SupabaseURL != "" && s.SupabaseKey != "" }

type SMTP struct {
	Addr        string        `mapstructure:"addr"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	From        string        `mapstructure:"from"`
	ImplicitTLS bool          `mapstructure:"implicit_tls"`
	Insecure    bool          `mapstructure:"insecure"` // allow relays without STARTTLS/AUTH, e.g. MailHog
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (s *SMTP) Enabled() bool { return s.User != "" && s.Password != "" }

type SMS struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
}

func (s *SMS) Enabled() bool { return s.AccountSID != "" && s.AuthToken != "" && s.FromNumber != "" }

type Notify struct {
	Async   bool          `mapstructure:"async"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Kafka struct {
	Enable      bool          `mapstructure:"enable"`
	Brokers     []string      `mapstructure:"brokers"`
	Topic       string        `mapstructure:"topic"`
	Partitions  int           `mapstructure:"partitions"`
	Replication int           `mapstructure:"replication"`
	Retention   time.Duration `mapstructure:"retention"`
}

// AsTopicSpec describes the prediction-recorded topic for EnsureTopic.
func (k *Kafka) AsTopicSpec(maxWait time.Duration) kafka.TopicSpec {
	return kafka.TopicSpec{
		Name:              k.Topic,
		NumPartitions:     k.Partitions,
		ReplicationFactor: k.Replication,
		Retention:         k.Retention,
		MaxWait:           maxWait,
	}
}

type Outbox struct {
	Workers         int           `mapstructure:"workers"`
	BatchSize       int           `mapstructure:"batch_size"`
	Wait            time.Duration `mapstructure:"wait"`
	InProgressTTL   time.Duration `mapstructure:"in_progress_ttl"`
	PublishAttempts int           `mapstructure:"publish_attempts"`
	PublishBackoff  time.Duration `mapstructure:"publish_backoff"`
	PublishMaxWait  time.Duration `mapstructure:"publish_max_backoff"`
}

func (o *Outbox) AsPublishConfig() retry.PublishConfig {
	return retry.PublishConfig{
		Attempts: o.PublishAttempts,
		Base:     o.PublishBackoff,
		Max:      o.PublishMaxWait,
	}
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Insecure     bool    `mapstructure:"insecure"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// AsOTELConfig needs the engine state, so it is built after the model loads.
func (c *Config) AsOTELConfig(modelReady bool) *obs.OTELConfig {
	svc := c.Service()
	if c.OTEL.ServiceName != "" {
		svc.Name = c.OTEL.ServiceName
	}
	return &obs.OTELConfig{
		Enable:      c.OTEL.Enable,
		Endpoint:    c.OTEL.OTLPEndpoint,
		Insecure:    c.OTEL.Insecure,
		SampleRatio: c.OTEL.SampleRatio,
		Service:     svc,
		ModelReady:  modelReady,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Config struct {
	App     App     `mapstructure:"app"`
	Server  Server  `mapstructure:"server"`
	DB      DB      `mapstructure:"db"`
	Auth    Auth    `mapstructure:"auth"`
	Model   Model   `mapstructure:"model"`
	Storage Storage `mapstructure:"storage"`
	SMTP    SMTP    `mapstructure:"smtp"`
	SMS     SMS     `mapstructure:"sms"`
	Notify  Notify  `mapstructure:"notify"`
	Kafka   Kafka   `mapstructure:"kafka"`
	Outbox  Outbox  `mapstructure:"outbox"`
	OTEL    OTEL    `mapstructure:"otel"`
	Log     Log     `mapstructure:"log"`
}

func (c *Config) Service() obs.Service {
	s := obs.Service{
		Name:     c.App.Name,
		Env:      c.App.Env,
		Version:  c.App.Version,
		DBDriver: c.DB.Driver,
	}
	if c.Model.Path != "" {
		s.Model = filepath.Base(c.Model.Path)
	}
	return s
}

func (c *Config) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:   c.Log.Level,
		Pretty:  c.Log.Pretty,
		Service: c.Service(),
	}
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
