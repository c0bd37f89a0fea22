package config

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"web-dlp/constant"
)

const EnvPrefix = "WEBDLP"

type Config struct {
	App       App       `yaml:"app"`
	Server    Server    `yaml:"server"`
	Download  Download  `yaml:"download"`
	Cleanup   Cleanup   `yaml:"cleanup"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Throttle  Throttle  `yaml:"throttle"`
	Storage   Storage   `yaml:"storage"`
	Queue     *RabbitMQ `yaml:"rabbitmq"`
}

type App struct {
	Environment string `yaml:"environment"`
}

type Server struct {
	HttpPort          string        `yaml:"port"`
	Workers           int           `yaml:"workers"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	// TrustedProxies may set X-Forwarded-For. Empty means the socket
	// address is the client address.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type Download struct {
	Dir          string        `yaml:"dir"`
	Timeout      time.Duration `yaml:"timeout"`
	Attempts     int           `yaml:"attempts"`
	AudioQuality string        `yaml:"audio_quality"`
	MaxHeight    int           `yaml:"max_height"`
	YtDlpPath    string        `yaml:"ytdlp_path"`
}

type Cleanup struct {
	Interval       time.Duration `yaml:"interval"`
	Retention      time.Duration `yaml:"retention"`
	AbandonGrace   time.Duration `yaml:"abandon_grace"`
	RetrievalGrace time.Duration `yaml:"retrieval_grace"`
}

type RateLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type Throttle struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type Storage struct {
	Backend string `yaml:"backend"`
	MinIO   MinIO  `yaml:"minio"`
}

type MinIO struct {
	URL             string `yaml:"url"`
	AccessID        string `yaml:"access_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Secure          bool   `yaml:"secure"`
}

type RabbitMQ struct {
	Enabled      bool   `json:"enabled"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "production")

	v.SetDefault("server.port", "8000")
	v.SetDefault("server.workers", 1)
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("download.dir", "downloads")
	v.SetDefault("download.timeout", 5*time.Minute)
	v.SetDefault("download.attempts", 2)
	v.SetDefault("download.audio_quality", "192K")
	v.SetDefault("download.max_height", 720)
	v.SetDefault("download.ytdlp_path", "")

	v.SetDefault("cleanup.interval", time.Minute)
	v.SetDefault("cleanup.retention", 10*time.Minute)
	v.SetDefault("cleanup.abandon_grace", 20*time.Minute)
	v.SetDefault("cleanup.retrieval_grace", 2*time.Minute)

	v.SetDefault("rate_limit.requests", 5)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("throttle.rps", 0)
	v.SetDefault("throttle.burst", 50)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.minio.url", "")
	v.SetDefault("storage.minio.access_id", "")
	v.SetDefault("storage.minio.secret_access_key", "")
	v.SetDefault("storage.minio.bucket", "web-dlp")
	v.SetDefault("storage.minio.prefix", "results")
	v.SetDefault("storage.minio.secure", false)

	v.SetDefault("rabbitmq.enabled", false)
	v.SetDefault("rabbitmq.host", "localhost")
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.user", "guest")
	v.SetDefault("rabbitmq.pass", "guest")
	v.SetDefault("rabbitmq.exchange_name", "web_dlp_events")
	v.SetDefault("rabbitmq.kind", "topic")
}

// Load reads config.yaml from path when present, then WEBDLP_* environment
// variables. A .env file in path is loaded into the environment first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(path, ".env"))

	v := viper.New()
	setDefaults(v)
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{
		App: App{
			Environment: v.GetString("app.environment"),
		},
		Server: Server{
			HttpPort:          v.GetString("server.port"),
			Workers:           v.GetInt("server.workers"),
			ReadHeaderTimeout: v.GetDuration("server.read_header_timeout"),
			ShutdownTimeout:   v.GetDuration("server.shutdown_timeout"),
			TrustedProxies:    v.GetStringSlice("server.trusted_proxies"),
		},
		Download: Download{
			Dir:          v.GetString("download.dir"),
			Timeout:      v.GetDuration("download.timeout"),
			Attempts:     v.GetInt("download.attempts"),
			AudioQuality: v.GetString("download.audio_quality"),
			MaxHeight:    v.GetInt("download.max_height"),
			YtDlpPath:    v.GetString("download.ytdlp_path"),
		},
		Cleanup: Cleanup{
			Interval:       v.GetDuration("cleanup.interval"),
			Retention:      v.GetDuration("cleanup.retention"),
			AbandonGrace:   v.GetDuration("cleanup.abandon_grace"),
			RetrievalGrace: v.GetDuration("cleanup.retrieval_grace"),
		},
		RateLimit: RateLimit{
			Requests: v.GetInt("rate_limit.requests"),
			Window:   v.GetDuration("rate_limit.window"),
		},
		Throttle: Throttle{
			RPS:   v.GetFloat64("throttle.rps"),
			Burst: v.GetInt("throttle.burst"),
		},
		Storage: Storage{
			Backend: v.GetString("storage.backend"),
			MinIO: MinIO{
				URL:             v.GetString("storage.minio.url"),
				AccessID:        v.GetString("storage.minio.access_id"),
				SecretAccessKey: v.GetString("storage.minio.secret_access_key"),
				Bucket:          v.GetString("storage.minio.bucket"),
				Prefix:          v.GetString("storage.minio.prefix"),
				Secure:          v.GetBool("storage.minio.secure"),
			},
		},
		Queue: &RabbitMQ{
			Enabled:      v.GetBool("rabbitmq.enabled"),
			Host:         v.GetString("rabbitmq.host"),
			Port:         v.GetInt("rabbitmq.port"),
			User:         v.GetString("rabbitmq.user"),
			Pass:         v.GetString("rabbitmq.pass"),
			ExchangeName: v.GetString("rabbitmq.exchange_name"),
			Kind:         v.GetString("rabbitmq.kind"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.HttpPort == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download.timeout must be positive"))
	}
	if c.Cleanup.Interval <= 0 || c.Cleanup.Retention <= 0 {
		errs = append(errs, errors.New("cleanup.interval and cleanup.retention must be positive"))
	}
	if c.Cleanup.AbandonGrace < 0 || c.Cleanup.RetrievalGrace < 0 {
		errs = append(errs, errors.New("cleanup.abandon_grace and cleanup.retrieval_grace must not be negative"))
	}
	if c.RateLimit.Requests < 1 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.requests and rate_limit.window must be positive"))
	}
	switch constant.StorageBackend(c.Storage.Backend) {
	case constant.StorageBackendLocal:
	case constant.StorageBackendMinIO:
		if c.Storage.MinIO.URL == "" || c.Storage.MinIO.Bucket == "" {
			errs = append(errs, errors.New("storage.minio.url and storage.minio.bucket are required for the minio backend"))
		}
	default:
		errs = append(errs, errors.New("storage.backend must be local or minio"))
	}
	return errors.Join(errs...)
}
