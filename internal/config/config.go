package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type ServerConfig struct {
	Port          int    `yaml:"port"`
	PublicBaseURL string `yaml:"public_base_url"`
	StaticDir     string `yaml:"static_dir"`
}

type SessionConfig struct {
	Secret       string        `yaml:"secret"`
	Issuer       string        `yaml:"issuer"`
	TTL          time.Duration `yaml:"ttl"`
	CookieName   string        `yaml:"cookie_name"`
	CookieDomain string        `yaml:"cookie_domain"`
	Secure       bool          `yaml:"secure"`
	SameSite     string        `yaml:"same_site"`
	CSRF         bool          `yaml:"csrf"`
}

type OTPConfig struct {
	TTL    time.Duration `yaml:"ttl"`
	Length int           `yaml:"length"`
	Store  string        `yaml:"store"` // postgres | redis
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type EmailConfig struct {
	SMTPHost     string        `yaml:"smtp_host"`
	SMTPPort     int           `yaml:"smtp_port"`
	SMTPUser     string        `yaml:"smtp_user"`
	SMTPPassword string        `yaml:"smtp_password"`
	FromEmail    string        `yaml:"from_email"`
	PortalURL    string        `yaml:"portal_url"`
	QueueSize    int           `yaml:"queue_size"`
	Workers      int           `yaml:"workers"`
	MaxRetries   uint64        `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	PublicURL    string `yaml:"public_url"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

type UploadsConfig struct {
	Driver    string   `yaml:"driver"` // local | s3
	RootDir   string   `yaml:"root_dir"`
	URLPrefix string   `yaml:"url_prefix"`
	S3        S3Config `yaml:"s3"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedSuffix  string   `yaml:"allowed_suffix"`
}

type Config struct {
	Server   ServerConfig `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Session SessionConfig `yaml:"session"`
	OTP     OTPConfig     `yaml:"otp"`
	Redis   RedisConfig   `yaml:"redis"`
	Email   EmailConfig   `yaml:"email"`
	Uploads UploadsConfig `yaml:"uploads"`
	Log     LogConfig     `yaml:"log"`
	CORS    CORSConfig    `yaml:"cors"`
}

// Load reads the YAML file at path, then applies .env and PORTAL_* overrides.
// A missing file is not an error: defaults plus environment are enough to boot.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := Default()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// .env is optional
	_ = godotenv.Load()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8000
	cfg.Server.StaticDir = "static"
	cfg.Session.Issuer = "portal"
	cfg.Session.TTL = 24 * time.Hour
	cfg.Session.CookieName = "access_token_cookie"
	cfg.Session.Secure = true
	cfg.Session.SameSite = "none"
	cfg.OTP.TTL = 10 * time.Minute
	cfg.OTP.Length = 6
	cfg.OTP.Store = "postgres"
	cfg.Redis.Addr = "127.0.0.1:6379"
	cfg.Email.SMTPPort = 587
	cfg.Email.QueueSize = 256
	cfg.Email.Workers = 2
	cfg.Email.MaxRetries = 3
	cfg.Email.RetryBackoff = time.Second
	cfg.Uploads.Driver = "local"
	cfg.Uploads.RootDir = "static/uploads"
	cfg.Uploads.URLPrefix = "/static/uploads"
	cfg.Log.Level = "info"
	return cfg
}

func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString("PORTAL_DATABASE_URL", &cfg.Database.DSN)
	setString("PORTAL_JWT_SECRET", &cfg.Session.Secret)
	setString("PORTAL_COOKIE_DOMAIN", &cfg.Session.CookieDomain)
	setString("PORTAL_SMTP_HOST", &cfg.Email.SMTPHost)
	setString("PORTAL_SMTP_USER", &cfg.Email.SMTPUser)
	setString("PORTAL_SMTP_PASSWORD", &cfg.Email.SMTPPassword)
	setString("PORTAL_FROM_EMAIL", &cfg.Email.FromEmail)
	setString("PORTAL_REDIS_ADDR", &cfg.Redis.Addr)
	setString("PORTAL_REDIS_PASSWORD", &cfg.Redis.Password)
	setString("PORTAL_S3_ACCESS_KEY", &cfg.Uploads.S3.AccessKey)
	setString("PORTAL_S3_SECRET_KEY", &cfg.Uploads.S3.SecretKey)
	setString("PORTAL_LOG_LEVEL", &cfg.Log.Level)

	if v, ok := os.LookupEnv("PORT"); ok {
		if port, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Server.Port = port
		}
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Session.Secret) == "" {
		return errors.New("config: session.secret is required")
	}
	if c.Session.TTL <= 0 {
		return errors.New("config: session.ttl must be positive")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("config: otp.ttl must be positive")
	}
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return fmt.Errorf("config: otp.length must be between 4 and 10, got %d", c.OTP.Length)
	}
	switch c.OTP.Store {
	case "postgres", "redis":
	default:
		return fmt.Errorf("config: unknown otp.store %q", c.OTP.Store)
	}
	switch c.Uploads.Driver {
	case "local", "s3":
	default:
		return fmt.Errorf("config: unknown uploads.driver %q", c.Uploads.Driver)
	}
	return nil
}
