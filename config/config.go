package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Env  string
	Port string

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string

	JWTSecret string

	StripeSecretKey string
	StripeAPIBase   string
	FrontendURL     string
	GatewayTimeout  time.Duration

	// PaymentVerification is "client" (trust the redirect flag) or
	// "gateway" (ask the provider).
	PaymentVerification string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string

	NotifyTransport string
	NotifyWorkers   int
	NotifyQueueSize int

	UploadDir     string
	PublicBaseURL string
	VoucherSecret string

	AllowedOrigins     []string
	RateLimitPerMinute int
	RateLimitBurst     int

	LogLevel  string
	LogFormat string
}

// Load reads .env if present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found; using system environment")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(k, def string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Env:                 get("APP_ENV", "dev"),
		Port:                get("PORT", ":8080"),
		MongoURI:            get("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:             get("MONGO_DB", "travel"),
		RedisAddr:           get("REDIS_ADDR", ""),
		RedisPassword:       getenv("REDIS_PASSWORD"),
		JWTSecret:           get("JWT_SECRET", ""),
		StripeSecretKey:     get("STRIPE_SECRET_KEY", ""),
		StripeAPIBase:       get("STRIPE_API_BASE", "https://api.stripe.com"),
		FrontendURL:         strings.TrimRight(get("FRONTEND_URL", "http://localhost:5174"), "/"),
		PaymentVerification: strings.ToLower(get("PAYMENT_VERIFICATION", "client")),
		SMTPHost:            get("SMTP_HOST", ""),
		SMTPUser:            get("SMTP_USER", ""),
		SMTPPass:            getenv("SMTP_PASS"),
		NotifyTransport:     strings.ToLower(get("NOTIFY_TRANSPORT", "inproc")),
		UploadDir:           get("UPLOAD_DIR", "uploads"),
		PublicBaseURL:       strings.TrimRight(get("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		VoucherSecret:       get("VOUCHER_SECRET", ""),
		LogLevel:            get("LOG_LEVEL", "info"),
		LogFormat:           strings.ToLower(get("LOG_FORMAT", "text")),
	}
	cfg.MailFrom = get("MAIL_FROM", cfg.SMTPUser)
	if cfg.Port[0] != ':' {
		cfg.Port = ":" + cfg.Port
	}

	var err error
	if cfg.GatewayTimeout, err = time.ParseDuration(get("GATEWAY_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("GATEWAY_TIMEOUT: %w", err)
	}
	if cfg.SMTPPort, err = strconv.Atoi(get("SMTP_PORT", "587")); err != nil {
		return nil, fmt.Errorf("SMTP_PORT: %w", err)
	}
	if cfg.NotifyWorkers, err = strconv.Atoi(get("NOTIFY_WORKERS", "2")); err != nil {
		return nil, fmt.Errorf("NOTIFY_WORKERS: %w", err)
	}
	if cfg.NotifyQueueSize, err = strconv.Atoi(get("NOTIFY_QUEUE_SIZE", "256")); err != nil {
		return nil, fmt.Errorf("NOTIFY_QUEUE_SIZE: %w", err)
	}
	if cfg.RateLimitPerMinute, err = strconv.Atoi(get("RATE_LIMIT_PER_MINUTE", "60")); err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE: %w", err)
	}
	if cfg.RateLimitBurst, err = strconv.Atoi(get("RATE_LIMIT_BURST", "10")); err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_BURST: %w", err)
	}

	for _, o := range strings.Split(get("ALLOWED_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	if cfg.NotifyTransport != "inproc" && cfg.NotifyTransport != "redis" {
		return nil, fmt.Errorf("NOTIFY_TRANSPORT: unknown transport %q", cfg.NotifyTransport)
	}
	if cfg.PaymentVerification != "client" && cfg.PaymentVerification != "gateway" {
		return nil, fmt.Errorf("PAYMENT_VERIFICATION: unknown mode %q", cfg.PaymentVerification)
	}
	if cfg.PaymentVerification == "gateway" && cfg.StripeSecretKey == "" {
		return nil, errors.New("PAYMENT_VERIFICATION=gateway requires STRIPE_SECRET_KEY")
	}
	if cfg.NotifyTransport == "redis" && cfg.RedisAddr == "" {
		return nil, errors.New("NOTIFY_TRANSPORT=redis requires REDIS_ADDR")
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDev() {
			return nil, errors.New("JWT_SECRET is required")
		}
		cfg.JWTSecret = "local_dev_secret"
	}
	if cfg.VoucherSecret == "" {
		cfg.VoucherSecret = cfg.JWTSecret
	}
	return cfg, nil
}

func (c *Config) IsDev() bool { return c.Env == "dev" }

// Logger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithField("level", c.LogLevel).Warn("unknown LOG_LEVEL, using info")
	}
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
