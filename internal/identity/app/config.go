package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	httpapi "github.com/aussiebroadwan/streamtab/internal/identity/http"
	"github.com/aussiebroadwan/streamtab/pkg/httpx"
	"github.com/aussiebroadwan/streamtab/pkg/jwtx"
)

// Config is read from the YAML file named by CONFIG_PATH, when set, and
// then from the environment. Environment values win.
type Config struct {
	Env       string `yaml:"env" env:"ENV" env-default:"dev" env-description:"dev, test or prod"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"json"`

	HTTP         HTTPConfig      `yaml:"http"`
	Database     DatabaseConfig  `yaml:"database"`
	Tokens       TokenConfig     `yaml:"tokens"`
	Media        MediaConfig     `yaml:"media"`
	Redis        RedisConfig     `yaml:"redis"`
	AMQP         AMQPConfig      `yaml:"amqp"`
	WatchHistory HistoryConfig   `yaml:"watch_history"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`

	PepperFile           string        `yaml:"pepper_file" env:"PEPPER_FILE" env-default:"pepper"`
	HousekeepingInterval time.Duration `yaml:"housekeeping_interval" env:"HOUSEKEEPING_INTERVAL" env-default:"1h"`
}

type HTTPConfig struct {
	Port                int           `yaml:"port" env:"PORT" env-default:"8080"`
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period" env:"SHUTDOWN_GRACE_PERIOD" env-default:"10s"`
	RequestTimeout      time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT" env-default:"30s"`
	CORSOrigins         []string      `yaml:"cors_origin" env:"CORS_ORIGIN" env-separator:","`
	UploadDir           string        `yaml:"upload_dir" env:"UPLOAD_DIR" env-default:"./public/temp"`
	MaxBodyBytes        int64         `yaml:"max_body_bytes" env:"MAX_BODY_BYTES" env-default:"10485760"`
	MetricsEnabled      bool          `yaml:"metrics_enabled" env:"METRICS_ENABLED" env-default:"true"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DATABASE_DRIVER" env-default:"sqlite" env-description:"sqlite or postgres"`
	DSN    string `yaml:"dsn" env:"DATABASE_DSN" env-default:"identity.db"`
}

type TokenConfig struct {
	Issuer        string        `yaml:"issuer" env:"TOKEN_ISSUER" env-default:"streamtab-identity"`
	Algorithm     string        `yaml:"algorithm" env:"TOKEN_ALGORITHM" env-default:"EdDSA" env-description:"EdDSA or HS256"`
	NumKeys       int           `yaml:"num_keys" env:"TOKEN_NUM_KEYS" env-default:"2"`
	AccessSecret  string        `yaml:"access_secret" env:"ACCESS_TOKEN_SECRET"`
	RefreshSecret string        `yaml:"refresh_secret" env:"REFRESH_TOKEN_SECRET"`
	AccessTTL     time.Duration `yaml:"access_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" env:"REFRESH_TOKEN_TTL" env-default:"240h"`
}

type MediaConfig struct {
	Backend string `yaml:"backend" env:"MEDIA_BACKEND" env-default:"disk" env-description:"disk or s3"`

	DiskDir       string `yaml:"disk_dir" env:"MEDIA_DISK_DIR" env-default:"./public/media"`
	DiskPath      string `yaml:"disk_path" env:"MEDIA_DISK_PATH" env-default:"/media"`
	PublicBaseURL string `yaml:"public_base_url" env:"MEDIA_PUBLIC_BASE_URL" env-default:"http://localhost:8080/media"`

	S3Bucket    string `yaml:"s3_bucket" env:"S3_BUCKET"`
	S3Region    string `yaml:"s3_region" env:"S3_REGION" env-default:"us-east-1"`
	S3Endpoint  string `yaml:"s3_endpoint" env:"S3_ENDPOINT"`
	S3AccessKey string `yaml:"s3_access_key" env:"S3_ACCESS_KEY"`
	S3SecretKey string `yaml:"s3_secret_key" env:"S3_SECRET_KEY"`
	S3Prefix    string `yaml:"s3_prefix" env:"S3_PREFIX"`
}

// RedisConfig enables the channel stats cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Username string        `yaml:"username" env:"REDIS_USERNAME"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	TTL      time.Duration `yaml:"ttl" env:"REDIS_STATS_TTL" env-default:"30s"`
}

// AMQPConfig enables account event publishing when URL is set.
type AMQPConfig struct {
	URL        string        `yaml:"url" env:"AMQP_URL"`
	Exchange   string        `yaml:"exchange" env:"AMQP_EXCHANGE" env-default:"identity.events"`
	Retries    int           `yaml:"retries" env:"AMQP_RETRIES" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env:"AMQP_RETRY_DELAY" env-default:"2s"`
}

type HistoryConfig struct {
	Dedup bool `yaml:"dedup" env:"WATCH_HISTORY_DEDUP" env-default:"false"`
	Max   int  `yaml:"max" env:"WATCH_HISTORY_MAX" env-default:"0"`
}

// RateLimitConfig sizes the strict, moderate and lenient route profiles.
// Every profile shares one window.
type RateLimitConfig struct {
	Window           time.Duration `yaml:"window" env:"RATELIMIT_WINDOW" env-default:"1m"`
	StrictRequests   int           `yaml:"strict_requests" env:"RATELIMIT_STRICT_REQUESTS" env-default:"5"`
	StrictBurst      int           `yaml:"strict_burst" env:"RATELIMIT_STRICT_BURST" env-default:"5"`
	ModerateRequests int           `yaml:"moderate_requests" env:"RATELIMIT_MODERATE_REQUESTS" env-default:"30"`
	ModerateBurst    int           `yaml:"moderate_burst" env:"RATELIMIT_MODERATE_BURST" env-default:"30"`
	LenientRequests  int           `yaml:"lenient_requests" env:"RATELIMIT_LENIENT_REQUESTS" env-default:"300"`
	LenientBurst     int           `yaml:"lenient_burst" env:"RATELIMIT_LENIENT_BURST" env-default:"300"`
}

func (c RateLimitConfig) limits() httpapi.RateLimits {
	profile := func(requests, burst int) httpx.RateLimitConfig {
		if requests <= 0 {
			return httpx.RateLimitConfig{}
		}
		return httpx.RateLimitConfig{RequestsPerWindow: requests, Window: c.Window, Burst: max(burst, 1)}
	}
	return httpapi.RateLimits{
		Strict:   profile(c.StrictRequests, c.StrictBurst),
		Moderate: profile(c.ModerateRequests, c.ModerateBurst),
		Lenient:  profile(c.LenientRequests, c.LenientBurst),
	}
}

// LoadConfig reads the configuration and validates it.
func LoadConfig() (Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("cannot read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("cannot read config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER %q is not one of sqlite, postgres", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required"))
	}

	switch c.Tokens.Algorithm {
	case jwtx.AlgorithmEdDSA:
	case jwtx.AlgorithmHS256:
		if c.Tokens.AccessSecret == "" || c.Tokens.RefreshSecret == "" {
			errs = append(errs, errors.New("HS256 needs ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET"))
		} else if c.Tokens.AccessSecret == c.Tokens.RefreshSecret {
			errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
		}
	default:
		errs = append(errs, fmt.Errorf("TOKEN_ALGORITHM %q is not one of EdDSA, HS256", c.Tokens.Algorithm))
	}
	if c.Tokens.Issuer == "" {
		errs = append(errs, errors.New("TOKEN_ISSUER is required"))
	}
	if c.Tokens.AccessTTL <= 0 || c.Tokens.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	} else if c.Tokens.AccessTTL >= c.Tokens.RefreshTTL {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL"))
	}

	switch c.Media.Backend {
	case "disk":
		if c.Media.DiskDir == "" {
			errs = append(errs, errors.New("MEDIA_DISK_DIR is required for the disk backend"))
		}
	case "s3":
		if c.Media.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("MEDIA_BACKEND %q is not one of disk, s3", c.Media.Backend))
	}

	if c.WatchHistory.Max < 0 {
		errs = append(errs, errors.New("WATCH_HISTORY_MAX must not be negative"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATELIMIT_WINDOW must be positive"))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.HTTP.Port))
	}

	return errors.Join(errs...)
}

// Hardened reports whether the production cookie and error policy apply.
func (c Config) Hardened() bool { return strings.EqualFold(c.Env, "prod") }
