package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

// Seat accounting policies.
const (
	SeatPolicyLenient = "lenient"
	SeatPolicyStrict  = "strict"
)

// Config holds all service configuration. Values come from defaults, an
// optional config.yaml and environment variables, in increasing priority.
type Config struct {
	Port            string
	LogLevel        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	// Storage selects the backends: mongo uses MongoDB, Redis, PostgreSQL
	// and MinIO; memory keeps everything in process.
	Storage string

	MongoURI string
	MongoDB  string

	RedisAddr        string
	RedisPassword    string
	IdentityCacheTTL time.Duration

	PostgresDSN string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	AuthSecret   string
	AuthIssuer   string
	AuthAudience string

	SeatPolicy string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_timeout", 15*time.Second)
	v.SetDefault("write_timeout", 15*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("cors_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("storage", StorageMongo)
	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_db", "rideshare")
	v.SetDefault("redis_addr", "redis:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("identity_cache_ttl", 10*time.Minute)
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("minio_endpoint", "minio:9000")
	v.SetDefault("minio_access_key", "")
	v.SetDefault("minio_secret_key", "")
	v.SetDefault("minio_bucket", "rideshare-avatars")
	v.SetDefault("minio_use_ssl", false)
	v.SetDefault("auth_secret", "")
	v.SetDefault("auth_issuer", "")
	v.SetDefault("auth_audience", "")
	v.SetDefault("seat_policy", SeatPolicyLenient)
}

// Load reads the configuration. A missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/rideshare/")
	v.AddConfigPath("$HOME/.rideshare")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:             v.GetString("port"),
		LogLevel:         strings.ToLower(v.GetString("log_level")),
		ReadTimeout:      v.GetDuration("read_timeout"),
		WriteTimeout:     v.GetDuration("write_timeout"),
		ShutdownTimeout:  v.GetDuration("shutdown_timeout"),
		CORSOrigins:      splitAndTrim(v.GetString("cors_origins")),
		Storage:          strings.ToLower(strings.TrimSpace(v.GetString("storage"))),
		MongoURI:         v.GetString("mongo_uri"),
		MongoDB:          v.GetString("mongo_db"),
		RedisAddr:        v.GetString("redis_addr"),
		RedisPassword:    v.GetString("redis_password"),
		IdentityCacheTTL: v.GetDuration("identity_cache_ttl"),
		PostgresDSN:      v.GetString("postgres_dsn"),
		MinioEndpoint:    v.GetString("minio_endpoint"),
		MinioAccessKey:   v.GetString("minio_access_key"),
		MinioSecretKey:   v.GetString("minio_secret_key"),
		MinioBucket:      v.GetString("minio_bucket"),
		MinioUseSSL:      v.GetBool("minio_use_ssl"),
		AuthSecret:       v.GetString("auth_secret"),
		AuthIssuer:       v.GetString("auth_issuer"),
		AuthAudience:     v.GetString("auth_audience"),
		SeatPolicy:       strings.ToLower(strings.TrimSpace(v.GetString("seat_policy"))),
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.AuthSecret == "" {
		errs = append(errs, errors.New("AUTH_SECRET is required"))
	}
	if c.SeatPolicy != SeatPolicyLenient && c.SeatPolicy != SeatPolicyStrict {
		errs = append(errs, fmt.Errorf("invalid SEAT_POLICY %q: want %s or %s", c.SeatPolicy, SeatPolicyLenient, SeatPolicyStrict))
	}
	switch c.Storage {
	case StorageMemory:
	case StorageMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required"))
		}
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid STORAGE %q: want %s or %s", c.Storage, StorageMongo, StorageMemory))
	}
	if c.IdentityCacheTTL < 0 {
		errs = append(errs, errors.New("IDENTITY_CACHE_TTL must not be negative"))
	}
	return errors.Join(errs...)
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
