package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	S3           S3Config           `mapstructure:"s3"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Auth         AuthConfig         `mapstructure:"auth"`
	RabbitMQ     RabbitMQConfig     `mapstructure:"rabbitmq"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Certificates CertificatesConfig `mapstructure:"certificates"`
	Curriculum   CurriculumConfig   `mapstructure:"curriculum"`
	OfferLetter  OfferLetterConfig  `mapstructure:"offer_letter"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	Environment     string        `mapstructure:"environment"` // development | production
	BaseURL         string        `mapstructure:"base_url"`    // Public origin used in certificate links
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// IsDevelopment reports whether internal error details may be exposed.
func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == "development"
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // mongo | memory
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"` // Empty disables certificate artifacts
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// AuthConfig selects how issued passwords are persisted.
type AuthConfig struct {
	PasswordStorage string `mapstructure:"password_storage"` // plain | bcrypt
}

type RabbitMQConfig struct {
	URL        string `mapstructure:"url"` // Empty disables event publishing
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
	QueueName  string `mapstructure:"queue_name"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Pretty  bool   `mapstructure:"pretty"`
	NoColor bool   `mapstructure:"no_color"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type CertificatesConfig struct {
	// AutoGenerateOnList issues pending certificates for paid, eligible
	// internships while listing them.
	AutoGenerateOnList bool `mapstructure:"auto_generate_on_list"`
}

type CurriculumConfig struct {
	Path string `mapstructure:"path"` // Empty uses the built-in table
}

type OfferLetterConfig struct {
	CompanyName    string `mapstructure:"company_name"`
	CompanyAddress string `mapstructure:"company_address"`
	CompanyEmail   string `mapstructure:"company_email"`
	CompanyPhone   string `mapstructure:"company_phone"`
	DurationDays   int    `mapstructure:"duration_days"`
	Duration       string `mapstructure:"duration"`
	Location       string `mapstructure:"location"`
	Stipend        string `mapstructure:"stipend"`
}

// ErrMissingJWTSecret is returned when no signing secret is configured.
var ErrMissingJWTSecret = errors.New("jwt.secret (JWT_SECRET) must be set")

// LoadConfig reads configuration from file or environment variables.
// Values from .env files in path are exported to the environment first.
func LoadConfig(path string) (*Config, error) {
	loadDotEnv(path)

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Nested keys map to upper snake case, e.g. jwt.secret -> JWT_SECRET
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return ErrMissingJWTSecret
	}
	switch c.Database.Driver {
	case "mongo", "memory":
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	switch c.Auth.PasswordStorage {
	case "plain", "bcrypt":
	default:
		return fmt.Errorf("unknown auth.password_storage %q", c.Auth.PasswordStorage)
	}
	if c.JWT.Expiration <= 0 {
		return errors.New("jwt.expiration must be positive")
	}
	return nil
}

func loadDotEnv(path string) {
	for _, name := range []string{".env", "config.env"} {
		file := name
		if path != "" && path != "." {
			file = strings.TrimRight(path, "/") + "/" + name
		}
		// Missing files are fine; the environment may already be populated.
		_ = godotenv.Load(file)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.base_url", "http://localhost:5000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "futureintern")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "168h")
	v.SetDefault("auth.password_storage", "plain")

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.use_ssl", true)

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "internship.events")
	v.SetDefault("rabbitmq.routing_key", "internship.notification")
	v.SetDefault("rabbitmq.queue_name", "internship_notifications")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
	v.SetDefault("logging.no_color", false)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-ID"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 300)

	// 100 requests per 15 minutes per client
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "15m")

	v.SetDefault("certificates.auto_generate_on_list", true)
	v.SetDefault("curriculum.path", "")

	v.SetDefault("offer_letter.company_name", "Future Intern")
	v.SetDefault("offer_letter.company_address", "Future Intern Platform")
	v.SetDefault("offer_letter.company_email", "contact@futureintern.com")
	v.SetDefault("offer_letter.company_phone", "+91-XXXXXXXXXX")
	v.SetDefault("offer_letter.duration_days", 90)
	v.SetDefault("offer_letter.duration", "3 Months")
	v.SetDefault("offer_letter.location", "Remote/Online")
	v.SetDefault("offer_letter.stipend", "Unpaid Internship")
}
