package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds environment-driven configuration.
type Config struct {
	Addr     string `envconfig:"ADDR" default:":8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	StoreDriver   string `envconfig:"STORE_DRIVER" default:"postgres"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	MongoURI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"storefront"`

	JWTSecret        string        `envconfig:"JWT_SECRET"`
	CORSAllowOrigins string        `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`
	RequestTimeout   time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`

	OTPSecret           string        `envconfig:"OTP_SECRET"`
	OTPTTL              time.Duration `envconfig:"OTP_TTL" default:"10m"`
	DefaultDeliverySlot string        `envconfig:"DEFAULT_DELIVERY_SLOT" default:"6–8 AM"`

	VAPIDSubject      string        `envconfig:"VAPID_SUBJECT"`
	VAPIDPublicKey    string        `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey   string        `envconfig:"VAPID_PRIVATE_KEY"`
	PushTimeout       time.Duration `envconfig:"PUSH_TIMEOUT" default:"5s"`
	PushConcurrency   int           `envconfig:"PUSH_CONCURRENCY" default:"8"`
	PushTTL           int           `envconfig:"PUSH_TTL" default:"60"`
	AdminPushAPIToken string        `envconfig:"ADMIN_PUSH_API_TOKEN"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every missing required key at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is not set"))
		}
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is not set"))
		}
	default:
		errs = append(errs, errors.New("STORE_DRIVER must be postgres or mongo"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}
	if c.OTPSecret == "" {
		errs = append(errs, errors.New("OTP_SECRET is not set"))
	}
	if c.PushConcurrency <= 0 {
		errs = append(errs, errors.New("PUSH_CONCURRENCY must be positive"))
	}
	return errors.Join(errs...)
}

// PushEnabled reports whether VAPID credentials are configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}
