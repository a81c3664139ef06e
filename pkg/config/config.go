package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "BUKARI_DB_DSN"
	EnvDBHost = "BUKARI_DB_HOST"
	EnvDBUser = "BUKARI_DB_USER"
	EnvDBName = "BUKARI_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Payments     PaymentsConfig
	Reservations ReservationsConfig
	Scanner      ScannerConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payments.validate(cfg.App); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BUKARI_APP_ENV" required:"true"`
	Port         string `envconfig:"BUKARI_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BUKARI_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BUKARI_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BUKARI_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BUKARI_DB_DSN"`
	Driver string `envconfig:"BUKARI_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BUKARI_DB_HOST"`
	LegacyPort     int    `envconfig:"BUKARI_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BUKARI_DB_USER"`
	LegacyPassword string `envconfig:"BUKARI_DB_PASSWORD"`
	LegacyName     string `envconfig:"BUKARI_DB_NAME"`
	LegacySSLMode  string `envconfig:"BUKARI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BUKARI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BUKARI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BUKARI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BUKARI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BUKARI_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BUKARI_REDIS_ADDR"`
	Password     string        `envconfig:"BUKARI_REDIS_PASSWORD"`
	DB           int           `envconfig:"BUKARI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BUKARI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BUKARI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BUKARI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BUKARI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BUKARI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BUKARI_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BUKARI_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BUKARI_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BUKARI_AUTO_MIGRATE" default:"false"`
}

// PaymentsConfig carries the provider API keys and webhook signing secrets.
// It is constructed once at process start and handed to components by
// reference; nothing mutates it afterwards.
type PaymentsConfig struct {
	PaystackSecret        string `envconfig:"BUKARI_PAYSTACK_SECRET"`
	PaystackWebhookSecret string `envconfig:"BUKARI_PAYSTACK_WEBHOOK_SECRET"`
	StripeSecret          string `envconfig:"BUKARI_STRIPE_SECRET"`
	StripeWebhookSecret   string `envconfig:"BUKARI_STRIPE_WEBHOOK_SECRET"`

	CallbackURL        string        `envconfig:"BUKARI_PAYMENTS_CALLBACK_URL" default:"http://localhost:3000/payments/callback"`
	ProviderTimeout    time.Duration `envconfig:"BUKARI_PAYMENTS_PROVIDER_TIMEOUT" default:"15s"`
	WebhookGuardTTL    time.Duration `envconfig:"BUKARI_PAYMENTS_WEBHOOK_GUARD_TTL" default:"72h"`
	PaystackBaseURL    string        `envconfig:"BUKARI_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	StripeBaseURL      string        `envconfig:"BUKARI_STRIPE_BASE_URL" default:"https://api.stripe.com"`
	AllowUnsignedInDev bool          `envconfig:"BUKARI_PAYMENTS_ALLOW_UNSIGNED_DEV" default:"true"`
}

// validate rejects configurations that would let unsigned webhooks or mock
// checkout sessions into a production deployment.
func (p PaymentsConfig) validate(app AppConfig) error {
	if !app.IsProd() {
		return nil
	}
	missing := []string{}
	if p.PaystackSecret == "" {
		missing = append(missing, "BUKARI_PAYSTACK_SECRET")
	}
	if p.PaystackWebhookSecret == "" {
		missing = append(missing, "BUKARI_PAYSTACK_WEBHOOK_SECRET")
	}
	if p.StripeSecret == "" {
		missing = append(missing, "BUKARI_STRIPE_SECRET")
	}
	if p.StripeWebhookSecret == "" {
		missing = append(missing, "BUKARI_STRIPE_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("production requires %s", strings.Join(missing, ", "))
	}
	return nil
}

// ScannerConfig throttles the gate-side endpoints, which sit behind an
// access code rather than a user token.
type ScannerConfig struct {
	RateLimitWindow time.Duration `envconfig:"BUKARI_SCANNER_RATE_WINDOW" default:"1m"`
	RateLimitPerIP  int           `envconfig:"BUKARI_SCANNER_RATE_PER_IP" default:"120"`
}

// ReservationsConfig controls the pending-ticket reclaim sweep.
type ReservationsConfig struct {
	PendingTTL    time.Duration `envconfig:"BUKARI_RESERVATIONS_PENDING_TTL" default:"30m"`
	SweepInterval time.Duration `envconfig:"BUKARI_RESERVATIONS_SWEEP_INTERVAL" default:"5m"`
	SweepBatch    int           `envconfig:"BUKARI_RESERVATIONS_SWEEP_BATCH" default:"200"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
