package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "MARON"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "MARON_DB_DSN"
	EnvDBHost = "MARON_DB_HOST"
	EnvDBUser = "MARON_DB_USER"
	EnvDBName = "MARON_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Token      TokenConfig
	Provenance ProvenanceConfig
	OCR        OCRConfig
	Oracle     OracleConfig
	Payout     PayoutConfig
	Chain      ChainConfig
	Exif       ExifConfig
	Settlement SettlementConfig
	GCP        GCPConfig
	PubSub     PubSubConfig
	Outbox     OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Token.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MARON_APP_ENV" required:"true"`
	Port         string `envconfig:"MARON_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MARON_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MARON_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"MARON_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MARON_DB_DSN"`
	Driver string `envconfig:"MARON_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MARON_DB_HOST"`
	LegacyPort     int    `envconfig:"MARON_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MARON_DB_USER"`
	LegacyPassword string `envconfig:"MARON_DB_PASSWORD"`
	LegacyName     string `envconfig:"MARON_DB_NAME"`
	LegacySSLMode  string `envconfig:"MARON_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARON_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARON_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARON_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARON_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MARON_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MARON_REDIS_ADDR"`
	Password     string        `envconfig:"MARON_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARON_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARON_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARON_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARON_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARON_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARON_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MARON_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MARON_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MARON_JWT_EXPIRATION_MINUTES" default:"60"`
}

// TokenConfig holds the single authoritative MARON/KRW conversion rate.
// Call sites convert through pkg/money; the rate lives nowhere else.
type TokenConfig struct {
	KRWRate string `envconfig:"MARON_TOKEN_KRW_RATE" default:"100"`
}

func (t TokenConfig) validate() error {
	rate, err := decimal.NewFromString(t.KRWRate)
	if err != nil {
		return fmt.Errorf("invalid token KRW rate %q: %w", t.KRWRate, err)
	}
	if rate.Sign() <= 0 {
		return fmt.Errorf("token KRW rate must be positive, got %s", rate)
	}
	return nil
}

// Rate returns the parsed conversion rate. validate guarantees it parses.
func (t TokenConfig) Rate() decimal.Decimal {
	rate, _ := decimal.NewFromString(t.KRWRate)
	return rate
}

type ProvenanceConfig struct {
	MaxDistanceMeters float64       `envconfig:"MARON_PHOTO_MAX_DISTANCE_METERS" default:"1000"`
	MaxAge            time.Duration `envconfig:"MARON_PHOTO_MAX_AGE" default:"72h"`
}

type OCRConfig struct {
	BaseURL  string        `envconfig:"MARON_OCR_BASE_URL"`
	APIKey   string        `envconfig:"MARON_OCR_API_KEY"`
	Timeout  time.Duration `envconfig:"MARON_OCR_TIMEOUT" default:"30s"`
	Language string        `envconfig:"MARON_OCR_LANGUAGE" default:"ko"`
}

type OracleConfig struct {
	BaseURL string        `envconfig:"MARON_ORACLE_BASE_URL"`
	APIKey  string        `envconfig:"MARON_ORACLE_API_KEY"`
	Timeout time.Duration `envconfig:"MARON_ORACLE_TIMEOUT" default:"45s"`
	Model   string        `envconfig:"MARON_ORACLE_MODEL" default:"gpt-4o-mini"`
}

type PayoutConfig struct {
	BaseURL string        `envconfig:"MARON_PAYOUT_BASE_URL"`
	APIKey  string        `envconfig:"MARON_PAYOUT_API_KEY"`
	Timeout time.Duration `envconfig:"MARON_PAYOUT_TIMEOUT" default:"20s"`
}

type ChainConfig struct {
	BaseURL      string        `envconfig:"MARON_CHAIN_BASE_URL"`
	APIKey       string        `envconfig:"MARON_CHAIN_API_KEY"`
	Timeout      time.Duration `envconfig:"MARON_CHAIN_TIMEOUT" default:"30s"`
	VaultAddress string        `envconfig:"MARON_CHAIN_VAULT_ADDRESS"`
}

type ExifConfig struct {
	BaseURL string        `envconfig:"MARON_EXIF_BASE_URL"`
	Timeout time.Duration `envconfig:"MARON_EXIF_TIMEOUT" default:"10s"`
}

type SettlementConfig struct {
	LockTTL time.Duration `envconfig:"MARON_SETTLEMENT_LOCK_TTL" default:"2m"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"MARON_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DonationTopic        string `envconfig:"MARON_PUBSUB_DONATION_TOPIC" default:"maron-donation-events"`
	DonationSubscription string `envconfig:"MARON_PUBSUB_DONATION_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MARON_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MARON_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MARON_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
