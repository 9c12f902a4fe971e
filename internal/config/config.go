package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/spf13/viper"
)

const envPrefix = "HADATHUB"

type AppConfig struct {
	API      *APIConfig      `mapstructure:"api"`
	Gin      *GinConfig      `mapstructure:"gin"`
	Log      *LogConfig      `mapstructure:"log"`
	Store    *StoreConfig    `mapstructure:"store"`
	Postgres *PostgresConfig `mapstructure:"postgres"`
	Engine   *EngineConfig   `mapstructure:"engine"`
	Redis    *RedisConfig    `mapstructure:"redis"`
	Payment  *PaymentConfig  `mapstructure:"payment"`
	QR       *QRConfig       `mapstructure:"qr"`
}

type APIConfig struct {
	Environment        string   `mapstructure:"environment"`
	Port               string   `mapstructure:"port"`
	BaseURL            string   `mapstructure:"base_url"`
	AllowedCORSDomains []string `mapstructure:"allowed_cors_domains"`
	JWTSigningKey      string   `mapstructure:"jwt_signing_key"`
}

type GinConfig struct {
	Mode string `mapstructure:"mode"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// StoreConfig selects the entity store: "postgres" or "memory".
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DB              string        `mapstructure:"db"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c *PostgresConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DB, sslMode)
}

// EngineConfig tunes the consistency engine.
type EngineConfig struct {
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	LockTimeout       time.Duration `mapstructure:"lock_timeout"`
	ReservationTTL    time.Duration `mapstructure:"reservation_ttl"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	SweepBatch        int           `mapstructure:"sweep_batch"`
	RefundConcurrency int           `mapstructure:"refund_concurrency"`
	ScanConcurrency   int           `mapstructure:"scan_concurrency"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// PaymentConfig selects the payment collaborator: "stripe" or "simulated".
type PaymentConfig struct {
	Provider        string `mapstructure:"provider"`
	StripeSecretKey string `mapstructure:"stripe_secret_key"`
}

type QRConfig struct {
	Secret  string `mapstructure:"secret"`
	PNGSize int    `mapstructure:"png_size"`
}

func Load(path string) (*AppConfig, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("v.ReadInConfig -> %w", err)
	}

	return decode(v)
}

// Watch reloads the file at path on every change and hands the new config to
// onChange. Invalid revisions are skipped.
func Watch(path string, onChange func(*AppConfig), onError func(error)) error {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("v.ReadInConfig -> %w", err)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		conf, err := decode(v)
		if err != nil {
			onError(err)
			return
		}
		onChange(conf)
	})
	v.WatchConfig()

	return nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var conf AppConfig
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("v.Unmarshal -> %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("conf.Validate -> %w", err)
	}

	return &conf, nil
}

func (c *AppConfig) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.API, validation.Required),
		validation.Field(&c.Store, validation.Required),
		validation.Field(&c.Engine, validation.Required),
		validation.Field(&c.Payment, validation.Required),
		validation.Field(&c.QR, validation.Required),
	)
	if err != nil {
		return err
	}

	stripeKey := []validation.Rule{}
	if c.Payment.Provider == "stripe" {
		stripeKey = append(stripeKey, validation.Required)
	}

	return validation.Errors{
		"api": validation.ValidateStruct(c.API,
			validation.Field(&c.API.Port, validation.Required),
			validation.Field(&c.API.JWTSigningKey, validation.Required, validation.Length(16, 0)),
		),
		"store": validation.ValidateStruct(c.Store,
			validation.Field(&c.Store.Driver, validation.Required, validation.In("postgres", "memory")),
		),
		"engine": validation.ValidateStruct(c.Engine,
			validation.Field(&c.Engine.RetryAttempts, validation.Required, validation.Min(1)),
			validation.Field(&c.Engine.LockTimeout, validation.Required),
			validation.Field(&c.Engine.ReservationTTL, validation.Required),
		),
		"payment": validation.ValidateStruct(c.Payment,
			validation.Field(&c.Payment.Provider, validation.Required, validation.In("stripe", "simulated")),
			validation.Field(&c.Payment.StripeSecretKey, stripeKey...),
		),
		"qr": validation.ValidateStruct(c.QR,
			validation.Field(&c.QR.Secret, validation.Required, validation.Length(16, 0)),
		),
	}.Filter()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.environment", "development")
	v.SetDefault("api.port", "8080")
	v.SetDefault("api.base_url", "localhost:8080")
	v.SetDefault("api.allowed_cors_domains", []string{"http://localhost:3000"})
	v.SetDefault("api.jwt_signing_key", "")
	v.SetDefault("gin.mode", "debug")
	v.SetDefault("log.level", "info")
	v.SetDefault("store.driver", "postgres")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.db", "hadathub")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_open_conns", 20)
	v.SetDefault("postgres.max_idle_conns", 10)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)

	v.SetDefault("engine.retry_attempts", 3)
	v.SetDefault("engine.retry_backoff", 10*time.Millisecond)
	v.SetDefault("engine.lock_timeout", 500*time.Millisecond)
	v.SetDefault("engine.reservation_ttl", 15*time.Minute)
	v.SetDefault("engine.sweep_interval", time.Minute)
	v.SetDefault("engine.sweep_batch", 200)
	v.SetDefault("engine.refund_concurrency", 4)
	v.SetDefault("engine.scan_concurrency", 8)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 5*time.Second)

	v.SetDefault("payment.provider", "simulated")
	v.SetDefault("payment.stripe_secret_key", "")
	v.SetDefault("qr.secret", "")
	v.SetDefault("qr.png_size", 256)
}
