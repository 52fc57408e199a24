package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectAttempts int
}

type AuthConfig struct {
	AccessSecret string
}

type BillingConfig struct {
	InvoicePrefix         string
	InvoiceNumberAttempts int
	DefaultHourlyRate     decimal.Decimal
	DefaultGraceMinutes   int
}

type InvitationConfig struct {
	TTL          time.Duration
	CodeLength   int
	CodeAttempts int
}

type NotifyConfig struct {
	AMQPURL         string
	Exchange        string
	EmailRoutingKey string
	DocumentBaseURL string
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Billing     BillingConfig
	Invitation  InvitationConfig
	Notify      NotifyConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	rate := decimal.Zero
	if raw := strings.TrimSpace(v.GetString("BILLING_DEFAULT_HOURLY_RATE")); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("BILLING_DEFAULT_HOURLY_RATE: %w", err)
		}
		rate = parsed
	}

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			Driver:          strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_DRIVER"))),
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnectAttempts: v.GetInt("DB_CONNECT_ATTEMPTS"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Billing: BillingConfig{
			InvoicePrefix:         strings.ToUpper(strings.TrimSpace(v.GetString("BILLING_INVOICE_PREFIX"))),
			InvoiceNumberAttempts: v.GetInt("BILLING_INVOICE_NUMBER_ATTEMPTS"),
			DefaultHourlyRate:     rate,
			DefaultGraceMinutes:   v.GetInt("BILLING_DEFAULT_GRACE_MINUTES"),
		},
		Invitation: InvitationConfig{
			TTL:          v.GetDuration("INVITATION_TTL"),
			CodeLength:   v.GetInt("INVITATION_CODE_LENGTH"),
			CodeAttempts: v.GetInt("INVITATION_CODE_ATTEMPTS"),
		},
		Notify: NotifyConfig{
			AMQPURL:         strings.TrimSpace(v.GetString("AMQP_URL")),
			Exchange:        v.GetString("NOTIFY_EXCHANGE"),
			EmailRoutingKey: v.GetString("NOTIFY_EMAIL_ROUTING_KEY"),
			DocumentBaseURL: strings.TrimRight(v.GetString("DOCUMENT_BASE_URL"), "/"),
		},
	}

	if !v.IsSet("BILLING_DEFAULT_GRACE_MINUTES") {
		cfg.Billing.DefaultGraceMinutes = 120
	}
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = StorageDriverPostgres
	}
	if cfg.DB.ConnectAttempts <= 0 {
		cfg.DB.ConnectAttempts = 5
	}
	if cfg.Billing.InvoicePrefix == "" {
		cfg.Billing.InvoicePrefix = "INV"
	}
	if cfg.Billing.InvoiceNumberAttempts <= 0 {
		cfg.Billing.InvoiceNumberAttempts = 5
	}
	if !cfg.Billing.DefaultHourlyRate.IsPositive() {
		cfg.Billing.DefaultHourlyRate = decimal.NewFromInt(75)
	}
	if cfg.Invitation.TTL <= 0 {
		cfg.Invitation.TTL = 7 * 24 * time.Hour
	}
	if cfg.Invitation.CodeLength <= 0 {
		cfg.Invitation.CodeLength = 8
	}
	if cfg.Invitation.CodeAttempts <= 0 {
		cfg.Invitation.CodeAttempts = 5
	}
	if cfg.Notify.Exchange == "" {
		cfg.Notify.Exchange = "notifications"
	}
	if cfg.Notify.EmailRoutingKey == "" {
		cfg.Notify.EmailRoutingKey = "email.send"
	}
	if cfg.Notify.DocumentBaseURL == "" {
		cfg.Notify.DocumentBaseURL = fmt.Sprintf("http://localhost:%d/api/v1", cfg.HTTP.Port)
	}
}

func validate(cfg *Config) error {
	switch cfg.DB.Driver {
	case StorageDriverPostgres:
		if cfg.DB.DSN == "" {
			return fmt.Errorf("DB_DSN is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.DB.Driver)
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Billing.DefaultGraceMinutes < 0 {
		return fmt.Errorf("BILLING_DEFAULT_GRACE_MINUTES must not be negative")
	}
	if cfg.Invitation.CodeLength < 6 {
		return fmt.Errorf("INVITATION_CODE_LENGTH must be at least 6")
	}
	return nil
}
