package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// VNPayConfig holds the merchant credentials and endpoints for VNPay.
type VNPayConfig struct {
	TmnCode    string `validate:"required"`
	HashSecret string `validate:"required"`
	BaseURL    string `validate:"required,url"`
	ReturnURL  string `validate:"required,url"`
}

// MoMoConfig holds the partner credentials and endpoints for MoMo.
type MoMoConfig struct {
	PartnerCode string `validate:"required"`
	AccessKey   string `validate:"required"`
	SecretKey   string `validate:"required"`
	PayHost     string `validate:"required,url"`
	ReturnURL   string `validate:"required,url"`
	IPNURL      string `validate:"required,url"`
}

// ZaloPayConfig holds the app credentials and endpoints for ZaloPay.
type ZaloPayConfig struct {
	AppID       string `validate:"required"`
	Key1        string `validate:"required"`
	Key2        string `validate:"required"`
	PayHost     string `validate:"required,url"`
	ReturnURL   string `validate:"required,url"`
	CallbackURL string `validate:"required,url"`
}

// Config holds application configuration loaded from the environment.
// Gateway blocks are excluded from struct validation here; they are
// validated conditionally in validateGateways.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string `validate:"required"`
	RedisURL           string `validate:"required"`
	JWTSecret          string `validate:"required,min=32"`
	CORSAllowedOrigins []string
	StatusPageURL      string `validate:"required,url"`
	Currency           string
	IntentTTL          time.Duration
	CallbackRate       string
	VNPay              VNPayConfig   `validate:"-"`
	MoMo               MoMoConfig    `validate:"-"`
	ZaloPay            ZaloPayConfig `validate:"-"`
}

// Load reads configuration from environment variables and optional .env files.
// Gateway credential blocks are validated as a unit so a partially configured
// gateway fails at boot, not on the first payment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		StatusPageURL:      k.String("PAYMENT_STATUS_PAGE_URL"),
		Currency:           valueOrDefault(k.String("PAYMENT_CURRENCY"), "VND"),
		IntentTTL:          parseDuration(k.String("PAYMENT_INTENT_TTL"), "15m"),
		CallbackRate:       valueOrDefault(k.String("PAYMENT_CALLBACK_RATE"), "120-M"),
		VNPay: VNPayConfig{
			TmnCode:    k.String("VNPAY_TMN_CODE"),
			HashSecret: k.String("VNPAY_HASH_SECRET"),
			BaseURL:    k.String("VNPAY_BASE_URL"),
			ReturnURL:  k.String("VNPAY_RETURN_URL"),
		},
		MoMo: MoMoConfig{
			PartnerCode: k.String("MOMO_PARTNER_CODE"),
			AccessKey:   k.String("MOMO_ACCESS_KEY"),
			SecretKey:   k.String("MOMO_SECRET_KEY"),
			PayHost:     k.String("MOMO_PAY_HOST"),
			ReturnURL:   k.String("MOMO_RETURN_URL"),
			IPNURL:      k.String("MOMO_IPN_URL"),
		},
		ZaloPay: ZaloPayConfig{
			AppID:       k.String("ZALOPAY_APP_ID"),
			Key1:        k.String("ZALOPAY_KEY1"),
			Key2:        k.String("ZALOPAY_KEY2"),
			PayHost:     k.String("ZALOPAY_PAY_HOST"),
			ReturnURL:   k.String("ZALOPAY_RETURN_URL"),
			CallbackURL: k.String("ZALOPAY_CALLBACK_URL"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.StatusPageURL == "" {
		return nil, errors.New("PAYMENT_STATUS_PAGE_URL is required")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config invalid: %w", err)
	}
	if err := validateGateways(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateGateways requires each gateway block to be either fully configured
// or fully absent, and at least one to be present.
func validateGateways(cfg *Config) error {
	validate := validator.New()
	enabled := 0
	if cfg.VNPayEnabled() {
		if err := validate.Struct(cfg.VNPay); err != nil {
			return fmt.Errorf("vnpay config incomplete: %w", err)
		}
		enabled++
	}
	if cfg.MoMoEnabled() {
		if err := validate.Struct(cfg.MoMo); err != nil {
			return fmt.Errorf("momo config incomplete: %w", err)
		}
		enabled++
	}
	if cfg.ZaloPayEnabled() {
		if err := validate.Struct(cfg.ZaloPay); err != nil {
			return fmt.Errorf("zalopay config incomplete: %w", err)
		}
		enabled++
	}
	if enabled == 0 {
		return errors.New("no payment gateway configured")
	}
	return nil
}

// VNPayEnabled reports whether any VNPay setting is present.
func (c *Config) VNPayEnabled() bool {
	return c.VNPay.TmnCode != "" || c.VNPay.HashSecret != ""
}

// MoMoEnabled reports whether any MoMo setting is present.
func (c *Config) MoMoEnabled() bool {
	return c.MoMo.PartnerCode != "" || c.MoMo.SecretKey != ""
}

// ZaloPayEnabled reports whether any ZaloPay setting is present.
func (c *Config) ZaloPayEnabled() bool {
	return c.ZaloPay.AppID != "" || c.ZaloPay.Key1 != ""
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
