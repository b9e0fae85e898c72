// Package config provides application configuration loaded from environment
// variables. The Config struct is an immutable snapshot built once at startup;
// components receive it (or a narrow interface over it) at construction and
// never read ambient process state at call time.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides operator token verification settings.
type JWTConfig interface {
	GetJWTAccessSecret() string
	GetAccessTokenTTL() time.Duration
}

// HTTPConfig provides HTTP server settings.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides task queue settings.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// SMSConfig provides SMSC gateway settings.
type SMSConfig interface {
	GetSMSCAPIURL() string
	GetSMSCLogin() string
	GetSMSCPassword() string
	GetSMSCSender() string
}

// EmailConfig provides SMTP settings for the email channel.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// MessengerConfig provides chat platform credentials.
type MessengerConfig interface {
	GetTelegramBotToken() string
	GetVKAccessToken() string
	GetVKAPIVersion() string
	GetWhatsAppAPIURL() string
	GetWhatsAppToken() string
	GetWhatsAppPhoneNumberID() string
}

// BookingConfig provides calendar provider settings.
type BookingConfig interface {
	GetCalcomAPIURL() string
	GetCalcomAPIKey() string
	GetCalcomEventTypeID() int
}

// WebhookConfig provides inbound webhook verification settings.
type WebhookConfig interface {
	GetCalcomWebhookSecret() string
}

// TemplateConfig provides outbound message template settings.
type TemplateConfig interface {
	GetTemplatesPath() string
	GetProductName() string
}

// Config holds the full application configuration snapshot.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	JWTAccessSecret string
	AccessTokenTTL  time.Duration

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	SMSCAPIURL   string
	SMSCLogin    string
	SMSCPassword string
	SMSCSender   string

	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string

	TelegramBotToken      string
	VKAccessToken         string
	VKAPIVersion          string
	WhatsAppAPIURL        string
	WhatsAppToken         string
	WhatsAppPhoneNumberID string

	CalcomAPIURL        string
	CalcomAPIKey        string
	CalcomEventTypeID   int
	CalcomWebhookSecret string

	TemplatesPath string
	ProductName   string
}

// Load builds the configuration snapshot from the environment.
// A .env file is honored when present (development convenience).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		AccessTokenTTL:  mustDuration(getEnv("JWT_ACCESS_TTL", "15m")),

		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		SMSCAPIURL:   getEnv("SMSC_API_URL", "https://smsc.ru/sys/send.php"),
		SMSCLogin:    getEnv("SMSC_LOGIN", ""),
		SMSCPassword: getEnv("SMSC_PASSWORD", ""),
		SMSCSender:   getEnv("SMSC_SENDER", ""),

		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Fast Lead"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),

		TelegramBotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		VKAccessToken:         getEnv("VK_ACCESS_TOKEN", ""),
		VKAPIVersion:          getEnv("VK_API_VERSION", "5.199"),
		WhatsAppAPIURL:        getEnv("WHATSAPP_API_URL", "https://graph.facebook.com/v18.0"),
		WhatsAppToken:         getEnv("WHATSAPP_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),

		CalcomAPIURL:        getEnv("CALCOM_API_URL", "https://api.cal.com/v1"),
		CalcomAPIKey:        getEnv("CALCOM_API_KEY", ""),
		CalcomEventTypeID:   mustInt(getEnv("CALCOM_EVENT_TYPE_ID", "0")),
		CalcomWebhookSecret: getEnv("CALCOM_WEBHOOK_SECRET", ""),

		TemplatesPath: getEnv("MESSAGE_TEMPLATES_PATH", ""),
		ProductName:   getEnv("PRODUCT_NAME", "Fast Lead"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	return cfg, nil
}

// Database accessors
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWT accessors
func (c *Config) GetJWTAccessSecret() string       { return c.JWTAccessSecret }
func (c *Config) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }

// HTTP accessors
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// Scheduler accessors
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// SMS accessors
func (c *Config) GetSMSCAPIURL() string   { return c.SMSCAPIURL }
func (c *Config) GetSMSCLogin() string    { return c.SMSCLogin }
func (c *Config) GetSMSCPassword() string { return c.SMSCPassword }
func (c *Config) GetSMSCSender() string   { return c.SMSCSender }

// Email accessors
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// Messenger accessors
func (c *Config) GetTelegramBotToken() string      { return c.TelegramBotToken }
func (c *Config) GetVKAccessToken() string         { return c.VKAccessToken }
func (c *Config) GetVKAPIVersion() string          { return c.VKAPIVersion }
func (c *Config) GetWhatsAppAPIURL() string        { return c.WhatsAppAPIURL }
func (c *Config) GetWhatsAppToken() string         { return c.WhatsAppToken }
func (c *Config) GetWhatsAppPhoneNumberID() string { return c.WhatsAppPhoneNumberID }

// Booking accessors
func (c *Config) GetCalcomAPIURL() string      { return c.CalcomAPIURL }
func (c *Config) GetCalcomAPIKey() string      { return c.CalcomAPIKey }
func (c *Config) GetCalcomEventTypeID() int    { return c.CalcomEventTypeID }
func (c *Config) GetCalcomWebhookSecret() string { return c.CalcomWebhookSecret }

// Template accessors
func (c *Config) GetTemplatesPath() string { return c.TemplatesPath }
func (c *Config) GetProductName() string   { return c.ProductName }

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
