package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env                 string
	Port                string
	AllowedOrigin       string
	DatabaseURL         string
	RunMigrations       bool
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	AuthSecret          string
	AccessTokenTTLHours int
	BcryptCost          int
	OTPTTLMinutes       int
	Timezone            string
	LogLevel            string
	LogFormat           string
	LogFile             string
	SMTPHost            string
	SMTPPort            int
	SMTPUsername        string
	SMTPPassword        string
	SMTPFrom            string
	SheetsPath          string
	WhatsAppAPIURL      string
	WhatsAppToken       string
	AdminWhatsAppNumber string
	NotifyWorkers       int
}

// Load reads configuration from the environment. Secrets never get defaults;
// validation of their strength happens at startup.
func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app_env", "development")
	v.SetDefault("port", "8080")
	v.SetDefault("allowed_origin", "http://127.0.0.1:3000")
	v.SetDefault("run_migrations", true)
	v.SetDefault("redis_db", 0)
	v.SetDefault("access_token_ttl_hours", 168)
	v.SetDefault("bcrypt_cost", 12)
	v.SetDefault("otp_ttl_minutes", 10)
	v.SetDefault("timezone", "Asia/Kolkata")
	v.SetDefault("log_level", "info")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("notify_workers", 4)

	cfg := Config{
		Env:                 strings.ToLower(strings.TrimSpace(v.GetString("app_env"))),
		Port:                v.GetString("port"),
		AllowedOrigin:       v.GetString("allowed_origin"),
		DatabaseURL:         v.GetString("database_url"),
		RunMigrations:       v.GetBool("run_migrations"),
		RedisAddr:           v.GetString("redis_addr"),
		RedisPassword:       v.GetString("redis_password"),
		RedisDB:             v.GetInt("redis_db"),
		AuthSecret:          strings.TrimSpace(v.GetString("auth_secret")),
		AccessTokenTTLHours: positive(v.GetInt("access_token_ttl_hours"), 168),
		BcryptCost:          positive(v.GetInt("bcrypt_cost"), 12),
		OTPTTLMinutes:       positive(v.GetInt("otp_ttl_minutes"), 10),
		Timezone:            v.GetString("timezone"),
		LogLevel:            v.GetString("log_level"),
		LogFormat:           v.GetString("log_format"),
		LogFile:             v.GetString("log_file"),
		SMTPHost:            v.GetString("smtp_host"),
		SMTPPort:            positive(v.GetInt("smtp_port"), 587),
		SMTPUsername:        v.GetString("smtp_username"),
		SMTPPassword:        v.GetString("smtp_password"),
		SMTPFrom:            v.GetString("smtp_from"),
		SheetsPath:          v.GetString("sheets_path"),
		WhatsAppAPIURL:      v.GetString("whatsapp_api_url"),
		WhatsAppToken:       strings.TrimSpace(v.GetString("whatsapp_token")),
		AdminWhatsAppNumber: v.GetString("admin_whatsapp_number"),
		NotifyWorkers:       positive(v.GetInt("notify_workers"), 4),
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
		if cfg.IsProduction() {
			cfg.LogFormat = "json"
		}
	}
	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLHours) * time.Hour
}

func (c Config) OTPTTL() time.Duration {
	return time.Duration(c.OTPTTLMinutes) * time.Minute
}

// Location resolves the reporting timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || c.Timezone == "" {
		return time.UTC
	}
	return loc
}

func positive(value int, fallback int) int {
	if value < 1 {
		return fallback
	}
	return value
}
