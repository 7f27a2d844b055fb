package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dhima/dbclient/internal/storage"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ConfigFileEnv names the env var holding an optional YAML config file path.
const ConfigFileEnv = "DBCLIENT_CONFIG"

// Database holds connection settings for the statement client.
type Database struct {
	Driver           string        `mapstructure:"driver" validate:"oneof=mysql sqlite"`
	Host             string        `mapstructure:"host" validate:"required_if=Driver mysql"`
	Port             int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	Name             string        `mapstructure:"name" validate:"required"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout" validate:"gte=0"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout" validate:"gte=0"`
}

// App holds runtime configuration derived from env vars or a config file.
type App struct {
	Database Database `mapstructure:"database"`

	APIPort     string `mapstructure:"api_port" validate:"required,numeric"`
	Environment string `mapstructure:"environment" validate:"oneof=development production"`
	LogLevel    string `mapstructure:"log_level"`
	LogEncoding string `mapstructure:"log_encoding" validate:"oneof=json console"`

	KafkaTopic        string `mapstructure:"kafka_topic"`
	KeepaliveSchedule string `mapstructure:"keepalive_schedule" validate:"required"`

	CORSOrigins  []string `mapstructure:"-"`
	KafkaBrokers []string `mapstructure:"-"`
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"database.driver":            "DB_DRIVER",
	"database.host":              "DB_HOST",
	"database.port":              "DB_PORT",
	"database.name":              "DB_NAME",
	"database.user":              "DB_USER",
	"database.password":          "DB_PASSWORD",
	"database.connect_timeout":   "DB_CONNECT_TIMEOUT",
	"database.statement_timeout": "DB_STATEMENT_TIMEOUT",
	"api_port":                   "API_PORT",
	"environment":                "ENVIRONMENT",
	"log_level":                  "LOG_LEVEL",
	"log_encoding":               "LOG_ENCODING",
	"cors_origins":               "CORS_ORIGINS",
	"kafka_brokers":              "KAFKA_BROKERS",
	"kafka_topic":                "KAFKA_TOPIC",
	"keepalive_schedule":         "KEEPALIVE_SCHEDULE",
}

// Load reads configuration from the environment, layered over an optional
// YAML file named by DBCLIENT_CONFIG, and validates it.
func Load() (App, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return App{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.BindEnv("config_file", ConfigFileEnv); err != nil {
		return App{}, fmt.Errorf("bind env %s: %w", ConfigFileEnv, err)
	}
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return App{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg App
	if err := v.Unmarshal(&cfg); err != nil {
		return App{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = getCORSOrigins(v.GetString("cors_origins"))
	cfg.KafkaBrokers = splitList(v.GetString("kafka_brokers"))

	if err := validator.New().Struct(cfg); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return App{}, fmt.Errorf("invalid config: %s", describe(validationErrs))
		}
		return App{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// UsesDefaultCredentials reports whether the local development database
// credentials are in effect.
func (a App) UsesDefaultCredentials() bool {
	if a.Database.Driver != storage.DriverMySQL {
		return false
	}
	return a.Database.User == storage.DefaultUsername ||
		a.Database.Name == storage.DefaultDatabase ||
		a.Database.Password == storage.DefaultPassword
}

// StorageOptions converts the database section into client options.
func (a App) StorageOptions() storage.Options {
	return storage.Options{
		Driver:           a.Database.Driver,
		Host:             a.Database.Host,
		Port:             a.Database.Port,
		Database:         a.Database.Name,
		Username:         a.Database.User,
		Password:         a.Database.Password,
		ConnectTimeout:   a.Database.ConnectTimeout,
		StatementTimeout: a.Database.StatementTimeout,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", storage.DriverMySQL)
	v.SetDefault("database.host", storage.DefaultHost)
	v.SetDefault("database.port", storage.DefaultPort)
	v.SetDefault("database.name", storage.DefaultDatabase)
	v.SetDefault("database.user", storage.DefaultUsername)
	v.SetDefault("database.password", storage.DefaultPassword)
	v.SetDefault("database.connect_timeout", 5*time.Second)
	v.SetDefault("database.statement_timeout", time.Duration(0))
	v.SetDefault("api_port", "8080")
	v.SetDefault("environment", "production")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_encoding", "json")
	v.SetDefault("cors_origins", "")
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "statement-audit")
	v.SetDefault("keepalive_schedule", "@every 30s")
}

// getCORSOrigins parses a comma-separated origin list. A list with no
// origins in it means any origin.
func getCORSOrigins(raw string) []string {
	origins := splitList(raw)
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// splitList splits on commas, trimming whitespace and dropping empty items.
func splitList(raw string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func describe(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
