package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fitstake_miniapp/internal/cache"
	"fitstake_miniapp/internal/middleware"
	"fitstake_miniapp/internal/repository"
	"fitstake_miniapp/internal/service"
	"fitstake_miniapp/pkg/ledger"

	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"
)

type Config struct {
	Database repository.Config `yaml:"database"`
	Server   ServerConfig      `yaml:"server"`

	TelegramAuth TelegramAuthConfig `yaml:"telegramAuth"`

	Ledger    ledger.Config              `yaml:"ledger"`
	Scheduler SchedulerConfig            `yaml:"scheduler"`
	Cache     CacheConfig                `yaml:"cache"`
	RateLimit middleware.RateLimitConfig `yaml:"rateLimit"`
	Metrics   MetricsConfig              `yaml:"metrics"`

	LogLevel string `yaml:"logLevel"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type TelegramAuthConfig struct {
	TelegramBotToken string `yaml:"telegramBotToken"`
	Debug            bool   `yaml:"debug"`
	Notifications    bool   `yaml:"notifications"`
}

type SchedulerConfig struct {
	service.SchedulerConfig `mapstructure:",squash"`
	StuckIntentAge          time.Duration `yaml:"stuckIntentAge"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8888")
	viper.SetDefault("server.shutdownTimeout", 30*time.Second)

	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxOpenConns", 25)
	viper.SetDefault("database.maxIdleConns", 5)
	viper.SetDefault("database.connMaxLifetime", 5*time.Minute)

	viper.SetDefault("ledger.timeout", 15*time.Second)

	viper.SetDefault("scheduler.progressSpec", service.DefaultProgressSpec)
	viper.SetDefault("scheduler.reconcileSpec", service.DefaultReconcileSpec)
	viper.SetDefault("scheduler.jobTimeout", 5*time.Minute)
	viper.SetDefault("scheduler.stuckIntentAge", service.DefaultStuckIntentAge)

	viper.SetDefault("cache.ttl", cache.DefaultTTL)

	viper.SetDefault("rateLimit.rps", 5)
	viper.SetDefault("rateLimit.burst", 30)

	viper.SetDefault("logLevel", "info")
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(configPath)
	viper.SetConfigType(configFormat)

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
