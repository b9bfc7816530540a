package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"
	envPrefix         = "LEDGER"
)

// Config ...
type Config struct {
	Service struct {
		Name       string `yaml:"name"`
		Host       string `yaml:"host"`
		PublicPort int    `yaml:"public_port"`
		AdminPort  int    `yaml:"admin_port"`
	} `yaml:"service"`

	Store struct {
		Driver string `yaml:"driver"` // redis | postgres | memory
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		PostgresDSN string        `yaml:"postgres_dsn"`
		Timeout     time.Duration `yaml:"timeout"`
		// Сколько раз повторяем условную запись портфеля при конфликте
		MaxRetries int `yaml:"max_retries"`
	} `yaml:"store"`

	Prices struct {
		BaseURL  string        `yaml:"base_url"`
		APIKey   string        `yaml:"api_key"`
		Timeout  time.Duration `yaml:"timeout"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
		// Fallback: random | fixed
		Fallback      string  `yaml:"fallback"`
		FallbackPrice float64 `yaml:"fallback_price"`
		// 0 — глобальный генератор без фиксированного seed
		FallbackSeed uint64 `yaml:"fallback_seed"`
	} `yaml:"prices"`

	Ledger struct {
		AllowOversell        bool `yaml:"allow_oversell"`
		AllowNegativeBalance bool `yaml:"allow_negative_balance"`
	} `yaml:"ledger"`

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`

	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"tracing"`
}

func Default() Config {
	var c Config
	c.Service.Name = "stock_ledger"
	c.Service.PublicPort = 8081
	c.Service.AdminPort = 8080

	c.Store.Driver = "redis"
	c.Store.Redis.Addr = "localhost:6379"
	c.Store.Timeout = 2 * time.Second
	c.Store.MaxRetries = 8

	c.Prices.BaseURL = "https://api.polygon.io"
	c.Prices.Timeout = 5 * time.Second
	c.Prices.CacheTTL = 5 * time.Minute
	c.Prices.Fallback = "random"

	c.Ledger.AllowOversell = false
	c.Ledger.AllowNegativeBalance = true

	c.Log.Level = "info"

	c.Tracing.Host = "localhost"
	c.Tracing.Port = 6831
	return c
}

// NewConfig reads configs/$CONFIG_FILE (values_local.yaml by default) and applies LEDGER_* env overrides.
func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	dir := os.Getenv(configDirENV)
	if dir == "" {
		dir = "configs"
	}
	return Load(filepath.Join(dir, configFileName))
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	config := Default()
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	applyEnv(&config)

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyEnv: значения из файла становятся дефолтами, LEDGER_STORE_DRIVER и т.п. их перекрывают.
func applyEnv(c *Config) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("service.host", c.Service.Host)
	v.SetDefault("service.public_port", c.Service.PublicPort)
	v.SetDefault("service.admin_port", c.Service.AdminPort)
	v.SetDefault("store.driver", c.Store.Driver)
	v.SetDefault("store.redis.addr", c.Store.Redis.Addr)
	v.SetDefault("store.redis.password", c.Store.Redis.Password)
	v.SetDefault("store.redis.db", c.Store.Redis.DB)
	v.SetDefault("store.postgres_dsn", c.Store.PostgresDSN)
	v.SetDefault("store.timeout", c.Store.Timeout)
	v.SetDefault("store.max_retries", c.Store.MaxRetries)
	v.SetDefault("prices.base_url", c.Prices.BaseURL)
	v.SetDefault("prices.api_key", c.Prices.APIKey)
	v.SetDefault("prices.timeout", c.Prices.Timeout)
	v.SetDefault("prices.cache_ttl", c.Prices.CacheTTL)
	v.SetDefault("prices.fallback", c.Prices.Fallback)
	v.SetDefault("prices.fallback_price", c.Prices.FallbackPrice)
	v.SetDefault("prices.fallback_seed", c.Prices.FallbackSeed)
	v.SetDefault("ledger.allow_oversell", c.Ledger.AllowOversell)
	v.SetDefault("ledger.allow_negative_balance", c.Ledger.AllowNegativeBalance)
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.development", c.Log.Development)
	v.SetDefault("tracing.enabled", c.Tracing.Enabled)
	v.SetDefault("tracing.host", c.Tracing.Host)
	v.SetDefault("tracing.port", c.Tracing.Port)

	c.Service.Host = v.GetString("service.host")
	c.Service.PublicPort = v.GetInt("service.public_port")
	c.Service.AdminPort = v.GetInt("service.admin_port")
	c.Store.Driver = v.GetString("store.driver")
	c.Store.Redis.Addr = v.GetString("store.redis.addr")
	c.Store.Redis.Password = v.GetString("store.redis.password")
	c.Store.Redis.DB = v.GetInt("store.redis.db")
	c.Store.PostgresDSN = v.GetString("store.postgres_dsn")
	c.Store.Timeout = v.GetDuration("store.timeout")
	c.Store.MaxRetries = v.GetInt("store.max_retries")
	c.Prices.BaseURL = v.GetString("prices.base_url")
	c.Prices.APIKey = v.GetString("prices.api_key")
	c.Prices.Timeout = v.GetDuration("prices.timeout")
	c.Prices.CacheTTL = v.GetDuration("prices.cache_ttl")
	c.Prices.Fallback = v.GetString("prices.fallback")
	c.Prices.FallbackPrice = v.GetFloat64("prices.fallback_price")
	c.Prices.FallbackSeed = v.GetUint64("prices.fallback_seed")
	c.Ledger.AllowOversell = v.GetBool("ledger.allow_oversell")
	c.Ledger.AllowNegativeBalance = v.GetBool("ledger.allow_negative_balance")
	c.Log.Level = v.GetString("log.level")
	c.Log.Development = v.GetBool("log.development")
	c.Tracing.Enabled = v.GetBool("tracing.enabled")
	c.Tracing.Host = v.GetString("tracing.host")
	c.Tracing.Port = v.GetInt("tracing.port")
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "redis", "memory":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("config: store.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}

	switch c.Prices.Fallback {
	case "random":
	case "fixed":
		if c.Prices.FallbackPrice <= 0 {
			return fmt.Errorf("config: prices.fallback_price must be positive for the fixed fallback")
		}
	default:
		return fmt.Errorf("config: unknown prices.fallback %q", c.Prices.Fallback)
	}
	return nil
}

func (c *Config) PublicAddr() string {
	return fmt.Sprintf("%s:%d", c.Service.Host, c.Service.PublicPort)
}

func (c *Config) AdminAddr() string {
	return fmt.Sprintf("%s:%d", c.Service.Host, c.Service.AdminPort)
}
