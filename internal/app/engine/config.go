package engine

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.temporal.io/sdk/client"
	"gopkg.in/yaml.v3"

	"github.com/Apurer/commerce-engine/internal/shared/identifier"
	"github.com/Apurer/commerce-engine/internal/shared/money"
)

const (
	defaultOrderNumberAttempts = 3
	defaultMongoDatabase       = "commerce"
)

// Config carries settings shared by the engine processes. Values from the
// optional YAML file named by ENGINE_CONFIG_FILE are overridden by environment
// variables.
type Config struct {
	PostgresDSN         string `yaml:"postgres_dsn"`
	MongoURI            string `yaml:"mongo_uri"`
	MongoDatabase       string `yaml:"mongo_database"`
	TemporalAddress     string `yaml:"temporal_address"`
	TemporalNamespace   string `yaml:"temporal_namespace"`
	TemporalDisabled    bool   `yaml:"temporal_disabled"`
	OrderNumberAttempts int    `yaml:"order_number_attempts"`
	SlugAttempts        int    `yaml:"slug_attempts"`
	DefaultCurrency     string `yaml:"default_currency"`
}

// LoadConfig reads the config file and environment, applies defaults, and
// validates basic constraints.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("ENGINE_CONFIG_FILE")); path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	overrideString(&cfg.PostgresDSN, "POSTGRES_DSN")
	overrideString(&cfg.MongoURI, "MONGO_URI")
	overrideString(&cfg.MongoDatabase, "MONGO_DATABASE")
	overrideString(&cfg.TemporalAddress, "TEMPORAL_ADDRESS")
	overrideString(&cfg.TemporalNamespace, "TEMPORAL_NAMESPACE")
	overrideString(&cfg.DefaultCurrency, "DEFAULT_CURRENCY")
	if raw := strings.TrimSpace(os.Getenv("TEMPORAL_DISABLED")); raw != "" {
		cfg.TemporalDisabled = isTruthy(raw)
	}
	if err := overridePositive(&cfg.OrderNumberAttempts, "ORDER_NUMBER_ATTEMPTS"); err != nil {
		return Config{}, err
	}
	if err := overridePositive(&cfg.SlugAttempts, "SLUG_ATTEMPTS"); err != nil {
		return Config{}, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MongoDatabase == "" {
		c.MongoDatabase = defaultMongoDatabase
	}
	if c.TemporalAddress == "" {
		c.TemporalAddress = client.DefaultHostPort
	}
	if c.TemporalNamespace == "" {
		c.TemporalNamespace = client.DefaultNamespace
	}
	if c.OrderNumberAttempts == 0 {
		c.OrderNumberAttempts = defaultOrderNumberAttempts
	}
	if c.SlugAttempts == 0 {
		c.SlugAttempts = identifier.DefaultSlugAttempts
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = money.DefaultCurrency
	}
	c.DefaultCurrency = strings.ToUpper(c.DefaultCurrency)
}

func (c Config) validate() error {
	if c.OrderNumberAttempts < 0 {
		return fmt.Errorf("order_number_attempts must be a positive integer")
	}
	if c.SlugAttempts < 0 {
		return fmt.Errorf("slug_attempts must be a positive integer")
	}
	if len(c.DefaultCurrency) != 3 {
		return fmt.Errorf("default currency %q must be a three letter code", c.DefaultCurrency)
	}
	return nil
}

func overrideString(dst *string, key string) {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		*dst = val
	}
}

func overridePositive(dst *int, key string) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fmt.Errorf("%s must be a positive integer", key)
	}
	*dst = n
	return nil
}

func isTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}
