// Package config loads server settings from an optional .env file, an
// optional YAML file named by CONFIG_FILE, and the environment, in that
// order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/codyseavey/moki-tracker/internal/models"
)

// Config holds all configuration for the application
type Config struct {
	Port             string   `yaml:"port"`
	DBPath           string   `yaml:"db_path"`
	CORSOrigins      []string `yaml:"cors_allowed_origins"`
	FrontendDistPath string   `yaml:"frontend_dist_path"`

	WalletAddress   string `yaml:"wallet_address"`
	MokiContract    string `yaml:"moki_contract"`
	BoosterContract string `yaml:"booster_contract"`
	WRONContract    string `yaml:"wron_contract"`

	Moralis     MoralisConfig     `yaml:"moralis"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Redis       RedisConfig       `yaml:"redis"`
	Logging     LoggingConfig     `yaml:"logging"`
	Workers     WorkersConfig     `yaml:"workers"`
}

// MoralisConfig configures the NFT data REST provider
type MoralisConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	DailyLimit int    `yaml:"daily_limit"`
	Chain      string `yaml:"chain"`
}

// MarketplaceConfig configures the GraphQL marketplace endpoint
type MarketplaceConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

// RedisConfig enables the shared response cache when Addr is set
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

// WorkersConfig tunes the background workers
type WorkersConfig struct {
	FloorPollInterval time.Duration `yaml:"floor_poll_interval"`
	SnapshotHour      int           `yaml:"snapshot_hour"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Port:            "8080",
		DBPath:          "./moki_tracker.db",
		CORSOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		MokiContract:    models.DefaultMokiContract,
		BoosterContract: models.DefaultBoosterContract,
		WRONContract:    models.DefaultWRONContract,
		Moralis: MoralisConfig{
			BaseURL:    "https://deep-index.moralis.io/api/v2.2",
			DailyLimit: 1000,
			Chain:      "ronin",
		},
		Marketplace: MarketplaceConfig{
			Endpoint: "https://marketplace-graphql.skymavis.com/graphql",
		},
		Logging: LoggingConfig{
			Level:       "info",
			Environment: "development",
		},
		Workers: WorkersConfig{
			FloorPollInterval: 15 * time.Minute,
			SnapshotHour:      23,
		},
	}
}

// Load reads .env (if present), CONFIG_FILE (if set) and the environment
func Load() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.FrontendDistPath = getEnv("FRONTEND_DIST_PATH", c.FrontendDistPath)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		c.CORSOrigins = strings.Split(origins, ",")
	}

	c.WalletAddress = getEnv("WALLET_ADDRESS", c.WalletAddress)
	c.MokiContract = getEnv("MOKI_CONTRACT", c.MokiContract)
	c.BoosterContract = getEnv("BOOSTER_CONTRACT", c.BoosterContract)
	c.WRONContract = getEnv("WRON_CONTRACT", c.WRONContract)

	c.Moralis.APIKey = getEnv("MORALIS_API_KEY", c.Moralis.APIKey)
	c.Moralis.BaseURL = getEnv("MORALIS_BASE_URL", c.Moralis.BaseURL)
	c.Moralis.DailyLimit = getIntEnv("MORALIS_DAILY_LIMIT", c.Moralis.DailyLimit)
	c.Moralis.Chain = getEnv("MORALIS_CHAIN", c.Moralis.Chain)

	c.Marketplace.APIKey = getEnv("SKY_MAVIS_API_KEY", c.Marketplace.APIKey)
	c.Marketplace.Endpoint = getEnv("MARKETPLACE_GRAPHQL_URL", c.Marketplace.Endpoint)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getIntEnv("REDIS_DB", c.Redis.DB)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Environment = getEnv("ENVIRONMENT", c.Logging.Environment)

	c.Workers.FloorPollInterval = getDurationEnv("FLOOR_POLL_INTERVAL", c.Workers.FloorPollInterval)
	c.Workers.SnapshotHour = getIntEnv("SNAPSHOT_HOUR", c.Workers.SnapshotHour)
}

// Validate normalizes addresses and checks ranges
func (c *Config) Validate() error {
	for name, addr := range map[string]*string{
		"MOKI_CONTRACT":    &c.MokiContract,
		"BOOSTER_CONTRACT": &c.BoosterContract,
		"WRON_CONTRACT":    &c.WRONContract,
	} {
		normalized, err := models.NormalizeAddress(*addr)
		if err != nil {
			return fmt.Errorf("%s: %w: %q", name, err, *addr)
		}
		*addr = normalized
	}

	if c.WalletAddress != "" {
		normalized, err := models.NormalizeAddress(c.WalletAddress)
		if err != nil {
			return fmt.Errorf("WALLET_ADDRESS: %w: %q", err, c.WalletAddress)
		}
		c.WalletAddress = normalized
	}

	if c.Workers.SnapshotHour < 0 || c.Workers.SnapshotHour > 23 {
		return fmt.Errorf("SNAPSHOT_HOUR must be between 0 and 23, got %d", c.Workers.SnapshotHour)
	}
	if c.Workers.FloorPollInterval <= 0 {
		c.Workers.FloorPollInterval = 15 * time.Minute
	}
	return nil
}

// Contracts returns the configured collection contracts
func (c *Config) Contracts() models.Contracts {
	return models.Contracts{
		models.CollectionMoki:    c.MokiContract,
		models.CollectionBooster: c.BoosterContract,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
