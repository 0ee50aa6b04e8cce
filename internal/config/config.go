package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"foobar/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	API        APIConfig        `yaml:"api"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Wallet     WalletConfig     `yaml:"wallet"`
	Suppliers  []SupplierConfig `yaml:"suppliers"`
	Stocktake  StocktakeConfig  `yaml:"stocktake"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type APIConfig struct {
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
	Token     TokenConfig        `yaml:"token"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderSecret string         `yaml:"header_secret"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

// APIClientKey identifies one API consumer (a kiosk terminal, the admin
// UI) and the scopes it may call.
type APIClientKey struct {
	Key    string   `yaml:"key"`
	Secret string   `yaml:"secret"`
	Name   string   `yaml:"name"`
	Scopes []string `yaml:"scopes"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// TokenConfig controls the signed account tokens handed to kiosks.
// TTL is a Go duration string, e.g. "15m".
type TokenConfig struct {
	Secret string `yaml:"secret"`
	TTL    string `yaml:"ttl"`
}

// TokenTTL parses the configured token lifetime, falling back to 15
// minutes on a missing or malformed value.
func (c APIConfig) TokenTTL() time.Duration {
	if d, err := time.ParseDuration(c.Token.TTL); err == nil && d > 0 {
		return d
	}
	return 15 * time.Minute
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// WalletConfig names the system wallets. Card purchase funds end up in
// the main wallet, cash purchase funds in the cash wallet.
type WalletConfig struct {
	Currency     string `yaml:"currency"`
	MainWalletID string `yaml:"main_wallet_id"`
	CashWalletID string `yaml:"cash_wallet_id"`
}

type SupplierConfig struct {
	InternalName string `yaml:"internal_name"`
	DisplayName  string `yaml:"display_name"`
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	DeliversOn   int    `yaml:"delivers_on"` // 0=Sunday .. 6=Saturday
}

type StocktakeConfig struct {
	ChunkSize int `yaml:"chunk_size"`
}

// ScheduleConfig holds cron expressions for recurring jobs.
type ScheduleConfig struct {
	ForecastRefresh string `yaml:"forecast_refresh"`
	RefillOrders    string `yaml:"refill_orders"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// Load reads the YAML config at configPath, expanding ${ENV} references
// after loading .env if one exists.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.API.Token.Secret == "" {
		return errors.New("api token secret is required")
	}

	if c.Wallet.MainWalletID == "" || c.Wallet.CashWalletID == "" {
		return errors.New("wallet main_wallet_id and cash_wallet_id are required")
	}
	if c.Wallet.MainWalletID == c.Wallet.CashWalletID {
		return errors.New("main and cash wallets must differ")
	}

	return ValidateSuppliers(c.Suppliers)
}

// ValidateSuppliers rejects duplicate or unnamed supplier entries.
func ValidateSuppliers(suppliers []SupplierConfig) error {
	seen := make(map[string]bool)
	for _, s := range suppliers {
		if s.InternalName == "" {
			return errors.New("supplier internal_name is required")
		}
		if seen[s.InternalName] {
			return fmt.Errorf("duplicate supplier internal_name: %s", s.InternalName)
		}
		if s.DeliversOn < 0 || s.DeliversOn > 6 {
			return fmt.Errorf("supplier %s: delivers_on must be 0..6", s.InternalName)
		}
		seen[s.InternalName] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "foobar"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if len(c.API.Auth.APIKeys) > 0 {
		c.API.Auth.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderSecret == "" {
		c.API.Auth.HeaderSecret = "x-api-secret"
	}
	if c.API.Token.TTL == "" {
		c.API.Token.TTL = "15m"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Wallet.Currency == "" {
		c.Wallet.Currency = models.DefaultCurrency
	}
	if c.Stocktake.ChunkSize == 0 {
		c.Stocktake.ChunkSize = models.DefaultStocktakeChunkSize
	}
	if c.Schedule.ForecastRefresh == "" {
		c.Schedule.ForecastRefresh = "0 3 * * *"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
