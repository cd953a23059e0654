package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	DatabaseService DatabaseServiceConfig `mapstructure:"database_service"`
	WebService      WebServiceConfig      `mapstructure:"web_service"`
	RedisService    RedisServiceConfig    `mapstructure:"redis_service"`
	Log             LogConfig             `mapstructure:"log"`
	Providers       ProvidersConfig       `mapstructure:"providers"`
	Scoring         ScoringConfig         `mapstructure:"scoring"`
	Evaluation      EvaluationConfig      `mapstructure:"evaluation"`
	Catalog         []CatalogEntry        `mapstructure:"catalog"`
}

type DatabaseServiceConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	DatabaseURL string `mapstructure:"database_url"`
}

type WebServiceConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type RedisServiceConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	DB             int    `mapstructure:"db"`
	MaxWaitTime    int    `mapstructure:"max_wait_time"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ProviderConfig holds credentials for one model backend family.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type ProvidersConfig struct {
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Google    ProviderConfig `mapstructure:"google"`
	Groq      ProviderConfig `mapstructure:"groq"`
	Anthropic ProviderConfig `mapstructure:"anthropic"`
}

type ScoringConfig struct {
	JudgeModel     string `mapstructure:"judge_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

type EvaluationConfig struct {
	// ModelTimeout is in seconds, 0 disables the per-model deadline.
	ModelTimeout       int  `mapstructure:"model_timeout"`
	RateLimitPerMinute int  `mapstructure:"rate_limit_per_minute"`
	UseSlots           bool `mapstructure:"use_slots"`
	BulkWorkers        int  `mapstructure:"bulk_workers"`
}

// CatalogEntry is a model offered to clients. Category names the backend family.
type CatalogEntry struct {
	Value    string `mapstructure:"value"`
	Label    string `mapstructure:"label"`
	Category string `mapstructure:"category"`
}

var cfg *Config

// Load loads the configuration from config.yaml.
// Environment variables override file values, e.g. PROVIDERS_OPENAI_API_KEY
// or the short forms OPENAI_API_KEY and DATABASE_URL.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindShortEnv(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("web_service.host", "0.0.0.0")
	v.SetDefault("web_service.port", 8080)
	v.SetDefault("database_service.host", "0.0.0.0")
	v.SetDefault("database_service.port", 8081)
	v.SetDefault("database_service.database_url", "./data/arena.db")
	v.SetDefault("redis_service.host", "127.0.0.1")
	v.SetDefault("redis_service.port", 6379)
	v.SetDefault("redis_service.max_wait_time", 300)
	v.SetDefault("redis_service.max_concurrency", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("providers.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("scoring.judge_model", "gpt-4o")
	v.SetDefault("scoring.embedding_model", "text-embedding-3-small")
	v.SetDefault("evaluation.rate_limit_per_minute", 30)
	v.SetDefault("evaluation.bulk_workers", 2)
}

func bindShortEnv(v *viper.Viper) {
	v.BindEnv("providers.openai.api_key", "PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("providers.google.api_key", "PROVIDERS_GOOGLE_API_KEY", "GOOGLE_API_KEY")
	v.BindEnv("providers.groq.api_key", "PROVIDERS_GROQ_API_KEY", "GROQ_API_KEY")
	v.BindEnv("providers.anthropic.api_key", "PROVIDERS_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("database_service.database_url", "DATABASE_SERVICE_DATABASE_URL", "DATABASE_URL")
}

// Get returns the loaded configuration
func Get() *Config {
	return cfg
}

// GetDatabaseServiceAddr returns the database service address
func (c *Config) GetDatabaseServiceAddr() string {
	return fmt.Sprintf("%s:%d", c.DatabaseService.Host, c.DatabaseService.Port)
}

// GetWebServiceAddr returns the web service address
func (c *Config) GetWebServiceAddr() string {
	return fmt.Sprintf("%s:%d", c.WebService.Host, c.WebService.Port)
}

// GetRedisAddr returns the redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisService.Host, c.RedisService.Port)
}

// ModelTimeout returns the per-model deadline, zero when disabled.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Evaluation.ModelTimeout) * time.Second
}

// SlotWait returns how long a call may wait for a redis concurrency slot.
func (c *Config) SlotWait() time.Duration {
	return time.Duration(c.RedisService.MaxWaitTime) * time.Second
}
