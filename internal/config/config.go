package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" mapstructure:"embeddings"`
	Classify   ClassifyConfig   `yaml:"classify" mapstructure:"classify"`
	Taxonomy   TaxonomyConfig   `yaml:"taxonomy" mapstructure:"taxonomy"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
}

// FetchConfig configures the review scraping service client.
type FetchConfig struct {
	BaseURL           string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int    `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelaySecs    int    `yaml:"retry_delay_secs" mapstructure:"retry_delay_secs"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// EmbeddingsConfig holds OpenAI embeddings API settings.
type EmbeddingsConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Model     string `yaml:"model" mapstructure:"model"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// ClassifyConfig tunes topic assignment.
type ClassifyConfig struct {
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
	MaxTopics int     `yaml:"max_topics" mapstructure:"max_topics"`
}

// TaxonomyConfig points at the declarative organizations/topics file.
type TaxonomyConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REVIEWPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "reviewpulse.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.retry_delay_secs", 2)
	v.SetDefault("fetch.requests_per_minute", 10)
	v.SetDefault("embeddings.model", "text-embedding-3-small")
	v.SetDefault("embeddings.batch_size", 100)
	v.SetDefault("classify.threshold", 0.3)
	v.SetDefault("classify.max_topics", 3)
	v.SetDefault("taxonomy.path", "reviewpulse.yaml")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
