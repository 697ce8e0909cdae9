package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full sragwatch configuration, loaded once at startup and
// threaded explicitly into constructors.
type Config struct {
	// Paths
	DataDir  string `mapstructure:"data_dir"`
	ImageDir string `mapstructure:"image_dir"`
	DBPath   string `mapstructure:"db_path"`
	// DictPath points to the YAML data dictionary used to rename raw
	// SIVEP-Gripe columns during ETL.
	DictPath string `mapstructure:"dict_path"`

	// Credentials (env only, never from file)
	OpenAIAPIKey string `mapstructure:"-"`
	TavilyAPIKey string `mapstructure:"-"`

	Agent     AgentConfig     `mapstructure:"agent"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AgentConfig controls the orchestration loop and model calls.
type AgentConfig struct {
	Model string `mapstructure:"model"`
	// MaxIterations caps the reasoning<->tool-execution cycle.
	MaxIterations int           `mapstructure:"max_iterations"`
	ModelTimeout  time.Duration `mapstructure:"model_timeout"`
	ToolTimeout   time.Duration `mapstructure:"tool_timeout"`
	// SQLAttempts bounds the query tool's internal generation loop.
	SQLAttempts int `mapstructure:"sql_attempts"`
}

// RetrievalConfig controls the hybrid news retrieval pipeline.
type RetrievalConfig struct {
	MaxResults   int `mapstructure:"max_results"`
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	TopK         int `mapstructure:"top_k"`
}

// EmbeddingConfig controls the embedding service and its caches.
type EmbeddingConfig struct {
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxLRU      int           `mapstructure:"max_lru"`
	EnableRedis bool          `mapstructure:"enable_redis"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// TracingConfig mirrors the OTLP tracing knobs.
type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// LoggingConfig selects the zap preset.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the optional YAML config file (SRAGWATCH_CONFIG or the given
// path), applies SRAGWATCH_* environment overrides and defaults, and pulls
// credentials from the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SRAGWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		path = os.Getenv("SRAGWATCH_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.TavilyAPIKey = os.Getenv("TAVILY_API_KEY")

	return &cfg, nil
}

// Validate checks setup preconditions that must hold before a run is
// attempted. Failures here are fatal: no partial run is started.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if c.TavilyAPIKey == "" {
		return fmt.Errorf("TAVILY_API_KEY is not set")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is not set")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("image_dir", "img")
	v.SetDefault("db_path", "data/srag_data.db")
	v.SetDefault("dict_path", "config/data_dictionary.yaml")

	v.SetDefault("agent.model", "gpt-4o")
	v.SetDefault("agent.max_iterations", 10)
	v.SetDefault("agent.model_timeout", 120*time.Second)
	v.SetDefault("agent.tool_timeout", 90*time.Second)
	v.SetDefault("agent.sql_attempts", 3)

	v.SetDefault("retrieval.max_results", 5)
	v.SetDefault("retrieval.chunk_size", 800)
	v.SetDefault("retrieval.chunk_overlap", 100)
	v.SetDefault("retrieval.top_k", 3)

	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.timeout", 10*time.Second)
	v.SetDefault("embedding.max_lru", 2048)
	v.SetDefault("embedding.enable_redis", false)
	v.SetDefault("embedding.redis_addr", "localhost:6379")
	v.SetDefault("embedding.cache_ttl", time.Hour)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "sragwatch")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
