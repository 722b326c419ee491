package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Queue     QueueConfig     `yaml:"queue" mapstructure:"queue"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	Path        string `yaml:"path" mapstructure:"path"`     // sqlite file path
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FetchConfig configures HTTP retrieval of candidate pages.
type FetchConfig struct {
	TimeoutSecs     int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryBudgetSecs int      `yaml:"retry_budget_secs" mapstructure:"retry_budget_secs"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MinContentBytes int      `yaml:"min_content_bytes" mapstructure:"min_content_bytes"`
	UserAgents      []string `yaml:"user_agents" mapstructure:"user_agents"`
	RenderBaseURL   string   `yaml:"render_base_url" mapstructure:"render_base_url"`
	RenderKey       string   `yaml:"render_key" mapstructure:"render_key"`
}

// DiscoveryConfig configures a discovery session.
type DiscoveryConfig struct {
	BudgetSecs        int     `yaml:"budget_secs" mapstructure:"budget_secs"`
	WorkerTimeoutSecs int     `yaml:"worker_timeout_secs" mapstructure:"worker_timeout_secs"`
	MaxVerify         int     `yaml:"max_verify" mapstructure:"max_verify"`
	MaxResults        int     `yaml:"max_results" mapstructure:"max_results"`
	CrawlMaxPages     int     `yaml:"crawl_max_pages" mapstructure:"crawl_max_pages"`
	CrawlRatePerSec   float64 `yaml:"crawl_rate_per_sec" mapstructure:"crawl_rate_per_sec"`
	ScoringConfig     string  `yaml:"scoring_config" mapstructure:"scoring_config"`
	ModelKey          string  `yaml:"model_key" mapstructure:"model_key"`
}

// SearchConfig configures the external search strategy.
type SearchConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	MaxResults  int    `yaml:"max_results" mapstructure:"max_results"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig configures the optional classification tie-breaker.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
}

// QueueConfig configures background queue processing.
type QueueConfig struct {
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	PollSecs    int `yaml:"poll_secs" mapstructure:"poll_secs"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// CacheConfig configures document cache retention.
type CacheConfig struct {
	TTLHours int `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// NotionConfig holds Notion export credentials.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	DocumentDB string `yaml:"document_db" mapstructure:"document_db"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("POLICYSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "policyscout.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("fetch.timeout_secs", 10)
	v.SetDefault("fetch.retry_budget_secs", 30)
	v.SetDefault("fetch.max_body_bytes", 1024*1024)
	v.SetDefault("fetch.min_content_bytes", 512)
	v.SetDefault("fetch.user_agents", []string{
		"Mozilla/5.0 (compatible; PolicyScout/1.0; +https://policyscout.dev/bot)",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	})
	v.SetDefault("discovery.budget_secs", 90)
	v.SetDefault("discovery.worker_timeout_secs", 30)
	v.SetDefault("discovery.max_verify", 8)
	v.SetDefault("discovery.max_results", 3)
	v.SetDefault("discovery.crawl_max_pages", 5)
	v.SetDefault("discovery.crawl_rate_per_sec", 2.0)
	v.SetDefault("discovery.model_key", "link-scorer-v1")
	v.SetDefault("search.base_url", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 512)
	v.SetDefault("anthropic.timeout_secs", 20)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.poll_secs", 5)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("cache.ttl_hours", 24*7)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

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

// Validate checks that the configuration is usable for the given mode.
// Modes: "discover", "worker", "serve", "export".
func (c *Config) Validate(mode string) error {
	var issues []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			issues = append(issues, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			issues = append(issues, "store.database_url is required for the postgres driver")
		}
	default:
		issues = append(issues, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}

	if c.Discovery.BudgetSecs < 0 {
		issues = append(issues, "discovery.budget_secs must be >= 0")
	}
	if c.Discovery.MaxVerify <= 0 {
		issues = append(issues, "discovery.max_verify must be > 0")
	}

	switch mode {
	case "discover":
		// Store plus discovery checks above are sufficient.
	case "worker":
		if c.Queue.Concurrency < 1 || c.Queue.Concurrency > 50 {
			issues = append(issues, "queue.concurrency must be between 1 and 50")
		}
		if c.Queue.MaxAttempts < 1 {
			issues = append(issues, "queue.max_attempts must be >= 1")
		}
	case "serve":
		if c.Server.Port <= 0 {
			issues = append(issues, "server.port must be > 0")
		}
	case "export":
		// Notion credentials are only needed for the notion target; the
		// command checks those itself.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Anthropic.Enabled && c.Anthropic.Key == "" {
		issues = append(issues, "anthropic.key is required when anthropic.enabled is true")
	}

	if len(issues) > 0 {
		return eris.New("config: " + strings.Join(issues, "; "))
	}
	return nil
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
