package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	SQLite     SQLiteConfig
	Redis      RedisConfig
	LLM        LLMConfig
	Evaluation EvaluationConfig
	Confidence ConfidenceConfig
	Gateway    GatewayConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host                 string
	Port                 int
	ReadTimeout          int
	WriteTimeout         int
	BodyLimit            int
	MaxRequestsPerMinute int
	AllowedOrigins       []string
	Development          bool
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled             bool
	Host                string
	Port                int
	Password            string
	DB                  int
	EmbeddingTTLMinutes int
}

type LLMConfig struct {
	APIKey             string
	BaseURL            string
	Model              string
	EscalationModel    string
	EmbeddingModel     string
	Temperature        float32
	MaxTokens          int
	TimeoutSec         int
	EmbeddingRPS       float64
	EmbeddingBurst     int
	EmbeddingCacheSize int
}

type EvaluationConfig struct {
	PassThreshold          float64
	SevereFailureThreshold float64
	MaxAttempts            int
	ConfidenceThreshold    float64
	DisagreementThreshold  float64
	BorderlineMargin       float64
	MaxConcurrentJudges    int
	DimensionThresholds    map[string]float64
}

type ConfidenceConfig struct {
	EntailmentWeight     float64
	SUScoreWeight        float64
	SourceCountWeight    float64
	SimilarityThreshold  float64
	MaxChunkChars        int
	MinChunkChars        int
	EmbeddingConcurrency int
	FallbackClaimChars   int
}

type GatewayConfig struct {
	PlanTimeoutSec       int
	RetrievalTimeoutSec  int
	AnswerTimeoutSec     int
	ConfidenceTimeoutSec int
}

type LoggingConfig struct {
	Level            string
	Format           string
	OutputPath       string
	Service          string
	SampleInitial    int
	SampleThereafter int
}

// Load reads config.yaml (if present) and AGENT_* environment overrides on
// top of the defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/research-agent")

	v.SetEnvPrefix("AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Evaluation.PassThreshold < 0 || c.Evaluation.PassThreshold > 1 {
		return fmt.Errorf("evaluation.passThreshold must be within [0,1], got %v", c.Evaluation.PassThreshold)
	}
	if c.Evaluation.MaxAttempts < 1 {
		return fmt.Errorf("evaluation.maxAttempts must be at least 1, got %d", c.Evaluation.MaxAttempts)
	}
	for dim, threshold := range c.Evaluation.DimensionThresholds {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("evaluation.dimensionThresholds.%s must be within [0,1], got %v", dim, threshold)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 90)
	v.SetDefault("server.bodyLimit", 10485760)
	v.SetDefault("server.maxRequestsPerMinute", 60)
	v.SetDefault("server.allowedOrigins", []string{})
	v.SetDefault("server.development", false)

	v.SetDefault("sqlite.path", "./data/evaluations.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.embeddingTTLMinutes", 60*24)

	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.escalationModel", "gpt-4o")
	v.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.maxTokens", 2048)
	v.SetDefault("llm.timeoutSec", 60)
	v.SetDefault("llm.embeddingRPS", 20)
	v.SetDefault("llm.embeddingBurst", 10)
	v.SetDefault("llm.embeddingCacheSize", 4096)

	v.SetDefault("evaluation.passThreshold", 0.7)
	v.SetDefault("evaluation.severeFailureThreshold", 0.5)
	v.SetDefault("evaluation.maxAttempts", 3)
	v.SetDefault("evaluation.confidenceThreshold", 0.6)
	v.SetDefault("evaluation.disagreementThreshold", 0.3)
	v.SetDefault("evaluation.borderlineMargin", 0.05)
	v.SetDefault("evaluation.maxConcurrentJudges", 8)
	v.SetDefault("evaluation.dimensionThresholds", map[string]float64{})

	v.SetDefault("confidence.entailmentWeight", 0.5)
	v.SetDefault("confidence.suScoreWeight", 0.3)
	v.SetDefault("confidence.sourceCountWeight", 0.2)
	v.SetDefault("confidence.similarityThreshold", 0.7)
	v.SetDefault("confidence.maxChunkChars", 1000)
	v.SetDefault("confidence.minChunkChars", 50)
	v.SetDefault("confidence.embeddingConcurrency", 4)
	v.SetDefault("confidence.fallbackClaimChars", 500)

	v.SetDefault("gateway.planTimeoutSec", 60)
	v.SetDefault("gateway.retrievalTimeoutSec", 30)
	v.SetDefault("gateway.answerTimeoutSec", 45)
	v.SetDefault("gateway.confidenceTimeoutSec", 45)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
	v.SetDefault("logging.service", "research-eval")
	v.SetDefault("logging.sampleInitial", 100)
	v.SetDefault("logging.sampleThereafter", 100)
}
