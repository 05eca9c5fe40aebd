package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Veraticus/card-purpose/internal/common"
	"github.com/Veraticus/card-purpose/internal/engine"
	"github.com/Veraticus/card-purpose/internal/feedback"
	"github.com/Veraticus/card-purpose/internal/llm"
	"github.com/Veraticus/card-purpose/internal/matcher"
	"github.com/Veraticus/card-purpose/internal/review"
	"github.com/Veraticus/card-purpose/internal/rules"
)

// EnvPrefix is the prefix for environment overrides, e.g. PURPOSE_LLM_MODEL.
const EnvPrefix = "PURPOSE"

// Config is the full application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Rules    RulesConfig    `mapstructure:"rules"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Review   ReviewConfig   `mapstructure:"review"`
	Fuzzy    FuzzyConfig    `mapstructure:"fuzzy"`
	Feedback FeedbackConfig `mapstructure:"feedback"`
	Engine   EngineConfig   `mapstructure:"engine"`
}

// DatabaseConfig locates the reference database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AuditConfig locates the feedback audit log.
type AuditConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// RulesConfig holds rule engine settings. An empty Path uses the built-in rules.
type RulesConfig struct {
	Path                  string  `mapstructure:"path"`
	CorroborationNudge    float64 `mapstructure:"corroboration_nudge"`
	MaxNonExactConfidence float64 `mapstructure:"max_non_exact_confidence"`
	OverrideBelow         float64 `mapstructure:"override_below"`
	OverrideConfidence    float64 `mapstructure:"override_confidence"`
}

// LLMConfig holds AI provider settings.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider"`
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	AnthropicKey      string        `mapstructure:"anthropic_api_key"`
	GeminiKey         string        `mapstructure:"gemini_api_key"`
	FewShotStrategy   string        `mapstructure:"few_shot_strategy"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RateLimit         int           `mapstructure:"rate_limit"`
	MaxConcurrent     int           `mapstructure:"max_concurrent"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	FewShotCount      int           `mapstructure:"few_shot_count"`
	Temperature       float64       `mapstructure:"temperature"`
	DefaultConfidence float64       `mapstructure:"default_confidence"`
}

// ReviewConfig holds the review bands.
type ReviewConfig struct {
	ForceReviewCategories []string `mapstructure:"force_review_categories"`
	High                  float64  `mapstructure:"high"`
	Low                   float64  `mapstructure:"low"`
	SecondOpinion         bool     `mapstructure:"second_opinion"`
	Bayes                 bool     `mapstructure:"bayes"`
}

// FuzzyConfig holds matcher settings.
type FuzzyConfig struct {
	Threshold     float64 `mapstructure:"threshold"`
	EditWeight    float64 `mapstructure:"edit_weight"`
	MaxConfidence float64 `mapstructure:"max_confidence"`
	NGramSize     int     `mapstructure:"ngram_size"`
}

// FeedbackConfig holds feedback loop settings.
type FeedbackConfig struct {
	BatchSize  uint64  `mapstructure:"batch_size"`
	TrainSplit float64 `mapstructure:"train_split"`
}

// EngineConfig holds orchestrator settings.
type EngineConfig struct {
	ParallelWorkers int `mapstructure:"parallel_workers"`
}

// LoadEnv loads a .env file from the working directory when one exists.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Prepare applies defaults and environment bindings to v.
func Prepare(v *viper.Viper) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider keys are read under their conventional names.
	_ = v.BindEnv("llm.anthropic_api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("llm.gemini_api_key", "GEMINI_API_KEY")
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Audit.Path = ExpandPath(cfg.Audit.Path)
	cfg.Rules.Path = ExpandPath(cfg.Rules.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	llmDefaults := llm.DefaultConfig()
	fuzzy := matcher.DefaultFuzzyConfig()
	ruleDefaults := rules.DefaultConfig()
	thresholds := review.DefaultThresholds()

	v.SetDefault("database.path", "~/.local/share/purpose/reference.db")
	v.SetDefault("audit.path", "~/.local/share/purpose/feedback.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("metrics.addr", "")

	v.SetDefault("rules.path", "")
	v.SetDefault("rules.corroboration_nudge", ruleDefaults.CorroborationNudge)
	v.SetDefault("rules.max_non_exact_confidence", ruleDefaults.MaxNonExactConfidence)
	v.SetDefault("rules.override_below", ruleDefaults.OverrideBelow)
	v.SetDefault("rules.override_confidence", ruleDefaults.OverrideConfidence)

	v.SetDefault("llm.provider", llmDefaults.Provider)
	v.SetDefault("llm.model", llmDefaults.Model)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.few_shot_strategy", llmDefaults.FewShotStrategy)
	v.SetDefault("llm.few_shot_count", llmDefaults.FewShotCount)
	v.SetDefault("llm.timeout", llmDefaults.Timeout)
	v.SetDefault("llm.retry_delay", llmDefaults.RetryDelay)
	v.SetDefault("llm.cache_ttl", llmDefaults.CacheTTL)
	v.SetDefault("llm.max_retries", llmDefaults.MaxRetries)
	v.SetDefault("llm.rate_limit", llmDefaults.RateLimit)
	v.SetDefault("llm.max_concurrent", llmDefaults.MaxConcurrent)
	v.SetDefault("llm.max_tokens", llmDefaults.MaxTokens)
	v.SetDefault("llm.temperature", llmDefaults.Temperature)
	v.SetDefault("llm.default_confidence", llmDefaults.DefaultConfidence)

	v.SetDefault("fuzzy.threshold", fuzzy.Threshold)
	v.SetDefault("fuzzy.edit_weight", fuzzy.EditWeight)
	v.SetDefault("fuzzy.max_confidence", fuzzy.MaxConfidence)
	v.SetDefault("fuzzy.ngram_size", fuzzy.NGramSize)

	v.SetDefault("review.high", thresholds.High)
	v.SetDefault("review.low", thresholds.Low)
	v.SetDefault("review.force_review_categories", thresholds.ForceReviewCategories)
	v.SetDefault("review.second_opinion", true)
	v.SetDefault("review.bayes", true)

	v.SetDefault("feedback.batch_size", feedback.DefaultConfig().BatchSize)
	v.SetDefault("feedback.train_split", feedback.DefaultTrainSplit)

	v.SetDefault("engine.parallel_workers", engine.DefaultConfig().ParallelWorkers)
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	if c.Review.Low > c.Review.High {
		return fmt.Errorf("%w: review.low %.2f above review.high %.2f", common.ErrInvalidConfig, c.Review.Low, c.Review.High)
	}
	if c.Feedback.BatchSize == 0 {
		return fmt.Errorf("%w: feedback.batch_size must be positive", common.ErrInvalidConfig)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if err := c.FuzzyConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	if _, err := llm.ParseStrategy(c.LLM.FewShotStrategy); err != nil {
		return fmt.Errorf("%w: llm.few_shot_strategy: %w", common.ErrInvalidConfig, err)
	}
	return nil
}

// FuzzyConfig converts to the matcher's settings.
func (c *Config) FuzzyConfig() matcher.FuzzyConfig {
	return matcher.FuzzyConfig{
		Threshold:     c.Fuzzy.Threshold,
		EditWeight:    c.Fuzzy.EditWeight,
		MaxConfidence: c.Fuzzy.MaxConfidence,
		NGramSize:     c.Fuzzy.NGramSize,
	}
}

// RulesConfig converts to the rule engine's settings.
func (c *Config) RulesConfig() rules.Config {
	return rules.Config{
		CorroborationNudge:    c.Rules.CorroborationNudge,
		MaxNonExactConfidence: c.Rules.MaxNonExactConfidence,
		OverrideBelow:         c.Rules.OverrideBelow,
		OverrideConfidence:    c.Rules.OverrideConfidence,
	}
}

// Thresholds converts to the reviewer's settings.
func (c *Config) Thresholds() review.Thresholds {
	return review.Thresholds{
		High:                  c.Review.High,
		Low:                   c.Review.Low,
		ForceReviewCategories: c.Review.ForceReviewCategories,
	}
}

// FeedbackConfig converts to the feedback loop's settings.
func (c *Config) FeedbackConfig() feedback.Config {
	return feedback.Config{BatchSize: c.Feedback.BatchSize}
}

// EngineConfig converts to the orchestrator's settings.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{ParallelWorkers: c.Engine.ParallelWorkers}
}

// LLMConfig converts to the AI boundary's settings. The API key falls back to
// the provider's conventional environment variable.
func (c *Config) LLMConfig() llm.Config {
	key := c.LLM.APIKey
	if key == "" {
		switch c.LLM.Provider {
		case "gemini":
			key = c.LLM.GeminiKey
		default:
			key = c.LLM.AnthropicKey
		}
	}
	return llm.Config{
		Provider:          c.LLM.Provider,
		APIKey:            key,
		Model:             c.LLM.Model,
		FewShotStrategy:   c.LLM.FewShotStrategy,
		FewShotCount:      c.LLM.FewShotCount,
		MaxRetries:        c.LLM.MaxRetries,
		RetryDelay:        c.LLM.RetryDelay,
		CacheTTL:          c.LLM.CacheTTL,
		Timeout:           c.LLM.Timeout,
		RateLimit:         c.LLM.RateLimit,
		MaxConcurrent:     c.LLM.MaxConcurrent,
		MaxTokens:         c.LLM.MaxTokens,
		Temperature:       c.LLM.Temperature,
		DefaultConfidence: c.LLM.DefaultConfidence,
	}
}
