package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`

	// HTTP/Retry configuration for capability calls
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
	// Requests per second allowed against the capability endpoint; 0 disables limiting.
	CapabilityRPS float64 `mapstructure:"capability_rps" yaml:"capability_rps"`

	// Pipeline configuration. Threaded through the scheduler at run start so
	// concurrent runs can carry different thresholds.
	Pipeline Pipeline `mapstructure:"pipeline" yaml:"pipeline"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Pipeline holds the analysis thresholds and reduction limits.
type Pipeline struct {
	// StageTimeoutSec bounds each stage invocation; on expiry the stage is
	// treated as failed and its fallback payload is used.
	StageTimeoutSec int `mapstructure:"stage_timeout_sec" yaml:"stage_timeout_sec"`

	// Correlation thresholds on |r|.
	StrongCorrelation   float64 `mapstructure:"strong_correlation" yaml:"strong_correlation"`
	ModerateCorrelation float64 `mapstructure:"moderate_correlation" yaml:"moderate_correlation"`

	// Type classification.
	NumericThreshold float64 `mapstructure:"numeric_threshold" yaml:"numeric_threshold"`
	CategoricalRatio float64 `mapstructure:"categorical_ratio" yaml:"categorical_ratio"`
	CategoricalMax   int     `mapstructure:"categorical_max" yaml:"categorical_max"`

	// Reduction limits.
	MaxCorrelations int `mapstructure:"max_correlations" yaml:"max_correlations"`
	MaxTopValues    int `mapstructure:"max_top_values" yaml:"max_top_values"`
	MaxReducedBytes int `mapstructure:"max_reduced_bytes" yaml:"max_reduced_bytes"`

	// Final recommendation cap in the insight bundle.
	MaxRecommendations int `mapstructure:"max_recommendations" yaml:"max_recommendations"`
}

// StageTimeout returns the per-stage timeout as a duration.
func (p Pipeline) StageTimeout() time.Duration {
	if p.StageTimeoutSec <= 0 {
		return 120 * time.Second
	}
	return time.Duration(p.StageTimeoutSec) * time.Second
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.tablescope/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, ".tablescope")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("TABLESCOPE")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("default_model", "openai/gpt-4o-mini")
	v.SetDefault("default_provider", "openrouter")
	v.SetDefault("max_tokens", 4096)
	v.SetDefault("temperature", 0.3)
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("capability_rps", 2.0)
	// Pipeline defaults. The correlation thresholds and the size ceiling are
	// the operational constants the analysis was designed around; they stay
	// configurable pending product input.
	v.SetDefault("pipeline.stage_timeout_sec", 120)
	v.SetDefault("pipeline.strong_correlation", 0.7)
	v.SetDefault("pipeline.moderate_correlation", 0.4)
	v.SetDefault("pipeline.numeric_threshold", 0.9)
	v.SetDefault("pipeline.categorical_ratio", 0.5)
	v.SetDefault("pipeline.categorical_max", 50)
	v.SetDefault("pipeline.max_correlations", 20)
	v.SetDefault("pipeline.max_top_values", 10)
	v.SetDefault("pipeline.max_reduced_bytes", 100*1024)
	v.SetDefault("pipeline.max_recommendations", 5)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, ".tablescope")
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}
