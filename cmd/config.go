package cmd

import (
	"fmt"
	"strconv"

	cfgpkg "github.com/tablescope/tablescope/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set TableScope configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("api_key: %s\n", mask(cfg.APIKey))
		fmt.Printf("default_model: %s\n", cfg.DefaultModel)
		if cfg.DefaultProvider != "" {
			fmt.Printf("default_provider: %s\n", cfg.DefaultProvider)
		}
		fmt.Printf("max_tokens: %d\n", cfg.MaxTokens)
		fmt.Printf("temperature: %.3f\n", cfg.Temperature)
		fmt.Printf("log_level: %s\n", cfg.LogLevel)
		fmt.Printf("log_format: %s\n", cfg.LogFormat)
		fmt.Printf("pipeline.stage_timeout_sec: %d\n", cfg.Pipeline.StageTimeoutSec)
		fmt.Printf("pipeline.strong_correlation: %.2f\n", cfg.Pipeline.StrongCorrelation)
		fmt.Printf("pipeline.moderate_correlation: %.2f\n", cfg.Pipeline.ModerateCorrelation)
		fmt.Printf("pipeline.max_reduced_bytes: %d\n", cfg.Pipeline.MaxReducedBytes)
		fmt.Printf("pipeline.max_recommendations: %d\n", cfg.Pipeline.MaxRecommendations)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		switch key {
		case "api_key":
			cfg.APIKey = val
		case "default_model":
			cfg.DefaultModel = val
		case "default_provider":
			switch val {
			case "openrouter", "OpenRouter", "OPENROUTER":
				cfg.DefaultProvider = "openrouter"
			default:
				return fmt.Errorf("invalid default_provider: %s (use openrouter)", val)
			}
		case "max_tokens":
			i, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid int for max_tokens: %w", err)
			}
			cfg.MaxTokens = i
		case "temperature":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("invalid float for temperature: %w", err)
			}
			cfg.Temperature = f
		case "log_level":
			cfg.LogLevel = val
		case "log_format":
			switch val {
			case "text", "json":
				cfg.LogFormat = val
			default:
				return fmt.Errorf("invalid log_format: %s (use text or json)", val)
			}
		case "pipeline.stage_timeout_sec":
			i, err := strconv.Atoi(val)
			if err != nil || i <= 0 {
				return fmt.Errorf("invalid int for pipeline.stage_timeout_sec: %v", val)
			}
			cfg.Pipeline.StageTimeoutSec = i
		case "pipeline.strong_correlation":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || f <= 0 || f > 1 {
				return fmt.Errorf("invalid float for pipeline.strong_correlation: %v", val)
			}
			cfg.Pipeline.StrongCorrelation = f
		case "pipeline.moderate_correlation":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || f <= 0 || f > 1 {
				return fmt.Errorf("invalid float for pipeline.moderate_correlation: %v", val)
			}
			cfg.Pipeline.ModerateCorrelation = f
		case "pipeline.max_reduced_bytes":
			i, err := strconv.Atoi(val)
			if err != nil || i <= 0 {
				return fmt.Errorf("invalid int for pipeline.max_reduced_bytes: %v", val)
			}
			cfg.Pipeline.MaxReducedBytes = i
		case "pipeline.max_recommendations":
			i, err := strconv.Atoi(val)
			if err != nil || i <= 0 {
				return fmt.Errorf("invalid int for pipeline.max_recommendations: %v", val)
			}
			cfg.Pipeline.MaxRecommendations = i
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("Saved config")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
