package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cfgpkg "github.com/tablescope/tablescope/internal/config"
	"github.com/tablescope/tablescope/internal/logger"
	"github.com/tablescope/tablescope/internal/pipeline"
)

var (
	anaQuery      string
	anaOutputPath string
	anaJSON       bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a CSV/TSV/XLSX file and stream the results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}

		log := logger.New(cfg.LogLevel, cfg.LogFormat)
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		printer := newChunkPrinter(cmd.OutOrStdout(), anaJSON)
		analyzer := pipeline.NewAnalyzer(cfg, log)
		if err := analyzer.AnalyzeFile(ctx, path, anaQuery, printer.Print); err != nil {
			return err
		}

		if anaOutputPath != "" {
			if printer.report == "" {
				return fmt.Errorf("no report produced, nothing to write")
			}
			if err := os.WriteFile(anaOutputPath, []byte(printer.report), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Printf("✓ Wrote report to %s\n", anaOutputPath)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&anaQuery, "query", "q", "", "optional question to focus the analysis on")
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "write the final report markdown to this file")
	analyzeCmd.Flags().BoolVar(&anaJSON, "json", false, "emit chunks as JSON lines instead of formatted text")
	rootCmd.AddCommand(analyzeCmd)
}
