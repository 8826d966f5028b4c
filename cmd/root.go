package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reviewpulse/reviewpulse/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "reviewpulse",
	Short: "Customer review tracking and scoring pipeline",
	Long:  "Ingests customer reviews for tracked organizations, deduplicates them, classifies them against a topic taxonomy via embeddings, and derives per-topic quality scores.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
