package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shipsmith/shipsmith/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "shipsmith",
	Short: "Automated digital product pipeline",
	Long:  "Discovers developer problems from Hacker News, GitHub, and Reddit, defines a sellable product, generates its assets, and packages a marketplace listing.",
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
