package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/northcover/parametric-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "parametric",
	Short: "Parametric risk and settlement engine",
	Long:  "Settles parametric insurance policies against live signals, prices flight-delay products from observation history, and stress-tests portfolio solvency with Monte Carlo simulation.",
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
