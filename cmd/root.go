package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"valuation/internal/config"
	"valuation/internal/logger"
)

var (
	configPath string
	verbose    bool

	cfg = config.Default()
	log = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "valuation",
	Short: "Estimate warehouse unit prices from nearby comparable sales",
	Long: `Selects comparable warehouse transactions by geodesic distance and floor
area, then interpolates the target's price per m² with inverse distance
weighting.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		level, err := logger.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		if verbose {
			level = slog.LevelDebug
		}
		log = logger.New(os.Stderr, level)
		slog.SetDefault(log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to the TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
