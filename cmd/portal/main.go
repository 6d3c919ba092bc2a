package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"portal/api/internal/config"
	"portal/api/internal/logging"
)

var (
	configPath string
	cfg        config.Config
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "Platform Services portal backend",
	Long: `portal serves the Platform Services portal API and, for demo and test
deployments, the mock authentication service it can sign users in against.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		logger = logger.With(zap.String("command", cmd.Name()))
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (default: $CONFIG_PATH or ./config.yaml)")
	rootCmd.AddCommand(serveCmd, authServerCmd, hashPasswordCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
