package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"menu-scan/pkg/config"
	"menu-scan/pkg/logging"
)

var log = logging.For("main")

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "menu-scan",
	Short: "Scan photographed menus into structured items",
	Long: `menu-scan straightens a menu photo, runs OCR, rebuilds the text lines
from token positions and structures them into menu items with an LLM.
Without a subcommand it starts the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := godotenv.Load(); err != nil {
			log.WithError(err).Debug("No .env file loaded")
		}
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logging.Setup(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
