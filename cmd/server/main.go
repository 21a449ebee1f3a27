package main // Entry point package

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/book-panel/internal/config"
	"github.com/iliyamo/book-panel/internal/logger"
)

var (
	configFile string

	rootCmd = &cobra.Command{
		Use:           "book-panel",
		Short:         "Admin backend for a book lending and ordering panel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional config file (yaml, json, toml)")
	rootCmd.AddCommand(serveCmd, migrateCmd, consumeCmd)
}

// setup loads the configuration and builds the logger shared by every
// command.  The returned func flushes the logger.
func setup() (*config.Config, *zap.Logger, func(), error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, nil, err
	}
	log, closer := logger.New(cfg.Log)
	return cfg, log, func() {
		_ = log.Sync()
		_ = closer.Close()
	}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
