package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"articleforge/internal/config"
	"articleforge/internal/logger"
)

var (
	cfgFile      string
	storeBackend string
	debug        bool
)

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "articleforge",
		Short: "Scrape blog articles and rewrite them with fresh references",
		Long: `articleforge imports posts from a blog and produces enhanced versions of them.

Each enhancement looks up two external articles on the same topic, extracts
their content and asks a generative model to rewrite the original in their
style. The enhanced article is stored next to the original and cites the
references it used.

Articles live either behind the articles REST API (served by 'articleforge serve')
or directly in a SQL database.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.articleforge.yaml or $HOME/.articleforge.yaml)")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "", "article store: api or database (default from config: api)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(NewEnhanceCmd())
	rootCmd.AddCommand(NewEnhanceAllCmd())
	rootCmd.AddCommand(NewScrapeCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewMigrateCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// initConfig loads configuration once per invocation and applies global flags
func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if storeBackend != "" {
		switch storeBackend {
		case "api", "database":
			cfg.Store.Backend = storeBackend
		default:
			return fmt.Errorf("unknown store %q, use api or database", storeBackend)
		}
	}

	logger.SetLevel(cfg.App.LogLevel)
	if debug || cfg.App.Debug {
		logger.SetLevel("debug")
	}
	return nil
}
