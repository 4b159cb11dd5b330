package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/soyeahso/kairos/internal/config"
	"github.com/soyeahso/kairos/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// loaded by the root PersistentPreRunE
	paths     config.Paths
	cfg       config.Config
	cfgErr    error
	log       *logging.Logger
	logCloser io.Closer
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kairos",
		Short: "Kairos conversational task assistant",
		Long: "Kairos routes chat turns through a language model that can call tools " +
			"(web search, email, weather, code execution) and keeps every conversation thread on disk.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}

			// A broken config file is reported by the commands that need it;
			// config editing commands must still run.
			cfg, cfgErr = config.Load(paths.Config)
			if cfgErr != nil {
				cfg = config.Defaults()
			}

			opts := logging.Options{
				Level: cfg.Logging.Level,
				Style: cfg.Logging.ConsoleStyle,
				File:  cfg.Logging.File,
			}
			if logLevel != "" {
				if !logging.ValidLevel(logLevel) {
					return fmt.Errorf("invalid --log-level %q (want one of %s)", logLevel, strings.Join(logging.Levels, ", "))
				}
				opts.Level = logLevel
			}
			log, logCloser, err = logging.NewWithOptions(opts)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.kairos/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newThreadCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newGmailCmd())

	return cmd
}

// loadedConfig returns the config loaded for this invocation, or the error
// that prevented loading it.
func loadedConfig() (config.Config, error) {
	return cfg, cfgErr
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
