package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/askiguard/internal/config"
	"github.com/ppiankov/askiguard/internal/guard"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

// errBlocked is returned by commands whose verdict was a block. Execute
// maps it to exit code 2 so scripts can tell a block from a failure.
var errBlocked = errors.New("blocked")

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config YAML (default ~/.askiguard/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text|json)")
}

var rootCmd = &cobra.Command{
	Use:   "askiguard",
	Short: "Validation gate for assistant output and scheduled commands",
	Long: "Checks assistant responses for fabricated capabilities, false promises, leaks,\n" +
		"unverified claims and manipulation, and runs scheduled commands through\n" +
		"syntax, logic, context, approval and execution-log levels before they are stored.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errBlocked) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolvedConfigPath is the file the service reads and the reloader watches.
func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

// openService loads the config and builds a local validation service.
func openService() (*guard.Service, error) {
	cfg, hash, err := config.LoadConfigWithHash(configPath)
	if err != nil {
		return nil, err
	}
	svc, err := guard.New(cfg, hash)
	if err != nil {
		return nil, fmt.Errorf("start validator: %w", err)
	}
	return svc, nil
}

func closeService(svc *guard.Service) {
	if err := svc.Close(); err != nil {
		slog.Warn("close failed", "error", err)
	}
}
