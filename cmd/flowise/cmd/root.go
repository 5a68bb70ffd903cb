// Package cmd provides the flowise CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/viola622/Flowise/internal/config"
	"github.com/viola622/Flowise/internal/logger"
	"github.com/viola622/Flowise/internal/version"
)

type rootOptions struct {
	env        string
	configPath string
	logLevel   string
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "flowise",
		Short:         "Document store and hybrid retrieval API",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(), "Environment name: local, dev, prod")
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file (overrides --env lookup)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override: debug, info, warn, error")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newRetrieveCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	return config.Load(o.env)
}

func (o *rootOptions) newLogger(cfg config.Config) (*zap.Logger, error) {
	level := cfg.Logging.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	return logger.NewLogger(o.loggerEnv(), level)
}

// loggerEnv maps unknown environment names to the console encoder.
func (o *rootOptions) loggerEnv() string {
	switch o.env {
	case "prod", "test", "local", "dev", "docker":
		return o.env
	default:
		return "local"
	}
}
