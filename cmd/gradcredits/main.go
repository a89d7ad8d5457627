package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/rpggio/gradcredits/internal/config"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	closeLog func()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{closeLog: func() {}}
	var configPath string

	root := &cobra.Command{
		Use:           "gradcredits",
		Short:         "Track course credits toward graduation",
		Long:          "gradcredits keeps a local credit ledger, evaluates graduation requirements and mirrors the ledger to a store server after sign-in.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				if err := os.Setenv("GRADCREDITS_CONFIG_PATH", configPath); err != nil {
					return err
				}
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			a.cfg = cfg

			// Stdout carries JSON-RPC in stdio mode and command output for
			// one-shot commands; logs go to stderr in both cases.
			toStderr := true
			switch cmd.Name() {
			case "serve":
				toStderr = cfg.Transport.Mode == "stdio"
			case "store":
				toStderr = false
			}
			a.logger, a.closeLog = newLogger(cfg.Log, toStderr)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.closeLog()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (overrides GRADCREDITS_CONFIG_PATH)")

	root.AddCommand(newServeCmd(a), newStoreCmd(a), newMigrateCmd(a))
	return root
}
