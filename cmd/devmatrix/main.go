// Package main provides the devmatrix binary entry point.
// Devmatrix reconciles constraints extracted from a specification
// against constraints extracted from generated code and reports, with
// auditable confidence, which requirements are actually enforced.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/commands"
	"github.com/devmatrix-ai/devmatrix-mvp-sub001/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "devmatrix"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cfg := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Constraint reconciliation for generated code",
		Long: `Devmatrix validates that the constraints a specification demands are
actually enforced by generated code, not merely described in comments.

It normalizes constraints from heterogeneous extraction sources into one
canonical form, deduplicates them with deterministic source priority,
matches spec against code in tiers, and reports strict and relaxed
compliance scores.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			switch strings.ToLower(logLevel) {
			case "debug":
				level = slog.LevelDebug
			case "warn":
				level = slog.LevelWarn
			case "error":
				level = slog.LevelError
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			if configPath != "" {
				loaded, err := config.LoadFromFile(configPath)
				if err != nil {
					return err
				}
				cfg.Merge(loaded)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(commands.NewValidateCmd(cfg))
	cmd.AddCommand(commands.NewWatchCmd(cfg))
	cmd.AddCommand(commands.NewListenCmd(cfg))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}
