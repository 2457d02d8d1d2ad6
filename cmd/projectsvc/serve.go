package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"project-service/internal/app"
	"project-service/internal/config"
	"project-service/pkg/logger"

	"github.com/spf13/cobra"
)

var serveFlags struct {
	port     string
	logLevel string
	dryRun   bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server and block until SIGINT or SIGTERM.

Examples:
  # Start with the environment configuration
  projectsvc serve

  # Override the listen port
  projectsvc serve --port 9090

  # Validate configuration without starting
  projectsvc serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.port, "port", "p", "", "override PORT")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate configuration and exit")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveFlags.port != "" {
		os.Setenv("PORT", serveFlags.port)
	}
	if serveFlags.logLevel != "" {
		os.Setenv("LOG_LEVEL", serveFlags.logLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if serveFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "configuration valid")
		return nil
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	log.Info().Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := app.InitializeService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	return svc.Run(ctx)
}

// commandContext returns the command context, falling back to Background
// when cobra was invoked without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
