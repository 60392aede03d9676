package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/gochunk/internal/config"
	"github.com/dshills/gochunk/internal/mcp"
	"github.com/dshills/gochunk/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	cfgFile  string
	dbPath   string
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "gochunk",
		Short: "gochunk - pluggable content-chunking engine",
		Long: `gochunk partitions ordered sequences (numeric samples, text tokens, bytes)
into variable-length chunks with a replaceable boundary strategy, scores the
result and stores every run in SQLite.

It can run as an MCP server on stdio or as a one-shot CLI.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "YAML config file (GOCHUNK_* variables override it)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database file path (overrides db_path)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(opts),
		newChunkCmd(opts),
		newRestoreCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads the configuration, applies flag overrides and builds the logger
func (o *globalOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the MCP server. Protocol messages use stdin and stdout; logs go to
stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("gochunk MCP server starting",
				zap.String("version", version),
				zap.String("build_mode", storage.BuildMode),
				zap.String("driver", storage.DriverName))

			server, err := mcp.NewServer(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			// Set up graceful shutdown
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			// Start server in a goroutine
			errChan := make(chan error, 1)
			go func() {
				logger.Info("MCP server ready, listening on stdio")
				errChan <- server.Serve(ctx)
			}()

			// Wait for shutdown signal or error
			select {
			case sig := <-sigChan:
				logger.Info("shutting down", zap.String("signal", sig.String()))
				cancel()
			case err := <-errChan:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
			}

			logger.Info("server stopped")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "gochunk %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
			fmt.Fprintf(out, "Schema Version: %s\n", storage.CurrentSchemaVersion)
			return nil
		},
	}
}
