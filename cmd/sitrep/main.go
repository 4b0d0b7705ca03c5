// Package main is the entry point of sitrep, the situational report
// generator. It loads configuration, wires the collectors and runs one
// report job per client id.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pedrodavics/PGR/internal/batch"
	"github.com/pedrodavics/PGR/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath   string
	outputDir    string
	templatePath string
	metricsFile  string
	runAll       bool
)

// errJobsFailed makes the process exit 1 after the summary was printed.
var errJobsFailed = errors.New("one or more reports failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errJobsFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sitrep",
		Short:         "Generate monthly situational reports for client systems",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (default: discovered)")
	root.PersistentFlags().StringVar(&outputDir, "output", "", "Directory for final documents")
	root.PersistentFlags().StringVar(&templatePath, "template", "", "Template PDF")

	runCmd := &cobra.Command{
		Use:   "run [client-id...]",
		Short: "Generate the report of each client, one after another",
		RunE:  runReports,
	}
	runCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile when done")
	runCmd.Flags().BoolVar(&runAll, "all", false, "Run every client in the roster")

	clientsCmd := &cobra.Command{
		Use:   "clients",
		Short: "List the client roster",
		Args:  cobra.NoArgs,
		RunE:  listClients,
	}

	configCmd := &cobra.Command{Use: "config", Short: "Manage the configuration file"}
	configCmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the effective configuration to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initConfig,
	})

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version and exit",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sitrep %s\n", version)
		},
	}

	root.AddCommand(runCmd, clientsCmd, configCmd, versionCmd)
	return root
}

// loadConfig applies defaults, the embedded file, the external file, the
// environment and the CLI flags in that order.
func loadConfig() (*config.Config, error) {
	cli := config.CLIOverrides{OutputDir: outputDir, Template: templatePath}
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadLayered(cli, embeddedConfig, configPath)
	} else {
		cfg, err = config.LoadLayered(cli, embeddedConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("Received signal, cancelling batch",
				zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runReports(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !runAll {
		return errors.New("no client ids given; pass ids or --all")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := initLogger(cfg)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	logger.Info("Starting sitrep",
		zap.String("version", version),
		zap.String("backend", cfg.Monitoring.Backend),
		zap.String("output", cfg.Report.OutputDir))

	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ids := args
	if runAll {
		ids, err = a.rosterIDs(ctx)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	a.coordinator.OnProgress(func(p batch.Progress) {
		status := "ok"
		if !p.Outcome.Success {
			status = "FAILED"
		}
		fmt.Fprintf(out, "[%d/%d] %s %s: %s\n", p.Done, p.Total, p.Outcome.ClientID, status, p.Outcome.Message)
	})
	result := a.coordinator.Run(ctx, ids)
	fmt.Fprintln(out, result.Summary())

	if metricsFile != "" {
		if err := a.metrics.WriteTextfile(metricsFile); err != nil {
			logger.Error("Failed to write metrics file", zap.String("path", metricsFile), zap.Error(err))
		}
	}
	if len(result.Failed) > 0 {
		return errJobsFailed
	}
	return nil
}

func listClients(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := initLogger(cfg)
	defer logger.Sync()

	ctx, cancel := signalContext(logger)
	defer cancel()

	dir, err := openDirectory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer dir.Close()

	clients, err := dir.Clients(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, c := range clients {
		fmt.Fprintf(tw, "%s\t%s\n", c.ID, c.Name)
	}
	return tw.Flush()
}

func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := "config.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if err := config.WriteConfig(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
	return nil
}

// initLogger creates a zap logger based on the configuration.
// It outputs to both console (human-readable) and optionally a JSON log file.
func initLogger(cfg *config.Config) *zap.Logger {
	var level zapcore.Level
	switch cfg.Logging.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	// Console output goes to stderr so stdout carries only progress and the summary.
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)

	cores := []zapcore.Core{consoleCore}

	if cfg.Logging.File != "" {
		file, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err == nil {
			fileCore := zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				zapcore.AddSync(file),
				level,
			)
			cores = append(cores, fileCore)
		}
	}

	return zap.New(zapcore.NewTee(cores...))
}
