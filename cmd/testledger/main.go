package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethpandaops/testledger/pkg/config"
	"github.com/ethpandaops/testledger/pkg/dashboard"
	"github.com/ethpandaops/testledger/pkg/logbuf"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information set at build time.
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFiles   []string
	logLevel   string
	jsonOutput bool
	log        *logrus.Logger
)

func main() {
	log = logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		log.WithError(err).Fatal("Failed to execute command")
	}
}

var rootCmd = &cobra.Command{
	Use:   "testledger",
	Short: "Record and browse test results on an Ethereum contract",
	Long: `testledger stores test execution records, with an attached file pinned to
IPFS, in a TestDataManager contract, and browses or audits the stored
records through contract reads and event logs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}

		log.SetLevel(level)

		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("testledger %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&cfgFiles, "config", nil,
		"config file path (repeat to merge several files)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel,
		"log level ("+strings.Join(logLevels(), ", ")+")")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"print results as JSON")

	rootCmd.AddCommand(versionCmd)
}

func logLevels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}

	return levels
}

// loadConfig loads and validates the configuration. The config file's log
// level applies unless --log-level was given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFiles...)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !cmd.Flags().Changed("log-level") {
		level, err := logrus.ParseLevel(cfg.Global.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid global.log_level %q: %w", cfg.Global.LogLevel, err)
		}

		log.SetLevel(level)
	}

	return cfg, nil
}

// openLogBuffer creates the log ring buffer, restores persisted entries
// and attaches it to the logger.
func openLogBuffer(ctx context.Context, cfg *config.Config) (*logbuf.Buffer, error) {
	var backend logbuf.Backend

	if cfg.Logs.Storage.Enabled {
		b, err := logbuf.NewBackend(ctx, &cfg.Logs.Storage)
		if err != nil {
			return nil, fmt.Errorf("opening log storage: %w", err)
		}

		backend = b
	}

	buf := logbuf.New(logbuf.Options{
		Capacity:       cfg.Logs.Capacity,
		StorageEnabled: cfg.Logs.Storage.Enabled,
		Backend:        backend,
	})

	if err := buf.Load(ctx); err != nil {
		log.WithError(err).Warn("Failed to restore persisted logs")
	}

	log.AddHook(logbuf.NewHook(buf))

	return buf, nil
}

// app bundles what most commands need.
type app struct {
	cfg  *config.Config
	logs *logbuf.Buffer
	svc  dashboard.Service
}

func (a *app) Close() {
	if err := a.logs.Close(); err != nil {
		log.WithError(err).Warn("Failed to close log storage")
	}
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logs, err := openLogBuffer(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}

	svc, err := dashboard.New(log, dashboard.Options{Config: cfg})
	if err != nil {
		_ = logs.Close()

		return nil, fmt.Errorf("creating dashboard: %w", err)
	}

	return &app{cfg: cfg, logs: logs, svc: svc}, nil
}

// connectedApp is newApp followed by a wallet connection.
func connectedApp(cmd *cobra.Command) (*app, error) {
	a, err := newApp(cmd)
	if err != nil {
		return nil, err
	}

	status, err := a.svc.Connect(cmd.Context())
	if err != nil {
		a.Close()

		return nil, fmt.Errorf("connecting wallet: %w", err)
	}

	if !status.Deployed {
		log.WithField("chain_id", status.Network.ChainID).
			Warn("Contract not deployed on this network")
	}

	return a, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
