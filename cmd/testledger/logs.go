package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ethpandaops/testledger/pkg/logbuf"
	"github.com/spf13/cobra"
)

var (
	logsLevel  string
	logsClear  bool
	logsExport string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show, export or clear the persisted application log",
	Long: `Show entries of the application log ring buffer. Entries survive between
runs only when logs.storage is enabled.`,
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)

	f := logsCmd.Flags()
	f.StringVar(&logsLevel, "level", "", "only show entries of this level (debug, info, warn, error)")
	f.BoolVar(&logsClear, "clear", false, "drop all entries, in memory and in storage")
	f.StringVar(&logsExport, "export", "", "write all entries as JSON to this path, - for stdout")
}

func runLogs(cmd *cobra.Command, args []string) error {
	switch logsLevel {
	case "", logbuf.LevelDebug, logbuf.LevelInfo, logbuf.LevelWarn, logbuf.LevelError:
	default:
		return fmt.Errorf("invalid level %q", logsLevel)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	buf, err := openLogBuffer(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	defer func() {
		if err := buf.Close(); err != nil {
			log.WithError(err).Warn("Failed to close log storage")
		}
	}()

	if logsClear {
		if err := buf.Clear(cmd.Context()); err != nil {
			return err
		}

		fmt.Println("Logs cleared")

		return nil
	}

	if logsExport != "" {
		return exportLogs(buf)
	}

	entries := buf.Entries(logsLevel)

	if jsonOutput {
		return printJSON(entries)
	}

	for _, e := range entries {
		fmt.Printf("%s %-5s [%s] %s",
			e.Timestamp.Format(time.RFC3339), e.Level, e.Component, e.Message)

		for k, v := range e.Data {
			fmt.Printf(" %s=%v", k, v)
		}

		fmt.Println()
	}

	return nil
}

func exportLogs(buf *logbuf.Buffer) error {
	if logsExport == "-" {
		return buf.Export(os.Stdout)
	}

	path := logsExport
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = path + string(os.PathSeparator) + logbuf.ExportFilename(time.Now())
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}

	if err := buf.Export(f); err != nil {
		_ = f.Close()

		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing export file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Exported %d entries to %s\n", buf.Len(), path)

	return nil
}
