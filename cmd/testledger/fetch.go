package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	fetchMaxAttempts int
	fetchOut         string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <id>",
	Short: "Download the file attached to a record",
	Long: `Download the file attached to a record, moving to the next IPFS gateway
after each failed attempt. The file is written to --out, or to its original
name in the current directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().IntVar(&fetchMaxAttempts, "max-attempts", 0,
		"maximum download attempts (default: one per gateway)")
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "",
		"output path, - for stdout")
}

func runFetch(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id < 0 {
		return fmt.Errorf("invalid record id %q", args[0])
	}

	a, err := connectedApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	detail, err := a.svc.Record(cmd.Context(), id, 0)
	if err != nil {
		return err
	}

	if detail.Envelope == nil || detail.Envelope.IPFSFile == nil {
		return fmt.Errorf("record %d has no attached file", id)
	}

	file := detail.Envelope.IPFSFile
	gateways := a.svc.Gateways()

	attempts := fetchMaxAttempts
	if attempts <= 0 {
		attempts = gateways.Len()
	}

	var (
		buf     bytes.Buffer
		lastErr error
	)

	for attempt := range attempts {
		url := gateways.URLFor(file.CID, attempt)
		buf.Reset()

		logger := log.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"url":     url,
		})

		if _, err := gateways.Get(cmd.Context(), url, &buf); err != nil {
			logger.WithError(err).Warn("Gateway download failed")

			lastErr = err

			if cmd.Context().Err() != nil {
				break
			}

			continue
		}

		logger.WithField("size", humanSize(int64(buf.Len()))).Info("File downloaded")
		lastErr = nil

		break
	}

	if lastErr != nil {
		return fmt.Errorf("downloading %s after %d attempts: %w", file.CID, attempts, lastErr)
	}

	return writeFetched(file.Name, &buf)
}

// localFileName reduces a file name taken from a record payload to a bare
// name inside the working directory.
func localFileName(name string) (string, error) {
	base := filepath.Base(filepath.Clean(strings.ReplaceAll(name, "\\", "/")))

	switch base {
	case "", ".", "..", "/", "-":
		return "", fmt.Errorf("unusable file name %q, use --out", name)
	}

	if !filepath.IsLocal(base) {
		return "", fmt.Errorf("unusable file name %q, use --out", name)
	}

	return base, nil
}

func writeFetched(name string, r io.Reader) error {
	out := fetchOut
	if out == "" {
		if name == "" {
			return errors.New("file has no name, use --out")
		}

		local, err := localFileName(name)
		if err != nil {
			return err
		}

		out = local
	}

	if out == "-" {
		_, err := io.Copy(os.Stdout, r)

		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()

		return fmt.Errorf("writing output file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Saved %s\n", out)

	return nil
}
