package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/go-units"
	"github.com/ethpandaops/testledger/pkg/ipfs"
	"github.com/ethpandaops/testledger/pkg/submit"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Pin a file to IPFS and print its descriptor",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

func humanSize(n int64) string {
	return units.HumanSize(float64(n))
}

// attachFile opens path and attaches it to a new draft. The returned
// closer releases the file handle.
func attachFile(path string) (*submit.Draft, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()

		return nil, nil, fmt.Errorf("stat file: %w", err)
	}

	if info.IsDir() {
		_ = f.Close()

		return nil, nil, fmt.Errorf("%s is a directory", path)
	}

	draft := submit.NewDraft()
	draft.Attach(ipfs.File{
		Name: filepath.Base(path),
		Size: info.Size(),
		Body: f,
	})

	return draft, func() { _ = f.Close() }, nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	draft, closeFile, err := attachFile(args[0])
	if err != nil {
		return err
	}
	defer closeFile()

	desc, err := a.svc.Upload(cmd.Context(), draft)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(desc)
	}

	fmt.Printf("Pinned %s (%s)\n", desc.Name, humanSize(desc.Size))
	fmt.Printf("CID: %s\n", desc.CID)
	fmt.Printf("URL: %s\n", desc.URL)

	return nil
}
