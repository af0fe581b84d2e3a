package main

import (
	"errors"
	"fmt"

	"github.com/ethpandaops/testledger/pkg/submit"
	"github.com/spf13/cobra"
)

var (
	submitFile string
	submitMeta submit.Metadata
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Pin a file and store a test record on chain",
	Long: `Pin the given file to IPFS, then store a test record referencing it in the
TestDataManager contract and wait for the transaction to be mined.

If confirmation takes longer than contract.confirmation_timeout the command
prints the transaction hash and exits successfully; the transaction may
still be mined later.`,
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	f := submitCmd.Flags()
	f.StringVar(&submitFile, "file", "", "file to attach (required)")
	f.StringVar(&submitMeta.Name, "name", "", "test name, at least 3 characters (required)")
	f.StringVar(&submitMeta.Type, "type", "", "test category, e.g. ui, api, integration (required)")
	f.StringVar(&submitMeta.Result, "result", "", "pass or fail (required)")
	f.StringVar(&submitMeta.ExecutionTime, "execution-time", "", "execution time in milliseconds (required)")
	f.StringVar(&submitMeta.TestData, "test-data", "", "free-form notes")

	_ = submitCmd.MarkFlagRequired("file")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if err := submitMeta.Validate(); err != nil {
		return err
	}

	a, err := connectedApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	draft, closeFile, err := attachFile(submitFile)
	if err != nil {
		return err
	}
	defer closeFile()

	desc, err := a.svc.Upload(cmd.Context(), draft)
	if err != nil {
		return err
	}

	log.WithField("cid", desc.CID).Info("File pinned")

	res, err := a.svc.Submit(cmd.Context(), submitMeta, draft)

	switch {
	case err == nil:
	case errors.Is(err, submit.ErrConfirmationTimeout) && res != nil:
		fmt.Println(submit.UserMessage(err))
		fmt.Printf("Transaction: %s\n", res.TxHash.Hex())

		return nil
	default:
		return fmt.Errorf("%s: %w", submit.UserMessage(err), err)
	}

	if jsonOutput {
		return printJSON(res)
	}

	fmt.Println("Test data stored successfully")
	fmt.Printf("Transaction: %s\n", res.TxHash.Hex())
	fmt.Printf("Block:       %d\n", res.BlockNumber)
	fmt.Printf("Gas used:    %d\n", res.GasUsed)
	fmt.Printf("File:        %s\n", desc.URL)

	return nil
}
