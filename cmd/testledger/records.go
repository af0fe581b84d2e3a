package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/ethpandaops/testledger/pkg/records"
	"github.com/spf13/cobra"
)

var (
	recordsSearch string
	recordAttempt int
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List stored test records, newest first",
	RunE:  runRecords,
}

var recordCmd = &cobra.Command{
	Use:   "record <id>",
	Short: "Show a single record with its decoded payload",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecord,
}

func init() {
	rootCmd.AddCommand(recordsCmd, recordCmd)
	recordsCmd.Flags().StringVar(&recordsSearch, "search", "",
		"case-insensitive filter on name, category and payload")
	recordCmd.Flags().IntVar(&recordAttempt, "attempt", 0,
		"gateway attempt used for the file URL")
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func resultLabel(passed bool) string {
	if passed {
		return "PASS"
	}

	return "FAIL"
}

func runRecords(cmd *cobra.Command, args []string) error {
	a, err := connectedApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.svc.Records(cmd.Context(), recordsSearch)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(list)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tRESULT\tTIMESTAMP\tSUBMITTER")

	for _, r := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, records.CategoryLabel(r.Category), resultLabel(r.Passed),
			formatMillis(r.Timestamp), r.Submitter)
	}

	return tw.Flush()
}

func runRecord(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id < 0 {
		return fmt.Errorf("invalid record id %q", args[0])
	}

	a, err := connectedApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	detail, err := a.svc.Record(cmd.Context(), id, recordAttempt)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(detail)
	}

	fmt.Printf("ID:        %d\n", detail.ID)
	fmt.Printf("Name:      %s\n", detail.Name)
	fmt.Printf("Category:  %s\n", records.CategoryLabel(detail.Category))
	fmt.Printf("Result:    %s\n", resultLabel(detail.Passed))
	fmt.Printf("Timestamp: %s\n", formatMillis(detail.Timestamp))
	fmt.Printf("Submitter: %s\n", detail.Submitter)

	env := detail.Envelope
	if env == nil {
		fmt.Printf("Data:      %s\n", detail.Data)

		return nil
	}

	if env.ExecutionTime != "" {
		fmt.Printf("Duration:  %s ms\n", env.ExecutionTime)
	}

	if env.TestData != "" {
		fmt.Printf("Notes:     %s\n", env.TestData)
	}

	if env.IPFSFile != nil {
		fmt.Printf("File:      %s (%s)\n", env.IPFSFile.Name, humanSize(env.IPFSFile.Size))
		fmt.Printf("CID:       %s\n", env.IPFSFile.CID)
		fmt.Printf("URL:       %s\n", detail.GatewayURL)
	}

	return nil
}
