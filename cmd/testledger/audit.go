package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List TestDataAdded events, newest first",
	RunE:  runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	a, err := connectedApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	events, err := a.svc.Audit(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(events)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORD\tNAME\tRESULT\tACTOR\tTIMESTAMP\tBLOCK\tTX")

	for _, e := range events {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.RecordID, e.Name, resultLabel(e.Passed), e.Actor,
			formatMillis(e.Timestamp), e.BlockNumber, e.TxHash)
	}

	return tw.Flush()
}
