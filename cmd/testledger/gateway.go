package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var gatewayAttempt int

var gatewayCmd = &cobra.Command{
	Use:   "gateway <cid>",
	Short: "Print the gateway URL of a CID for a retry attempt",
	Args:  cobra.ExactArgs(1),
	RunE:  runGateway,
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
	gatewayCmd.Flags().IntVar(&gatewayAttempt, "attempt", 0,
		"retry attempt; each attempt moves to the next gateway")
}

func runGateway(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	url := a.svc.Gateways().URLFor(args[0], gatewayAttempt)

	if jsonOutput {
		return printJSON(map[string]any{
			"cid":     args[0],
			"attempt": gatewayAttempt,
			"url":     url,
		})
	}

	fmt.Println(url)

	return nil
}
