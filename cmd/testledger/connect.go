package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to the wallet and show the session",
	Long: `Connect to the configured wallet endpoint. If the wallet is on an
unsupported network, a switch to the default network is requested, adding
the network to the wallet when it is unknown.`,
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	a, err := connectedApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	status := a.svc.Status()

	if jsonOutput {
		return printJSON(status)
	}

	fmt.Printf("Account:  %s\n", status.Account)
	fmt.Printf("Network:  %s (chain id %d)\n", status.Network.Name, status.Network.ChainID)

	if status.Deployed {
		fmt.Printf("Contract: %s\n", status.Contract)
	} else {
		fmt.Println("Contract: not deployed on this network")
	}

	return nil
}
