package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the node connection and the contract deployment",
	Long: `Check that the configured node answers and that the TestDataManager
contract responds at the address configured for the node's chain. No
accounts are requested. Exits non-zero when the node is unreachable.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	h := a.svc.Check(cmd.Context())

	if jsonOutput {
		if err := printJSON(h); err != nil {
			return err
		}
	} else {
		fmt.Printf("Checking node at %s...\n", h.RPCURL)

		if !h.NodeOK {
			fmt.Printf("Error connecting to node: %s\n", h.NodeError)
			fmt.Println("\nStart a local chain with:")
			fmt.Println("testledger devnet up")
		} else {
			fmt.Printf("Connected to node. Current block number: %d\n", h.BlockNumber)
			fmt.Printf("Network Name: %s\n", h.Network.Name)
			fmt.Printf("Chain ID: %d\n", h.Network.ChainID)

			if h.ContractOK {
				fmt.Printf("Contract verified at %s\n", h.Contract)
				fmt.Printf("Current test data count: %d\n", h.RecordCount)
			} else {
				fmt.Printf("Contract verification failed: %s\n", h.ContractError)
				fmt.Println("\nDeploy the contract and set its address under contract.addresses.")
			}
		}
	}

	if !h.NodeOK {
		return errors.New("node unreachable")
	}

	return nil
}
