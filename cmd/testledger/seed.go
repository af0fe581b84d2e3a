package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Store three sample test records",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	a, err := connectedApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.svc.Seed(cmd.Context())

	if jsonOutput {
		if perr := printJSON(results); perr != nil {
			return perr
		}
	} else {
		for _, r := range results {
			fmt.Printf("Added %q in block %d (tx %s)\n", r.Name, r.BlockNumber, r.TxHash.Hex())
		}
	}

	if err != nil {
		return fmt.Errorf("seeding stopped after %d records: %w", len(results), err)
	}

	if !jsonOutput {
		fmt.Println("Sample records added successfully")
	}

	return nil
}
