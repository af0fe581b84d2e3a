package main

import (
	"fmt"
	"os"

	"github.com/ethpandaops/testledger/pkg/devnet"
	"github.com/spf13/cobra"
)

var devnetFollow bool

var devnetCmd = &cobra.Command{
	Use:   "devnet",
	Short: "Manage the local anvil development chain in Docker",
}

var devnetUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the dev chain and wait until it answers",
	RunE:  withDevnet(runDevnetUp),
}

var devnetDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop and remove the dev chain container",
	RunE:  withDevnet(runDevnetDown),
}

var devnetStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the dev chain container state",
	RunE:  withDevnet(runDevnetStatus),
}

var devnetLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the dev chain container logs",
	RunE:  withDevnet(runDevnetLogs),
}

func init() {
	rootCmd.AddCommand(devnetCmd)
	devnetCmd.AddCommand(devnetUpCmd, devnetDownCmd, devnetStatusCmd, devnetLogsCmd)
	devnetLogsCmd.Flags().BoolVarP(&devnetFollow, "follow", "f", false, "stream new log output")
}

func withDevnet(
	run func(cmd *cobra.Command, m devnet.Manager) error,
) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		m, err := devnet.NewManager(log, cfg.Devnet)
		if err != nil {
			return err
		}

		defer func() {
			if err := m.Close(); err != nil {
				log.WithError(err).Warn("Failed to close docker client")
			}
		}()

		return run(cmd, m)
	}
}

func printDevnetStatus(st *devnet.Status) error {
	if jsonOutput {
		return printJSON(st)
	}

	fmt.Printf("Container: %s (%s)\n", st.Name, st.ID)
	fmt.Printf("Image:     %s\n", st.Image)
	fmt.Printf("State:     %s\n", st.State)
	fmt.Printf("RPC URL:   %s\n", st.RPCURL)
	fmt.Printf("Chain ID:  %d\n", st.ChainID)

	return nil
}

func runDevnetUp(cmd *cobra.Command, m devnet.Manager) error {
	st, err := m.Up(cmd.Context())
	if err != nil {
		return err
	}

	return printDevnetStatus(st)
}

func runDevnetDown(cmd *cobra.Command, m devnet.Manager) error {
	if err := m.Down(cmd.Context()); err != nil {
		return err
	}

	fmt.Println("Dev chain removed")

	return nil
}

func runDevnetStatus(cmd *cobra.Command, m devnet.Manager) error {
	st, err := m.Status(cmd.Context())
	if err != nil {
		return err
	}

	return printDevnetStatus(st)
}

func runDevnetLogs(cmd *cobra.Command, m devnet.Manager) error {
	return m.Logs(cmd.Context(), os.Stdout, devnetFollow)
}
