package tpm

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ValentinKolb/tcsd/cmd/util"
	"github.com/ValentinKolb/tcsd/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcClient *client.RPCClient

	// TPMCommands represents the device command group
	TPMCommands = &cobra.Command{
		Use:                "tpm",
		Short:              "Send commands to the TPM behind the daemon",
		PersistentPreRunE:  setupTPMClient,
		PersistentPostRunE: closeTPMClient,
	}

	// transmitCmd represents the transmit command
	transmitCmd = &cobra.Command{
		Use:   "transmit [command]",
		Short: "Transmit a marshaled TPM command",
		Long:  "Transmit a marshaled TPM command given as hex string (spaces are ignored) and print the response as hex string.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runTransmit,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add subcommands to tpm command
	TPMCommands.AddCommand(transmitCmd)

	// Add common RPC flags to the tpm command
	util.SetupRPCClientFlags(TPMCommands)
}

// setupTPMClient connects to the daemon and opens a context
func setupTPMClient(cmd *cobra.Command, _ []string) error {
	var err error
	rpcClient, err = util.NewClient(cmd)
	return err
}

// closeTPMClient closes the context and the connection
func closeTPMClient(_ *cobra.Command, _ []string) error {
	if rpcClient == nil {
		return nil
	}
	err := rpcClient.Close()
	rpcClient = nil
	return err
}

// runTransmit handles the transmit command
func runTransmit(_ *cobra.Command, args []string) error {
	cmdBytes, err := hex.DecodeString(strings.Join(args, ""))
	if err != nil {
		return fmt.Errorf("invalid command format: %v", err)
	}

	resp, err := rpcClient.Transmit(cmdBytes)
	if err != nil {
		return fmt.Errorf("failed to transmit command: %v", err)
	}

	fmt.Println(hex.EncodeToString(resp))
	return nil
}
