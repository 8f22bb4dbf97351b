package key

import (
	"github.com/ValentinKolb/tcsd/cmd/util"
	"github.com/ValentinKolb/tcsd/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcClient *client.RPCClient

	// KeyCommands represents the key registry command group
	KeyCommands = &cobra.Command{
		Use:                "key",
		Short:              "Query and change the persistent key hierarchy of the daemon",
		PersistentPreRunE:  setupKeyClient,
		PersistentPostRunE: closeKeyClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the key command
	util.SetupRPCClientFlags(KeyCommands)

	// Add subcommands
	KeyCommands.AddCommand(listCmd)
	KeyCommands.AddCommand(getCmd)
	KeyCommands.AddCommand(childrenCmd)
	KeyCommands.AddCommand(registerCmd)
	KeyCommands.AddCommand(unregisterCmd)

	registerCmd.Flags().String("pub-data", "", util.WrapString("The public key data as hex string"))
	registerCmd.Flags().String("blob", "", util.WrapString("The wrapped key blob as hex string"))
	registerCmd.Flags().String("vendor-data", "", util.WrapString("Vendor specific data as hex string (versioned stores only)"))
	registerCmd.Flags().Uint16("cache-flags", 0, util.WrapString("The cache flags of the key"))
}

// setupKeyClient connects to the daemon and opens a context
func setupKeyClient(cmd *cobra.Command, _ []string) error {
	var err error
	rpcClient, err = util.NewClient(cmd)
	return err
}

// closeKeyClient closes the context and the connection
func closeKeyClient(_ *cobra.Command, _ []string) error {
	if rpcClient == nil {
		return nil
	}
	err := rpcClient.Close()
	rpcClient = nil
	return err
}
