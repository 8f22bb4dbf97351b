package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/tcsd/cmd/inspect"
	keyCmd "github.com/ValentinKolb/tcsd/cmd/key"
	"github.com/ValentinKolb/tcsd/cmd/serve"
	"github.com/ValentinKolb/tcsd/cmd/tpm"
	"github.com/ValentinKolb/tcsd/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "tcsd",
		Short: "TPM core services daemon",
		Long: fmt.Sprintf(`tcsd (v%s)

A daemon mediating between client applications and a TPM. It keeps the
persistent key hierarchy of the device durable across reboots and
serializes concurrent client requests onto the single device.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of tcsd",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tcsd v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(keyCmd.KeyCommands)
	RootCmd.AddCommand(tpm.TPMCommands)
	RootCmd.AddCommand(inspect.InspectCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use for request and response bodies (binary, json)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
