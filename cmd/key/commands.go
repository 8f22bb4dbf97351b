package key

import (
	"encoding/hex"
	"fmt"

	"github.com/ValentinKolb/tcsd/cmd/util"
	"github.com/ValentinKolb/tcsd/lib/ps"
	"github.com/spf13/cobra"
)

var (
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists all registered keys, the SRK first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := rpcClient.ListKeys()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [uuid]",
		Short: "Prints a registered key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := util.ParseUUID(args[0])
			if err != nil {
				return err
			}
			rec, err := rpcClient.GetRegisteredKey(id)
			if err != nil {
				return err
			}
			fmt.Printf("uuid=%s\nparent=%s\ncache_flags=%04x\npub_data=%x\nblob=%x\nvendor_data=%x\n",
				rec.UUID, rec.ParentUUID, rec.CacheFlags, rec.PubData, rec.Blob, rec.VendorData)
			return nil
		},
	}
	childrenCmd = &cobra.Command{
		Use:   "children [uuid]",
		Short: "Lists the direct children of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := util.ParseUUID(args[0])
			if err != nil {
				return err
			}
			children, err := rpcClient.EnumerateChildren(id)
			if err != nil {
				return err
			}
			for _, child := range children {
				fmt.Println(child)
			}
			return nil
		},
	}
	registerCmd = &cobra.Command{
		Use:   "register [uuid] [parent-uuid]",
		Short: "Registers a key below its parent",
		Long:  "Registers a key below its parent. Use 'srk' as uuid to register the storage root key itself, its parent is always the SRK.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := util.ParseUUID(args[0])
			if err != nil {
				return err
			}
			parent, err := util.ParseUUID(args[1])
			if err != nil {
				return err
			}
			rec := ps.KeyRecord{UUID: id, ParentUUID: parent}
			if rec.PubData, err = hexFlag(cmd, "pub-data"); err != nil {
				return err
			}
			if rec.Blob, err = hexFlag(cmd, "blob"); err != nil {
				return err
			}
			if rec.VendorData, err = hexFlag(cmd, "vendor-data"); err != nil {
				return err
			}
			if rec.CacheFlags, err = cmd.Flags().GetUint16("cache-flags"); err != nil {
				return err
			}

			if err := rpcClient.RegisterKey(rec); err != nil {
				return err
			}
			fmt.Println("registered successfully")
			return nil
		},
	}
	unregisterCmd = &cobra.Command{
		Use:   "unregister [uuid]",
		Short: "Removes a key without children from the hierarchy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := util.ParseUUID(args[0])
			if err != nil {
				return err
			}
			if err := rpcClient.UnregisterKey(id); err != nil {
				return err
			}
			fmt.Println("unregistered successfully")
			return nil
		},
	}
)

// hexFlag decodes a hex encoded flag value
func hexFlag(cmd *cobra.Command, name string) ([]byte, error) {
	value, err := cmd.Flags().GetString(name)
	if err != nil || value == "" {
		return nil, err
	}
	data, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return data, nil
}
