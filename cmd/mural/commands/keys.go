package commands

import (
	"github.com/dyluth/mural/internal/auth"
	"github.com/dyluth/mural/internal/printer"
	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a signing key",
	Long: `Generate an Ed25519 signing key and write it to the --key path.

The key's public half is your identity on the ledger: the address that funds,
bids, votes and receives payouts. An existing key file is never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the identity of the configured key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := identity()
		if err != nil {
			return err
		}
		printer.Println(id.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(whoamiCmd)
}

func runKeygen(cmd *cobra.Command, args []string) error {
	key, err := auth.GenerateKey()
	if err != nil {
		return printer.Error("key generation failed", err.Error(), nil)
	}
	if err := auth.SaveKey(keyPath, key); err != nil {
		return printer.Error(
			"could not save key",
			err.Error(),
			[]string{"Choose another location with --key"},
		)
	}
	printer.Success("Key written to %s\n", keyPath)
	printer.Info("Identity: %s\n", auth.Identity(key))
	return nil
}
