package commands

import (
	"fmt"

	"github.com/dyluth/mural/internal/inspect"
	"github.com/dyluth/mural/internal/printer"
	"github.com/dyluth/mural/pkg/address"
	"github.com/spf13/cobra"
)

var creditAdminToken string

var balanceCmd = &cobra.Command{
	Use:   "balance [ACCOUNT]",
	Short: "Show an account balance (default: your own)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBalance,
}

var creditCmd = &cobra.Command{
	Use:   "credit ACCOUNT AMOUNT",
	Short: "Credit an account through the admin faucet",
	Long: `Credit an account from the daemon's admin faucet. Requires the daemon's
admin token (--admin-token or MURAL_ADMIN_TOKEN).

ACCOUNT may be "self" for the identity of your key.`,
	Args: cobra.ExactArgs(2),
	RunE: runCredit,
}

func init() {
	creditCmd.Flags().StringVar(&creditAdminToken, "admin-token", envOr("MURAL_ADMIN_TOKEN", ""), "Admin token of the daemon (env MURAL_ADMIN_TOKEN)")
	rootCmd.AddCommand(balanceCmd, creditCmd)
}

// accountArg parses an account argument; "self" or nothing means the key's identity.
func accountArg(args []string) (address.Address, error) {
	if len(args) == 0 || args[0] == "self" {
		return identity()
	}
	a, err := address.Parse(args[0])
	if err != nil {
		return address.Zero, printer.Error("invalid account address", err.Error(), []string{
			fmt.Sprintf("Accounts are %d hex characters; print yours with:\n  mural whoami", address.Size*2),
		})
	}
	return a, nil
}

func runBalance(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	account, err := accountArg(args)
	if err != nil {
		return err
	}
	c, err := newClient(false)
	if err != nil {
		return err
	}
	balance, err := c.Balance(ctx, account)
	if err != nil {
		return apiFailure("balance lookup", err)
	}
	printer.Info("%s  %s\n", account.Short(), inspect.FormatAmount(balance))
	return nil
}

func runCredit(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	if creditAdminToken == "" {
		return printer.Error("admin token required", "Crediting accounts needs the daemon's admin token.", []string{
			"Pass --admin-token or set MURAL_ADMIN_TOKEN",
		})
	}
	account, err := accountArg(args[:1])
	if err != nil {
		return err
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}

	c, err := newClient(false)
	if err != nil {
		return err
	}
	balance, err := c.Credit(ctx, creditAdminToken, account, amount)
	if err != nil {
		return apiFailure("credit", err)
	}
	printer.Success("Credited %s to %s\n", inspect.FormatAmount(amount), account.Short())
	printer.Info("   Balance: %s\n", inspect.FormatAmount(balance))
	return nil
}
