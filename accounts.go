package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List connected mail accounts",
		Args:  cobra.NoArgs,
		RunE:  runAccounts,
	}
}

func runAccounts(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	accounts, err := cc.Client.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("listing accounts: %w", err)
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(accounts)
	}

	if len(accounts) == 0 {
		cc.Statusf("No accounts connected. Run `easyemail connect` to add one.\n")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROVIDER\tEMAIL\tSTATE")

	for _, acc := range accounts {
		state := "active"
		if !acc.IsActive {
			state = "inactive"
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", acc.ID, acc.Provider, acc.Email, state)
	}

	return w.Flush()
}
