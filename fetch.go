package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <account-id>",
		Short: "Fetch new mail for an account",
		Long: `Submit a mail fetch job for the given account and track it to
completion, showing progress and counters (new, skipped, errors).`,
		Args: cobra.ExactArgs(1),
		RunE: runFetch,
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	accountID, err := parseAccountID(args[0])
	if err != nil {
		return err
	}

	jobID, err := cc.Client.SubmitFetch(ctx, accountID)
	if err != nil {
		return fmt.Errorf("submitting fetch for account %d: %w", accountID, err)
	}

	return trackJob(ctx, cc, fmt.Sprintf("fetch %d", accountID), jobID)
}

// parseAccountID parses a positive numeric account id argument.
func parseAccountID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid account id %q — expected a positive number", arg)
	}

	return id, nil
}
