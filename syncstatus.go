package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newSyncStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-status [account-id]",
		Short: "Sync read/unread state from the provider",
		Long: `Submit a read/unread state sync job and track it to completion.

With --all, one sync job is submitted and tracked per active account,
concurrently. Each job owns its own poll timer; a failure in one does not
stop the others.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSyncStatus,
	}

	cmd.Flags().Bool("all", false, "sync every active account")

	return cmd
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}

	if all && len(args) > 0 {
		return fmt.Errorf("--all and an account id are mutually exclusive")
	}

	if all {
		return syncAllAccounts(ctx, cc)
	}

	if len(args) == 0 {
		return fmt.Errorf("specify an account id, or use --all to sync every account")
	}

	accountID, err := parseAccountID(args[0])
	if err != nil {
		return err
	}

	printer := newProgressPrinter(fmt.Sprintf("sync %d", accountID), cc.Flags.Quiet)

	return syncOneAccount(ctx, cc, accountID, printer)
}

// syncOneAccount submits and tracks a single state sync job.
func syncOneAccount(ctx context.Context, cc *CLIContext, accountID int, printer *progressPrinter) error {
	jobID, err := cc.Client.SubmitSyncStatus(ctx, accountID)
	if err != nil {
		return fmt.Errorf("submitting state sync for account %d: %w", accountID, err)
	}

	return trackJobWith(ctx, cc, printer, jobID)
}

// syncAllAccounts runs one tracked sync job per active account. Trackers
// run concurrently; errgroup collects the first failure after all jobs
// finish their runs.
func syncAllAccounts(ctx context.Context, cc *CLIContext) error {
	accounts, err := cc.Client.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("listing accounts: %w", err)
	}

	// Plain Group, not WithContext: one account's failure must not cancel
	// the other accounts' trackers. Interrupts still propagate through ctx.
	var g errgroup.Group

	active := 0
	for _, acc := range accounts {
		if !acc.IsActive {
			continue
		}

		active++

		printer := newProgressPrinter(fmt.Sprintf("sync %s", acc.Email), cc.Flags.Quiet).plain()

		g.Go(func() error {
			return syncOneAccount(ctx, cc, acc.ID, printer)
		})
	}

	if active == 0 {
		return fmt.Errorf("no active accounts to sync")
	}

	cc.Statusf("Syncing %d account(s)...\n", active)

	return g.Wait()
}
