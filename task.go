package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect and manage backend jobs",
	}

	cmd.AddCommand(newTaskStatusCmd())
	cmd.AddCommand(newTaskCancelCmd())
	cmd.AddCommand(newTaskPurgeCmd())

	return cmd
}

func newTaskStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the state of a job",
		Long: `Show the current state of a job.

By default prints one snapshot and exits. With --follow, polls until the
job reaches a terminal state, like the submit commands do.`,
		Args: cobra.ExactArgs(1),
		RunE: runTaskStatus,
	}

	cmd.Flags().BoolP("follow", "f", false, "poll until the job completes")

	return cmd
}

func runTaskStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)
	jobID := args[0]

	follow, err := cmd.Flags().GetBool("follow")
	if err != nil {
		return err
	}

	if follow {
		return trackJob(ctx, cc, "job "+jobID, jobID)
	}

	st, err := cc.Client.JobStatus(ctx, jobID)
	if err != nil {
		return fmt.Errorf("querying job %s: %w", jobID, err)
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(st)
	}

	fmt.Println(formatProgress("job "+jobID, st))

	return nil
}

func newTaskCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job",
		Long: `Ask the backend to cancel a job.

Only pending jobs cancel reliably; for a running job the backend attempts
termination and the job may still finish.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			if err := cc.Client.CancelJob(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("canceling job %s: %w", args[0], err)
			}

			cc.Statusf("Cancellation requested for job %s.\n", args[0])

			return nil
		},
	}
}

func newTaskPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Purge pending jobs from the backend queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			name, err := cmd.Flags().GetString("name")
			if err != nil {
				return err
			}

			if err := cc.Client.PurgeJobs(cmd.Context(), name); err != nil {
				return fmt.Errorf("purging jobs: %w", err)
			}

			cc.Statusf("Pending jobs purged.\n")

			return nil
		},
	}

	cmd.Flags().String("name", "", "purge only jobs of this task type")

	return cmd
}
