package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [email-id]",
		Short: "Classify mail with the backend's classification job",
		Long: `Submit a classification job and track it to completion.

With an email id, that single mail is (re)classified. Without arguments
the backend picks a recent batch of unclassified mail.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().Bool("force", false, "re-classify even if already categorized")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	emailID := 0

	if len(args) > 0 {
		emailID, err = strconv.Atoi(args[0])
		if err != nil || emailID <= 0 {
			return fmt.Errorf("invalid email id %q — expected a positive number", args[0])
		}
	}

	if force && emailID == 0 {
		return fmt.Errorf("--force requires an email id")
	}

	jobID, err := cc.Client.SubmitClassify(ctx, emailID, force)
	if err != nil {
		return fmt.Errorf("submitting classification: %w", err)
	}

	label := "classify batch"
	if emailID > 0 {
		label = fmt.Sprintf("classify %d", emailID)
	}

	return trackJob(ctx, cc, label, jobID)
}
