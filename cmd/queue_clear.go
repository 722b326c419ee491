package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var queueClearStatus string

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete jobs in a given status",
	Long:  "Removes all jobs in the given status from the queue. Processing jobs cannot be cleared while a worker may still own them; stop workers first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		status, err := parseJobStatus(queueClearStatus)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		removed, err := st.ClearJobs(ctx, status)
		if err != nil {
			return err
		}

		fmt.Printf("Cleared %d %s job(s)\n", removed, status)
		return nil
	},
}

func init() {
	queueClearCmd.Flags().StringVar(&queueClearStatus, "status", "", "status of jobs to clear (pending, processing, completed, failed)")
	_ = queueClearCmd.MarkFlagRequired("status")
	queueCmd.AddCommand(queueClearCmd)
}
