package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/policyscout/discovery-cli/internal/queue"
)

var queueRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Requeue failed jobs",
	Long:  "Moves transient-failed jobs back to pending so workers pick them up again. Permanent failures and jobs that exhausted max_attempts stay failed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		proc := queue.NewProcessor(st, nil, nil, cfg.Queue.MaxAttempts)
		requeued, err := proc.RequeueFailed(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Requeued %d job(s)\n", requeued)
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueRetryCmd)
}
