package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/policyscout/discovery-cli/internal/model"
	"github.com/policyscout/discovery-cli/internal/queue"
	"github.com/policyscout/discovery-cli/internal/store"
)

var (
	queueStatusList  string
	queueStatusLimit int
)

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue counts by status",
	Long:  "Displays how many jobs are in each status. With --list, shows the individual jobs in that status instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if queueStatusList != "" {
			status, err := parseJobStatus(queueStatusList)
			if err != nil {
				return err
			}
			jobs, err := st.ListJobs(ctx, store.JobFilter{Status: status, Limit: queueStatusLimit})
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintf(os.Stderr, "No %s jobs.\n", status)
				return nil
			}
			formatJobList(os.Stdout, jobs)
			return nil
		}

		proc := queue.NewProcessor(st, nil, nil, cfg.Queue.MaxAttempts)
		counts, err := proc.Status(ctx)
		if err != nil {
			return err
		}

		formatQueueCounts(os.Stdout, counts)
		return nil
	},
}

func init() {
	queueStatusCmd.Flags().StringVar(&queueStatusList, "list", "", "list jobs in the given status (pending, processing, completed, failed)")
	queueStatusCmd.Flags().IntVar(&queueStatusLimit, "limit", 20, "maximum jobs to list with --list")
	queueCmd.AddCommand(queueStatusCmd)
}

// formatQueueCounts writes per-status counts and a total.
func formatQueueCounts(out io.Writer, counts map[model.JobStatus]int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	total := 0
	for _, status := range model.AllJobStatuses() {
		_, _ = fmt.Fprintf(w, "%s:\t%d\n", status, counts[status])
		total += counts[status]
	}
	_, _ = fmt.Fprintf(w, "total:\t%d\n", total)
	_ = w.Flush()
}

// formatJobList writes a tabular representation of queue jobs.
func formatJobList(out io.Writer, jobs []model.DiscoveryJob) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDOMAIN\tSTATUS\tATTEMPTS\tERROR_TYPE\tUPDATED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t--------\t----------\t-------\t-----")

	for _, j := range jobs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			truncateID(j.ID),
			j.Domain,
			j.Status,
			j.Attempts,
			j.ErrorType,
			j.UpdatedAt.Format("2006-01-02 15:04"),
			truncate(j.Error, 60),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
