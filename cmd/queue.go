package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/policyscout/discovery-cli/internal/model"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the discovery job queue",
	Long:  "Enqueues domains for background discovery and inspects, clears, or retries queued jobs. Jobs are processed by 'policyscout worker'.",
}

func init() {
	rootCmd.AddCommand(queueCmd)
}

// parseJobStatus validates a user-supplied status string.
func parseJobStatus(raw string) (model.JobStatus, error) {
	for _, status := range model.AllJobStatuses() {
		if raw == string(status) {
			return status, nil
		}
	}
	return "", eris.Errorf("unknown job status %q (want pending, processing, completed, or failed)", raw)
}
