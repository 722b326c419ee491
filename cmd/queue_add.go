package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/policyscout/discovery-cli/internal/ingest"
	"github.com/policyscout/discovery-cli/internal/queue"
)

var queueAddFile string

var queueAddCmd = &cobra.Command{
	Use:   "add [domain ...]",
	Short: "Enqueue domains for background discovery",
	Long:  "Adds domains to the job queue. Domains come from arguments, from a CSV or XLSX file via --file, or both. Invalid entries are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		domains := append([]string{}, args...)
		if queueAddFile != "" {
			fromFile, err := ingest.ReadDomains(queueAddFile)
			if err != nil {
				return err
			}
			zap.L().Info("read domains from file",
				zap.String("file", queueAddFile),
				zap.Int("count", len(fromFile)),
			)
			domains = append(domains, fromFile...)
		}
		if len(domains) == 0 {
			return eris.New("no domains given: pass domain arguments or --file")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		proc := queue.NewProcessor(st, nil, nil, cfg.Queue.MaxAttempts)
		added, err := proc.AddDomains(ctx, domains)
		if err != nil {
			return err
		}

		fmt.Printf("Enqueued %d of %d domain(s)\n", added, len(domains))
		return nil
	},
}

func init() {
	queueAddCmd.Flags().StringVar(&queueAddFile, "file", "", "CSV or XLSX file of domains to enqueue")
	queueCmd.AddCommand(queueAddCmd)
}
