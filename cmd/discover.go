package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/policyscout/discovery-cli/internal/model"
	"github.com/policyscout/discovery-cli/internal/neural"
	"github.com/policyscout/discovery-cli/internal/queue"
)

var (
	discoverJSON  bool
	discoverTrain bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover <domain>",
	Short: "Run one discovery session for a domain",
	Long:  "Runs direct probing, search, and homepage crawl against the domain, verifies the best candidates, and prints the policy documents found. Phase progress streams to stderr.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		domain, err := queue.NormalizeDomain(args[0])
		if err != nil {
			return err
		}

		events := make(chan model.PhaseEvent, 16)
		env, err := initDiscovery(ctx, "discover", events)
		if err != nil {
			return err
		}
		defer env.Close()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range events {
				fmt.Fprintf(os.Stderr, "%6dms  %-12s %s\n", ev.ElapsedMs, ev.Phase, ev.Message)
			}
		}()

		result, runErr := env.Engine.Run(ctx, domain)
		close(events)
		<-done

		if discoverTrain && env.Scorer != nil && result != nil {
			applyTraining(ctx, env.Scorer, result.Training)
		}

		if result != nil {
			if discoverJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else {
				formatDiscoveryResult(os.Stdout, result)
			}
		}

		return runErr
	},
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "print the full session result as JSON")
	discoverCmd.Flags().BoolVar(&discoverTrain, "train", true, "apply verification labels to the link scorer")
	rootCmd.AddCommand(discoverCmd)
}

// applyTraining feeds verification labels to the scorer. Failures only log;
// a training hiccup never fails the session that produced the labels.
func applyTraining(ctx context.Context, scorer *neural.Scorer, examples []model.TrainingExample) {
	if len(examples) == 0 {
		return
	}
	for _, ex := range examples {
		if err := scorer.Train(ctx, ex.Features.Slice(), ex.Label); err != nil {
			zap.L().Warn("training example discarded", zap.Error(err))
		}
	}
	zap.L().Info("scorer trained",
		zap.Int("examples", len(examples)),
		zap.Uint64("generation", scorer.Generation()),
	)
}

// formatDiscoveryResult writes a human-readable session summary.
func formatDiscoveryResult(out io.Writer, r *model.DiscoveryResult) {
	if len(r.Documents) == 0 {
		_, _ = fmt.Fprintf(out, "No policy documents found for %s (%d candidates, %d verified, %dms)\n",
			r.Domain, r.CandidatesFound, r.CandidatesVerified, r.ElapsedMs)
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TYPE\tCONFIDENCE\tSOURCE\tURL")
	_, _ = fmt.Fprintln(w, "----\t----------\t------\t---")
	for _, d := range r.Documents {
		_, _ = fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\n", d.Type, d.Confidence, d.Source, d.URL)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%d document(s) from %d candidate(s) in %dms\n",
		len(r.Documents), r.CandidatesFound, r.ElapsedMs)
}
