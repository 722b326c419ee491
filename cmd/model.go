package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/policyscout/discovery-cli/internal/neural"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect or reset the link scorer model",
	Long:  "Commands for viewing and clearing the persisted link-scoring network. The scorer initializes fresh at generation 0 when no model is stored.",
}

// -- model status --

var modelStatusJSON bool

var modelStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted model",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		scorer, err := neural.NewScorer(ctx, st, cfg.Discovery.ModelKey)
		if err != nil {
			return err
		}

		state := scorer.Snapshot()
		if modelStatusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(state)
		}

		formatModelStatus(os.Stdout, scorer.Key(), state)
		return nil
	},
}

// -- model reset --

var modelResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the persisted model",
	Long:  "Deletes the stored network weights. The next discovery session starts over from a random generation-0 network.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		key := cfg.Discovery.ModelKey
		if key == "" {
			key = neural.DefaultModelKey
		}
		if err := st.DeleteModel(ctx, key); err != nil {
			return err
		}

		fmt.Printf("Model %q deleted\n", key)
		return nil
	},
}

func init() {
	modelStatusCmd.Flags().BoolVar(&modelStatusJSON, "json", false, "print full model state including weights")

	modelCmd.AddCommand(modelStatusCmd)
	modelCmd.AddCommand(modelResetCmd)
	rootCmd.AddCommand(modelCmd)
}

// formatModelStatus writes a summary of the model state.
func formatModelStatus(out io.Writer, key string, s neural.State) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Key:\t%s\n", key)
	_, _ = fmt.Fprintf(w, "Generation:\t%d\n", s.Generation)
	_, _ = fmt.Fprintf(w, "Inputs:\t%d\n", s.InputSize)
	_, _ = fmt.Fprintf(w, "Hidden:\t%d\n", s.HiddenSize)
	_, _ = fmt.Fprintf(w, "Outputs:\t%d\n", s.OutputSize)
	_, _ = fmt.Fprintf(w, "Learning rate:\t%.3f\n", s.LearningRate)
	_ = w.Flush()
}
