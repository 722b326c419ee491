package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/policyscout/discovery-cli/pkg/notion"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export cached policy documents",
	Long:  "Writes every unexpired document in the cache to a CSV file or a Notion database.",
}

// -- export csv --

var exportCsvOut string

var exportCsvCmd = &cobra.Command{
	Use:   "csv",
	Short: "Write cached documents to a CSV file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		docs, err := st.ListDocuments(ctx)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Fprintln(os.Stderr, "No cached documents.")
		}

		written, err := notion.WriteCSV(exportCsvOut, docs)
		if err != nil {
			return err
		}

		fmt.Printf("Wrote %d document(s) to %s\n", written, exportCsvOut)
		return nil
	},
}

// -- export notion --

var exportNotionCmd = &cobra.Command{
	Use:   "notion",
	Short: "Export cached documents to a Notion database",
	Long:  "Creates one Notion page per document. Pages whose URL already exists in the database are skipped, so repeated exports are additive.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("export"); err != nil {
			return err
		}
		if cfg.Notion.Token == "" {
			return eris.New("notion token is required (POLICYSCOUT_NOTION_TOKEN)")
		}
		if cfg.Notion.DocumentDB == "" {
			return eris.New("notion document database is required (POLICYSCOUT_NOTION_DOCUMENT_DB)")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		docs, err := st.ListDocuments(ctx)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Fprintln(os.Stderr, "No cached documents.")
			return nil
		}

		client := notion.NewClient(cfg.Notion.Token)
		created, err := notion.ExportDocuments(ctx, client, cfg.Notion.DocumentDB, docs)
		if err != nil {
			return err
		}

		fmt.Printf("Exported %d document(s)\n", created)
		return nil
	},
}

func init() {
	exportCsvCmd.Flags().StringVar(&exportCsvOut, "out", "documents.csv", "output file path")

	exportCmd.AddCommand(exportCsvCmd)
	exportCmd.AddCommand(exportNotionCmd)
	rootCmd.AddCommand(exportCmd)
}
