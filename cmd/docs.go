package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage knowledge base documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	RunE:  runDocsList,
}

var docsRemoveCmd = &cobra.Command{
	Use:   "rm [document-id]",
	Short: "Remove a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsRemove,
}

func init() {
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsRemoveCmd)
	rootCmd.AddCommand(docsCmd)
}

func runDocsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.Store.Documents(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No documents ingested yet. Use `alcove ingest <files>` to add some.")
		return nil
	}

	for _, d := range docs {
		chunks, err := a.Store.ChunksByDocument(ctx, d.ID)
		if err != nil {
			return err
		}
		fmt.Printf("  %s  %-40s %3d chunks  %s\n",
			d.ID, d.Title, len(chunks), d.CreatedAt.Format("2006-01-02"))
	}
	fmt.Printf("\n%d documents, %d chunks indexed\n", len(docs), a.Index.Len())
	return nil
}

func runDocsRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Ingestor.RemoveDocument(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed document %s\n", args[0])
	return nil
}
