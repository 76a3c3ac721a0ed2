package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Add documents to the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	results := a.Ingestor.AddFiles(ctx, args)

	var ok, failed int
	for _, r := range results {
		switch {
		case r.Err != nil:
			// Partial ingests land here too: some chunks may be indexed,
			// but the file did not finish.
			failed++
			fmt.Printf("  failed to process %s: %v\n", r.Title, r.Err)
		case r.ChunksIndexed == 0:
			fmt.Printf("  empty    %s\n", r.Title)
		default:
			ok++
			fmt.Printf("  indexed  %s (%d chunks)\n", r.Title, r.ChunksIndexed)
		}
	}

	fmt.Printf("\n%d ingested, %d failed, %d chunks total in index\n", ok, failed, a.Index.Len())
	if failed > 0 {
		return fmt.Errorf("%d file(s) could not be ingested", failed)
	}
	return nil
}
